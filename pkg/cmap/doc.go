// Package cmap provides a sharded concurrent map.
//
// Keys are spread by seeded MurmurHash3 over a power-of-two number of
// shards, each guarded by its own RWMutex, so unrelated keys rarely contend:
//
//	m := cmap.New[string, *rate.Limiter]()
//	lim, _ := m.GetOrCreate(ip, func() *rate.Limiter { return rate.NewLimiter(10, 20) })
//
// Range and DeleteFunc lock one shard at a time; they do not see a
// consistent snapshot of the whole map.
package cmap
