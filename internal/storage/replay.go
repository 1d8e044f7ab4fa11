package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yndnr/nonceguard-go/internal/storage/memory"
)

// Backend names accepted by NewReplayStore.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Common errors
var (
	ErrClosed         = errors.New("replay store closed")
	ErrUnknownBackend = errors.New("unknown replay backend")
)

// ReplayStore records consumed nonces.
type ReplayStore interface {
	// MarkUsed records key for ttl. It returns true when the key was not
	// already recorded, false when it was (a replay).
	MarkUsed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Close releases the store's resources.
	Close() error
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks store health when the store supports it.
func Ping(ctx context.Context, store ReplayStore) error {
	if p, ok := store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// ReplayConfig selects and configures a replay backend.
type ReplayConfig struct {
	Backend string

	// MemorySize is the capacity of the memory backend.
	MemorySize int

	// DataDir is the Badger directory.
	DataDir string

	// GCInterval is the Badger value-log GC period (default 10m).
	GCInterval time.Duration

	Redis RedisConfig
}

// NewReplayStore opens the backend named by cfg.Backend.
func NewReplayStore(ctx context.Context, cfg ReplayConfig, logger *slog.Logger) (ReplayStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case "", BackendMemory:
		return memory.NewReplayStore(cfg.MemorySize), nil
	case BackendBadger:
		return NewBadgerReplayStore(BadgerConfig{
			Dir:        cfg.DataDir,
			GCInterval: cfg.GCInterval,
		}, logger)
	case BackendRedis:
		return NewRedisReplayStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
