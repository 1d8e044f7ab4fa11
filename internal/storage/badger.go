package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultGCInterval is the default Badger value-log GC period.
const DefaultGCInterval = 10 * time.Minute

const (
	gcDiscardRatio  = 0.5
	maxTxnConflicts = 5
)

// BadgerConfig configures a BadgerReplayStore.
type BadgerConfig struct {
	Dir        string
	GCInterval time.Duration

	// InMemory runs Badger without touching disk (tests).
	InMemory bool
}

// BadgerReplayStore implements ReplayStore using Badger v3 entries with TTL.
type BadgerReplayStore struct {
	db     *badger.DB
	logger *slog.Logger

	closed     atomic.Bool
	lastGCTime atomic.Int64 // Unix milliseconds

	// Prometheus metrics
	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsLastGCTime   prometheus.Gauge

	// Shutdown
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewBadgerReplayStore opens (or creates) a Badger database in cfg.Dir.
func NewBadgerReplayStore(cfg BadgerConfig, logger *slog.Logger) (*BadgerReplayStore, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = DefaultGCInterval
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	s := &BadgerReplayStore{
		db:     db,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	// Start background GC loop
	s.wg.Add(1)
	go s.gcLoop(cfg.GCInterval)

	logger.Info("badger replay store started",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"gc_interval", cfg.GCInterval)

	return s, nil
}

// MarkUsed records key with a Badger TTL.
//
// Badger expiry has one-second resolution, so ttl is rounded up to a whole
// second. Transaction conflicts from concurrent writers are retried.
func (s *BadgerReplayStore) MarkUsed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	k := []byte(key)
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		first := false
		err := s.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(k)
			switch {
			case err == nil:
				return nil
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}
			first = true
			return txn.SetEntry(badger.NewEntry(k, []byte{1}).WithTTL(ttl))
		})

		if errors.Is(err, badger.ErrConflict) && attempt < maxTxnConflicts {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("badger: mark used: %w", err)
		}
		return first, nil
	}
}

// GC runs value-log garbage collection until Badger reports nothing to
// rewrite. Expired replay entries are dropped by compaction; GC reclaims
// the value-log space they held.
func (s *BadgerReplayStore) GC() error {
	startTime := time.Now()
	runs := 0
	for {
		err := s.db.RunValueLogGC(gcDiscardRatio)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) ||
				errors.Is(err, badger.ErrGCInMemoryMode) {
				break
			}
			return fmt.Errorf("gc: %w", err)
		}
		runs++
	}

	s.lastGCTime.Store(time.Now().UnixMilli())
	s.logger.Debug("gc completed", "rewrites", runs, "elapsed", time.Since(startTime))
	return nil
}

// Ping reports ErrClosed after Close.
func (s *BadgerReplayStore) Ping(context.Context) error {
	if s.closed.Load() || s.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// Size returns the LSM tree and value-log sizes in bytes.
func (s *BadgerReplayStore) Size() (lsm, vlog int64) {
	return s.db.Size()
}

// Close stops the GC loop and closes the database.
func (s *BadgerReplayStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.logger.Info("shutting down badger replay store")
		s.closed.Store(true)
		close(s.stopCh)
		s.wg.Wait()

		if cerr := s.db.Close(); cerr != nil {
			err = fmt.Errorf("close db: %w", cerr)
		}
	})
	return err
}

// RegisterMetrics registers Badger size gauges with Prometheus and starts a
// loop that refreshes them.
func (s *BadgerReplayStore) RegisterMetrics(registry prometheus.Registerer) error {
	s.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nonceguard",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	s.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nonceguard",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	s.metricsLastGCTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nonceguard",
		Subsystem: "badger",
		Name:      "last_gc_timestamp_seconds",
		Help:      "Unix timestamp of the last Badger GC run",
	})

	for _, c := range []prometheus.Collector{s.metricsLSMSize, s.metricsValueLogSize, s.metricsLastGCTime} {
		if err := registry.Register(c); err != nil {
			return fmt.Errorf("badger: register metrics: %w", err)
		}
	}

	s.updateMetrics()
	s.wg.Add(1)
	go s.metricsUpdateLoop()
	return nil
}

func (s *BadgerReplayStore) updateMetrics() {
	lsm, vlog := s.db.Size()
	s.metricsLSMSize.Set(float64(lsm))
	s.metricsValueLogSize.Set(float64(vlog))
	if ms := s.lastGCTime.Load(); ms > 0 {
		s.metricsLastGCTime.Set(float64(ms) / 1000.0)
	}
}

// metricsUpdateLoop periodically updates Prometheus metrics.
func (s *BadgerReplayStore) metricsUpdateLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.updateMetrics()
		case <-s.stopCh:
			return
		}
	}
}

// gcLoop runs periodic garbage collection.
func (s *BadgerReplayStore) gcLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.GC(); err != nil {
				s.logger.Error("auto gc failed", "error", err)
			}
		case <-s.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
