package benchmark

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/yndnr/nonceguard-go/internal/core/service"
	"github.com/yndnr/nonceguard-go/pkg/nonce"
)

var benchSecret = []byte("benchmark-installation-secret-0123456789")

// ActionCounts is the number of distinct actions used by mixed workloads.
var ActionCounts = []int{1, 100, 10000}

// fixedNow keeps every benchmark inside one bucket.
var fixedNow = time.Unix(1_800_000_000, 0)

func newTokenContext(b *testing.B, action string) nonce.TokenContext {
	b.Helper()
	tc, err := nonce.NewTokenContext(action, nonce.DefaultLifetime, benchSecret)
	if err != nil {
		b.Fatalf("NewTokenContext() error = %v", err)
	}
	return tc
}

func newService(b *testing.B, opts ...service.Option) *service.NonceService {
	b.Helper()
	opts = append([]service.Option{service.WithClock(func() time.Time { return fixedNow })}, opts...)
	svc, err := service.NewNonceService(&service.NonceServiceConfig{
		Secret:   benchSecret,
		Lifetime: time.Hour,
	}, opts...)
	if err != nil {
		b.Fatalf("NewNonceService() error = %v", err)
	}
	return svc
}

func actions(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("delete-post-%d", i)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// reportMemory reports heap usage after a forced GC.
func reportMemory(b *testing.B) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.HeapAlloc)/1024/1024, "heap-MB")
}
