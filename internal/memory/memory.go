package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"folio/internal/logging"
	"folio/internal/metrics"
)

// GuardConfig holds the thresholds of a Guard, as fractions of the limit.
type GuardConfig struct {
	// Limit in bytes. Zero uses the runtime soft limit, if any.
	Limit int64
	// Pause is the usage at which batch work stops taking new items.
	Pause float64
	// Resume is the usage below which paused work continues.
	Resume float64
	// SampleInterval bounds how often heap statistics are read.
	SampleInterval time.Duration
	// PollInterval is how often a paused waiter re-samples.
	PollInterval time.Duration
}

// DefaultGuardConfig returns the thresholds used by the server.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Pause:          0.85,
		Resume:         0.7,
		SampleInterval: 500 * time.Millisecond,
		PollInterval:   250 * time.Millisecond,
	}
}

// Guard applies backpressure to batch image work. Each worker calls Wait
// before decoding the next image; Wait blocks while heap usage is above
// the pause threshold.
type Guard struct {
	cfg   GuardConfig
	limit int64
	read  func() uint64

	mu      sync.Mutex
	sampled time.Time
	usage   float64
	paused  bool
}

// NewGuard creates a Guard. Without any limit it never blocks.
func NewGuard(cfg GuardConfig) *Guard {
	limit := cfg.Limit
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < 1<<62 {
			limit = l
		}
	}
	if limit == 0 {
		logging.Debug("Memory guard: no limit configured, backpressure disabled")
	}
	return &Guard{cfg: cfg, limit: limit, read: heapAlloc}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// Wait returns once memory allows another item, or with ctx's error.
func (g *Guard) Wait(ctx context.Context) error {
	if g == nil || g.limit == 0 {
		return ctx.Err()
	}
	for {
		if !g.check(time.Now()) {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.cfg.PollInterval):
		}
	}
}

// Paused reports whether the last sample was over the pause threshold.
func (g *Guard) Paused() bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// check samples usage when the last sample is stale and returns whether
// work should stay paused.
func (g *Guard) check(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if now.Sub(g.sampled) < g.cfg.SampleInterval && !g.sampled.IsZero() {
		return g.paused
	}
	g.sampled = now
	g.usage = float64(g.read()) / float64(g.limit)
	metrics.MemoryUsageRatio.Set(g.usage)

	switch {
	case !g.paused && g.usage >= g.cfg.Pause:
		g.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryPausesTotal.Inc()
		logging.Warn("Memory at %.1f%% of limit, pausing batch work", g.usage*100)
		go runtime.GC()
	case g.paused && g.usage < g.cfg.Resume:
		g.paused = false
		metrics.MemoryPaused.Set(0)
		logging.Info("Memory recovered (%.1f%% of limit), resuming batch work", g.usage*100)
	}
	return g.paused
}
