// Package ratelimit throttles contact submissions per client using a trailing
// time window. The in-process Memory limiter protects a single instance; the
// Redis limiter shares counts across instances.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default window and threshold for contact submissions.
const (
	DefaultWindow = 10 * time.Minute
	DefaultMax    = 5
)

// Limiter records an attempt for key and reports whether key is now over its limit.
// Every call counts, including attempts that are later rejected.
type Limiter interface {
	CheckAndRecord(ctx context.Context, key string) (limited bool, err error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Config holds limiter configuration.
type Config struct {
	Window time.Duration
	Max    int
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Max <= 0 {
		c.Max = DefaultMax
	}
	return c
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Memory keeps per-key timestamps in process memory.
type Memory struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	window time.Duration
	max    int
	clock  Clock
}

// NewMemory creates a Memory limiter. A nil clock uses wall time.
func NewMemory(cfg Config, clock Clock) *Memory {
	cfg = cfg.withDefaults()
	if clock == nil {
		clock = wallClock{}
	}
	return &Memory{
		hits:   make(map[string][]time.Time),
		window: cfg.Window,
		max:    cfg.Max,
		clock:  clock,
	}
}

// CheckAndRecord appends the current instant for key, drops timestamps that
// fell out of the window and reports whether more than Max remain. It never fails.
func (m *Memory) CheckAndRecord(_ context.Context, key string) (bool, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	recent := m.prune(m.hits[key], now)
	recent = append(recent, now)
	m.hits[key] = recent
	return len(recent) > m.max, nil
}

// prune filters in place; hits are appended in time order.
func (m *Memory) prune(hits []time.Time, now time.Time) []time.Time {
	kept := hits[:0]
	for _, t := range hits {
		if now.Sub(t) < m.window {
			kept = append(kept, t)
		}
	}
	return kept
}

// Sweep evicts keys whose newest timestamp is older than the window and
// returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, hits := range m.hits {
		if len(hits) == 0 || now.Sub(hits[len(hits)-1]) >= m.window {
			delete(m.hits, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hits)
}

// StartJanitor sweeps idle keys every interval until ctx is done.
func (m *Memory) StartJanitor(ctx context.Context, every time.Duration, logger *zap.Logger) {
	if every <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := m.Sweep(); n > 0 {
					logger.Debug("rate limit keys evicted", zap.Int("count", n))
				}
			}
		}
	}()
}
