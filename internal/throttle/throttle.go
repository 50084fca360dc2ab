// Package throttle paces outbound provider calls with per-key token buckets.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/consulting-site/internal/metrics"
)

// Throttle hands out tokens per provider key.
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// Config holds the default bucket shape. RPS <= 0 disables pacing.
type Config struct {
	RPS   float64
	Burst int
}

// New creates a Throttle.
func New(cfg Config) *Throttle {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

// Wait blocks until a token for key is available or ctx is done.
func (t *Throttle) Wait(ctx context.Context, key string) error {
	t.mu.Lock()
	limiter, ok := t.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(t.rate, t.burst)
		t.limiters[key] = limiter
	}
	t.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle %s: %w", key, err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveThrottleDelay(key, waited)
	}
	return nil
}
