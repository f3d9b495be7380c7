// Package ratelimit keeps one token bucket per client key. The registry is
// owned by the caller: Run sweeps idle clients until its context ends, so
// nothing outlives the server that created it.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config controls the per-client bucket.
type Config struct {
	RPS     float64       // tokens added per second
	Burst   int           // bucket capacity
	Enabled bool          // false lets every request through
	IdleTTL time.Duration // clients unseen for this long are forgotten
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Registry maps client keys (normally the remote IP) to their limiters.
type Registry struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	clients map[string]*client
}

// New returns an empty registry. A zero IdleTTL defaults to three minutes.
func New(cfg Config) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 3 * time.Minute
	}
	return &Registry{
		cfg:     cfg,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// Enabled reports whether the registry limits anything at all.
func (r *Registry) Enabled() bool {
	return r.cfg.Enabled
}

// Allow consumes one token from key's bucket and reports whether one was
// available.
func (r *Registry) Allow(key string) bool {
	if !r.cfg.Enabled {
		return true
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(r.cfg.RPS), r.cfg.Burst)}
		r.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Sweep forgets every client idle for longer than IdleTTL and returns how
// many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, c := range r.clients {
		if c.lastSeen.Before(cutoff) {
			delete(r.clients, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Run calls Sweep every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
