package catalog

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Default outbound request rates per catalog (requests per second).
var defaultRateLimits = map[Name]rate.Limit{
	NameSpotify: 5,
}

// RateLimiterMap holds one rate.Limiter per catalog, created once at startup
// and shared by every request.
type RateLimiterMap struct {
	mu       sync.RWMutex
	limiters map[Name]*rate.Limiter
}

// NewRateLimiterMap creates limiters for every known catalog.
func NewRateLimiterMap() *RateLimiterMap {
	m := &RateLimiterMap{
		limiters: make(map[Name]*rate.Limiter, len(defaultRateLimits)),
	}
	for name, limit := range defaultRateLimits {
		m.limiters[name] = rate.NewLimiter(limit, burstFor(limit))
	}
	return m
}

// SetLimit overrides the rate for one catalog. A non-positive rps removes
// the limit entirely.
func (m *RateLimiterMap) SetLimit(name Name, rps float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rps <= 0 {
		delete(m.limiters, name)
		return
	}
	limit := rate.Limit(rps)
	m.limiters[name] = rate.NewLimiter(limit, burstFor(limit))
}

// Wait blocks until the limiter for the given catalog allows a request,
// or the context is canceled.
func (m *RateLimiterMap) Wait(ctx context.Context, name Name) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}

// burstFor lets a whole tier's fan-out (up to 3 related artists) go through
// without queueing.
func burstFor(limit rate.Limit) int {
	if limit < 3 {
		return 1
	}
	return 3
}
