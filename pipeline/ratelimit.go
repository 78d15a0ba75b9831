package pipeline

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Rate limit keys for external model calls.
const (
	limitExtract = "extract"
	limitEmbed   = "embed"
)

// Limiter provides per-operation rate limiting using token buckets.
// Extraction and embedding calls get separate limiters, so a burst of
// embedding batches cannot starve structured extraction.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
}

// NewLimiter creates a Limiter with the specified calls per second.
// Each operation gets its own limiter with a burst of 1.
func NewLimiter(rps float64) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
	}
}

// Wait blocks until the rate limit allows a call for the operation.
// Returns an error if the context is canceled before the wait completes.
func (l *Limiter) Wait(ctx context.Context, op string) error {
	l.mu.Lock()
	limiter, ok := l.limiters[op]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.rps), 1)
		l.limiters[op] = limiter
	}
	l.mu.Unlock()

	return limiter.Wait(ctx)
}
