package api

import (
	"context"
	"sync"
	"time"
)

// Default quotas. The AI quota bounds LLM calls per session; the login quota
// bounds credential attempts per client address.
const (
	AIRateLimit     = 20
	LoginRateLimit  = 5
	RateLimitWindow = time.Minute
)

// MemoryRateLimiter is a process-local sliding-window limiter. Timestamps
// older than the window are pruned on the next access for the same key.
type MemoryRateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

// NewMemoryRateLimiter creates a limiter allowing limit calls per window and
// key.
func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (l *MemoryRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.hits[key][:0]
	for _, at := range l.hits[key] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}

	if len(recent) >= l.limit {
		l.hits[key] = recent
		return false, nil
	}

	l.hits[key] = append(recent, now)
	return true, nil
}
