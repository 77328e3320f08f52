package ratelimit

import (
	"context"
	"sync"
	"time"
)

const minWait = 10 * time.Millisecond

// Limiter paces outgoing API requests.
type Limiter struct {
	requestBucket *TokenBucket
	enabled       bool
	mu            sync.Mutex

	// Statistics
	totalRequests   int64
	blockedRequests int64
}

// Config holds rate limiter configuration.
type Config struct {
	Enabled           bool
	RequestsPerMinute int
	BurstSize         int
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(cfg Config) *Limiter {
	refill := float64(cfg.RequestsPerMinute) / 60.0

	burst := float64(cfg.BurstSize)
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		requestBucket: NewTokenBucket(burst, refill),
		enabled:       cfg.Enabled,
	}
}

// Wait blocks until a request slot is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || !l.enabled {
		return nil
	}

	l.mu.Lock()
	l.totalRequests++
	l.mu.Unlock()

	blocked := false
	for {
		wait, ok := l.requestBucket.reserve(1)
		if ok {
			return nil
		}
		if !blocked {
			blocked = true
			l.mu.Lock()
			l.blockedRequests++
			l.mu.Unlock()
		}
		if wait < minWait {
			wait = minWait
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Stats holds rate limiter statistics.
type Stats struct {
	Enabled           bool
	TotalRequests     int64
	BlockedRequests   int64
	AvailableRequests float64
}

// Stats returns rate limiter statistics. A nil limiter reports disabled.
func (l *Limiter) Stats() Stats {
	if l == nil {
		return Stats{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		Enabled:           l.enabled,
		TotalRequests:     l.totalRequests,
		BlockedRequests:   l.blockedRequests,
		AvailableRequests: l.requestBucket.Available(),
	}
}
