// Package ratelimit throttles guesses per user.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// PerUser hands out one token bucket per user ID. A zero limit disables throttling.
type PerUser struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewPerUser(perSecond float64, burst int) *PerUser {
	if burst < 1 {
		burst = 1
	}
	return &PerUser{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether userID may act now.
func (p *PerUser) Allow(userID string) bool {
	if p == nil || p.limit <= 0 {
		return true
	}
	p.mu.Lock()
	l, ok := p.limiters[userID]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.limiters[userID] = l
	}
	p.mu.Unlock()
	return l.Allow()
}
