package utility

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// IPRateLimiter hands out one token bucket per client IP. Idle buckets are
// evicted after ttl so the map cannot grow without bound.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewIPRateLimiter allows perMinute requests per IP with a burst of the same
// size.
func NewIPRateLimiter(perMinute int, ttl time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](10000, nil, ttl),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters.Get(ip)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(ip, lim)
	}
	return lim.Allow()
}
