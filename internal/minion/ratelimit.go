package minion

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// maxTrackedIPs bounds the number of remote IPs with a live token bucket.
// The least recently seen IP is forgotten first.
const maxTrackedIPs = 4096

// ipLimiter keeps one token bucket per remote IP.
type ipLimiter struct {
	limiters *lru.Cache[string, *rate.Limiter]
	rs       rate.Limit
	burst    int
}

// newIPLimiter returns nil when rs is not positive, which disables limiting.
func newIPLimiter(rs float64, burst, size int) *ipLimiter {
	if rs <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	if size < 1 {
		size = maxTrackedIPs
	}
	cache, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		// only fails on a non-positive size
		panic(err)
	}
	return &ipLimiter{
		limiters: cache,
		rs:       rate.Limit(rs),
		burst:    burst,
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	if limiter, ok := l.limiters.Get(ip); ok {
		return limiter
	}
	limiter := rate.NewLimiter(l.rs, l.burst)
	if prev, ok, _ := l.limiters.PeekOrAdd(ip, limiter); ok {
		return prev
	}
	return limiter
}

func (l *ipLimiter) Allow(ip string) bool {
	if l == nil {
		return true
	}
	return l.get(ip).Allow()
}
