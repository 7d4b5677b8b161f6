// Package ratelimit paces outbound work per host with a token bucket so the
// tool stays well below anything the site would notice.
package ratelimit

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// DomainLimiter rate-limits by host. Load-more interactions and image
// downloads share one instance so combined pressure on the site is bounded.
type DomainLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	perHost  rate.Limit
	burst    int
}

// NewDomainLimiter creates a limiter allowing requestsPerSecond per host with
// the given burst capacity.
func NewDomainLimiter(requestsPerSecond float64, burst int) *DomainLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2.0
	}
	if burst <= 0 {
		burst = 4
	}
	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		perHost:  rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Wait blocks until a request to the URL's host may proceed, or the context
// is done. Unparseable URLs pass through; they fail at the caller anyway.
func (dl *DomainLimiter) Wait(ctx context.Context, urlStr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	host := hostOf(urlStr)
	if host == "" {
		return nil
	}
	return dl.limiterFor(host).Wait(ctx)
}

// Allow reports whether a request to the URL's host may proceed immediately.
func (dl *DomainLimiter) Allow(urlStr string) bool {
	host := hostOf(urlStr)
	if host == "" {
		return true
	}
	return dl.limiterFor(host).Allow()
}

func (dl *DomainLimiter) limiterFor(host string) *rate.Limiter {
	dl.mu.RLock()
	l, ok := dl.limiters[host]
	dl.mu.RUnlock()
	if ok {
		return l
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if l, ok := dl.limiters[host]; ok {
		return l
	}
	l = rate.NewLimiter(dl.perHost, dl.burst)
	dl.limiters[host] = l
	return l
}

func hostOf(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Host
}
