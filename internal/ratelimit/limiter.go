// Package ratelimit paces outbound verification traffic. A per-domain
// sliding window keeps any single mail provider from seeing bursts, and a
// global token bucket caps the overall probe rate across domains.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mailvet/mailvet/internal/config"
)

// Limiter tracks request timestamps per domain over a sliding window and
// honors explicit backoff windows pushed by probes that got throttled.
type Limiter struct {
	maxRequests int
	window      time.Duration
	pacer       *rate.Limiter
	now         func() time.Time

	mu           sync.Mutex
	requests     map[string][]time.Time
	backoffUntil map[string]time.Time
}

func New(cfg config.RateLimitConfig) *Limiter {
	return newLimiter(cfg, time.Now)
}

func newLimiter(cfg config.RateLimitConfig, now func() time.Time) *Limiter {
	perSecond := cfg.GlobalPerSecond
	if perSecond <= 0 {
		perSecond = 10
	}
	return &Limiter{
		maxRequests:  cfg.MaxRequests,
		window:       cfg.Window,
		pacer:        rate.NewLimiter(rate.Limit(perSecond), perSecond),
		now:          now,
		requests:     make(map[string][]time.Time),
		backoffUntil: make(map[string]time.Time),
	}
}

// Wait blocks until the global pacer admits one more request or the context
// is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.pacer.Wait(ctx)
}

// IsLimited reports whether the domain has used up its window allowance
// or sits inside an explicit backoff period.
func (l *Limiter) IsLimited(domain string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, ok := l.backoffUntil[domain]; ok {
		if now.Before(until) {
			return true
		}
		delete(l.backoffUntil, domain)
	}
	return len(l.prune(domain, now)) >= l.maxRequests
}

// BackoffSeconds returns how long a caller should wait before the domain's
// next request. Zero means the domain is clear.
func (l *Limiter) BackoffSeconds(domain string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var wait time.Duration

	if until, ok := l.backoffUntil[domain]; ok && now.Before(until) {
		wait = until.Sub(now)
	}

	recent := l.prune(domain, now)
	if len(recent) >= l.maxRequests {
		// The window clears when its oldest request ages out.
		if slide := recent[0].Add(l.window).Sub(now); slide > wait {
			wait = slide
		}
	}

	if wait <= 0 {
		return 0
	}
	return int(wait/time.Second) + 1
}

// RecordRequest logs one outbound request against the domain's window.
func (l *Limiter) RecordRequest(domain string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.requests[domain] = append(l.prune(domain, now), now)
}

// SetExplicitBackoff pauses a domain for the given number of seconds,
// regardless of window occupancy. Probes call this when the remote side
// signals throttling.
func (l *Limiter) SetExplicitBackoff(domain string, seconds int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	until := l.now().Add(time.Duration(seconds) * time.Second)
	if existing, ok := l.backoffUntil[domain]; !ok || until.After(existing) {
		l.backoffUntil[domain] = until
	}
}

// prune drops timestamps that have left the window. Caller holds the lock.
func (l *Limiter) prune(domain string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	kept := l.requests[domain][:0]
	for _, ts := range l.requests[domain] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.requests, domain)
		return nil
	}
	l.requests[domain] = kept
	return kept
}
