// Package dnsx wraps MX resolution with a per-domain cache. MX records are
// looked up several times per address (validation, provider identification,
// probing) and only the first lookup should hit the network.
package dnsx

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

type lookupFunc func(ctx context.Context, domain string) ([]*net.MX, error)

// Resolver resolves MX hosts for a domain and caches successful lookups for
// the lifetime of the process. Failed lookups are not cached so transient
// DNS trouble does not stick to a domain.
type Resolver struct {
	lookup  lookupFunc
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	cache map[string][]string
}

func NewResolver(timeout time.Duration, logger *zap.Logger) *Resolver {
	r := &net.Resolver{}
	return newResolver(r.LookupMX, timeout, logger)
}

func newResolver(lookup lookupFunc, timeout time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		lookup:  lookup,
		timeout: timeout,
		cache:   make(map[string][]string),
		logger:  logger,
	}
}

// LookupMX returns the domain's MX hosts ordered by preference. Resolution
// errors are swallowed and reported as an empty list; callers treat no MX
// hosts as an undeliverable domain.
func (r *Resolver) LookupMX(ctx context.Context, domain string) []string {
	r.mu.Lock()
	if hosts, ok := r.cache[domain]; ok {
		r.mu.Unlock()
		return hosts
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	records, err := r.lookup(ctx, domain)
	if err != nil {
		r.logger.Debug("MX lookup failed", zap.String("domain", domain), zap.Error(err))
		return nil
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Pref < records[j].Pref })
	hosts := make([]string, 0, len(records))
	for _, rec := range records {
		host := trimDot(rec.Host)
		if host != "" {
			hosts = append(hosts, host)
		}
	}

	r.mu.Lock()
	r.cache[domain] = hosts
	r.mu.Unlock()
	return hosts
}

func trimDot(host string) string {
	if n := len(host); n > 0 && host[n-1] == '.' {
		return host[:n-1]
	}
	return host
}
