package dnsx

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLookupMXOrdersByPreference(t *testing.T) {
	r := newResolver(func(ctx context.Context, domain string) ([]*net.MX, error) {
		return []*net.MX{
			{Host: "mx2.example.com.", Pref: 20},
			{Host: "mx1.example.com.", Pref: 10},
		}, nil
	}, time.Second, zap.NewNop())

	hosts := r.LookupMX(context.Background(), "example.com")
	assert.Equal(t, []string{"mx1.example.com", "mx2.example.com"}, hosts)
}

func TestLookupMXCachesSuccess(t *testing.T) {
	calls := 0
	r := newResolver(func(ctx context.Context, domain string) ([]*net.MX, error) {
		calls++
		return []*net.MX{{Host: "mx.example.com.", Pref: 10}}, nil
	}, time.Second, zap.NewNop())

	r.LookupMX(context.Background(), "example.com")
	r.LookupMX(context.Background(), "example.com")

	assert.Equal(t, 1, calls)
}

func TestLookupMXDoesNotCacheFailure(t *testing.T) {
	calls := 0
	r := newResolver(func(ctx context.Context, domain string) ([]*net.MX, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("temporary failure")
		}
		return []*net.MX{{Host: "mx.example.com.", Pref: 10}}, nil
	}, time.Second, zap.NewNop())

	assert.Empty(t, r.LookupMX(context.Background(), "example.com"))
	assert.Equal(t, []string{"mx.example.com"}, r.LookupMX(context.Background(), "example.com"))
	assert.Equal(t, 2, calls)
}

func TestLookupMXErrorYieldsEmpty(t *testing.T) {
	r := newResolver(func(ctx context.Context, domain string) ([]*net.MX, error) {
		return nil, errors.New("NXDOMAIN")
	}, time.Second, zap.NewNop())

	assert.Empty(t, r.LookupMX(context.Background(), "nonexistent.example"))
}
