package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	smtp := cfg.GetSMTP()
	assert.Equal(t, "verify@example.com", smtp.Sender)
	assert.Equal(t, 10*time.Second, smtp.Timeout)
	assert.Equal(t, 3, smtp.MaxRetries)
	assert.True(t, smtp.CatchAllDetection)
	assert.Empty(t, smtp.SOCKS5Proxy)

	api := cfg.GetMicrosoftAPI()
	assert.True(t, api.Enabled)
	assert.Contains(t, api.Endpoint, "GetCredentialType")

	rl := cfg.GetRateLimit()
	assert.Equal(t, 10, rl.MaxRequests)
	assert.Equal(t, time.Minute, rl.Window)

	dispatch := cfg.GetDispatch()
	assert.Equal(t, 4, dispatch.Workers)
	assert.Equal(t, 32, dispatch.MaxWorkers)
	assert.False(t, dispatch.ProcessIsolation)
	assert.Equal(t, 2*time.Second, dispatch.MinDelay)
	assert.Equal(t, 5*time.Minute, dispatch.WorkerJoinLimit)

	assert.False(t, cfg.GetBool("browser.enabled"))
	assert.Equal(t, "sqlite", cfg.GetString("store.type"))
}

func TestOverrides(t *testing.T) {
	v := NewEmptyViper()
	v.Set("dispatch.workers", 12)
	v.Set("domains.blacklist", []string{"spam.example"})
	cfg := NewFromViper(v)

	assert.Equal(t, 12, cfg.GetDispatch().Workers)
	assert.Equal(t, []string{"spam.example"}, cfg.GetDomains().Blacklist)
}
