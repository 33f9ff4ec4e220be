package probe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailvet/mailvet/internal/core"
)

func TestClassifySMTP(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		accepted bool
		code     int
		catchAll bool
		category core.Category
		nilWant  bool
	}{
		{name: "accepted", accepted: true, code: 250, category: core.CategoryValid},
		{name: "accepted on catch-all domain", accepted: true, code: 250, catchAll: true, category: core.CategoryRisky},
		{name: "mailbox unavailable", code: 550, category: core.CategoryRisky},
		{name: "user not local", code: 551, category: core.CategoryInvalid},
		{name: "mailbox name not allowed", code: 553, category: core.CategoryInvalid},
		{name: "other permanent rejection", code: 554, category: core.CategoryInvalid},
		{name: "transient failure", code: 451, nilWant: true},
		{name: "greylisted", code: 450, nilWant: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClassifySMTP("user@example.com", "custom", tt.accepted, tt.code, tt.catchAll, ts)
			if tt.nilWant {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, tt.category, result.Category)
			assert.Equal(t, "user@example.com", result.Email)
			assert.Equal(t, "custom", result.Provider)
		})
	}
}

func TestClassifySMTPReasons(t *testing.T) {
	deliverable := ClassifySMTP("user@example.com", "custom", true, 250, false, time.Now())
	require.NotNil(t, deliverable)
	assert.Contains(t, deliverable.Reason, "SMTP")

	catchAll := ClassifySMTP("user@example.com", "custom", true, 250, true, time.Now())
	require.NotNil(t, catchAll)
	assert.Contains(t, catchAll.Reason, "catch-all")
}

func TestSMTPVerifyNoMXHosts(t *testing.T) {
	p := NewSMTPProbe(testSMTPConfig(), testLogger())
	result, err := p.Verify(testContext(t), core.ProbeRequest{Email: "user@example.com"})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestSMTPMethod(t *testing.T) {
	p := NewSMTPProbe(testSMTPConfig(), testLogger())
	assert.Equal(t, core.MethodSMTP, p.Method())
}

func TestRandomLocalPart(t *testing.T) {
	a := randomLocalPart()
	b := randomLocalPart()
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}
