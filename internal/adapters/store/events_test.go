package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailvet/mailvet/internal/core"
)

func TestDecodeEventRepairsSurroundingGarbage(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payload, err := encodeEvent(core.HistoryEvent{Timestamp: ts, Event: "smtp ok"})
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
	}{
		{"clean", payload},
		{"trailing garbage", payload + "\x00\x00garbage"},
		{"leading garbage", "garbage" + payload},
		{"both sides", "xx" + payload + "yy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := decodeEvent(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, "smtp ok", event.Event)
			assert.True(t, event.Timestamp.Equal(ts))
		})
	}
}

func TestDecodeEventUnrepairable(t *testing.T) {
	for _, raw := range []string{"", "no braces here", `{"never closed`} {
		_, err := decodeEvent(raw)
		assert.Error(t, err, raw)
	}
}

func TestExtractObjectHandlesNestedAndStrings(t *testing.T) {
	raw := `junk {"a":{"b":"}"},"c":1} tail`
	obj, ok := extractObject(raw)
	require.True(t, ok)
	assert.Equal(t, `{"a":{"b":"}"},"c":1}`, obj)
}
