package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailvet/mailvet/internal/core"
)

func record(email string, category core.Category) core.VerificationResult {
	return core.NewResult(email, category, "reason", "provider", nil,
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestMemoryStoreRecordAndExists(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	found, _, err := s.Exists(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, found)

	conflict, err := s.Record(ctx, record("a@example.com", core.CategoryValid))
	require.NoError(t, err)
	assert.Nil(t, conflict)

	found, category, err := s.Exists(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, core.CategoryValid, category)
}

func TestMemoryStoreRecordIdempotent(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	_, err := s.Record(ctx, record("a@example.com", core.CategoryValid))
	require.NoError(t, err)
	conflict, err := s.Record(ctx, record("a@example.com", core.CategoryValid))
	require.NoError(t, err)
	assert.Nil(t, conflict)

	summary, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total())
}

func TestMemoryStoreConflictKeepsOriginal(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	_, err := s.Record(ctx, record("a@example.com", core.CategoryValid))
	require.NoError(t, err)

	conflict, err := s.Record(ctx, record("a@example.com", core.CategoryInvalid))
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, core.CategoryValid, conflict.Stored)
	assert.Equal(t, core.CategoryInvalid, conflict.Observed)

	_, category, err := s.Exists(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, core.CategoryValid, category)
}

func TestMemoryStoreHistoryStagingAndFinalize(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendHistoryEvent(ctx, "a@example.com", core.HistoryEvent{Timestamp: ts, Event: "started"}))
	require.NoError(t, s.AppendHistoryEvent(ctx, "a@example.com", core.HistoryEvent{Timestamp: ts.Add(time.Second), Event: "finished"}))

	// Staged events are visible before finalization.
	events, err := s.History(ctx, "a@example.com")
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.NoError(t, s.FinalizeHistory(ctx, "a@example.com", core.CategoryValid))

	events, err = s.History(ctx, "a@example.com")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "started", events[0].Event)
	assert.Equal(t, "finished", events[1].Event)
}

func TestMemoryStoreSummary(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	s.Record(ctx, record("a@example.com", core.CategoryValid))
	s.Record(ctx, record("b@example.com", core.CategoryInvalid))
	s.Record(ctx, record("c@example.com", core.CategoryRisky))
	s.Record(ctx, record("d@example.com", core.CategoryRisky))

	summary, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Summary{Valid: 1, Invalid: 1, Risky: 2}, summary)
}
