// Package store contains the classification ledger adapters. All of them
// implement core.ResultStore with the same semantics: one category per
// address, idempotent same-category recording, conflicts never overwrite.
package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mailvet/mailvet/internal/core"
)

// MemoryStore keeps classifications and history in process memory. Useful
// for tests and one-shot runs where persistence across invocations is not
// wanted.
type MemoryStore struct {
	logger *zap.Logger

	mu         sync.RWMutex
	categories map[string]core.Category
	pending    map[string][]core.HistoryEvent
	history    map[string][]core.HistoryEvent
}

func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		logger:     logger,
		categories: make(map[string]core.Category),
		pending:    make(map[string][]core.HistoryEvent),
		history:    make(map[string][]core.HistoryEvent),
	}
}

func (s *MemoryStore) Exists(ctx context.Context, email string) (bool, core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category, ok := s.categories[email]
	return ok, category, nil
}

func (s *MemoryStore) Record(ctx context.Context, result core.VerificationResult) (*core.Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.categories[result.Email]; ok {
		if stored == result.Category {
			return nil, nil
		}
		return &core.Conflict{Email: result.Email, Stored: stored, Observed: result.Category}, nil
	}

	s.categories[result.Email] = result.Category
	return nil, nil
}

func (s *MemoryStore) AppendHistoryEvent(ctx context.Context, email string, event core.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[email] = append(s.pending[email], event)
	return nil
}

func (s *MemoryStore) FinalizeHistory(ctx context.Context, email string, category core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if staged := s.pending[email]; len(staged) > 0 {
		s.history[email] = append(s.history[email], staged...)
		delete(s.pending, email)
	}
	return nil
}

func (s *MemoryStore) History(ctx context.Context, email string) ([]core.HistoryEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]core.HistoryEvent, 0, len(s.history[email])+len(s.pending[email]))
	events = append(events, s.history[email]...)
	events = append(events, s.pending[email]...)
	return events, nil
}

func (s *MemoryStore) Summary(ctx context.Context) (core.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary core.Summary
	for _, category := range s.categories {
		summary.Add(category, 1)
	}
	return summary, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
