// internal/session/memory.go
package session

import (
	"context"
	"sync"
	"time"

	apperrors "dealerdesk/internal/common/errors"
	"dealerdesk/internal/leads"
	"dealerdesk/internal/models"
)

// MemoryStore is the in-process Store. One mutex guards the whole map;
// session mutations are short and never block on I/O, so a single lock
// is enough at chat volumes.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.Session)}
}

func (s *MemoryStore) GetOrCreate(_ context.Context, id string) (*models.Session, bool, error) {
	if id == "" {
		return nil, false, apperrors.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[id]; ok {
		return copySession(existing), false, nil
	}
	now := time.Now().UTC()
	created := &models.Session{
		ID:        id,
		Flags:     make(map[string]bool),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[id] = created
	return copySession(created), true, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return copySession(existing), nil
}

func (s *MemoryStore) AppendTurn(_ context.Context, id string, turn models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[id]
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	existing.Turns = append(existing.Turns, turn)
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) MergeLead(_ context.Context, id string, p leads.Partial) (models.Lead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[id]
	if !ok {
		return models.Lead{}, false, apperrors.ErrSessionNotFound
	}
	changed := leads.Merge(&existing.Lead, p)
	if changed {
		existing.UpdatedAt = time.Now().UTC()
	}
	return copyLead(existing.Lead), changed, nil
}

func (s *MemoryStore) AddInterest(_ context.Context, id, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[id]
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	leads.AppendInterest(&existing.Lead, note)
	return nil
}

func (s *MemoryStore) SetFlag(_ context.Context, id, flag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[id]
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	if existing.Flags == nil {
		existing.Flags = make(map[string]bool)
	}
	existing.Flags[flag] = true
	return nil
}

func (s *MemoryStore) ClearFlag(_ context.Context, id, flag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[id]
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	delete(existing.Flags, flag)
	return nil
}

func (s *MemoryStore) HasFlag(_ context.Context, id, flag string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[id]
	if !ok {
		return false, apperrors.ErrSessionNotFound
	}
	return existing.Flags[flag], nil
}

func (s *MemoryStore) History(_ context.Context, id string, n int) ([]models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	turns := existing.LastTurns(n)
	out := make([]models.Turn, len(turns))
	copy(out, turns)
	return out, nil
}
