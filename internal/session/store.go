// internal/session/store.go
package session

import (
	"context"

	"dealerdesk/internal/leads"
	"dealerdesk/internal/models"
)

// Store holds conversation sessions keyed by caller-supplied ID.
//
// Implementations guarantee:
//   - GetOrCreate is idempotent: concurrent calls with the same ID yield
//     exactly one creation, every caller sees the same session.
//   - AppendTurn is append-only; turns are never reordered or dropped.
//   - MergeLead applies the monotonic merge policy atomically, so two
//     concurrent merges never lose a field.
//   - Reads return copies; mutating a returned value never touches the
//     stored session.
type Store interface {
	// GetOrCreate returns a snapshot of the session, creating it when
	// absent. The bool reports whether this call created it.
	GetOrCreate(ctx context.Context, id string) (*models.Session, bool, error)

	// Get returns a snapshot of an existing session.
	Get(ctx context.Context, id string) (*models.Session, error)

	// AppendTurn appends one turn to the session transcript.
	AppendTurn(ctx context.Context, id string, turn models.Turn) error

	// MergeLead folds extracted signals into the session lead and
	// returns the post-merge snapshot plus whether anything changed.
	MergeLead(ctx context.Context, id string, p leads.Partial) (models.Lead, bool, error)

	// AddInterest appends a free-text interest note to the lead.
	AddInterest(ctx context.Context, id, note string) error

	SetFlag(ctx context.Context, id, flag string) error
	ClearFlag(ctx context.Context, id, flag string) error
	HasFlag(ctx context.Context, id, flag string) (bool, error)

	// History returns up to n most recent turns, oldest first.
	History(ctx context.Context, id string, n int) ([]models.Turn, error)
}

// copySession deep-copies a session so callers can't mutate store state.
func copySession(s *models.Session) *models.Session {
	out := *s
	out.Turns = make([]models.Turn, len(s.Turns))
	copy(out.Turns, s.Turns)
	if s.Lead.Budget != nil {
		b := *s.Lead.Budget
		out.Lead.Budget = &b
	}
	out.Lead.Interest = append([]string(nil), s.Lead.Interest...)
	if s.Flags != nil {
		out.Flags = make(map[string]bool, len(s.Flags))
		for k, v := range s.Flags {
			out.Flags[k] = v
		}
	}
	return &out
}

func copyLead(l models.Lead) models.Lead {
	out := l
	if l.Budget != nil {
		b := *l.Budget
		out.Budget = &b
	}
	out.Interest = append([]string(nil), l.Interest...)
	return out
}
