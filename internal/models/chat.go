package models

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message within a session. Immutable once created.
type Turn struct {
	Role         Role      `json:"role" db:"role"`
	Text         string    `json:"text" db:"text"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	MatchedTopic string    `json:"matchedTopic,omitempty" db:"matched_topic"`
	MatchedCars  []string  `json:"matchedCars,omitempty" db:"matched_cars"`
}

// Session is one ongoing customer conversation. Turns are append-only,
// the lead snapshot is merge-only, flags are short-lived markers set by
// the orchestrator while it waits for a specific piece of information.
type Session struct {
	ID        string          `json:"id" db:"id"`
	Turns     []Turn          `json:"turns"`
	Lead      Lead            `json:"lead"`
	Flags     map[string]bool `json:"flags,omitempty"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// Conversation flags understood by the orchestrator.
const (
	FlagAwaitingPhone  = "awaiting_phone"
	FlagAwaitingBudget = "awaiting_budget"
)

// LastTurns returns up to n most recent turns, oldest first.
func (s *Session) LastTurns(n int) []Turn {
	if n <= 0 || len(s.Turns) == 0 {
		return nil
	}
	if len(s.Turns) <= n {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}
