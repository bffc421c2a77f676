package models

import "time"

// LeadStatus tracks a lead through the sales funnel.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusLost      LeadStatus = "lost"
)

// Budget is a point value or a range in the catalog currency.
// A point budget has Min == Max.
type Budget struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// IsRange reports whether the budget spans more than a single value.
func (b Budget) IsRange() bool { return b.Min != b.Max }

// Lead is the structured profile accumulated from a conversation.
// Fields are merge-only: once set they are never cleared, only replaced
// by a higher-confidence value of the same kind.
type Lead struct {
	ID        string     `json:"id,omitempty" db:"id"`
	Name      string     `json:"name,omitempty" db:"name"`
	Phone     string     `json:"phone,omitempty" db:"phone"`
	Email     string     `json:"email,omitempty" db:"email"`
	Budget    *Budget    `json:"budget,omitempty"`
	Interest  []string   `json:"interest,omitempty" db:"interest"`
	Status    LeadStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"createdAt,omitempty" db:"created_at"`
}

// Qualified reports whether the lead carries enough signal to hand to
// sales: a way to reach the customer plus either a name or a budget.
func (l *Lead) Qualified() bool {
	reachable := l.Phone != "" || l.Email != ""
	return reachable && (l.Name != "" || l.Budget != nil)
}
