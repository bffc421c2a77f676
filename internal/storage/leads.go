// internal/storage/leads.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	apperrors "dealerdesk/internal/common/errors"
	"dealerdesk/internal/common/logger"
	"dealerdesk/internal/models"
)

// LeadRepository persists qualified leads for the sales team. The
// in-session lead lives in the session store; this table is the
// durable hand-off record.
type LeadRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewLeadRepository(db *sql.DB, log logger.Logger) *LeadRepository {
	return &LeadRepository{db: db, log: log}
}

// Save upserts a lead keyed by session so repeat qualification events
// update the same row instead of duplicating it.
func (r *LeadRepository) Save(ctx context.Context, sessionID string, lead models.Lead) (string, error) {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}
	var budgetMin, budgetMax sql.NullFloat64
	if lead.Budget != nil {
		budgetMin = sql.NullFloat64{Float64: lead.Budget.Min, Valid: true}
		budgetMax = sql.NullFloat64{Float64: lead.Budget.Max, Valid: true}
	}

	query := `
		INSERT INTO leads (id, session_id, name, phone, email, budget_min, budget_max, interest, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (session_id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			budget_min = EXCLUDED.budget_min,
			budget_max = EXCLUDED.budget_max,
			interest = EXCLUDED.interest,
			updated_at = EXCLUDED.updated_at
		RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		lead.ID, sessionID, lead.Name, lead.Phone, lead.Email,
		budgetMin, budgetMax, pq.Array(lead.Interest), string(lead.Status), time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("save lead: %w", err)
	}

	r.log.Info("lead saved", map[string]interface{}{
		"lead_id":    id,
		"session_id": sessionID,
		"qualified":  lead.Qualified(),
	})
	return id, nil
}

// GetByID fetches one lead.
func (r *LeadRepository) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	query := `
		SELECT id, name, phone, email, budget_min, budget_max, interest, status, created_at
		FROM leads WHERE id = $1`

	var (
		lead                 models.Lead
		budgetMin, budgetMax sql.NullFloat64
		interest             pq.StringArray
		status               string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&lead.ID, &lead.Name, &lead.Phone, &lead.Email,
		&budgetMin, &budgetMax, &interest, &status, &lead.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead %s: %w", id, err)
	}

	lead.Interest = []string(interest)
	lead.Status = models.LeadStatus(status)
	if budgetMin.Valid && budgetMax.Valid {
		lead.Budget = &models.Budget{Min: budgetMin.Float64, Max: budgetMax.Float64}
	}
	return &lead, nil
}

// List returns leads newest first, optionally filtered by status.
func (r *LeadRepository) List(ctx context.Context, status models.LeadStatus, limit int) ([]models.Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, name, phone, email, budget_min, budget_max, interest, status, created_at
		FROM leads`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, string(status), limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var out []models.Lead
	for rows.Next() {
		var (
			lead                 models.Lead
			budgetMin, budgetMax sql.NullFloat64
			interest             pq.StringArray
			st                   string
		)
		if err := rows.Scan(&lead.ID, &lead.Name, &lead.Phone, &lead.Email,
			&budgetMin, &budgetMax, &interest, &st, &lead.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		lead.Interest = []string(interest)
		lead.Status = models.LeadStatus(st)
		if budgetMin.Valid && budgetMax.Valid {
			lead.Budget = &models.Budget{Min: budgetMin.Float64, Max: budgetMax.Float64}
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}

// UpdateStatus moves a lead through the funnel.
func (r *LeadRepository) UpdateStatus(ctx context.Context, id string, status models.LeadStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
