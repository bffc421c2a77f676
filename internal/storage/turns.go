// internal/storage/turns.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dealerdesk/internal/common/logger"
	"dealerdesk/internal/models"
)

// TurnRepository archives chat turns for analytics. The live transcript
// lives in the session store; this table is the durable audit trail and
// feeds the per-session stats endpoint after a session expires.
type TurnRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewTurnRepository(db *sql.DB, log logger.Logger) *TurnRepository {
	return &TurnRepository{db: db, log: log}
}

// Record archives one turn. Failures are the caller's to log and
// swallow; archival must never block a chat reply.
func (r *TurnRepository) Record(ctx context.Context, sessionID string, turn models.Turn) error {
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_turns (id, session_id, role, text, matched_topic, matched_cars, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), sessionID, string(turn.Role), turn.Text,
		turn.MatchedTopic, pq.Array(turn.MatchedCars), createdAt,
	)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// BySession returns a session's archived turns oldest first.
func (r *TurnRepository) BySession(ctx context.Context, sessionID string, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT role, text, matched_topic, matched_cars, created_at
		FROM chat_turns WHERE session_id = $1
		ORDER BY created_at ASC LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("turns by session: %w", err)
	}
	defer rows.Close()

	var out []models.Turn
	for rows.Next() {
		var (
			turn models.Turn
			role string
			cars pq.StringArray
		)
		if err := rows.Scan(&role, &turn.Text, &turn.MatchedTopic, &cars, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.Role = models.Role(role)
		turn.MatchedCars = []string(cars)
		out = append(out, turn)
	}
	return out, rows.Err()
}
