// internal/storage/leads_test.go
package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dealerdesk/internal/common/errors"
	"dealerdesk/internal/common/logger"
	"dealerdesk/internal/models"
)

func TestLeadRepository_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLeadRepository(db, logger.NewTestLogger(t))

	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(sqlmock.AnyArg(), "s-1", "Ali", "03001234567", "",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "new", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("lead-1"))

	id, err := repo.Save(context.Background(), "s-1", models.Lead{
		Name:   "Ali",
		Phone:  "03001234567",
		Budget: &models.Budget{Min: 2000000, Max: 2000000},
	})
	require.NoError(t, err)
	assert.Equal(t, "lead-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLeadRepository(db, logger.NewTestLogger(t))

	rows := sqlmock.NewRows([]string{
		"id", "name", "phone", "email", "budget_min", "budget_max", "interest", "status", "created_at",
	}).AddRow("lead-1", "Ali", "03001234567", "", 1500000.0, 2000000.0,
		pq.StringArray{"Toyota Corolla 2020 (PKR 3500000)"}, "new", time.Now())

	mock.ExpectQuery("SELECT (.+) FROM leads WHERE id").
		WithArgs("lead-1").
		WillReturnRows(rows)

	lead, err := repo.GetByID(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "Ali", lead.Name)
	require.NotNil(t, lead.Budget)
	assert.True(t, lead.Budget.IsRange())
	assert.Len(t, lead.Interest, 1)
	assert.Equal(t, models.LeadStatusNew, lead.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLeadRepository(db, logger.NewTestLogger(t))

	mock.ExpectQuery("SELECT (.+) FROM leads WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLeadRepository_List_FiltersByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLeadRepository(db, logger.NewTestLogger(t))

	rows := sqlmock.NewRows([]string{
		"id", "name", "phone", "email", "budget_min", "budget_max", "interest", "status", "created_at",
	}).
		AddRow("lead-1", "Ali", "03001234567", "", nil, nil, pq.StringArray{}, "new", time.Now()).
		AddRow("lead-2", "Sara", "", "sara@example.com", nil, nil, pq.StringArray{}, "new", time.Now())

	mock.ExpectQuery("SELECT (.+) FROM leads WHERE status").
		WithArgs("new", 50).
		WillReturnRows(rows)

	leads, err := repo.List(context.Background(), models.LeadStatusNew, 0)
	require.NoError(t, err)
	assert.Len(t, leads, 2)
	assert.Nil(t, leads[0].Budget)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_UpdateStatus_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLeadRepository(db, logger.NewTestLogger(t))

	mock.ExpectExec("UPDATE leads SET status").
		WithArgs("contacted", sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateStatus(context.Background(), "missing", models.LeadStatusContacted)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
