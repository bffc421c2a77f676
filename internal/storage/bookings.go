// internal/storage/bookings.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "dealerdesk/internal/common/errors"
	"dealerdesk/internal/common/logger"
	"dealerdesk/internal/models"
)

// BookingRepository persists test drives and service requests.
type BookingRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewBookingRepository(db *sql.DB, log logger.Logger) *BookingRepository {
	return &BookingRepository{db: db, log: log}
}

// CreateTestDrive stores a new test drive booking in pending state.
func (r *BookingRepository) CreateTestDrive(ctx context.Context, td models.TestDrive) (string, error) {
	if td.CustomerName == "" || td.Phone == "" || td.CarModel == "" {
		return "", apperrors.ErrInvalidInput
	}
	td.ID = uuid.NewString()
	td.Status = models.BookingStatusPending

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO test_drives (id, customer_name, phone, email, car_model, preferred_date, preferred_time, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		td.ID, td.CustomerName, td.Phone, td.Email, td.CarModel,
		td.PreferredDate, td.PreferredTime, string(td.Status), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("create test drive: %w", err)
	}

	r.log.Info("test drive booked", map[string]interface{}{
		"booking_id": td.ID,
		"car_model":  td.CarModel,
	})
	return td.ID, nil
}

// CreateServiceRequest stores a new workshop request in pending state.
func (r *BookingRepository) CreateServiceRequest(ctx context.Context, sr models.ServiceRequest) (string, error) {
	if sr.CustomerName == "" || sr.Phone == "" || sr.ServiceType == "" {
		return "", apperrors.ErrInvalidInput
	}
	sr.ID = uuid.NewString()
	sr.Status = models.BookingStatusPending

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO service_requests (id, customer_name, phone, car_model, service_type, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sr.ID, sr.CustomerName, sr.Phone, sr.CarModel,
		sr.ServiceType, sr.Description, string(sr.Status), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("create service request: %w", err)
	}

	r.log.Info("service request created", map[string]interface{}{
		"request_id":   sr.ID,
		"service_type": sr.ServiceType,
	})
	return sr.ID, nil
}

// GetTestDrive fetches one booking.
func (r *BookingRepository) GetTestDrive(ctx context.Context, id string) (*models.TestDrive, error) {
	var td models.TestDrive
	var status string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_name, phone, email, car_model, preferred_date, preferred_time, status, created_at
		FROM test_drives WHERE id = $1`, id,
	).Scan(&td.ID, &td.CustomerName, &td.Phone, &td.Email, &td.CarModel,
		&td.PreferredDate, &td.PreferredTime, &status, &td.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get test drive %s: %w", id, err)
	}
	td.Status = models.BookingStatus(status)
	return &td, nil
}

// ListTestDrives returns recent bookings, newest first.
func (r *BookingRepository) ListTestDrives(ctx context.Context, limit int) ([]models.TestDrive, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_name, phone, email, car_model, preferred_date, preferred_time, status, created_at
		FROM test_drives ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list test drives: %w", err)
	}
	defer rows.Close()

	var out []models.TestDrive
	for rows.Next() {
		var td models.TestDrive
		var status string
		if err := rows.Scan(&td.ID, &td.CustomerName, &td.Phone, &td.Email, &td.CarModel,
			&td.PreferredDate, &td.PreferredTime, &status, &td.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan test drive: %w", err)
		}
		td.Status = models.BookingStatus(status)
		out = append(out, td)
	}
	return out, rows.Err()
}

// ListServiceRequests returns recent workshop requests, newest first.
func (r *BookingRepository) ListServiceRequests(ctx context.Context, limit int) ([]models.ServiceRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_name, phone, car_model, service_type, description, status, created_at
		FROM service_requests ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list service requests: %w", err)
	}
	defer rows.Close()

	var out []models.ServiceRequest
	for rows.Next() {
		var sr models.ServiceRequest
		var status string
		if err := rows.Scan(&sr.ID, &sr.CustomerName, &sr.Phone, &sr.CarModel,
			&sr.ServiceType, &sr.Description, &status, &sr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan service request: %w", err)
		}
		sr.Status = models.BookingStatus(status)
		out = append(out, sr)
	}
	return out, rows.Err()
}

// UpdateTestDriveStatus confirms or cancels a booking.
func (r *BookingRepository) UpdateTestDriveStatus(ctx context.Context, id string, status models.BookingStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE test_drives SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("update test drive status: %w", err)
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
