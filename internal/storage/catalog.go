// internal/storage/catalog.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dealerdesk/internal/common/logger"
	"dealerdesk/internal/models"
)

// CatalogRepository reads and seeds the car inventory table.
type CatalogRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewCatalogRepository(db *sql.DB, log logger.Logger) *CatalogRepository {
	return &CatalogRepository{db: db, log: log}
}

// ListAvailable returns every listing currently marked available.
func (r *CatalogRepository) ListAvailable(ctx context.Context) ([]models.CarListing, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, make, model, year, price, mileage, fuel_type, transmission, features, available, updated_at
		FROM cars WHERE available = true
		ORDER BY make, model, year DESC`)
	if err != nil {
		return nil, fmt.Errorf("list available cars: %w", err)
	}
	defer rows.Close()

	var out []models.CarListing
	for rows.Next() {
		var c models.CarListing
		if err := rows.Scan(&c.ID, &c.Make, &c.Model, &c.Year, &c.Price,
			&c.Mileage, &c.FuelType, &c.Transmission, &c.Features, &c.Available, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan car: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Upsert writes one listing, keyed by make+model+year so reseeding is
// idempotent.
func (r *CatalogRepository) Upsert(ctx context.Context, c models.CarListing) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cars (id, make, model, year, price, mileage, fuel_type, transmission, features, available, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (make, model, year) DO UPDATE SET
			price = EXCLUDED.price,
			mileage = EXCLUDED.mileage,
			fuel_type = EXCLUDED.fuel_type,
			transmission = EXCLUDED.transmission,
			features = EXCLUDED.features,
			available = EXCLUDED.available,
			updated_at = EXCLUDED.updated_at`,
		c.ID, c.Make, c.Model, c.Year, c.Price, c.Mileage,
		c.FuelType, c.Transmission, c.Features, c.Available, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert car %s %s: %w", c.Make, c.Model, err)
	}
	return nil
}

// Seed upserts a batch inside one transaction.
func (r *CatalogRepository) Seed(ctx context.Context, cars []models.CarListing) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer tx.Rollback()

	for _, c := range cars {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cars (id, make, model, year, price, mileage, fuel_type, transmission, features, available, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (make, model, year) DO UPDATE SET
				price = EXCLUDED.price,
				available = EXCLUDED.available,
				updated_at = EXCLUDED.updated_at`,
			c.ID, c.Make, c.Model, c.Year, c.Price, c.Mileage,
			c.FuelType, c.Transmission, c.Features, c.Available, time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("seed car %s %s: %w", c.Make, c.Model, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	r.log.Info("catalog seeded", map[string]interface{}{"count": len(cars)})
	return nil
}
