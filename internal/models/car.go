package models

import (
	"fmt"
	"time"
)

// CarListing is a single car in the dealership inventory. Read-mostly;
// the catalog package owns refreshing it from external storage.
type CarListing struct {
	ID           string    `json:"id" db:"id"`
	Make         string    `json:"make" db:"make"`
	Model        string    `json:"model" db:"model"`
	Year         int       `json:"year" db:"year"`
	Price        float64   `json:"price" db:"price"`
	Mileage      string    `json:"mileage,omitempty" db:"mileage"`
	FuelType     string    `json:"fuelType,omitempty" db:"fuel_type"`
	Transmission string    `json:"transmission,omitempty" db:"transmission"`
	Features     string    `json:"features,omitempty" db:"features"`
	Available    bool      `json:"available" db:"available"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty" db:"updated_at"`
}

// Label returns the short display form used in replies and prompts.
func (c CarListing) Label() string {
	return fmt.Sprintf("%s %s %d (PKR %.0f)", c.Make, c.Model, c.Year, c.Price)
}
