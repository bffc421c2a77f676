package models

import "time"

// BookingStatus is shared by test drives and service requests.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// TestDrive is a customer booking for a test drive.
type TestDrive struct {
	ID            string        `json:"id" db:"id"`
	CustomerName  string        `json:"customerName" db:"customer_name"`
	Phone         string        `json:"phone" db:"phone"`
	Email         string        `json:"email,omitempty" db:"email"`
	CarModel      string        `json:"carModel" db:"car_model"`
	PreferredDate string        `json:"preferredDate" db:"preferred_date"`
	PreferredTime string        `json:"preferredTime" db:"preferred_time"`
	Status        BookingStatus `json:"status" db:"status"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
}

// ServiceRequest is a workshop service booking.
type ServiceRequest struct {
	ID           string        `json:"id" db:"id"`
	CustomerName string        `json:"customerName" db:"customer_name"`
	Phone        string        `json:"phone" db:"phone"`
	CarModel     string        `json:"carModel" db:"car_model"`
	ServiceType  string        `json:"serviceType" db:"service_type"`
	Description  string        `json:"description,omitempty" db:"description"`
	Status       BookingStatus `json:"status" db:"status"`
	CreatedAt    time.Time     `json:"createdAt" db:"created_at"`
}
