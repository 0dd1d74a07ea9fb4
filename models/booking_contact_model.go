package models

import (
	"time"
)

// BookingContact is the guest identity for a booking, written once at
// creation and never updated afterwards.
type BookingContact struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID   uint   `gorm:"not null;unique" json:"booking_id"`
	FullName    string `gorm:"size:255;not null" json:"full_name"`
	AddressLine string `gorm:"size:255;not null" json:"address_line"`
	City        string `gorm:"size:120;not null" json:"city"`
	Region      string `gorm:"size:120" json:"region"`
	PostalCode  string `gorm:"size:20;not null" json:"postal_code"`
	Country     string `gorm:"size:120;not null" json:"country"`
	Phone       string `gorm:"size:40;not null" json:"phone"`

	CreatedAt time.Time `json:"created_at"`
}
