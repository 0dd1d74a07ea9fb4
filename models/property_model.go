package models

import (
	"time"
)

type Property struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string  `gorm:"size:255;not null" json:"name"`
	Slug      string  `gorm:"size:255;not null;unique" json:"slug"`
	BaseRate  float64 `gorm:"type:numeric(10,2);not null;default:0" json:"base_rate"`
	Currency  string  `gorm:"size:3;not null;default:'EUR'" json:"currency"`
	MaxGuests int     `gorm:"not null;default:4" json:"max_guests"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
