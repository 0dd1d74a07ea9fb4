package models

import (
	"time"
)

const (
	TravellerAdult  = "adult"
	TravellerChild  = "child"
	TravellerInfant = "infant"
)

type BookingTraveller struct {
	ID            uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID     uint   `gorm:"not null;index" json:"booking_id"`
	TravellerType string `gorm:"size:10;not null;default:'adult'" json:"traveller_type"`
	Age           *int   `json:"age,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
