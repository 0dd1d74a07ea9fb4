package models

import (
	"time"
)

// PropertyCalendar holds the ICS export token and the external feed URLs
// configured for a property.
type PropertyCalendar struct {
	ID             uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID     uint    `gorm:"not null;unique" json:"property_id"`
	ExportToken    string  `gorm:"size:64;not null;unique" json:"export_token"`
	AirbnbFeedURL  *string `gorm:"size:512" json:"airbnb_feed_url,omitempty"`
	BookingFeedURL *string `gorm:"size:512" json:"booking_feed_url,omitempty"`
	CustomFeedURL  *string `gorm:"size:512" json:"custom_feed_url,omitempty"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`

	Property Property `gorm:"foreignkey:PropertyID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
