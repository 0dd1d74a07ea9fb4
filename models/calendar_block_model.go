package models

import (
	"time"
)

// CalendarBlock sources. All four deny availability for their
// [StartDate, EndDate) range.
const (
	SourcePending     = "pending"
	SourceInternal    = "internal_booking"
	SourceExternalICS = "external_ics"
	SourceManualBlock = "manual_block"
)

// OccupyingSources lists the block sources that make dates unavailable.
var OccupyingSources = []string{SourcePending, SourceInternal, SourceExternalICS, SourceManualBlock}

// CalendarBlock is one occupancy record in the calendar ledger. EndDate is
// exclusive, matching iCalendar all-day event semantics.
type CalendarBlock struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID  uint      `gorm:"not null;index" json:"property_id"`
	BookingID   *uint     `gorm:"index" json:"booking_id,omitempty"`
	Source      string    `gorm:"size:20;not null;default:'pending';index" json:"source"`
	ExternalUID *string   `gorm:"size:255" json:"external_uid,omitempty"`
	Title       string    `gorm:"size:255" json:"title"`
	StartDate   time.Time `gorm:"type:date;not null;index" json:"start_date"`
	EndDate     time.Time `gorm:"type:date;not null" json:"end_date"`

	Booking *Booking `gorm:"foreignkey:BookingID" json:"booking,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
