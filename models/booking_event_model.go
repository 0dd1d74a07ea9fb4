package models

import (
	"time"

	"gorm.io/datatypes"
)

// Actor types recorded on booking events.
const (
	ActorGuest   = "guest"
	ActorAdmin   = "admin"
	ActorSystem  = "system"
	ActorWebhook = "webhook"
)

// BookingEvent is the append-only audit trail. Rows are never updated or
// deleted. BookingID is nullable so that ledger-wide operations (feed syncs)
// can be recorded too.
type BookingEvent struct {
	ID              uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID       *uint          `gorm:"index" json:"booking_id,omitempty"`
	ActorType       string         `gorm:"size:20;not null" json:"actor_type"`
	ActorIdentifier *string        `gorm:"size:255" json:"actor_identifier,omitempty"`
	EventType       string         `gorm:"size:50;not null;index" json:"event_type"`
	Details         datatypes.JSON `gorm:"type:jsonb" json:"details,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
