package models

import (
	"time"

	"gorm.io/datatypes"
)

// Stripe payment record statuses. succeeded and cancelled are terminal:
// webhooks for a session already in one of them are ignored.
const (
	PaymentCreated   = "created"
	PaymentSucceeded = "succeeded"
	PaymentCancelled = "cancelled"
)

// StripePayment tracks one checkout session per attempt. Webhooks arrive
// keyed by session or payment-intent id, never by booking id, so both carry
// unique indexes.
type StripePayment struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID     uint           `gorm:"not null;index" json:"booking_id"`
	SessionID     string         `gorm:"size:255;not null;unique" json:"session_id"`
	PaymentIntent *string        `gorm:"size:255;unique" json:"payment_intent,omitempty"`
	Amount        float64        `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency      string         `gorm:"size:3;not null" json:"currency"`
	Status        string         `gorm:"size:20;not null;default:'created'" json:"status"`
	Payload       datatypes.JSON `gorm:"type:jsonb" json:"-"`

	Booking Booking `gorm:"foreignkey:BookingID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
