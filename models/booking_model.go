package models

import (
	"time"
)

// Booking statuses. Terminal statuses are confirmed, cancelled and expired.
const (
	StatusAwaitingEmail     = "awaiting_email"
	StatusPendingPayment    = "pending_payment"
	StatusPaymentProcessing = "payment_processing"
	StatusConfirmed         = "confirmed"
	StatusCancelled         = "cancelled"
	StatusExpired           = "expired"
)

type Booking struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Reference       string     `gorm:"size:20;not null;unique" json:"reference"`
	Status          string     `gorm:"size:20;not null;default:'awaiting_email'" json:"status"`
	PropertyID      uint       `gorm:"not null;index" json:"property_id"`
	ArrivalDate     time.Time  `gorm:"type:date;not null" json:"arrival_date"`
	DepartureDate   time.Time  `gorm:"type:date;not null" json:"departure_date"`
	Nights          int        `gorm:"not null" json:"nights"`
	Adults          int        `gorm:"not null;default:1" json:"adults"`
	Children        int        `gorm:"not null;default:0" json:"children"`
	Infants         int        `gorm:"not null;default:0" json:"infants"`
	TotalAmount     float64    `gorm:"type:numeric(10,2);not null" json:"total_amount"`
	Currency        string     `gorm:"size:3;not null" json:"currency"`
	Email           string     `gorm:"size:255;not null" json:"email"`
	EmailToken      *string    `gorm:"size:64;unique" json:"-"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	StripeSessionID *string    `gorm:"size:255" json:"stripe_session_id,omitempty"`

	Property   Property           `gorm:"foreignkey:PropertyID" json:"property,omitempty"`
	Contact    *BookingContact    `gorm:"foreignkey:BookingID" json:"contact,omitempty"`
	Travellers []BookingTraveller `gorm:"foreignkey:BookingID" json:"travellers,omitempty"`
	Events     []BookingEvent     `gorm:"foreignkey:BookingID" json:"events,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal reports whether the booking can no longer change state.
func (b *Booking) IsTerminal() bool {
	return b.Status == StatusConfirmed || b.Status == StatusCancelled || b.Status == StatusExpired
}
