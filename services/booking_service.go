package services

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dubrovnikcoast/coastal_stays/models"
	"github.com/dubrovnikcoast/coastal_stays/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TravellerInput struct {
	Type string
	Age  *int
}

type CreateBookingInput struct {
	PropertyID    uint
	ArrivalDate   time.Time
	DepartureDate time.Time
	Adults        int
	Children      int
	Infants       int
	Email         string
	FullName      string
	AddressLine   string
	City          string
	Region        string
	PostalCode    string
	Country       string
	Phone         string
	Travellers    []TravellerInput
}

// Nights returns the stay length in whole days for a half-open date range.
func Nights(arrival, departure time.Time) int {
	return int(departure.Sub(arrival) / (24 * time.Hour))
}

// CreateBooking creates an awaiting_email booking together with its contact,
// travellers and a pending calendar block, all in one transaction. The
// availability check and the block insert run under the per-property lock so
// two concurrent requests for overlapping dates cannot both pass.
//
// The verification email is NOT sent here. The caller sends it after the
// transaction commits; a failed send is a warning, never a rollback.
func CreateBooking(db *gorm.DB, in CreateBookingInput) (*models.Booking, error) {
	nights := Nights(in.ArrivalDate, in.DepartureDate)
	if nights <= 0 {
		return nil, ErrInvalidStayLength
	}
	if in.Adults < 1 {
		in.Adults = 1
	}

	token, err := utils.GenerateToken(32)
	if err != nil {
		return nil, err
	}

	var booking models.Booking
	err = db.Transaction(func(tx *gorm.DB) error {
		property, err := LockProperty(tx, in.PropertyID)
		if err != nil {
			return err
		}

		free, err := IsRangeFree(tx, in.PropertyID, in.ArrivalDate, in.DepartureDate, nil)
		if err != nil {
			return err
		}
		if !free {
			return ErrDatesUnavailable
		}

		reference, err := utils.GenerateUniqueBookingReference(tx)
		if err != nil {
			return err
		}

		// Total is fixed at creation time and never recomputed, even if
		// the property rate changes later.
		total := math.Round(property.BaseRate*float64(nights)*100) / 100

		booking = models.Booking{
			Reference:     reference,
			Status:        models.StatusAwaitingEmail,
			PropertyID:    in.PropertyID,
			ArrivalDate:   in.ArrivalDate,
			DepartureDate: in.DepartureDate,
			Nights:        nights,
			Adults:        in.Adults,
			Children:      in.Children,
			Infants:       in.Infants,
			TotalAmount:   total,
			Currency:      property.Currency,
			Email:         in.Email,
			EmailToken:    &token,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}

		contact := models.BookingContact{
			BookingID:   booking.ID,
			FullName:    in.FullName,
			AddressLine: in.AddressLine,
			City:        in.City,
			Region:      in.Region,
			PostalCode:  in.PostalCode,
			Country:     in.Country,
			Phone:       in.Phone,
		}
		if err := tx.Create(&contact).Error; err != nil {
			return err
		}

		for _, traveller := range in.Travellers {
			travellerType := traveller.Type
			switch travellerType {
			case models.TravellerAdult, models.TravellerChild, models.TravellerInfant:
			default:
				travellerType = models.TravellerAdult
			}
			row := models.BookingTraveller{
				BookingID:     booking.ID,
				TravellerType: travellerType,
				Age:           traveller.Age,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		block := models.CalendarBlock{
			PropertyID: in.PropertyID,
			BookingID:  &booking.ID,
			Source:     models.SourcePending,
			Title:      "Pending booking " + reference,
			StartDate:  in.ArrivalDate,
			EndDate:    in.DepartureDate,
		}
		if err := UpsertBlock(tx, &block); err != nil {
			return err
		}

		return RecordBookingEvent(tx, &booking.ID, models.ActorGuest, nil, "created", map[string]interface{}{
			"reference": reference,
			"email":     in.Email,
		})
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// VerifyEmail consumes a single-use verification token and moves the booking
// from awaiting_email to pending_payment. A token that is unknown, already
// consumed, or attached to a booking past awaiting_email fails.
func VerifyEmail(db *gorm.DB, token string) (*models.Booking, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}

	var booking models.Booking
	err := db.Transaction(func(tx *gorm.DB) error {
		// Locked so two concurrent clicks on the same link serialize; the
		// second finds the token consumed instead of double-verifying.
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&booking, "email_token = ?", token).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenInvalid
			}
			return err
		}
		if booking.Status != models.StatusAwaitingEmail {
			return ErrTokenInvalid
		}

		now := time.Now().UTC()
		err = tx.Model(&booking).Updates(map[string]interface{}{
			"status":            models.StatusPendingPayment,
			"email_token":       nil,
			"email_verified_at": now,
		}).Error
		if err != nil {
			return err
		}
		booking.Status = models.StatusPendingPayment
		booking.EmailToken = nil
		booking.EmailVerifiedAt = &now

		return RecordBookingEvent(tx, &booking.ID, models.ActorGuest, nil, "email_verified", nil)
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdateBookingStatus performs one state-machine transition inside the
// caller's transaction, keeping the booking's calendar block in step:
//
//   - confirmed: the pending block is promoted in place to internal_booking.
//     Same row, same id; only source and title change.
//   - cancelled / expired: the block is deleted, freeing the dates in the
//     same transaction as the status change.
//
// Every call appends exactly one status_change event.
func UpdateBookingStatus(tx *gorm.DB, bookingID uint, status, actorType string, actor *string, details map[string]interface{}) error {
	err := tx.Model(&models.Booking{}).Where("id = ?", bookingID).Update("status", status).Error
	if err != nil {
		return err
	}

	switch status {
	case models.StatusCancelled, models.StatusExpired:
		if err := DeleteBookingBlocks(tx, bookingID); err != nil {
			return err
		}
	case models.StatusConfirmed:
		err := tx.Model(&models.CalendarBlock{}).
			Where("booking_id = ?", bookingID).
			Updates(map[string]interface{}{
				"source": models.SourceInternal,
				"title":  fmt.Sprintf("Confirmed booking #%d", bookingID),
			}).Error
		if err != nil {
			return err
		}
	}

	payload := map[string]interface{}{"status": status}
	for key, value := range details {
		payload[key] = value
	}
	return RecordBookingEvent(tx, &bookingID, actorType, actor, "status_change", payload)
}

// CancelBooking is the admin-triggered cancellation. It is synchronous: the
// calendar block is gone by the time the call returns.
func CancelBooking(db *gorm.DB, bookingID uint, reason string, actor string) (*models.Booking, error) {
	var booking models.Booking
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&booking, "id = ?", bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		if booking.IsTerminal() {
			return fmt.Errorf("%w: booking %s is %s", ErrNotCancellable, booking.Reference, booking.Status)
		}

		if err := UpdateBookingStatus(tx, booking.ID, models.StatusCancelled, models.ActorAdmin, &actor, map[string]interface{}{
			"reason": reason,
		}); err != nil {
			return err
		}
		booking.Status = models.StatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// ExpireBooking reacts to an external expiry signal (payment session timeout
// or operator action). Only bookings still waiting on payment can expire.
func ExpireBooking(tx *gorm.DB, bookingID uint, actorType string, actor *string, details map[string]interface{}) error {
	var booking models.Booking
	if err := tx.First(&booking, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookingNotFound
		}
		return err
	}
	if booking.Status != models.StatusPendingPayment && booking.Status != models.StatusPaymentProcessing {
		return fmt.Errorf("%w: booking %s cannot expire from %s", ErrNotCancellable, booking.Reference, booking.Status)
	}
	return UpdateBookingStatus(tx, booking.ID, models.StatusExpired, actorType, actor, details)
}

// FetchBooking loads a booking with its contact, travellers and event
// history.
func FetchBooking(db *gorm.DB, bookingID uint) (*models.Booking, error) {
	var booking models.Booking
	err := db.Preload("Property").
		Preload("Contact").
		Preload("Travellers").
		Preload("Events", func(db *gorm.DB) *gorm.DB {
			return db.Order("booking_events.created_at DESC")
		}).
		First(&booking, "id = ?", bookingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// FetchBookingByReference resolves the guest-facing reference.
func FetchBookingByReference(db *gorm.DB, reference string) (*models.Booking, error) {
	var booking models.Booking
	err := db.Preload("Property").First(&booking, "reference = ?", reference).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// BookingStatusSummary is the polling payload for the guest status page.
type BookingStatusSummary struct {
	Reference     string    `json:"reference"`
	Status        string    `json:"status"`
	ArrivalDate   time.Time `json:"arrival_date"`
	DepartureDate time.Time `json:"departure_date"`
	Nights        int       `json:"nights"`
	TotalAmount   float64   `json:"total_amount"`
	Currency      string    `json:"currency"`
}

func BookingStatus(db *gorm.DB, reference string) (*BookingStatusSummary, error) {
	booking, err := FetchBookingByReference(db, reference)
	if err != nil {
		return nil, err
	}
	return &BookingStatusSummary{
		Reference:     booking.Reference,
		Status:        booking.Status,
		ArrivalDate:   booking.ArrivalDate,
		DepartureDate: booking.DepartureDate,
		Nights:        booking.Nights,
		TotalAmount:   booking.TotalAmount,
		Currency:      booking.Currency,
	}, nil
}

// FetchBookings lists bookings for the admin overview, newest stays first.
func FetchBookings(db *gorm.DB, propertyID *uint, query string) ([]models.Booking, error) {
	q := db.Preload("Property").Order("arrival_date DESC, id DESC").Limit(200)
	if propertyID != nil {
		q = q.Where("property_id = ?", *propertyID)
	}
	if query != "" {
		q = q.Where("reference LIKE ?", "%"+query+"%")
	}

	var bookings []models.Booking
	err := q.Find(&bookings).Error
	return bookings, err
}
