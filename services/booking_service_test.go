package services

import (
	"sync"
	"testing"
	"time"

	"github.com/dubrovnikcoast/coastal_stays/models"
	"github.com/dubrovnikcoast/coastal_stays/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func validBookingInput(propertyID uint) CreateBookingInput {
	age := 7
	return CreateBookingInput{
		PropertyID:    propertyID,
		ArrivalDate:   date(2024, time.July, 10),
		DepartureDate: date(2024, time.July, 14),
		Adults:        2,
		Children:      1,
		Email:         "guest@example.com",
		FullName:      "Ana Horvat",
		AddressLine:   "Ulica 1",
		City:          "Zagreb",
		PostalCode:    "10000",
		Country:       "Croatia",
		Phone:         "+385911234567",
		Travellers: []TravellerInput{
			{Type: models.TravellerAdult},
			{Type: models.TravellerAdult},
			{Type: models.TravellerChild, Age: &age},
		},
	}
}

func stubStripeSession(t *testing.T, sessionID string) {
	t.Helper()
	original := stripeCreateSession
	stripeCreateSession = func(p payments.CheckoutSessionParams) (*payments.CheckoutSession, error) {
		return &payments.CheckoutSession{ID: sessionID, URL: "https://checkout.stripe.test/" + sessionID}, nil
	}
	t.Cleanup(func() { stripeCreateSession = original })
}

func TestCreateBooking_HappyPath(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 150)

	booking, err := CreateBooking(db, validBookingInput(property.ID))
	require.NoError(t, err)

	assert.Equal(t, models.StatusAwaitingEmail, booking.Status)
	assert.Equal(t, 4, booking.Nights)
	assert.Equal(t, 600.0, booking.TotalAmount)
	assert.Equal(t, "EUR", booking.Currency)
	assert.Len(t, booking.Reference, 10)
	assert.Equal(t, "DC", booking.Reference[:2])
	require.NotNil(t, booking.EmailToken)
	assert.Len(t, *booking.EmailToken, 64)

	var block models.CalendarBlock
	require.NoError(t, db.First(&block, "booking_id = ?", booking.ID).Error)
	assert.Equal(t, models.SourcePending, block.Source)
	assert.True(t, block.StartDate.Equal(booking.ArrivalDate))
	assert.True(t, block.EndDate.Equal(booking.DepartureDate))

	var travellerCount int64
	db.Model(&models.BookingTraveller{}).Where("booking_id = ?", booking.ID).Count(&travellerCount)
	assert.EqualValues(t, 3, travellerCount)

	var event models.BookingEvent
	require.NoError(t, db.First(&event, "booking_id = ? AND event_type = ?", booking.ID, "created").Error)
	assert.Equal(t, models.ActorGuest, event.ActorType)
}

func TestCreateBooking_RoundTripStatus(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 99.5)

	booking, err := CreateBooking(db, validBookingInput(property.ID))
	require.NoError(t, err)

	summary, err := BookingStatus(db, booking.Reference)
	require.NoError(t, err)
	assert.Equal(t, booking.Reference, summary.Reference)
	assert.True(t, summary.ArrivalDate.Equal(booking.ArrivalDate))
	assert.True(t, summary.DepartureDate.Equal(booking.DepartureDate))
	assert.Equal(t, booking.TotalAmount, summary.TotalAmount)
	assert.Equal(t, 398.0, summary.TotalAmount)
}

func TestCreateBooking_ZeroNights(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 100)

	input := validBookingInput(property.ID)
	input.ArrivalDate = date(2024, time.July, 10)
	input.DepartureDate = date(2024, time.July, 10)

	_, err := CreateBooking(db, input)
	assert.ErrorIs(t, err, ErrInvalidStayLength)

	var count int64
	db.Model(&models.Booking{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestCreateBooking_DatesUnavailable(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 100)

	require.NoError(t, db.Create(&models.CalendarBlock{
		PropertyID: property.ID,
		Source:     models.SourceInternal,
		StartDate:  date(2024, time.August, 1),
		EndDate:    date(2024, time.August, 5),
	}).Error)

	input := validBookingInput(property.ID)
	input.ArrivalDate = date(2024, time.August, 4)
	input.DepartureDate = date(2024, time.August, 6)
	_, err := CreateBooking(db, input)
	assert.ErrorIs(t, err, ErrDatesUnavailable)

	// Adjacent range succeeds: end dates are exclusive.
	input.ArrivalDate = date(2024, time.August, 5)
	input.DepartureDate = date(2024, time.August, 7)
	_, err = CreateBooking(db, input)
	assert.NoError(t, err)
}

func TestCreateBooking_ConcurrentSameRange(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 100)

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := CreateBooking(db, validBookingInput(property.ID))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, conflicted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			conflicted++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent booking may win")
	assert.Equal(t, attempts-1, conflicted)

	var blocks int64
	db.Model(&models.CalendarBlock{}).Where("property_id = ?", property.ID).Count(&blocks)
	assert.EqualValues(t, 1, blocks)
}

func TestVerifyEmail(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 100)

	booking, err := CreateBooking(db, validBookingInput(property.ID))
	require.NoError(t, err)
	token := *booking.EmailToken

	verified, err := VerifyEmail(db, token)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingPayment, verified.Status)
	assert.Nil(t, verified.EmailToken)
	assert.NotNil(t, verified.EmailVerifiedAt)

	// The token is single use.
	_, err = VerifyEmail(db, token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = VerifyEmail(db, "unknown-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyEmail_ConcurrentClicks(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 100)

	booking, err := CreateBooking(db, validBookingInput(property.ID))
	require.NoError(t, err)
	token := *booking.EmailToken

	const attempts = 6
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := VerifyEmail(db, token)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrTokenInvalid)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one click may consume the token")

	var events int64
	db.Model(&models.BookingEvent{}).
		Where("booking_id = ? AND event_type = ?", booking.ID, "email_verified").
		Count(&events)
	assert.EqualValues(t, 1, events)
}

func TestFullLifecycle_PromotionInPlace(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 120)

	booking, err := CreateBooking(db, validBookingInput(property.ID))
	require.NoError(t, err)

	var pendingBlock models.CalendarBlock
	require.NoError(t, db.First(&pendingBlock, "booking_id = ?", booking.ID).Error)

	_, err = VerifyEmail(db, *booking.EmailToken)
	require.NoError(t, err)

	stubStripeSession(t, "cs_test_123")
	session, err := OpenCheckout(db, booking.Reference, "https://example.com/success", "https://example.com/cancel")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_123", session.ID)

	var processing models.Booking
	require.NoError(t, db.First(&processing, "id = ?", booking.ID).Error)
	assert.Equal(t, models.StatusPaymentProcessing, processing.Status)

	event := &payments.WebhookEvent{Type: "checkout.session.completed"}
	event.Data.Object.ID = "cs_test_123"
	event.Data.Object.PaymentIntent = "pi_test_123"

	confirmedID, err := ApplyWebhookEvent(db, event, []byte(`{"type":"checkout.session.completed"}`))
	require.NoError(t, err)
	require.NotNil(t, confirmedID)
	assert.Equal(t, booking.ID, *confirmedID)

	var confirmed models.Booking
	require.NoError(t, db.First(&confirmed, "id = ?", booking.ID).Error)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)

	// Exactly one block, promoted in place: same row id as the pending one.
	var blocks []models.CalendarBlock
	require.NoError(t, db.Where("booking_id = ?", booking.ID).Find(&blocks).Error)
	require.Len(t, blocks, 1)
	assert.Equal(t, pendingBlock.ID, blocks[0].ID)
	assert.Equal(t, models.SourceInternal, blocks[0].Source)

	var payment models.StripePayment
	require.NoError(t, db.First(&payment, "session_id = ?", "cs_test_123").Error)
	assert.Equal(t, models.PaymentSucceeded, payment.Status)
	require.NotNil(t, payment.PaymentIntent)
	assert.Equal(t, "pi_test_123", *payment.PaymentIntent)
}

func TestCancelBooking_FreesDates(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 100)

	booking, err := CreateBooking(db, validBookingInput(property.ID))
	require.NoError(t, err)
	_, err = VerifyEmail(db, *booking.EmailToken)
	require.NoError(t, err)

	cancelled, err := CancelBooking(db, booking.ID, "guest request", "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	var blocks int64
	db.Model(&models.CalendarBlock{}).Where("booking_id = ?", booking.ID).Count(&blocks)
	assert.EqualValues(t, 0, blocks)

	// The identical range is immediately bookable again.
	_, err = CreateBooking(db, validBookingInput(property.ID))
	assert.NoError(t, err)

	// Cancelling twice fails.
	_, err = CancelBooking(db, booking.ID, "again", "admin@example.com")
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestCancelBooking_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := CancelBooking(db, 12345, "reason", "admin@example.com")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestNights(t *testing.T) {
	assert.Equal(t, 4, Nights(date(2024, time.July, 10), date(2024, time.July, 14)))
	assert.Equal(t, 0, Nights(date(2024, time.July, 10), date(2024, time.July, 10)))
	assert.Equal(t, -1, Nights(date(2024, time.July, 10), date(2024, time.July, 9)))
}

func TestUpdateBookingStatus_AppendsOneEvent(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 100)

	booking, err := CreateBooking(db, validBookingInput(property.ID))
	require.NoError(t, err)

	actor := "ops@example.com"
	err = db.Transaction(func(tx *gorm.DB) error {
		return UpdateBookingStatus(tx, booking.ID, models.StatusCancelled, models.ActorAdmin, &actor, map[string]interface{}{"reason": "test"})
	})
	require.NoError(t, err)

	var events []models.BookingEvent
	require.NoError(t, db.Where("booking_id = ? AND event_type = ?", booking.ID, "status_change").Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, models.ActorAdmin, events[0].ActorType)
	require.NotNil(t, events[0].ActorIdentifier)
	assert.Equal(t, actor, *events[0].ActorIdentifier)
	assert.Contains(t, string(events[0].Details), `"reason":"test"`)
	assert.Contains(t, string(events[0].Details), `"status":"cancelled"`)
}
