package services

import (
	"fmt"
	"testing"

	"github.com/dubrovnikcoast/coastal_stays/models"
	"github.com/dubrovnikcoast/coastal_stays/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCheckout_NotPayable(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 100)

	booking, err := CreateBooking(db, validBookingInput(property.ID))
	require.NoError(t, err)

	// Still awaiting email verification.
	stubStripeSession(t, "cs_should_not_exist")
	_, err = OpenCheckout(db, booking.Reference, "https://example.com/s", "https://example.com/c")
	assert.ErrorIs(t, err, ErrBookingNotPayable)

	_, err = OpenCheckout(db, "DCDOESNOTEX", "https://example.com/s", "https://example.com/c")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestOpenCheckout_StripeFailureIsFailClosed(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 100)

	booking, err := CreateBooking(db, validBookingInput(property.ID))
	require.NoError(t, err)
	_, err = VerifyEmail(db, *booking.EmailToken)
	require.NoError(t, err)

	original := stripeCreateSession
	stripeCreateSession = func(p payments.CheckoutSessionParams) (*payments.CheckoutSession, error) {
		return nil, fmt.Errorf("stripe is down")
	}
	t.Cleanup(func() { stripeCreateSession = original })

	_, err = OpenCheckout(db, booking.Reference, "https://example.com/s", "https://example.com/c")
	require.Error(t, err)

	var reloaded models.Booking
	require.NoError(t, db.First(&reloaded, "id = ?", booking.ID).Error)
	assert.Equal(t, models.StatusPendingPayment, reloaded.Status)
	assert.Nil(t, reloaded.StripeSessionID)

	var sessions int64
	db.Model(&models.StripePayment{}).Count(&sessions)
	assert.EqualValues(t, 0, sessions)
}

func TestOpenCheckout_AmountInMinorUnits(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 99.99)

	booking, err := CreateBooking(db, validBookingInput(property.ID))
	require.NoError(t, err)
	_, err = VerifyEmail(db, *booking.EmailToken)
	require.NoError(t, err)

	var captured payments.CheckoutSessionParams
	original := stripeCreateSession
	stripeCreateSession = func(p payments.CheckoutSessionParams) (*payments.CheckoutSession, error) {
		captured = p
		return &payments.CheckoutSession{ID: "cs_amount"}, nil
	}
	t.Cleanup(func() { stripeCreateSession = original })

	_, err = OpenCheckout(db, booking.Reference, "https://example.com/s", "https://example.com/c")
	require.NoError(t, err)

	// 4 nights at 99.99 = 399.96, rounded to integer cents.
	assert.EqualValues(t, 39996, captured.AmountCents)
	assert.Equal(t, booking.Reference, captured.Reference)
	assert.Equal(t, booking.Email, captured.CustomerEmail)
}

func TestWebhook_Idempotent(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 100)

	booking, err := CreateBooking(db, validBookingInput(property.ID))
	require.NoError(t, err)
	_, err = VerifyEmail(db, *booking.EmailToken)
	require.NoError(t, err)
	stubStripeSession(t, "cs_idem")
	_, err = OpenCheckout(db, booking.Reference, "https://example.com/s", "https://example.com/c")
	require.NoError(t, err)

	event := &payments.WebhookEvent{Type: "checkout.session.completed"}
	event.Data.Object.ID = "cs_idem"

	confirmedID, err := ApplyWebhookEvent(db, event, []byte(`{}`))
	require.NoError(t, err)
	require.NotNil(t, confirmedID)

	// Duplicate delivery: no second transition, no second event row.
	confirmedID, err = ApplyWebhookEvent(db, event, []byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, confirmedID)

	var statusEvents int64
	db.Model(&models.BookingEvent{}).
		Where("booking_id = ? AND event_type = ?", booking.ID, "status_change").
		Count(&statusEvents)
	assert.EqualValues(t, 1, statusEvents)
}

func TestWebhook_UnknownSessionIgnored(t *testing.T) {
	db := newTestDB(t)

	event := &payments.WebhookEvent{Type: "checkout.session.completed"}
	event.Data.Object.ID = "cs_unknown"

	confirmedID, err := ApplyWebhookEvent(db, event, []byte(`{}`))
	assert.NoError(t, err)
	assert.Nil(t, confirmedID)
}

func TestWebhook_SessionExpired(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 100)

	booking, err := CreateBooking(db, validBookingInput(property.ID))
	require.NoError(t, err)
	_, err = VerifyEmail(db, *booking.EmailToken)
	require.NoError(t, err)
	stubStripeSession(t, "cs_expire")
	_, err = OpenCheckout(db, booking.Reference, "https://example.com/s", "https://example.com/c")
	require.NoError(t, err)

	event := &payments.WebhookEvent{Type: "checkout.session.expired"}
	event.Data.Object.ID = "cs_expire"

	_, err = ApplyWebhookEvent(db, event, []byte(`{}`))
	require.NoError(t, err)

	var reloaded models.Booking
	require.NoError(t, db.First(&reloaded, "id = ?", booking.ID).Error)
	assert.Equal(t, models.StatusExpired, reloaded.Status)

	// Expiry releases the held dates.
	var blocks int64
	db.Model(&models.CalendarBlock{}).Where("booking_id = ?", booking.ID).Count(&blocks)
	assert.EqualValues(t, 0, blocks)

	var payment models.StripePayment
	require.NoError(t, db.First(&payment, "session_id = ?", "cs_expire").Error)
	assert.Equal(t, models.PaymentCancelled, payment.Status)
}

func TestWebhook_CompletedAfterCancelStaysCancelled(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 100)

	booking, err := CreateBooking(db, validBookingInput(property.ID))
	require.NoError(t, err)
	_, err = VerifyEmail(db, *booking.EmailToken)
	require.NoError(t, err)
	stubStripeSession(t, "cs_late")
	_, err = OpenCheckout(db, booking.Reference, "https://example.com/s", "https://example.com/c")
	require.NoError(t, err)

	// Admin cancels while the checkout session is still open.
	_, err = CancelBooking(db, booking.ID, "double booked elsewhere", "admin@example.com")
	require.NoError(t, err)

	event := &payments.WebhookEvent{Type: "checkout.session.completed"}
	event.Data.Object.ID = "cs_late"
	event.Data.Object.PaymentIntent = "pi_late"

	confirmedID, err := ApplyWebhookEvent(db, event, []byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, confirmedID)

	// Cancelled is terminal: the late success must not resurrect the booking
	// or its freed dates.
	var reloaded models.Booking
	require.NoError(t, db.First(&reloaded, "id = ?", booking.ID).Error)
	assert.Equal(t, models.StatusCancelled, reloaded.Status)

	var blocks int64
	db.Model(&models.CalendarBlock{}).Where("booking_id = ?", booking.ID).Count(&blocks)
	assert.EqualValues(t, 0, blocks)

	// The charge itself is still recorded for the refund follow-up.
	var payment models.StripePayment
	require.NoError(t, db.First(&payment, "session_id = ?", "cs_late").Error)
	assert.Equal(t, models.PaymentSucceeded, payment.Status)
}

func TestWebhook_PaymentFailedAllowsRetry(t *testing.T) {
	db := newTestDB(t)
	property := newTestProperty(t, db, 100)

	booking, err := CreateBooking(db, validBookingInput(property.ID))
	require.NoError(t, err)
	_, err = VerifyEmail(db, *booking.EmailToken)
	require.NoError(t, err)
	stubStripeSession(t, "cs_fail")
	_, err = OpenCheckout(db, booking.Reference, "https://example.com/s", "https://example.com/c")
	require.NoError(t, err)

	// Tie the intent to the session the way a real completed attempt would.
	require.NoError(t, db.Model(&models.StripePayment{}).
		Where("session_id = ?", "cs_fail").
		Update("payment_intent", "pi_fail").Error)

	event := &payments.WebhookEvent{Type: "payment_intent.payment_failed"}
	event.Data.Object.ID = "pi_fail"
	event.Data.Object.LastPaymentError.Message = "card declined"

	_, err = ApplyWebhookEvent(db, event, []byte(`{}`))
	require.NoError(t, err)

	var reloaded models.Booking
	require.NoError(t, db.First(&reloaded, "id = ?", booking.ID).Error)
	assert.Equal(t, models.StatusPendingPayment, reloaded.Status)

	// The dates stay held for the retry.
	var blocks int64
	db.Model(&models.CalendarBlock{}).Where("booking_id = ?", booking.ID).Count(&blocks)
	assert.EqualValues(t, 1, blocks)

	var event2 models.BookingEvent
	require.NoError(t, db.Where("booking_id = ? AND event_type = ?", booking.ID, "status_change").
		Order("id DESC").First(&event2).Error)
	assert.Contains(t, string(event2.Details), "card declined")
}
