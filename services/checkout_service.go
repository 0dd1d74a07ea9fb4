package services

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/dubrovnikcoast/coastal_stays/models"
	"github.com/dubrovnikcoast/coastal_stays/payments"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Swapped out in tests so checkout flows run without the Stripe API.
var stripeCreateSession = payments.CreateCheckoutSession

// OpenCheckout opens a Stripe Checkout session for a booking and moves it to
// payment_processing. The Stripe call happens before the transaction so no
// row locks are held across the network round-trip; if Stripe fails the
// booking stays in pending_payment (fail closed, no transition).
func OpenCheckout(db *gorm.DB, reference, successURL, cancelURL string) (*payments.CheckoutSession, error) {
	booking, err := FetchBookingByReference(db, reference)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.StatusPendingPayment && booking.Status != models.StatusPaymentProcessing {
		return nil, ErrBookingNotPayable
	}

	session, err := stripeCreateSession(payments.CheckoutSessionParams{
		AmountCents:   int64(math.Round(booking.TotalAmount * 100)),
		Currency:      booking.Currency,
		ProductName:   fmt.Sprintf("%s stay %s - %s", booking.Property.Name, booking.ArrivalDate.Format("2006-01-02"), booking.DepartureDate.Format("2006-01-02")),
		CustomerEmail: booking.Email,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		BookingID:     booking.ID,
		Reference:     booking.Reference,
		PropertyID:    booking.PropertyID,
	})
	if err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Booking{}).Where("id = ?", booking.ID).Updates(map[string]interface{}{
			"status":            models.StatusPaymentProcessing,
			"stripe_session_id": session.ID,
		}).Error
		if err != nil {
			return err
		}

		payment := models.StripePayment{
			BookingID: booking.ID,
			SessionID: session.ID,
			Amount:    booking.TotalAmount,
			Currency:  booking.Currency,
			Status:    models.PaymentCreated,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		return RecordBookingEvent(tx, &booking.ID, models.ActorGuest, nil, "stripe_session_created", map[string]interface{}{
			"session_id": session.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ApplyWebhookEvent drives the state machine from a payment-provider event.
// Unknown sessions and repeated deliveries are logged and swallowed: a
// webhook cannot be meaningfully rejected, so the endpoint always acks.
// Returns the affected booking id when a confirmed transition happened, so
// the handler can send the confirmation email after commit.
func ApplyWebhookEvent(db *gorm.DB, event *payments.WebhookEvent, rawPayload []byte) (*uint, error) {
	actor := "stripe"

	switch event.Type {
	case "checkout.session.completed":
		sessionID := event.Data.Object.ID
		if sessionID == "" {
			return nil, fmt.Errorf("checkout.session.completed without session id")
		}

		var confirmedID *uint
		err := db.Transaction(func(tx *gorm.DB) error {
			payment, done, err := lockPaymentBySession(tx, sessionID)
			if err != nil || done {
				return err
			}

			updates := map[string]interface{}{
				"status":  models.PaymentSucceeded,
				"payload": datatypes.JSON(rawPayload),
			}
			if event.Data.Object.PaymentIntent != "" {
				updates["payment_intent"] = event.Data.Object.PaymentIntent
			}
			if err := tx.Model(payment).Updates(updates).Error; err != nil {
				return err
			}

			// A terminal booking stays terminal. An admin can cancel while
			// the session is open; the completed webhook must not undo that,
			// so the payment is recorded but no transition is applied.
			var booking models.Booking
			if err := tx.First(&booking, "id = ?", payment.BookingID).Error; err != nil {
				return err
			}
			if booking.IsTerminal() {
				log.Printf("Session %s completed but booking %d already %s, skipping transition", sessionID, booking.ID, booking.Status)
				return nil
			}

			if err := UpdateBookingStatus(tx, payment.BookingID, models.StatusConfirmed, models.ActorWebhook, &actor, map[string]interface{}{
				"session_id": sessionID,
			}); err != nil {
				return err
			}
			confirmedID = &payment.BookingID
			return nil
		})
		return confirmedID, err

	case "checkout.session.expired":
		sessionID := event.Data.Object.ID
		if sessionID == "" {
			return nil, nil
		}
		return nil, db.Transaction(func(tx *gorm.DB) error {
			payment, done, err := lockPaymentBySession(tx, sessionID)
			if err != nil || done {
				return err
			}

			err = tx.Model(payment).Updates(map[string]interface{}{
				"status":  models.PaymentCancelled,
				"payload": datatypes.JSON(rawPayload),
			}).Error
			if err != nil {
				return err
			}

			err = ExpireBooking(tx, payment.BookingID, models.ActorWebhook, &actor, map[string]interface{}{
				"session_id": sessionID,
			})
			if errors.Is(err, ErrNotCancellable) {
				log.Printf("Session %s expired but booking %d already settled, skipping", sessionID, payment.BookingID)
				return nil
			}
			return err
		})

	case "payment_intent.payment_failed":
		intentID := event.Data.Object.ID
		if intentID == "" {
			return nil, nil
		}
		return nil, db.Transaction(func(tx *gorm.DB) error {
			var payment models.StripePayment
			err := tx.First(&payment, "payment_intent = ?", intentID).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					log.Printf("⚠️ Webhook for unknown payment intent %s, ignoring", intentID)
					return nil
				}
				return err
			}
			if payment.Status != models.PaymentCreated {
				log.Printf("Webhook for payment %s already in terminal status %s, skipping", payment.SessionID, payment.Status)
				return nil
			}

			// The dates stay held: the guest can retry checkout.
			return UpdateBookingStatus(tx, payment.BookingID, models.StatusPendingPayment, models.ActorWebhook, &actor, map[string]interface{}{
				"reason": event.Data.Object.LastPaymentError.Message,
			})
		})

	default:
		log.Printf("Ignoring unhandled Stripe event type %s", event.Type)
		return nil, nil
	}
}

// lockPaymentBySession loads the payment row for a session id. done is true
// when the webhook should be treated as a no-op: unknown session, or a
// payment already in a terminal status (duplicate delivery).
func lockPaymentBySession(tx *gorm.DB, sessionID string) (*models.StripePayment, bool, error) {
	var payment models.StripePayment
	err := tx.First(&payment, "session_id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("⚠️ Webhook for unknown session %s, ignoring", sessionID)
			return nil, true, nil
		}
		return nil, false, err
	}
	if payment.Status != models.PaymentCreated {
		log.Printf("Webhook for session %s already in terminal status %s, skipping", sessionID, payment.Status)
		return nil, true, nil
	}
	return &payment, false, nil
}
