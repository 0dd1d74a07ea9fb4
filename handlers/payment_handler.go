package handlers

import (
	"fmt"
	"log"
	"net/url"

	config "github.com/dubrovnikcoast/coastal_stays/configs"
	"github.com/dubrovnikcoast/coastal_stays/database"
	"github.com/dubrovnikcoast/coastal_stays/notifications"
	"github.com/dubrovnikcoast/coastal_stays/payments"
	"github.com/dubrovnikcoast/coastal_stays/services"
	"github.com/gofiber/fiber/v2"
)

type CheckoutRequest struct {
	Reference string `json:"reference" validate:"required"`
}

// OpenCheckout creates a Stripe Checkout session for a verified booking. A
// Stripe failure here keeps the booking in pending_payment: no session, no
// transition.
func OpenCheckout(c *fiber.Ctx) error {
	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	baseURL := config.Config("SITE_BASE_URL")
	successURL := baseURL + "/booking/success?session_id={CHECKOUT_SESSION_ID}"
	cancelURL := fmt.Sprintf("%s/booking/checkout?reference=%s&cancelled=1", baseURL, url.QueryEscape(req.Reference))

	session, err := services.OpenCheckout(database.DB, req.Reference, successURL, cancelURL)
	if err != nil {
		status := statusForBookingError(err)
		if status == fiber.StatusInternalServerError {
			log.Printf("🔥 Failed to open checkout for %s: %v", req.Reference, err)
			return c.Status(status).JSON(fiber.Map{"error": "Payment could not be initiated, please try again."})
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"session": fiber.Map{
			"session_id": session.ID,
			"url":        session.URL,
			"public_key": config.Config("STRIPE_PUBLISHABLE_KEY"),
		},
	})
}

// HandleStripeWebhook is the provider callback ingress. Events referencing
// unknown sessions are acknowledged and ignored; only signature failures and
// storage errors produce a non-2xx so Stripe retries.
func HandleStripeWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	event, err := payments.ParseWebhookEvent(payload, c.Get("Stripe-Signature"))
	if err != nil {
		log.Printf("⚠️ Rejected Stripe webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).SendString("Invalid payload")
	}

	confirmedBookingID, err := services.ApplyWebhookEvent(database.DB, event, payload)
	if err != nil {
		log.Printf("🔥 CRITICAL: Error processing Stripe webhook %s: %v", event.Type, err)
		return c.Status(fiber.StatusInternalServerError).SendString("Webhook error")
	}

	if confirmedBookingID != nil {
		go func(bookingID uint) {
			booking, err := services.FetchBooking(database.DB, bookingID)
			if err != nil {
				log.Printf("🔥 Failed to load booking %d for confirmation email: %v", bookingID, err)
				return
			}
			notifications.SendBookingEmail(booking, notifications.EmailConfirmed)
		}(*confirmedBookingID)
	}

	return c.SendString("OK")
}
