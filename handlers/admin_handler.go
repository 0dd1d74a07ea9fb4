package handlers

import (
	"strconv"
	"strings"

	"github.com/dubrovnikcoast/coastal_stays/database"
	"github.com/dubrovnikcoast/coastal_stays/notifications"
	"github.com/dubrovnikcoast/coastal_stays/services"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

// adminIdentifier extracts the acting admin's email from the JWT, so every
// admin mutation is attributed to a concrete operator in the audit trail.
func adminIdentifier(c *fiber.Ctx) string {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return "unknown"
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "unknown"
	}
	if email, ok := claims["email"].(string); ok && email != "" {
		return email
	}
	return "unknown"
}

// ListBookings is the admin overview with optional property filter and
// reference search.
func ListBookings(c *fiber.Ctx) error {
	var propertyID *uint
	if raw := c.Query("property"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid property id"})
		}
		value := uint(parsed)
		propertyID = &value
	}

	bookings, err := services.FetchBookings(database.DB, propertyID, strings.TrimSpace(c.Query("q")))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	return c.JSON(fiber.Map{"success": true, "bookings": bookings})
}

// GetBooking returns the full booking detail: contact, travellers, events.
func GetBooking(c *fiber.Ctx) error {
	bookingID, err := strconv.ParseUint(c.Params("bookingId"), 10, 32)
	if err != nil || bookingID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	booking, err := services.FetchBooking(database.DB, uint(bookingID))
	if err != nil {
		return c.Status(statusForBookingError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true, "booking": booking})
}

type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// CancelBooking cancels any non-terminal booking and frees its dates before
// the response is returned. The cancellation email is sent after commit.
func CancelBooking(c *fiber.Ctx) error {
	bookingID, err := strconv.ParseUint(c.Params("bookingId"), 10, 32)
	if err != nil || bookingID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	var req CancelBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	booking, err := services.CancelBooking(database.DB, uint(bookingID), strings.TrimSpace(req.Reason), adminIdentifier(c))
	if err != nil {
		return c.Status(statusForBookingError(err)).JSON(fiber.Map{"error": err.Error()})
	}

	go func(bookingID uint) {
		if full, err := services.FetchBooking(database.DB, bookingID); err == nil {
			notifications.SendBookingEmail(full, notifications.EmailCancelled)
		}
	}(booking.ID)

	return c.JSON(fiber.Map{
		"success": true,
		"booking": fiber.Map{
			"id":        booking.ID,
			"reference": booking.Reference,
			"status":    booking.Status,
		},
	})
}
