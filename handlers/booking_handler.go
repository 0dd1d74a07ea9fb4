package handlers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/dubrovnikcoast/coastal_stays/database"
	"github.com/dubrovnikcoast/coastal_stays/notifications"
	"github.com/dubrovnikcoast/coastal_stays/services"
	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, value, time.UTC)
}

// statusForBookingError maps service sentinels to HTTP codes.
func statusForBookingError(err error) int {
	switch {
	case errors.Is(err, services.ErrBookingNotFound),
		errors.Is(err, services.ErrPropertyNotFound),
		errors.Is(err, services.ErrBlockNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrDatesUnavailable):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrInvalidStayLength),
		errors.Is(err, services.ErrTokenInvalid),
		errors.Is(err, services.ErrBookingNotPayable),
		errors.Is(err, services.ErrNotCancellable):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

type TravellerRequest struct {
	Type string `json:"type"`
	Age  *int   `json:"age,omitempty"`
}

type StartBookingRequest struct {
	PropertyID    uint               `json:"property_id" validate:"required"`
	ArrivalDate   string             `json:"arrival_date" validate:"required,datetime=2006-01-02"`
	DepartureDate string             `json:"departure_date" validate:"required,datetime=2006-01-02"`
	Adults        int                `json:"adults"`
	Children      int                `json:"children"`
	Infants       int                `json:"infants"`
	Email         string             `json:"email" validate:"required,email"`
	FullName      string             `json:"full_name" validate:"required"`
	Address       string             `json:"address" validate:"required"`
	City          string             `json:"city" validate:"required"`
	Region        string             `json:"region"`
	PostalCode    string             `json:"postal_code" validate:"required"`
	Country       string             `json:"country" validate:"required"`
	Phone         string             `json:"phone" validate:"required"`
	Travellers    []TravellerRequest `json:"travellers"`
}

// StartBooking is the guest-facing intake: it creates an awaiting_email
// booking holding the dates, then sends the verification email. The email is
// best effort; a failed send surfaces as a warning on an otherwise created
// booking.
func StartBooking(c *fiber.Ctx) error {
	var req StartBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	arrival, err := parseDate(req.ArrivalDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid arrival date"})
	}
	departure, err := parseDate(req.DepartureDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid departure date"})
	}

	input := services.CreateBookingInput{
		PropertyID:    req.PropertyID,
		ArrivalDate:   arrival,
		DepartureDate: departure,
		Adults:        req.Adults,
		Children:      req.Children,
		Infants:       req.Infants,
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:      strings.TrimSpace(req.FullName),
		AddressLine:   strings.TrimSpace(req.Address),
		City:          strings.TrimSpace(req.City),
		Region:        strings.TrimSpace(req.Region),
		PostalCode:    strings.TrimSpace(req.PostalCode),
		Country:       strings.TrimSpace(req.Country),
		Phone:         strings.TrimSpace(req.Phone),
	}
	for _, traveller := range req.Travellers {
		input.Travellers = append(input.Travellers, services.TravellerInput{
			Type: traveller.Type,
			Age:  traveller.Age,
		})
	}

	booking, err := services.CreateBooking(database.DB, input)
	if err != nil {
		return c.Status(statusForBookingError(err)).JSON(fiber.Map{"error": err.Error()})
	}

	warning := ""
	if full, err := services.FetchBooking(database.DB, booking.ID); err == nil {
		if err := notifications.SendBookingEmail(full, notifications.EmailVerify); err != nil {
			warning = "Booking created but the verification email could not be sent."
		}
	} else {
		log.Printf("🔥 Failed to reload booking %d for verification email: %v", booking.ID, err)
		warning = "Booking created but the verification email could not be sent."
	}

	response := fiber.Map{
		"success":    true,
		"booking_id": booking.ID,
		"reference":  booking.Reference,
	}
	if warning != "" {
		response["warning"] = warning
	}
	return c.Status(fiber.StatusCreated).JSON(response)
}

// VerifyEmail consumes the emailed token and advances the booking to
// pending_payment.
func VerifyEmail(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing token"})
	}

	booking, err := services.VerifyEmail(database.DB, token)
	if err != nil {
		return c.Status(statusForBookingError(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"booking": fiber.Map{
			"id":        booking.ID,
			"reference": booking.Reference,
			"status":    booking.Status,
		},
	})
}

// BookingStatus is the guest polling endpoint keyed by reference.
func BookingStatus(c *fiber.Ctx) error {
	reference := strings.TrimSpace(c.Query("reference"))
	if reference == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing reference"})
	}

	summary, err := services.BookingStatus(database.DB, reference)
	if err != nil {
		return c.Status(statusForBookingError(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"success": true, "status": summary})
}
