package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/dubrovnikcoast/coastal_stays/database"
	"github.com/dubrovnikcoast/coastal_stays/services"
	"github.com/gofiber/fiber/v2"
)

// Availability returns the occupancy blocks for a property within a window,
// defaulting to the current month through six months out.
func Availability(c *fiber.Ctx) error {
	propertyID, err := strconv.ParseUint(c.Query("property"), 10, 32)
	if err != nil || propertyID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing property"})
	}

	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 6, 0)

	if raw := c.Query("start"); raw != "" {
		if start, err = parseDate(raw); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid start date"})
		}
	}
	if raw := c.Query("end"); raw != "" {
		if end, err = parseDate(raw); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid end date"})
		}
	}

	blocks, err := services.BlocksInWindow(database.DB, uint(propertyID), start, end)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	data := make([]fiber.Map, 0, len(blocks))
	for _, block := range blocks {
		entry := fiber.Map{
			"start":  block.StartDate.Format(dateLayout),
			"end":    block.EndDate.Format(dateLayout),
			"source": block.Source,
		}
		if block.Booking != nil {
			entry["reference"] = block.Booking.Reference
		}
		data = append(data, entry)
	}

	return c.JSON(fiber.Map{"success": true, "data": data})
}

// ExportCalendar serves the property's availability as an ICS document,
// gated by the per-property export token so channel managers can poll it
// without authentication.
func ExportCalendar(c *fiber.Ctx) error {
	propertyID, err := strconv.ParseUint(c.Params("propertyId"), 10, 32)
	if err != nil || propertyID == 0 {
		return c.Status(fiber.StatusBadRequest).SendString("Missing property")
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).SendString("Missing token")
	}

	calendar, err := services.EnsurePropertyCalendar(database.DB, uint(propertyID))
	if err != nil {
		return c.Status(statusForBookingError(err)).SendString(err.Error())
	}
	if calendar.ExportToken != token {
		return c.Status(fiber.StatusForbidden).SendString("Invalid token")
	}

	ics, err := services.RenderPropertyICS(database.DB, uint(propertyID))
	if err != nil {
		return c.Status(statusForBookingError(err)).SendString(err.Error())
	}

	c.Set("Content-Type", "text/calendar; charset=utf-8")
	c.Set("Content-Disposition", "attachment; filename=availability.ics")
	return c.SendString(ics)
}

type ManualBlockRequest struct {
	PropertyID uint   `json:"property_id" validate:"required"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Title      string `json:"title"`
}

// CreateManualBlock lets an admin take dates off the market by hand. The
// range is validated against the ledger like any other occupying write.
func CreateManualBlock(c *fiber.Ctx) error {
	var req ManualBlockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid start date"})
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid end date"})
	}

	block, err := services.CreateManualBlock(database.DB, req.PropertyID, start, end, strings.TrimSpace(req.Title))
	if err != nil {
		return c.Status(statusForBookingError(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "block": block})
}

func DeleteManualBlock(c *fiber.Ctx) error {
	blockID, err := strconv.ParseUint(c.Params("blockId"), 10, 32)
	if err != nil || blockID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid block id"})
	}

	if err := services.DeleteManualBlock(database.DB, uint(blockID)); err != nil {
		return c.Status(statusForBookingError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}

type FeedURLsRequest struct {
	AirbnbFeedURL  string `json:"airbnb_feed_url" validate:"omitempty,url"`
	BookingFeedURL string `json:"booking_feed_url" validate:"omitempty,url"`
	CustomFeedURL  string `json:"custom_feed_url" validate:"omitempty,url"`
}

// UpdatePropertyFeeds stores the external ICS feed URLs for a property.
func UpdatePropertyFeeds(c *fiber.Ctx) error {
	propertyID, err := strconv.ParseUint(c.Params("propertyId"), 10, 32)
	if err != nil || propertyID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid property id"})
	}

	var req FeedURLsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	err = services.UpdateFeedURLs(database.DB, uint(propertyID), req.AirbnbFeedURL, req.BookingFeedURL, req.CustomFeedURL)
	if err != nil {
		return c.Status(statusForBookingError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}

// SyncPropertyFeeds triggers a feed import for one property.
func SyncPropertyFeeds(c *fiber.Ctx) error {
	propertyID, err := strconv.ParseUint(c.Params("propertyId"), 10, 32)
	if err != nil || propertyID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid property id"})
	}

	result, err := services.SyncPropertyFeeds(database.DB, uint(propertyID))
	if err != nil {
		return c.Status(statusForBookingError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true, "result": result})
}
