package routes

import (
	"github.com/dubrovnikcoast/coastal_stays/handlers"
	"github.com/gofiber/fiber/v2"
)

func BookingRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	booking := api.Group("/booking")
	booking.Post("/start", handlers.StartBooking)
	booking.Get("/verify-email", handlers.VerifyEmail)
	booking.Post("/checkout", handlers.OpenCheckout)
	booking.Get("/status", handlers.BookingStatus)
	booking.Get("/availability", handlers.Availability)
}
