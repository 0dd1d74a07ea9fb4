package routes

import (
	"github.com/dubrovnikcoast/coastal_stays/handlers"
	"github.com/dubrovnikcoast/coastal_stays/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())
	admin.Get("/bookings", handlers.ListBookings)
	admin.Get("/bookings/:bookingId", handlers.GetBooking)
	admin.Post("/bookings/:bookingId/cancel", handlers.CancelBooking)

	admin.Post("/calendar-blocks", handlers.CreateManualBlock)
	admin.Delete("/calendar-blocks/:blockId", handlers.DeleteManualBlock)

	admin.Put("/properties/:propertyId/feeds", handlers.UpdatePropertyFeeds)
	admin.Post("/properties/:propertyId/sync", handlers.SyncPropertyFeeds)
}
