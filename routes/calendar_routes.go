package routes

import (
	"github.com/dubrovnikcoast/coastal_stays/handlers"
	"github.com/gofiber/fiber/v2"
)

func CalendarRoutes(app *fiber.App) {
	// Token-gated, consumed by external channel managers.
	app.Get("/calendar/:propertyId/export", handlers.ExportCalendar)
}
