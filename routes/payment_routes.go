package routes

import (
	"github.com/dubrovnikcoast/coastal_stays/handlers"
	"github.com/gofiber/fiber/v2"
)

func PaymentRoutes(app *fiber.App) {
	app.Post("/webhooks/stripe", handlers.HandleStripeWebhook)
}
