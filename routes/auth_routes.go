package routes

import (
	"github.com/dubrovnikcoast/coastal_stays/handlers"
	"github.com/gofiber/fiber/v2"
)

func AuthRoutes(app *fiber.App) {
	api := app.Group("/api/v1")
	api.Post("/auth/login", handlers.LoginUser)
}
