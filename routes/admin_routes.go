package routes

import (
	"github.com/wanjiru254/tutor_connect/handlers"
	"github.com/wanjiru254/tutor_connect/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())
	admin.Get("/audit-logs", handlers.ListAuditLogs)
}
