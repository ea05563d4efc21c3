package routes

import (
	"github.com/wanjiru254/tutor_connect/handlers"
	"github.com/wanjiru254/tutor_connect/middleware"
	"github.com/gofiber/fiber/v2"
)

func TeacherRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	teacher := api.Group("/teacher", middleware.Protected(), middleware.TeacherRequired())

	connect := teacher.Group("/connect")
	connect.Post("/account", handlers.CreateConnectAccount)
	connect.Post("/onboarding-link", handlers.CreateOnboardingLink)
	connect.Get("/status", handlers.GetConnectStatus)
	connect.Post("/dashboard-link", handlers.GetDashboardLink)

	teacher.Get("/payouts", handlers.GetMyPayouts)
}
