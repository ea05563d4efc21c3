package routes

import (
	"github.com/wanjiru254/tutor_connect/handlers"
	"github.com/wanjiru254/tutor_connect/payments"
	"github.com/gofiber/fiber/v2"
)

func PaymentRoutes(app *fiber.App, processor *payments.WebhookProcessor) {
	api := app.Group("/api/v1")

	api.Post("/payments/stripe/webhook", handlers.HandleStripeWebhook(processor))
}
