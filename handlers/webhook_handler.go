package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wanjiru254/tutor_connect/payments"
)

// HandleStripeWebhook returns the handler for Stripe webhook deliveries. The
// endpoint is unauthenticated; trust comes from signature verification over
// the raw body. Handler failures past verification still acknowledge with
// 200 so Stripe does not retry deliveries whose state mutation was already
// attempted.
func HandleStripeWebhook(processor *payments.WebhookProcessor) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		var ev payments.Event

		// A panic here is a dispatcher failure outside any handler's guard:
		// respond 500 so the platform redelivers.
		defer func() {
			if r := recover(); r != nil {
				log.Printf("🔥 Webhook dispatcher panic (account %q): %v", ev.AccountID, r)
				err = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
			}
		}()

		payload := c.Body()
		signature := c.Get("Stripe-Signature")

		ev, result, procErr := processor.Process(c.UserContext(), payload, signature)
		if procErr != nil {
			if errors.Is(procErr, payments.ErrSignatureInvalid) || errors.Is(procErr, payments.ErrEventMalformed) {
				log.Printf("Rejected webhook delivery: %v", procErr)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": procErr.Error()})
			}
			log.Printf("🔥 Webhook dispatcher error (account %q): %v", ev.AccountID, procErr)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}

		if !result.Success {
			log.Printf("⚠️ Handler for event %s (%s) reported failure after %s: %s",
				ev.ID, ev.Type, result.ProcessingTime, result.Error)
		}

		return c.JSON(fiber.Map{
			"received":    true,
			"eventType":   ev.Type,
			"eventId":     ev.ID,
			"processedAt": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
