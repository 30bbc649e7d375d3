package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/alexeldeib/claude-taxmate/internal/billing"
)

type WebhookController struct {
	verifier   *billing.Verifier
	reconciler *billing.Reconciler
}

func NewWebhookController(verifier *billing.Verifier, reconciler *billing.Reconciler) *WebhookController {
	return &WebhookController{
		verifier:   verifier,
		reconciler: reconciler,
	}
}

// HandleStripeWebhook verifies and applies one Stripe delivery. After a
// successful verification the delivery is always acknowledged with 200, even
// if reconciliation failed internally; a non-2xx here only makes Stripe
// redeliver the same event into the same failure.
func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	event, err := wc.verifier.Verify(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrMissingSecret):
			log.Printf("Webhook rejected: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Webhook secret not configured",
			})
		case errors.Is(err, billing.ErrMissingSignature):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing signature",
			})
		default:
			log.Printf("Webhook signature verification failed: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}
	}

	log.Printf("Processing Stripe webhook event: %s (%s)", event.Type, event.ID)

	// Reconciliation failures are already logged and recorded with their
	// event context; the caller only ever sees the ack.
	wc.reconciler.Process(c.Context(), event)

	return c.JSON(fiber.Map{"received": true})
}
