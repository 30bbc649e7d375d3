package controller

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/alexeldeib/claude-taxmate/internal/billing"
	"github.com/alexeldeib/claude-taxmate/internal/model"
	"github.com/alexeldeib/claude-taxmate/internal/repository"
	"github.com/alexeldeib/claude-taxmate/pkg/config"
	"github.com/alexeldeib/claude-taxmate/pkg/subscription"
	"github.com/alexeldeib/claude-taxmate/pkg/utils/jwt"
)

type CheckoutInput struct {
	PlanType string `json:"plan_type" validate:"required"`
}

// BillingClient is the slice of the Stripe API the subscription controller
// needs; tests substitute a fake.
type BillingClient interface {
	CreateCustomer(email string, userID uint) (string, error)
	CreateCheckoutSession(p billing.CheckoutParams) (string, string, error)
	CancelSubscription(subscriptionID string) error
}

type SubscriptionController struct {
	store  repository.SubscriptionStore
	users  UserGetter
	stripe BillingClient
	cfg    *config.Config
}

// UserGetter fetches a user by ID; satisfied by a thin GORM adapter.
type UserGetter interface {
	GetUser(ctx context.Context, id uint) (*model.User, error)
}

func NewSubscriptionController(store repository.SubscriptionStore, users UserGetter, stripeClient BillingClient, cfg *config.Config) *SubscriptionController {
	return &SubscriptionController{
		store:  store,
		users:  users,
		stripe: stripeClient,
		cfg:    cfg,
	}
}

// CreateCheckoutSession starts a Stripe checkout for a paid plan. The
// free-trial row holding the customer ref is upserted first so webhook
// events that arrive without user metadata can still be correlated.
func (sc *SubscriptionController) CreateCheckoutSession(c *fiber.Ctx) error {
	input := new(CheckoutInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if !subscription.IsPaidPlan(subscription.Plan(input.PlanType)) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown plan",
		})
	}

	priceID := sc.cfg.PriceIDFor(input.PlanType)
	if priceID == "" {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Plan is not configured",
		})
	}

	claims := c.Locals("user").(*jwt.Claims)

	user, err := sc.users.GetUser(c.Context(), claims.UserID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	customerID, err := sc.ensureCustomer(c, user)
	if err != nil {
		log.Printf("Could not ensure Stripe customer for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create checkout session",
		})
	}

	sessionID, url, err := sc.stripe.CreateCheckoutSession(billing.CheckoutParams{
		CustomerID: customerID,
		PriceID:    priceID,
		PlanType:   input.PlanType,
		UserID:     user.ID,
		SuccessURL: sc.cfg.App.URL + "/app?success=true",
		CancelURL:  sc.cfg.App.URL + "/pricing",
	})
	if err != nil {
		log.Printf("Could not create checkout session for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create checkout session",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"url":        url,
	})
}

// ensureCustomer reuses the customer ref from an existing subscription row or
// creates a Stripe customer and records it on a fresh trial row.
func (sc *SubscriptionController) ensureCustomer(c *fiber.Ctx, user *model.User) (string, error) {
	existing, err := sc.store.GetByUserID(c.Context(), user.ID)
	if err == nil && existing.StripeCustomerID != "" {
		return existing.StripeCustomerID, nil
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	customerID, err := sc.stripe.CreateCustomer(user.Email, user.ID)
	if err != nil {
		return "", err
	}

	row := &model.Subscription{
		UserID:           user.ID,
		StripeCustomerID: customerID,
		Plan:             string(subscription.FreeTrial),
		Status:           string(subscription.StatusActive),
		StartedAt:        time.Now(),
	}
	if err := sc.store.Upsert(c.Context(), row); err != nil {
		return "", err
	}
	return customerID, nil
}

// GetMySubscription returns the caller's subscription row plus the derived
// gating decision.
func (sc *SubscriptionController) GetMySubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	sub, err := sc.store.GetByUserID(c.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "No subscription found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch subscription",
		})
	}

	return c.JSON(fiber.Map{
		"subscription":   sub,
		"is_active_paid": subscription.IsActivePaid(subscription.Plan(sub.Plan), subscription.Status(sub.Status)),
	})
}

// CancelSubscription cancels on the Stripe side; the status flip to
// cancelled lands through the customer.subscription.deleted webhook.
func (sc *SubscriptionController) CancelSubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	sub, err := sc.store.GetByUserID(c.Context(), claims.UserID)
	if err != nil || sub.StripeSubscriptionID == "" || sub.Status != string(subscription.StatusActive) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No active subscription found",
		})
	}

	if err := sc.stripe.CancelSubscription(sub.StripeSubscriptionID); err != nil {
		log.Printf("Could not cancel subscription for user %d: %v", claims.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not cancel subscription",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Subscription cancelled successfully",
	})
}
