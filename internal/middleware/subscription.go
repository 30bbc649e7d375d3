package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/alexeldeib/claude-taxmate/internal/model"
	"github.com/alexeldeib/claude-taxmate/internal/repository"
	"github.com/alexeldeib/claude-taxmate/pkg/subscription"
	"github.com/alexeldeib/claude-taxmate/pkg/utils/jwt"
)

// SubscriptionQuery is the read path gating decisions run on.
type SubscriptionQuery interface {
	GetByUserID(ctx context.Context, userID uint) (*model.Subscription, error)
}

// RequirePaidPlan rejects requests unless the user holds an active paid
// subscription. A free trial row does not pass.
func RequirePaidPlan(query SubscriptionQuery) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)

		plan, status, err := currentPlan(c.Context(), query, claims.UserID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not check subscription",
			})
		}

		if !subscription.IsActivePaid(plan, status) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Active paid subscription required",
			})
		}

		return c.Next()
	}
}

// CheckFeatureAccess gates a single feature by the user's plan. Users with
// no subscription row are treated as active free-trial users.
func CheckFeatureAccess(query SubscriptionQuery, feature subscription.Feature) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)

		plan, status, err := currentPlan(c.Context(), query, claims.UserID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not check subscription",
			})
		}

		if !subscription.CanUseFeature(plan, status, feature) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "This feature requires a higher subscription plan",
			})
		}

		return c.Next()
	}
}

func currentPlan(ctx context.Context, query SubscriptionQuery, userID uint) (subscription.Plan, subscription.Status, error) {
	sub, err := query.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return subscription.FreeTrial, subscription.StatusActive, nil
		}
		return "", "", err
	}
	return subscription.Plan(sub.Plan), subscription.Status(sub.Status), nil
}
