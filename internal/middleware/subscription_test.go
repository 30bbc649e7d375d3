package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexeldeib/claude-taxmate/internal/model"
	"github.com/alexeldeib/claude-taxmate/internal/repository"
	"github.com/alexeldeib/claude-taxmate/pkg/subscription"
	"github.com/alexeldeib/claude-taxmate/pkg/utils/jwt"
)

// fakeQuery serves canned subscription rows to the gating middleware.
type fakeQuery struct {
	rows map[uint]*model.Subscription
}

func (q *fakeQuery) GetByUserID(_ context.Context, userID uint) (*model.Subscription, error) {
	if row, ok := q.rows[userID]; ok {
		return row, nil
	}
	return nil, repository.ErrNotFound
}

func gateTestApp(handler fiber.Handler) *fiber.App {
	app := fiber.New()
	// Stand-in for the auth middleware.
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", &jwt.Claims{UserID: 1, Email: "test@example.com"})
		return c.Next()
	})
	app.Get("/gated", handler, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func subRow(plan subscription.Plan, status subscription.Status) *model.Subscription {
	return &model.Subscription{
		UserID:    1,
		Plan:      string(plan),
		Status:    string(status),
		StartedAt: time.Now(),
	}
}

func TestRequirePaidPlan(t *testing.T) {
	cases := []struct {
		name string
		row  *model.Subscription
		want int
	}{
		{"active solo passes", subRow(subscription.Solo, subscription.StatusActive), fiber.StatusOK},
		{"active seasonal passes", subRow(subscription.Seasonal, subscription.StatusActive), fiber.StatusOK},
		{"free trial is rejected", subRow(subscription.FreeTrial, subscription.StatusActive), fiber.StatusForbidden},
		{"cancelled solo is rejected", subRow(subscription.Solo, subscription.StatusCancelled), fiber.StatusForbidden},
		{"past_due solo is rejected", subRow(subscription.Solo, subscription.StatusPastDue), fiber.StatusForbidden},
		{"no subscription row is rejected", nil, fiber.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			query := &fakeQuery{rows: map[uint]*model.Subscription{}}
			if tc.row != nil {
				query.rows[1] = tc.row
			}
			app := gateTestApp(RequirePaidPlan(query))

			resp, err := app.Test(httptest.NewRequest("GET", "/gated", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestCheckFeatureAccess(t *testing.T) {
	t.Run("paid plan can auto-categorize", func(t *testing.T) {
		query := &fakeQuery{rows: map[uint]*model.Subscription{
			1: subRow(subscription.Solo, subscription.StatusActive),
		}}
		app := gateTestApp(CheckFeatureAccess(query, subscription.AutoCategorize))

		resp, err := app.Test(httptest.NewRequest("GET", "/gated", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("trial cannot auto-categorize", func(t *testing.T) {
		query := &fakeQuery{rows: map[uint]*model.Subscription{
			1: subRow(subscription.FreeTrial, subscription.StatusActive),
		}}
		app := gateTestApp(CheckFeatureAccess(query, subscription.AutoCategorize))

		resp, err := app.Test(httptest.NewRequest("GET", "/gated", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("user without a row gets trial features", func(t *testing.T) {
		query := &fakeQuery{rows: map[uint]*model.Subscription{}}
		app := gateTestApp(CheckFeatureAccess(query, subscription.CSVImport))

		resp, err := app.Test(httptest.NewRequest("GET", "/gated", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("cancelled plan loses features", func(t *testing.T) {
		query := &fakeQuery{rows: map[uint]*model.Subscription{
			1: subRow(subscription.Solo, subscription.StatusCancelled),
		}}
		app := gateTestApp(CheckFeatureAccess(query, subscription.CSVExport))

		resp, err := app.Test(httptest.NewRequest("GET", "/gated", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})
}
