package controller

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/alexeldeib/claude-taxmate/internal/billing"
	"github.com/alexeldeib/claude-taxmate/internal/model"
	"github.com/alexeldeib/claude-taxmate/internal/repository"
)

const webhookTestSecret = "whsec_controller_test"

// memoryStore records subscription writes so the tests can assert whether
// the store was touched.
type memoryStore struct {
	rows map[uint]*model.Subscription
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[uint]*model.Subscription{}}
}

func (s *memoryStore) GetByUserID(_ context.Context, userID uint) (*model.Subscription, error) {
	if row, ok := s.rows[userID]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (s *memoryStore) GetByCustomerRef(_ context.Context, customerID string) (*model.Subscription, error) {
	for _, row := range s.rows {
		if row.StripeCustomerID == customerID {
			copied := *row
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memoryStore) GetBySubscriptionRef(_ context.Context, subscriptionID string) (*model.Subscription, error) {
	for _, row := range s.rows {
		if row.StripeSubscriptionID == subscriptionID {
			copied := *row
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memoryStore) Upsert(_ context.Context, sub *model.Subscription) error {
	copied := *sub
	s.rows[sub.UserID] = &copied
	return nil
}

func (s *memoryStore) UpdateByCustomerRef(_ context.Context, customerID string, update repository.SubscriptionUpdate) error {
	for _, row := range s.rows {
		if row.StripeCustomerID == customerID {
			applyTestUpdate(row, update)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *memoryStore) UpdateBySubscriptionRef(_ context.Context, subscriptionID string, update repository.SubscriptionUpdate) error {
	for _, row := range s.rows {
		if row.StripeSubscriptionID == subscriptionID {
			applyTestUpdate(row, update)
			return nil
		}
	}
	return repository.ErrNotFound
}

func applyTestUpdate(row *model.Subscription, update repository.SubscriptionUpdate) {
	if update.Status != nil {
		row.Status = *update.Status
	}
	if update.StripeSubscriptionID != nil {
		row.StripeSubscriptionID = *update.StripeSubscriptionID
	}
	if update.EndsAt != nil {
		row.EndsAt = *update.EndsAt
	}
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, *uint, string, string, map[string]interface{}) {}

func webhookTestApp(secret string, store repository.SubscriptionStore) *fiber.App {
	wc := NewWebhookController(
		billing.NewVerifier(secret),
		billing.NewReconciler(store, noopRecorder{}),
	)
	app := fiber.New()
	app.Post("/api/stripe/webhook", wc.HandleStripeWebhook)
	return app
}

func signedHeader(payload []byte, secret string) string {
	ts := time.Now()
	sig := webhook.ComputeSignature(ts, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig))
}

func checkoutPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":   "evt_1",
		"type": "checkout.session.completed",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":           "cs_1",
				"customer":     "cus_1",
				"subscription": "sub_1",
				"metadata":     map[string]string{"user_id": "7", "plan_type": "solo"},
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func TestHandleStripeWebhook(t *testing.T) {
	t.Run("valid delivery is applied and acknowledged", func(t *testing.T) {
		store := newMemoryStore()
		app := webhookTestApp(webhookTestSecret, store)
		payload := checkoutPayload(t)

		req := httptest.NewRequest("POST", "/api/stripe/webhook", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", signedHeader(payload, webhookTestSecret))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		body, _ := io.ReadAll(resp.Body)
		assert.JSONEq(t, `{"received":true}`, string(body))

		require.Contains(t, store.rows, uint(7))
		assert.Equal(t, "solo", store.rows[7].Plan)
		assert.Equal(t, "active", store.rows[7].Status)
	})

	t.Run("missing signature is 400 with no store mutation", func(t *testing.T) {
		store := newMemoryStore()
		app := webhookTestApp(webhookTestSecret, store)

		req := httptest.NewRequest("POST", "/api/stripe/webhook", bytes.NewReader(checkoutPayload(t)))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Empty(t, store.rows)
	})

	t.Run("invalid signature is 400 with no store mutation", func(t *testing.T) {
		store := newMemoryStore()
		app := webhookTestApp(webhookTestSecret, store)
		payload := checkoutPayload(t)

		req := httptest.NewRequest("POST", "/api/stripe/webhook", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", signedHeader(payload, "whsec_wrong"))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Empty(t, store.rows)
	})

	t.Run("missing configured secret is 500", func(t *testing.T) {
		store := newMemoryStore()
		app := webhookTestApp("", store)
		payload := checkoutPayload(t)

		req := httptest.NewRequest("POST", "/api/stripe/webhook", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", signedHeader(payload, webhookTestSecret))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.Empty(t, store.rows)
	})

	t.Run("update for an unknown subscription still acknowledges 200", func(t *testing.T) {
		store := newMemoryStore()
		app := webhookTestApp(webhookTestSecret, store)

		payload, err := json.Marshal(map[string]interface{}{
			"id":   "evt_2",
			"type": "customer.subscription.updated",
			"data": map[string]interface{}{
				"object": map[string]interface{}{
					"id":       "sub_missing",
					"customer": "cus_1",
					"status":   "active",
				},
			},
		})
		require.NoError(t, err)

		req := httptest.NewRequest("POST", "/api/stripe/webhook", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", signedHeader(payload, webhookTestSecret))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}
