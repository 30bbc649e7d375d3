package controller

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callbackTestApp(serviceKey string) *fiber.App {
	fc := NewFormController(nil, nil, noopRecorder{}, serviceKey)
	app := fiber.New()
	app.Put("/api/forms/jobs/:id", fc.UpdateFormJob)
	return app
}

func TestUpdateFormJobAuth(t *testing.T) {
	body := `{"status":"done","result_url":"https://cdn.example.com/form.pdf"}`

	t.Run("missing credential is rejected", func(t *testing.T) {
		app := callbackTestApp("svc-key")

		req := httptest.NewRequest("PUT", "/api/forms/jobs/job-1", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong credential is rejected", func(t *testing.T) {
		app := callbackTestApp("svc-key")

		req := httptest.NewRequest("PUT", "/api/forms/jobs/job-1", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer other-key")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unconfigured service key rejects everything", func(t *testing.T) {
		app := callbackTestApp("")

		req := httptest.NewRequest("PUT", "/api/forms/jobs/job-1", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer ")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown status is a bad request", func(t *testing.T) {
		app := callbackTestApp("svc-key")

		req := httptest.NewRequest("PUT", "/api/forms/jobs/job-1", strings.NewReader(`{"status":"still-thinking"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer svc-key")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}
