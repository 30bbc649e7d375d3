package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateForm(t *testing.T) {
	t.Run("sends the job with the service credential", func(t *testing.T) {
		var got GenerateRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/generate-form", r.URL.Path)
			assert.Equal(t, "Bearer svc-key", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "svc-key")
		err := client.GenerateForm(context.Background(), GenerateRequest{
			JobID:    "job-1",
			UserID:   7,
			FormType: "schedule_c",
		})

		require.NoError(t, err)
		assert.Equal(t, "job-1", got.JobID)
		assert.Equal(t, uint(7), got.UserID)
		assert.Equal(t, "schedule_c", got.FormType)
	})

	t.Run("non-2xx worker response is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "svc-key")
		err := client.GenerateForm(context.Background(), GenerateRequest{JobID: "job-1"})

		assert.ErrorContains(t, err, "500")
	})

	t.Run("unconfigured client refuses to dispatch", func(t *testing.T) {
		client := NewClient("", "svc-key")
		assert.False(t, client.Configured())
		assert.Error(t, client.GenerateForm(context.Background(), GenerateRequest{JobID: "job-1"}))
	})
}
