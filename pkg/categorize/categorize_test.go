package categorize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-3.5-turbo", req.Model)
		require.Len(t, req.Messages, 1)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
}

func TestCategorize(t *testing.T) {
	transactions := []Transaction{
		{ID: 1, Merchant: "AWS", Amount: 120.50},
		{ID: 2, Merchant: "Delta Airlines", Amount: 540.00},
	}

	t.Run("valid model output maps categories by ID", func(t *testing.T) {
		srv := stubServer(t, `{"transactions":[{"id":1,"category":"software"},{"id":2,"category":"travel"}]}`)
		defer srv.Close()

		client := NewClientWithEndpoint("sk-test", srv.URL)
		results, err := client.Categorize(context.Background(), transactions)

		require.NoError(t, err)
		assert.Equal(t, []Result{
			{ID: 1, Category: "software"},
			{ID: 2, Category: "travel"},
		}, results)
	})

	t.Run("categories outside the fixed set fall back to misc", func(t *testing.T) {
		srv := stubServer(t, `{"transactions":[{"id":1,"category":"cloud_stuff"},{"id":2,"category":"travel"}]}`)
		defer srv.Close()

		client := NewClientWithEndpoint("sk-test", srv.URL)
		results, err := client.Categorize(context.Background(), transactions)

		require.NoError(t, err)
		assert.Equal(t, "misc", results[0].Category)
		assert.Equal(t, "travel", results[1].Category)
	})

	t.Run("IDs missing from the model output come back as misc", func(t *testing.T) {
		srv := stubServer(t, `{"transactions":[{"id":1,"category":"software"}]}`)
		defer srv.Close()

		client := NewClientWithEndpoint("sk-test", srv.URL)
		results, err := client.Categorize(context.Background(), transactions)

		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "misc", results[1].Category)
	})

	t.Run("unparseable model output is an error", func(t *testing.T) {
		srv := stubServer(t, `not json at all`)
		defer srv.Close()

		client := NewClientWithEndpoint("sk-test", srv.URL)
		_, err := client.Categorize(context.Background(), transactions)

		assert.Error(t, err)
	})

	t.Run("upstream failure surfaces the status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		client := NewClientWithEndpoint("sk-test", srv.URL)
		_, err := client.Categorize(context.Background(), transactions)

		assert.ErrorContains(t, err, "429")
	})

	t.Run("missing API key refuses to call out", func(t *testing.T) {
		client := NewClient("")
		assert.False(t, client.Configured())

		_, err := client.Categorize(context.Background(), transactions)
		assert.Error(t, err)
	})

	t.Run("empty input is a no-op", func(t *testing.T) {
		client := NewClient("sk-test")
		results, err := client.Categorize(context.Background(), nil)
		assert.NoError(t, err)
		assert.Nil(t, results)
	})
}
