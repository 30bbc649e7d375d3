package billing

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v74/webhook"
)

const testSecret = "whsec_test_secret"

func signPayload(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	ts := time.Now()
	sig := webhook.ComputeSignature(ts, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig))
}

func TestVerifier(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.deleted","data":{"object":{"id":"sub_1"}}}`)

	t.Run("valid signature returns the typed event", func(t *testing.T) {
		v := NewVerifier(testSecret)

		event, err := v.Verify(payload, signPayload(t, payload, testSecret))

		assert.NoError(t, err)
		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, "customer.subscription.deleted", event.Type)
	})

	t.Run("missing secret is a configuration error", func(t *testing.T) {
		v := NewVerifier("")

		_, err := v.Verify(payload, signPayload(t, payload, testSecret))

		assert.ErrorIs(t, err, ErrMissingSecret)
	})

	t.Run("missing signature header is a request error", func(t *testing.T) {
		v := NewVerifier(testSecret)

		_, err := v.Verify(payload, "")

		assert.ErrorIs(t, err, ErrMissingSignature)
	})

	t.Run("wrong secret is a signature mismatch", func(t *testing.T) {
		v := NewVerifier(testSecret)

		_, err := v.Verify(payload, signPayload(t, payload, "whsec_other"))

		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered payload is a signature mismatch", func(t *testing.T) {
		v := NewVerifier(testSecret)
		header := signPayload(t, payload, testSecret)

		tampered := append([]byte{}, payload...)
		tampered[len(tampered)-2] = 'x'
		_, err := v.Verify(tampered, header)

		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}
