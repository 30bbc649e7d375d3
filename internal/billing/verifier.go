package billing

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

var (
	// ErrMissingSecret means the server has no webhook secret configured.
	// Nothing can be verified until deployment config is fixed.
	ErrMissingSecret = errors.New("stripe webhook secret is not configured")
	// ErrMissingSignature means the request carried no Stripe-Signature header.
	ErrMissingSignature = errors.New("missing stripe signature header")
	// ErrInvalidSignature means the header was present but did not match the
	// payload, a genuine cryptographic mismatch.
	ErrInvalidSignature = errors.New("invalid stripe webhook signature")
)

// Verifier authenticates raw webhook payloads against the shared endpoint
// secret. The payload must be the exact bytes Stripe sent; re-serialized
// JSON will not verify.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

func (v *Verifier) Verify(payload []byte, sigHeader string) (stripe.Event, error) {
	if v.secret == "" {
		return stripe.Event{}, ErrMissingSecret
	}
	if sigHeader == "" {
		return stripe.Event{}, ErrMissingSignature
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, v.secret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}
