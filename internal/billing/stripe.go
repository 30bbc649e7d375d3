package billing

import (
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"github.com/stripe/stripe-go/v74/customer"
	"github.com/stripe/stripe-go/v74/subscription"
)

// CheckoutParams describes one subscription-mode checkout session. The
// metadata travels back on the checkout.session.completed event and is what
// lets the reconciler correlate the purchase to a user.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	PlanType   string
	UserID     uint
	SuccessURL string
	CancelURL  string
}

// StripeClient wraps the Stripe API calls the service makes.
type StripeClient struct{}

func NewStripeClient(apiKey string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{}
}

func (sc *StripeClient) CreateCustomer(email string, userID uint) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.AddMetadata("user_id", strconv.FormatUint(uint64(userID), 10))

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

func (sc *StripeClient) CreateCheckoutSession(p CheckoutParams) (string, string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(p.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.AddMetadata("user_id", strconv.FormatUint(uint64(p.UserID), 10))
	params.AddMetadata("plan_type", p.PlanType)

	sess, err := session.New(params)
	if err != nil {
		return "", "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.ID, sess.URL, nil
}

func (sc *StripeClient) CancelSubscription(subscriptionID string) error {
	if _, err := subscription.Cancel(subscriptionID, nil); err != nil {
		return fmt.Errorf("cancel stripe subscription %s: %w", subscriptionID, err)
	}
	return nil
}
