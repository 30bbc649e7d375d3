package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v74"

	"github.com/alexeldeib/claude-taxmate/internal/model"
	"github.com/alexeldeib/claude-taxmate/internal/repository"
	"github.com/alexeldeib/claude-taxmate/pkg/subscription"
)

// seasonalTerm is the fixed validity window of the seasonal plan.
const seasonalTerm = 365 * 24 * time.Hour

// Reconciler maps verified Stripe events onto subscription rows. Stripe
// retries deliveries and emits overlapping events for the same purchase
// (checkout.session.completed and customer.subscription.created), so every
// write is an upsert or conditional update keyed on a stable external ref;
// applying the same event twice converges to the same row.
type Reconciler struct {
	store  repository.SubscriptionStore
	errors repository.ErrorRecorder
	now    func() time.Time
}

func NewReconciler(store repository.SubscriptionStore, errors repository.ErrorRecorder) *Reconciler {
	return &Reconciler{
		store:  store,
		errors: errors,
		now:    time.Now,
	}
}

// Process applies one verified event. A store write failure is logged and
// recorded with its identifiers and returned; callers still acknowledge the
// delivery, because redelivery would hit the same failure and 4xx/5xx only
// triggers provider retry storms. A lookup miss caused by event ordering is
// not a failure at all.
func (r *Reconciler) Process(ctx context.Context, event stripe.Event) error {
	var err error

	switch event.Type {
	case "checkout.session.completed":
		err = r.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created":
		err = r.handleSubscriptionCreated(ctx, event)
	case "customer.subscription.updated":
		err = r.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		err = r.handleSubscriptionDeleted(ctx, event)
	default:
		// Unknown kinds are expected as Stripe adds event types; log so new
		// ones show up in operational review.
		log.Printf("Unhandled Stripe event type: %s", event.Type)
		return nil
	}

	if err != nil {
		log.Printf("Error processing %s event %s: %v", event.Type, event.ID, err)
		r.errors.Record(ctx, nil, "webhook_reconciliation", err.Error(), map[string]interface{}{
			"event_id":   event.ID,
			"event_type": string(event.Type),
		})
	}
	return err
}

type checkoutSession struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type subscriptionObject struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Status   string            `json:"status"`
	CancelAt int64             `json:"cancel_at"`
	Metadata map[string]string `json:"metadata"`
}

func (r *Reconciler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess checkoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("parse checkout session: %w", err)
	}

	plan := sess.Metadata["plan_type"]
	if !subscription.ValidPlan(plan) {
		plan = string(subscription.Solo)
	}

	userID, ok := parseUserID(sess.Metadata)
	if !ok {
		// No user metadata on the session; fall back to a customer we have
		// already seen during checkout initiation.
		existing, err := r.store.GetByCustomerRef(ctx, sess.Customer)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				log.Printf("Checkout session %s has no user_id metadata and unknown customer %s; skipping", sess.ID, sess.Customer)
				return nil
			}
			return err
		}
		userID = existing.UserID
	}

	now := r.now()
	row := &model.Subscription{
		UserID:               userID,
		StripeCustomerID:     sess.Customer,
		StripeSubscriptionID: sess.Subscription,
		Plan:                 plan,
		Status:               string(subscription.StatusActive),
		StartedAt:            now,
	}
	if plan == string(subscription.Seasonal) {
		ends := now.Add(seasonalTerm)
		row.EndsAt = &ends
	}

	if err := r.store.Upsert(ctx, row); err != nil {
		return fmt.Errorf("checkout %s (user %d, customer %s): %w", sess.ID, userID, sess.Customer, err)
	}

	log.Printf("Checkout completed for user %d: plan=%s subscription=%s", userID, plan, sess.Subscription)
	return nil
}

func (r *Reconciler) handleSubscriptionCreated(ctx context.Context, event stripe.Event) error {
	var sub subscriptionObject
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("parse subscription: %w", err)
	}

	if userID, ok := parseUserID(sub.Metadata); ok {
		// Same upsert as checkout, except the status is the event's own. The
		// seasonal window is recomputed here so the final row is the same
		// whichever of the two purchase events lands first.
		plan := sub.Metadata["plan_type"]
		if !subscription.ValidPlan(plan) {
			plan = string(subscription.Solo)
		}
		now := r.now()
		row := &model.Subscription{
			UserID:               userID,
			StripeCustomerID:     sub.Customer,
			StripeSubscriptionID: sub.ID,
			Plan:                 plan,
			Status:               normalizeStatus(sub.Status),
			StartedAt:            now,
			EndsAt:               r.cancelTime(sub.CancelAt),
		}
		if row.EndsAt == nil && plan == string(subscription.Seasonal) {
			ends := now.Add(seasonalTerm)
			row.EndsAt = &ends
		}
		if err := r.store.Upsert(ctx, row); err != nil {
			return fmt.Errorf("subscription created %s (user %d): %w", sub.ID, userID, err)
		}
		return nil
	}

	// No user metadata: correlate by customer ref. The row normally exists
	// already, written either at checkout initiation or by the
	// checkout.session.completed event.
	update := repository.SubscriptionUpdate{
		Status:               stringPtr(normalizeStatus(sub.Status)),
		StripeSubscriptionID: &sub.ID,
	}
	if ends := r.cancelTime(sub.CancelAt); ends != nil {
		update.EndsAt = &ends
	}
	err := r.store.UpdateByCustomerRef(ctx, sub.Customer, update)
	if errors.Is(err, repository.ErrNotFound) {
		// Benign race: customer.subscription.created arrived before
		// checkout.session.completed was persisted. The checkout event
		// carries the user ref and will converge the row.
		log.Printf("No subscription row yet for customer %s (subscription %s); waiting for checkout event", sub.Customer, sub.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("subscription created %s (customer %s): %w", sub.ID, sub.Customer, err)
	}
	return nil
}

func (r *Reconciler) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var sub subscriptionObject
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("parse subscription: %w", err)
	}

	update := repository.SubscriptionUpdate{
		Status: stringPtr(normalizeStatus(sub.Status)),
	}
	if ends := r.cancelTime(sub.CancelAt); ends != nil {
		update.EndsAt = &ends
	}
	err := r.store.UpdateBySubscriptionRef(ctx, sub.ID, update)
	if errors.Is(err, repository.ErrNotFound) {
		log.Printf("Update for unknown subscription %s (customer %s); ignoring", sub.ID, sub.Customer)
		return nil
	}
	if err != nil {
		return fmt.Errorf("subscription updated %s (customer %s): %w", sub.ID, sub.Customer, err)
	}
	return nil
}

func (r *Reconciler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub subscriptionObject
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("parse subscription: %w", err)
	}

	ends := r.now()
	endsPtr := &ends
	err := r.store.UpdateBySubscriptionRef(ctx, sub.ID, repository.SubscriptionUpdate{
		Status: stringPtr(string(subscription.StatusCancelled)),
		EndsAt: &endsPtr,
	})
	if errors.Is(err, repository.ErrNotFound) {
		log.Printf("Deletion for unknown subscription %s (customer %s); ignoring", sub.ID, sub.Customer)
		return nil
	}
	if err != nil {
		return fmt.Errorf("subscription deleted %s (customer %s): %w", sub.ID, sub.Customer, err)
	}

	log.Printf("Subscription %s cancelled", sub.ID)
	return nil
}

// cancelTime converts Stripe's cancel_at epoch into an ends_at value. A zero
// cancel_at leaves ends_at untouched rather than clearing it, so a fixed-term
// window set at checkout survives later status-only events regardless of
// delivery order.
func (r *Reconciler) cancelTime(cancelAt int64) *time.Time {
	if cancelAt <= 0 {
		return nil
	}
	t := time.Unix(cancelAt, 0).UTC()
	return &t
}

// normalizeStatus maps Stripe status spellings onto the stored set. Unknown
// provider statuses pass through unchanged; the paid gate only accepts
// "active", so anything unexpected fails closed.
func normalizeStatus(s string) string {
	if s == "canceled" {
		return string(subscription.StatusCancelled)
	}
	return s
}

func parseUserID(metadata map[string]string) (uint, bool) {
	raw, ok := metadata["user_id"]
	if !ok || raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func stringPtr(s string) *string {
	return &s
}
