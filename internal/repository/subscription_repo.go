package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alexeldeib/claude-taxmate/internal/model"
)

// ErrNotFound is the only "no matching row" signal callers should branch on.
// Everything else coming out of this package is a real store failure.
var ErrNotFound = errors.New("subscription not found")

// SubscriptionUpdate carries the webhook-driven partial updates. Nil fields
// are left untouched; EndsAt uses the double pointer so a webhook can
// explicitly clear the column.
type SubscriptionUpdate struct {
	Status               *string
	StripeSubscriptionID *string
	EndsAt               **time.Time
}

// SubscriptionStore is the persistence boundary for subscription rows. The
// reconciler and the gating middleware depend on this, not on GORM.
type SubscriptionStore interface {
	GetByUserID(ctx context.Context, userID uint) (*model.Subscription, error)
	GetByCustomerRef(ctx context.Context, customerID string) (*model.Subscription, error)
	GetBySubscriptionRef(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	Upsert(ctx context.Context, sub *model.Subscription) error
	UpdateByCustomerRef(ctx context.Context, customerID string, update SubscriptionUpdate) error
	UpdateBySubscriptionRef(ctx context.Context, subscriptionID string, update SubscriptionUpdate) error
}

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetByUserID returns the user's subscription row. Historical data may hold
// more than one row per user; the latest started_at wins so the answer is
// deterministic.
func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID uint) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, translate(err, "get subscription by user %d", userID)
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetByCustomerRef(ctx context.Context, customerID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("stripe_customer_id = ?", customerID).
		Order("started_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, translate(err, "get subscription by customer %s", customerID)
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetBySubscriptionRef(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", subscriptionID).
		First(&sub).Error
	if err != nil {
		return nil, translate(err, "get subscription by ref %s", subscriptionID)
	}
	return &sub, nil
}

// Upsert writes the row keyed on user_id. Webhook deliveries are retried and
// overlap, so this must converge instead of duplicating.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *model.Subscription) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"stripe_customer_id",
			"stripe_subscription_id",
			"plan",
			"status",
			"started_at",
			"ends_at",
			"updated_at",
		}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("upsert subscription for user %d: %w", sub.UserID, err)
	}
	return nil
}

func (r *SubscriptionRepository) UpdateByCustomerRef(ctx context.Context, customerID string, update SubscriptionUpdate) error {
	return r.update(ctx, "stripe_customer_id = ?", customerID, update)
}

func (r *SubscriptionRepository) UpdateBySubscriptionRef(ctx context.Context, subscriptionID string, update SubscriptionUpdate) error {
	return r.update(ctx, "stripe_subscription_id = ?", subscriptionID, update)
}

func (r *SubscriptionRepository) update(ctx context.Context, cond, ref string, update SubscriptionUpdate) error {
	fields := map[string]interface{}{}
	if update.Status != nil {
		fields["status"] = *update.Status
	}
	if update.StripeSubscriptionID != nil {
		fields["stripe_subscription_id"] = *update.StripeSubscriptionID
	}
	if update.EndsAt != nil {
		fields["ends_at"] = *update.EndsAt
	}
	if len(fields) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where(cond, ref).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update subscription %s: %w", ref, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update subscription %s: %w", ref, ErrNotFound)
	}
	return nil
}

func translate(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrNotFound
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
