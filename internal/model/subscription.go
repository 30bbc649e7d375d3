package model

import (
	"time"

	"gorm.io/gorm"
)

// Subscription holds the single billing record for a user. Rows are only
// ever created or updated by checkout and webhook reconciliation, never
// deleted; cancellation is a status change.
type Subscription struct {
	gorm.Model
	UserID               uint       `json:"user_id" gorm:"uniqueIndex;not null"`
	StripeCustomerID     string     `json:"stripe_customer_id" gorm:"index"`
	StripeSubscriptionID string     `json:"stripe_subscription_id" gorm:"index"`
	Plan                 string     `json:"plan" gorm:"not null;default:'free_trial'"`
	Status               string     `json:"status" gorm:"not null;default:'active'"`
	StartedAt            time.Time  `json:"started_at"`
	EndsAt               *time.Time `json:"ends_at"`

	// Relations
	User User `json:"-" gorm:"foreignKey:UserID"`
}
