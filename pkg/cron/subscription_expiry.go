package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/alexeldeib/claude-taxmate/internal/model"
	"github.com/alexeldeib/claude-taxmate/pkg/subscription"
)

// StartSubscriptionExpirySweep runs a daily job that moves lapsed fixed-term
// subscriptions (free trials, seasonal plans) to past_due. Stripe-managed
// cancellations arrive through webhooks; this covers rows Stripe never
// touches again.
func StartSubscriptionExpirySweep(db *gorm.DB) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc("0 9 * * *", func() {
		sweepExpiredSubscriptions(db)
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}

func sweepExpiredSubscriptions(db *gorm.DB) {
	log.Println("Checking for lapsed subscriptions...")

	res := db.Model(&model.Subscription{}).
		Where("status = ? AND ends_at IS NOT NULL AND ends_at < ?", subscription.StatusActive, time.Now()).
		Update("status", subscription.StatusPastDue)
	if res.Error != nil {
		log.Printf("Error sweeping lapsed subscriptions: %v", res.Error)
		return
	}

	if res.RowsAffected > 0 {
		log.Printf("Marked %d lapsed subscriptions past_due", res.RowsAffected)
	}
}
