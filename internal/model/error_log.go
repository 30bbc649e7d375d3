package model

import (
	"time"

	"gorm.io/datatypes"
)

// ErrorLog is the operational error table. Webhook reconciliation and form
// dispatch failures land here with enough context for manual follow-up.
type ErrorLog struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	UserID       *uint          `json:"user_id" gorm:"index"`
	ErrorType    string         `json:"error_type" gorm:"not null"`
	ErrorMessage string         `json:"error_message" gorm:"not null"`
	Metadata     datatypes.JSON `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}
