package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	CategorizationManual = "manual"
	CategorizationAuto   = "auto"
	CategorizationImport = "import"
)

type Transaction struct {
	gorm.Model
	UserID               uint      `json:"user_id" gorm:"index;not null"`
	Date                 time.Time `json:"date" gorm:"not null"`
	Amount               float64   `json:"amount" gorm:"not null"`
	Merchant             string    `json:"merchant" gorm:"not null"`
	Category             string    `json:"category"`
	Notes                string    `json:"notes"`
	CategorizationSource string    `json:"categorization_source"`

	// Relations
	User User `json:"-" gorm:"foreignKey:UserID"`
}
