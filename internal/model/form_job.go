package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	FormTypeScheduleC = "schedule_c"
	FormType1099      = "1099"

	FormJobQueued     = "queued"
	FormJobProcessing = "processing"
	FormJobDone       = "done"
	FormJobError      = "error"
)

// FormJob tracks one asynchronous IRS form generation request. The actual
// PDF rendering happens in the external worker; this row is the job's state.
type FormJob struct {
	ID           string         `json:"id" gorm:"primaryKey"`
	UserID       uint           `json:"user_id" gorm:"index;not null"`
	Type         string         `json:"type" gorm:"not null"`
	Status       string         `json:"status" gorm:"not null;default:'queued'"`
	ResultURL    string         `json:"result_url"`
	ErrorMessage string         `json:"error_message"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	User User `json:"-" gorm:"foreignKey:UserID"`
}

func ValidFormType(t string) bool {
	return t == FormTypeScheduleC || t == FormType1099
}
