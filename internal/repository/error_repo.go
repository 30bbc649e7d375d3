package repository

import (
	"context"
	"encoding/json"
	"log"

	"gorm.io/gorm"

	"github.com/alexeldeib/claude-taxmate/internal/model"
)

// ErrorRecorder persists operational failures for manual reconciliation.
// Recording is best-effort: a failure to write the error row is only logged,
// never propagated, so it can't mask the original problem.
type ErrorRecorder interface {
	Record(ctx context.Context, userID *uint, errType, message string, metadata map[string]interface{})
}

type ErrorLogRepository struct {
	db *gorm.DB
}

func NewErrorLogRepository(db *gorm.DB) *ErrorLogRepository {
	return &ErrorLogRepository{db: db}
}

func (r *ErrorLogRepository) Record(ctx context.Context, userID *uint, errType, message string, metadata map[string]interface{}) {
	row := model.ErrorLog{
		UserID:       userID,
		ErrorType:    errType,
		ErrorMessage: message,
	}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			row.Metadata = raw
		}
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		log.Printf("Could not record error log (%s): %v", errType, err)
	}
}
