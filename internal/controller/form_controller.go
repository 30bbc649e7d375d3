package controller

import (
	"context"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alexeldeib/claude-taxmate/internal/model"
	"github.com/alexeldeib/claude-taxmate/internal/repository"
	"github.com/alexeldeib/claude-taxmate/pkg/utils/jwt"
	"github.com/alexeldeib/claude-taxmate/pkg/worker"
)

// FormWorker dispatches generation jobs to the external PDF worker.
type FormWorker interface {
	Configured() bool
	GenerateForm(ctx context.Context, req worker.GenerateRequest) error
}

type FormController struct {
	db         *gorm.DB
	worker     FormWorker
	errors     repository.ErrorRecorder
	serviceKey string
}

func NewFormController(db *gorm.DB, formWorker FormWorker, errors repository.ErrorRecorder, serviceKey string) *FormController {
	return &FormController{
		db:         db,
		worker:     formWorker,
		errors:     errors,
		serviceKey: serviceKey,
	}
}

type GenerateFormInput struct {
	FormType string `json:"form_type" validate:"required"`
}

// GenerateForm creates a job row and hands it to the worker. The route is
// wrapped in the paid-plan gate; by the time this runs the caller is allowed
// to generate forms.
func (fc *FormController) GenerateForm(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(GenerateFormInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}
	if !model.ValidFormType(input.FormType) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown form type",
		})
	}

	if !fc.worker.Configured() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Form generation is not configured",
		})
	}

	job := model.FormJob{
		ID:     uuid.New().String(),
		UserID: claims.UserID,
		Type:   input.FormType,
		Status: model.FormJobProcessing,
	}
	if err := fc.db.Create(&job).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create form job",
		})
	}

	err := fc.worker.GenerateForm(c.Context(), worker.GenerateRequest{
		JobID:    job.ID,
		UserID:   claims.UserID,
		FormType: input.FormType,
	})
	if err != nil {
		log.Printf("Worker dispatch failed for job %s: %v", job.ID, err)
		fc.errors.Record(c.Context(), &job.UserID, "form_dispatch", err.Error(), map[string]interface{}{
			"job_id":    job.ID,
			"form_type": input.FormType,
		})
		fc.db.Model(&job).Updates(map[string]interface{}{
			"status":        model.FormJobError,
			"error_message": "Failed to start form generation",
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate form",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job": job})
}

// ListFormJobs returns the caller's jobs, newest first.
func (fc *FormController) ListFormJobs(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var jobs []model.FormJob
	if err := fc.db.Where("user_id = ?", claims.UserID).Order("created_at DESC").Find(&jobs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch form jobs",
		})
	}

	return c.JSON(fiber.Map{"jobs": jobs})
}

type JobCallbackInput struct {
	Status       string `json:"status" validate:"required"`
	ResultURL    string `json:"result_url"`
	ErrorMessage string `json:"error_message"`
}

// UpdateFormJob is the worker's completion callback, authenticated with the
// shared service key rather than a user token.
func (fc *FormController) UpdateFormJob(c *fiber.Ctx) error {
	token := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	if fc.serviceKey == "" || token != fc.serviceKey {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid service credential",
		})
	}

	input := new(JobCallbackInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}
	if input.Status != model.FormJobDone && input.Status != model.FormJobError {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown job status",
		})
	}

	res := fc.db.Model(&model.FormJob{}).
		Where("id = ?", c.Params("id")).
		Updates(map[string]interface{}{
			"status":        input.Status,
			"result_url":    input.ResultURL,
			"error_message": input.ErrorMessage,
		})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update form job",
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Form job not found",
		})
	}

	return c.JSON(fiber.Map{"message": "Job updated"})
}
