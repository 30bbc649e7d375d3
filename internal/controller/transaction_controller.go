package controller

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/alexeldeib/claude-taxmate/internal/model"
	"github.com/alexeldeib/claude-taxmate/pkg/categorize"
	"github.com/alexeldeib/claude-taxmate/pkg/utils/jwt"
	"github.com/alexeldeib/claude-taxmate/pkg/utils/storage"
)

// Categorizer assigns expense categories; satisfied by the OpenAI client.
type Categorizer interface {
	Configured() bool
	Categorize(ctx context.Context, transactions []categorize.Transaction) ([]categorize.Result, error)
}

type TransactionController struct {
	db          *gorm.DB
	categorizer Categorizer
	archiver    *storage.Archiver
}

// NewTransactionController wires the transaction endpoints. archiver may be
// nil when object storage is not configured; imports then skip archiving.
func NewTransactionController(db *gorm.DB, categorizer Categorizer, archiver *storage.Archiver) *TransactionController {
	return &TransactionController{
		db:          db,
		categorizer: categorizer,
		archiver:    archiver,
	}
}

// ImportCSV ingests a transaction CSV with the header
// date,amount,merchant,category,notes. Malformed rows are skipped and
// reported, not fatal.
func (tc *TransactionController) ImportCSV(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Could not open uploaded file",
		})
	}
	defer src.Close()

	raw, err := io.ReadAll(src)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Could not read uploaded file",
		})
	}

	transactions, skipped, err := parseTransactionCSV(raw, claims.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if len(transactions) > 0 {
		if err := tc.db.Create(&transactions).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not save transactions",
			})
		}
	}

	// Archive the original upload for audit. Best effort.
	if tc.archiver != nil {
		if key, err := tc.archiver.ArchiveCSV(c.Context(), claims.UserID, fileHeader.Filename, raw); err != nil {
			log.Printf("Could not archive CSV for user %d: %v", claims.UserID, err)
		} else {
			log.Printf("Archived CSV import for user %d at %s", claims.UserID, key)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"imported": len(transactions),
		"skipped":  skipped,
	})
}

func parseTransactionCSV(raw []byte, userID uint) ([]model.Transaction, []string, error) {
	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("empty or unreadable CSV file")
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"date", "amount", "merchant"} {
		if _, ok := cols[required]; !ok {
			return nil, nil, fmt.Errorf("CSV is missing required column %q", required)
		}
	}

	var (
		transactions []model.Transaction
		skipped      []string
		line         = 1
	)
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		date, err := parseDate(field(record, cols, "date"))
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(field(record, cols, "amount")), 64)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("line %d: invalid amount", line))
			continue
		}
		merchant := strings.TrimSpace(field(record, cols, "merchant"))
		if merchant == "" {
			skipped = append(skipped, fmt.Sprintf("line %d: missing merchant", line))
			continue
		}

		tx := model.Transaction{
			UserID:   userID,
			Date:     date,
			Amount:   amount,
			Merchant: merchant,
			Notes:    strings.TrimSpace(field(record, cols, "notes")),
		}
		if category := strings.TrimSpace(field(record, cols, "category")); category != "" {
			tx.Category = category
			tx.CategorizationSource = model.CategorizationImport
		}
		transactions = append(transactions, tx)
	}

	return transactions, skipped, nil
}

func field(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01-02", "01/02/2006", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

// ListTransactions returns the caller's transactions, optionally filtered by
// tax year.
func (tc *TransactionController) ListTransactions(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	query := tc.db.Where("user_id = ?", claims.UserID).Order("date DESC")
	if year, err := strconv.Atoi(c.Query("year")); err == nil {
		start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		query = query.Where("date >= ? AND date < ?", start, start.AddDate(1, 0, 0))
	}

	var transactions []model.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch transactions",
		})
	}

	return c.JSON(fiber.Map{"transactions": transactions})
}

type UpdateTransactionInput struct {
	Category string `json:"category"`
	Notes    string `json:"notes"`
}

// UpdateTransaction sets category/notes by hand; a manual category always
// wins over an automatic one.
func (tc *TransactionController) UpdateTransaction(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid transaction ID",
		})
	}

	input := new(UpdateTransactionInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	var tx model.Transaction
	if err := tc.db.Where("id = ? AND user_id = ?", id, claims.UserID).First(&tx).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Transaction not found",
		})
	}

	updates := map[string]interface{}{"notes": input.Notes}
	if input.Category != "" {
		updates["category"] = input.Category
		updates["categorization_source"] = model.CategorizationManual
	}
	if err := tc.db.Model(&tx).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update transaction",
		})
	}

	return c.JSON(fiber.Map{"transaction": tx})
}

func (tc *TransactionController) DeleteTransaction(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid transaction ID",
		})
	}

	res := tc.db.Where("id = ? AND user_id = ?", id, claims.UserID).Delete(&model.Transaction{})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete transaction",
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Transaction not found",
		})
	}

	return c.JSON(fiber.Map{"message": "Transaction deleted"})
}

type CategorizeInput struct {
	TransactionIDs []uint `json:"transaction_ids" validate:"required"`
}

// CategorizeTransactions runs the LLM categorizer over the given
// transactions and persists the suggestions. Manually categorized rows are
// left alone.
func (tc *TransactionController) CategorizeTransactions(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	if !tc.categorizer.Configured() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Categorization is not configured",
		})
	}

	input := new(CategorizeInput)
	if err := c.BodyParser(input); err != nil || len(input.TransactionIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	var transactions []model.Transaction
	if err := tc.db.Where("user_id = ? AND id IN ?", claims.UserID, input.TransactionIDs).Find(&transactions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch transactions",
		})
	}
	if len(transactions) != len(input.TransactionIDs) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Invalid transactions",
		})
	}

	req := make([]categorize.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.CategorizationSource == model.CategorizationManual {
			continue
		}
		req = append(req, categorize.Transaction{
			ID:       tx.ID,
			Merchant: tx.Merchant,
			Amount:   tx.Amount,
			Notes:    tx.Notes,
		})
	}

	results, err := tc.categorizer.Categorize(c.Context(), req)
	if err != nil {
		log.Printf("Categorization failed for user %d: %v", claims.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to categorize transactions",
		})
	}

	for _, r := range results {
		if err := tc.db.Model(&model.Transaction{}).
			Where("id = ? AND user_id = ?", r.ID, claims.UserID).
			Updates(map[string]interface{}{
				"category":              r.Category,
				"categorization_source": model.CategorizationAuto,
			}).Error; err != nil {
			log.Printf("Could not save category for transaction %d: %v", r.ID, err)
		}
	}

	return c.JSON(fiber.Map{"categorized": results})
}

// ExportCSV streams the caller's transactions in the import format.
func (tc *TransactionController) ExportCSV(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var transactions []model.Transaction
	if err := tc.db.Where("user_id = ?", claims.UserID).Order("date ASC").Find(&transactions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch transactions",
		})
	}

	var buf strings.Builder
	writer := csv.NewWriter(&buf)
	writer.Write([]string{"date", "amount", "merchant", "category", "notes"})
	for _, tx := range transactions {
		writer.Write([]string{
			tx.Date.Format("2006-01-02"),
			strconv.FormatFloat(tx.Amount, 'f', 2, 64),
			tx.Merchant,
			tx.Category,
			tx.Notes,
		})
	}
	writer.Flush()

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	return c.SendString(buf.String())
}
