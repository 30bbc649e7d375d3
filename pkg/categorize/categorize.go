package categorize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Categories is the fixed expense category set used on IRS Schedule C
// mapping. Model output outside this set falls back to misc.
var Categories = []string{
	"meals",
	"travel",
	"software",
	"home_office",
	"equipment",
	"supplies",
	"professional_services",
	"advertising",
	"misc",
}

const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

type Transaction struct {
	ID       uint    `json:"id"`
	Merchant string  `json:"merchant"`
	Amount   float64 `json:"amount"`
	Notes    string  `json:"notes,omitempty"`
}

type Result struct {
	ID       uint   `json:"id"`
	Category string `json:"category"`
}

// Client calls the OpenAI chat completions API to categorize transactions.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

// NewClientWithEndpoint is used by tests to point at a stub server.
func NewClientWithEndpoint(apiKey, endpoint string) *Client {
	c := NewClient(apiKey)
	c.endpoint = endpoint
	return c
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Categorize assigns a category to each transaction. Every input ID appears
// exactly once in the result; anything the model missed or mislabelled comes
// back as misc.
func (c *Client) Categorize(ctx context.Context, transactions []Transaction) ([]Result, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("openai API key is not configured")
	}
	if len(transactions) == 0 {
		return nil, nil
	}

	var lines []string
	for _, t := range transactions {
		notes := t.Notes
		if notes == "" {
			notes = "none"
		}
		lines = append(lines, fmt.Sprintf("ID: %d, Merchant: %s, Amount: $%.2f, Notes: %s", t.ID, t.Merchant, t.Amount, notes))
	}

	prompt := fmt.Sprintf(`Categorize these business transactions into the following categories: %s.

Transactions:
%s

Return a JSON object with a "transactions" array of objects containing 'id' and 'category' for each transaction. Use the same IDs from the input.`,
		strings.Join(Categories, ", "), strings.Join(lines, "\n"))

	body, err := json.Marshal(chatRequest{
		Model:          "gpt-3.5-turbo",
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    0.3,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("openai request failed with status %d: %s", resp.StatusCode, raw)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	var parsed struct {
		Transactions []Result `json:"transactions"`
	}
	content := chat.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}

	byID := make(map[uint]string, len(parsed.Transactions))
	for _, r := range parsed.Transactions {
		byID[r.ID] = r.Category
	}

	results := make([]Result, 0, len(transactions))
	for _, t := range transactions {
		category := byID[t.ID]
		if !validCategory(category) {
			category = "misc"
		}
		results = append(results, Result{ID: t.ID, Category: category})
	}
	return results, nil
}

func validCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
