package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GenerateRequest is the job handed to the external form-generation worker.
type GenerateRequest struct {
	JobID    string `json:"jobId"`
	UserID   uint   `json:"userId"`
	FormType string `json:"formType"`
}

// Client talks to the PDF worker service. Requests carry the shared service
// key as a bearer credential.
type Client struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

func NewClient(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// GenerateForm asks the worker to render the form for a job. The worker
// reports completion back through the job callback endpoint.
func (c *Client) GenerateForm(ctx context.Context, reqBody GenerateRequest) error {
	if !c.Configured() {
		return fmt.Errorf("worker URL is not configured")
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-form", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("worker request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("worker request failed with status %d: %s", resp.StatusCode, raw)
	}
	return nil
}
