package task

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

const clickUpBaseURL = "https://api.clickup.com/api/v2"

// ClickUp creates tasks via the ClickUp v2 API. The destination is a list ID.
type ClickUp struct {
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client
}

// NewClickUp returns a ClickUp client with production defaults.
func NewClickUp() *ClickUp {
	return &ClickUp{
		BaseURL:    clickUpBaseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type clickUpTaskRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"markdown_description"`
	Status      string   `json:"status,omitempty"`
	Priority    int      `json:"priority,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type clickUpTaskResponse struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// CreateTask creates a task in the given ClickUp list. No internal retry.
func (c *ClickUp) CreateTask(ctx context.Context, token, listID string, p Payload) (Created, error) {
	body, err := json.Marshal(clickUpTaskRequest{
		Name:        p.Name,
		Description: p.Description,
		Status:      p.Status,
		Priority:    p.Priority,
		Tags:        p.Tags,
	})
	if err != nil {
		return Created{}, fmt.Errorf("clickup: marshal task: %w", err)
	}

	url := fmt.Sprintf("%s/list/%s/task", strings.TrimSuffix(c.BaseURL, "/"), listID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Created{}, fmt.Errorf("clickup: build request: %w", err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Created{}, &APIError{Service: "clickup", Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Created{}, &APIError{Service: "clickup", StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Created{}, &APIError{
			Service:    "clickup",
			StatusCode: resp.StatusCode,
			Message:    normalizeClickUpError(raw),
		}
	}

	var created clickUpTaskResponse
	if err := json.Unmarshal(raw, &created); err != nil {
		return Created{}, &APIError{Service: "clickup", StatusCode: resp.StatusCode, Message: "unparseable response body"}
	}
	return Created{ID: created.ID, URL: created.URL, Name: created.Name}, nil
}

func (c *ClickUp) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// normalizeClickUpError extracts a message from ClickUp's error body, which
// uses "err" but occasionally "error" depending on the endpoint.
func normalizeClickUpError(raw []byte) string {
	var body struct {
		Err   string `json:"err"`
		Error string `json:"error"`
		ECode string `json:"ECODE"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		msg := body.Err
		if msg == "" {
			msg = body.Error
		}
		if msg != "" {
			if body.ECode != "" {
				return fmt.Sprintf("%s (%s)", msg, body.ECode)
			}
			return msg
		}
	}
	if len(raw) == 0 {
		return "empty error response"
	}
	return strings.TrimSpace(string(raw))
}
