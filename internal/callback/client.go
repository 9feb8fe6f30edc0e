// Package callback reports finished runs back to the API.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/idtoken"

	"github.com/octobees/leads-generator/worker/internal/crawl"
)

// Client posts run reports to a fixed URL.
type Client struct {
	client *http.Client
	url    string
}

// NewClient builds a callback client. With a nil http client it tries an ID
// token client whose audience is the callback URL, for Cloud Run to Cloud Run
// calls, and falls back to a plain client.
func NewClient(ctx context.Context, client *http.Client, callbackURL string) (*Client, error) {
	callbackURL = strings.TrimSpace(callbackURL)
	if callbackURL == "" {
		return nil, fmt.Errorf("callback url must not be empty")
	}
	if client == nil {
		idc, err := idtoken.NewClient(ctx, callbackURL)
		if err != nil {
			client = &http.Client{Timeout: 10 * time.Second}
		} else {
			idc.Timeout = 10 * time.Second
			client = idc
		}
	}
	return &Client{client: client, url: callbackURL}, nil
}

// Notify posts the report as {"data": report}.
func (c *Client) Notify(ctx context.Context, report crawl.Report) error {
	body, err := json.Marshal(map[string]any{"data": report})
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Batch-ID", report.BatchID)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("callback error: %s", extractError(resp.Body))
	}
	return nil
}

func extractError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return "api returned an error"
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return string(data)
}

var _ crawl.Notifier = (*Client)(nil)
