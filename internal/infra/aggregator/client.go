package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"speaking-assessment-service/internal/domain"
)

// Client posts result snapshots to a remote aggregator (POST {baseURL}/results).
type Client struct {
	url  string
	http *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: baseURL + "/results", http: httpClient}
}

// Submit implements app.ResultSink. Non-2xx responses are errors.
func (c *Client) Submit(ctx context.Context, submission domain.ResultSubmission) error {
	body, err := json.Marshal(submission)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("submit result: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("submit result: unexpected status %d", resp.StatusCode)
	}
	return nil
}
