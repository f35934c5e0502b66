package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	sqlite "github.com/banshee-data/floorplan.report/internal/floorplan/storage/sqlite"
	"github.com/banshee-data/floorplan.report/internal/httputil"
)

// Client talks to a running monitor. The CLI uses it to submit a scan to a
// shared server instead of generating locally.
type Client struct {
	baseURL string
	http    httputil.HTTPClient
}

// NewClient creates a client for baseURL, e.g. "http://localhost:8088".
// A nil hc uses http.DefaultClient.
func NewClient(baseURL string, hc httputil.HTTPClient) *Client {
	if hc == nil {
		hc = httputil.NewStandardClient(nil)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// APIError is a non-2xx reply carrying the server's error message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("monitor returned %d: %s", e.StatusCode, e.Message)
}

// Generate posts req to /api/floorplan.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var out GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/api/floorplan", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Runs lists stored runs, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]sqlite.RunSummary, error) {
	path := "/api/runs"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var out []sqlite.RunSummary
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
