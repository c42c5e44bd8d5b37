package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kartoza/attention-is-key/internal/attention"
	"github.com/kartoza/attention-is-key/internal/models"
)

// maxResponseBytes caps the body read from the backend
const maxResponseBytes = 32 << 20

// Client talks to a remote model-serving backend that implements the
// /analyze contract
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client with a request timeout
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// HealthCheck pings the backend's /health endpoint
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", attention.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check failed: %s", attention.ErrBackendUnavailable, resp.Status)
	}
	return nil
}

// Analyze validates the request locally, then posts it to the backend.
// Transport failures, timeouts, error statuses and malformed bodies are all
// reported as ErrBackendUnavailable.
func (c *Client) Analyze(ctx context.Context, req attention.Request) (*attention.Result, error) {
	if _, err := attention.Validate(req); err != nil {
		return nil, err
	}

	body, err := json.Marshal(models.AnalyzeRequest{
		Lyrics:       req.Text,
		TargetPhrase: req.TargetPhrase,
		Model:        req.ModelID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", attention.ErrBackendUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", attention.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", attention.ErrBackendUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.Status, data)
	}

	var out models.AnalyzeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", attention.ErrBackendUnavailable, err)
	}
	res, err := out.ToResult()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", attention.ErrBackendUnavailable, err)
	}
	if len(res.Layers) != attention.LayerCount {
		return nil, fmt.Errorf("%w: backend returned %d layers, want %d",
			attention.ErrBackendUnavailable, len(res.Layers), attention.LayerCount)
	}
	return res, nil
}

// statusError maps an error body back to a sentinel where the backend
// reports one of the request errors
func statusError(status string, body []byte) error {
	var e models.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		switch e.Code {
		case attention.Code(attention.ErrInvalidModel):
			return fmt.Errorf("%w: %s", attention.ErrInvalidModel, e.Error)
		case attention.Code(attention.ErrEmptyInput):
			return fmt.Errorf("%w: %s", attention.ErrEmptyInput, e.Error)
		}
		if e.Error != "" {
			return fmt.Errorf("%w: %s: %s", attention.ErrBackendUnavailable, status, e.Error)
		}
	}
	return fmt.Errorf("%w: %s", attention.ErrBackendUnavailable, status)
}
