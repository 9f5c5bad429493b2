// Package engage provides the proactive engagement scheduler and its decision
// endpoint client.
package engage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ErrCheckFailed indicates the decision endpoint could not be consulted; the
// cycle is skipped and never retried early.
var ErrCheckFailed = errors.New("proactive check failed")

// CheckResult is the decision endpoint's answer for one cycle.
type CheckResult struct {
	ShouldSend bool            `json:"should_send"`
	Message    string          `json:"message,omitempty"`
	Context    json.RawMessage `json:"context,omitempty"` // opaque to this core
	// NextCheckAfter is the endpoint-provided cooldown before the next check.
	NextCheckAfter time.Duration `json:"-"`
	CheckedAt      time.Time     `json:"checked_at"`
}

// Checker is the external decision contract.
type Checker interface {
	Check(ctx context.Context, userID string) (*CheckResult, error)
}

// ClientConfig configures the decision endpoint client.
type ClientConfig struct {
	ServerURL string        `json:"server_url"`
	Timeout   time.Duration `json:"timeout"`
}

// Client consults the companion backend's proactive care endpoint.
type Client struct {
	cfg    ClientConfig
	client *http.Client
	logger zerolog.Logger
}

// NewClient creates a decision endpoint client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "engage-client").Logger(),
	}
}

type checkRequest struct {
	UserID string `json:"user_id"`
}

type checkResponse struct {
	ShouldSend        bool            `json:"should_send"`
	Message           string          `json:"message"`
	Context           json.RawMessage `json:"context"`
	NextCheckAfterSec int             `json:"next_check_after_sec"`
}

// Check asks the endpoint whether to send an unsolicited message now.
func (c *Client) Check(ctx context.Context, userID string) (*CheckResult, error) {
	body, err := json.Marshal(checkRequest{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.ServerURL+"/api/v1/care/check", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%w: status %d: %s", ErrCheckFailed, resp.StatusCode, msg)
	}

	var parsed checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrCheckFailed, err)
	}

	return &CheckResult{
		ShouldSend:     parsed.ShouldSend,
		Message:        parsed.Message,
		Context:        parsed.Context,
		NextCheckAfter: time.Duration(parsed.NextCheckAfterSec) * time.Second,
		CheckedAt:      time.Now(),
	}, nil
}
