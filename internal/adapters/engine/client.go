// Package engine adapts the external Value Transfer Engine's REST surface to
// the ports.ValueTransferEngine port. The engine moves the actual value and
// runs whatever cryptographic protocol it needs; this adapter only issues
// instructions and classifies outcomes.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/ports"
)

type Config struct {
	BaseURL      string
	Timeout      time.Duration
	RetryMax     int
	RetryBackoff time.Duration
}

type Client struct {
	cfg    Config
	httpc  *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type claimRequest struct {
	LinkID       string          `json:"link_id"`
	Amount       decimal.Decimal `json:"amount"`
	Asset        string          `json:"asset"`
	RecipientRef string          `json:"recipient_ref"`
}

type claimResponse struct {
	ClaimTransferRef string `json:"claim_transfer_ref"`
}

type engineFailure struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type claimStatusResponse struct {
	State            string `json:"state"`
	ClaimTransferRef string `json:"claim_transfer_ref,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// Claim issues the withdrawal instruction. Transient failures are retried
// in-place with doubling backoff; an outcome the adapter cannot determine
// (the context expired mid-call) is reported as indeterminate so the caller
// never mistakes "unknown" for "failed".
func (c *Client) Claim(ctx context.Context, instruction ports.ClaimInstruction) (string, error) {
	body, err := json.Marshal(claimRequest{
		LinkID:       instruction.LinkID,
		Amount:       instruction.Amount,
		Asset:        instruction.Asset,
		RecipientRef: instruction.RecipientRef,
	})
	if err != nil {
		return "", err
	}

	backoff := c.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ports.ErrEngineIndeterminate, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		ref, retryable, err := c.claimOnce(ctx, body)
		if err == nil {
			return ref, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
		c.logger.WarnContext(ctx, "engine claim attempt failed",
			"module", "engine",
			"layer", "adapter",
			"operation", "claim",
			"outcome", "retry",
			"link_id", instruction.LinkID,
			"attempt", attempt+1,
			"error", err,
		)
	}
	return "", lastErr
}

func (c *Client) claimOnce(ctx context.Context, body []byte) (ref string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/claims", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// The engine may still settle this claim after our deadline.
			return "", false, fmt.Errorf("%w: %v", ports.ErrEngineIndeterminate, err)
		}
		return "", true, &ports.EngineError{Code: "unreachable", Reason: err.Error(), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr != nil {
		return "", false, fmt.Errorf("%w: %v", ports.ErrEngineIndeterminate, readErr)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out claimResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", false, fmt.Errorf("decode claim response: %w", err)
		}
		if out.ClaimTransferRef == "" {
			return "", false, fmt.Errorf("%w: engine returned empty claim_transfer_ref", ports.ErrEngineIndeterminate)
		}
		return out.ClaimTransferRef, false, nil
	case resp.StatusCode >= 500:
		return "", true, &ports.EngineError{Code: fmt.Sprintf("http_%d", resp.StatusCode), Reason: failureReason(raw), Retryable: true}
	default:
		return "", false, &ports.EngineError{Code: fmt.Sprintf("http_%d", resp.StatusCode), Reason: failureReason(raw), Retryable: false}
	}
}

func (c *Client) ClaimStatus(ctx context.Context, linkID string) (ports.ClaimLookup, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/claims/"+linkID, nil)
	if err != nil {
		return ports.ClaimLookup{}, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return ports.ClaimLookup{}, &ports.EngineError{Code: "unreachable", Reason: err.Error(), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr != nil {
		return ports.ClaimLookup{}, readErr
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		// No claim record yet: the instruction never reached the engine.
		return ports.ClaimLookup{State: ports.ClaimStateFailed, Reason: "engine has no record of this claim"}, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out claimStatusResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return ports.ClaimLookup{}, fmt.Errorf("decode claim status: %w", err)
		}
		return ports.ClaimLookup{State: out.State, ClaimTransferRef: out.ClaimTransferRef, Reason: out.Reason}, nil
	default:
		return ports.ClaimLookup{}, &ports.EngineError{Code: fmt.Sprintf("http_%d", resp.StatusCode), Reason: failureReason(raw), Retryable: resp.StatusCode >= 500}
	}
}

func failureReason(raw []byte) string {
	var failure engineFailure
	if err := json.Unmarshal(raw, &failure); err == nil && failure.Reason != "" {
		return failure.Reason
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return "engine returned no failure detail"
}
