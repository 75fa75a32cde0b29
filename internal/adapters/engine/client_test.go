package engine

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/ports"
)

func testInstruction() ports.ClaimInstruction {
	return ports.ClaimInstruction{
		LinkID:       "link-1",
		Amount:       decimal.RequireFromString("94"),
		Asset:        "USDC",
		RecipientRef: "claimant-1",
	}
}

func TestClaimRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"claim_transfer_ref":"claim-xyz"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, RetryMax: 2, RetryBackoff: time.Millisecond}, nil)
	ref, err := client.Claim(context.Background(), testInstruction())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if ref != "claim-xyz" {
		t.Fatalf("expected claim-xyz, got %s", ref)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", hits.Load())
	}
}

func TestClaimTerminalOn4xx(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"recipient_invalid","reason":"unknown recipient"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, RetryMax: 3, RetryBackoff: time.Millisecond}, nil)
	_, err := client.Claim(context.Background(), testInstruction())
	var engineErr *ports.EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("expected EngineError, got %v", err)
	}
	if engineErr.Retryable {
		t.Fatal("4xx must be terminal, not retryable")
	}
	if engineErr.Reason != "unknown recipient" {
		t.Fatalf("expected engine reason surfaced, got %q", engineErr.Reason)
	}
	if hits.Load() != 1 {
		t.Fatalf("terminal failure must not be retried, got %d attempts", hits.Load())
	}
}

func TestClaimExhaustedRetriesStaysRetryable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, RetryMax: 2, RetryBackoff: time.Millisecond}, nil)
	_, err := client.Claim(context.Background(), testInstruction())
	var engineErr *ports.EngineError
	if !errors.As(err, &engineErr) || !engineErr.Retryable {
		t.Fatalf("expected retryable EngineError after exhausting retries, got %v", err)
	}
}

func TestClaimDeadlineReportsIndeterminate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can observe the client disconnect and
		// cancel the request context; otherwise Close deadlocks below.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, RetryMax: 1, RetryBackoff: time.Millisecond}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Claim(ctx, testInstruction())
	if !errors.Is(err, ports.ErrEngineIndeterminate) {
		t.Fatalf("expected ErrEngineIndeterminate on deadline, got %v", err)
	}
}

func TestClaimStatusMapsResponses(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/claims/link-settled":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"state":"settled","claim_transfer_ref":"claim-abc"}`))
		case "/v1/claims/link-unknown":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, nil)

	settled, err := client.ClaimStatus(context.Background(), "link-settled")
	if err != nil {
		t.Fatalf("settled lookup: %v", err)
	}
	if settled.State != ports.ClaimStateSettled || settled.ClaimTransferRef != "claim-abc" {
		t.Fatalf("unexpected settled lookup: %+v", settled)
	}

	unknown, err := client.ClaimStatus(context.Background(), "link-unknown")
	if err != nil {
		t.Fatalf("unknown lookup: %v", err)
	}
	if unknown.State != ports.ClaimStateFailed {
		t.Fatalf("expected missing claim reported as failed, got %+v", unknown)
	}

	_, err = client.ClaimStatus(context.Background(), "link-error")
	var engineErr *ports.EngineError
	if !errors.As(err, &engineErr) || !engineErr.Retryable {
		t.Fatalf("expected retryable EngineError on 5xx lookup, got %v", err)
	}
}
