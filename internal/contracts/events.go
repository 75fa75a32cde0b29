package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventClass       string          `json:"event_class,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

// TransferSettledPayload is what the engine-side notifier emits when a link's
// funding deposit settles. Delivered at-least-once, possibly through more
// than one channel; (link_id, transfer_ref) is the idempotency key.
type TransferSettledPayload struct {
	LinkID      string `json:"link_id"`
	TransferRef string `json:"transfer_ref"`
	SettledAt   string `json:"settled_at"`
}

type LinkCreatedPayload struct {
	LinkID          string `json:"link_id"`
	CreatorRef      string `json:"creator_ref,omitempty"`
	Asset           string `json:"asset"`
	RequestedAmount string `json:"requested_amount"`
	FeeAmount       string `json:"fee_amount"`
	CreatedAt       string `json:"created_at"`
}

type LinkFundedPayload struct {
	LinkID      string `json:"link_id"`
	TransferRef string `json:"transfer_ref"`
	FundedAt    string `json:"funded_at"`
}

type LinkClaimedPayload struct {
	LinkID            string `json:"link_id"`
	ClaimantRef       string `json:"claimant_ref"`
	ClaimTransferRef  string `json:"claim_transfer_ref"`
	DeliverableAmount string `json:"deliverable_amount"`
	ClaimedAt         string `json:"claimed_at"`
}

type LinkClaimFailedPayload struct {
	LinkID   string `json:"link_id"`
	Reason   string `json:"reason"`
	FailedAt string `json:"failed_at"`
}

type ClaimAttemptedPayload struct {
	LinkID            string `json:"link_id"`
	ClaimantRef       string `json:"claimant_ref"`
	DeliverableAmount string `json:"deliverable_amount"`
	AttemptedAt       string `json:"attempted_at"`
}

type DLQRecord struct {
	OriginalEvent EventEnvelope `json:"original_event"`
	ErrorSummary  string        `json:"error_summary"`
	RetryCount    int           `json:"retry_count"`
	FirstSeenAt   time.Time     `json:"first_seen_at"`
	LastErrorAt   time.Time     `json:"last_error_at"`
	SourceTopic   string        `json:"source_topic,omitempty"`
	TraceID       string        `json:"trace_id,omitempty"`
}
