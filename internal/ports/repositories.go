package ports

import (
	"context"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/domain"
)

type ListQuery struct {
	CreatorRef string
	Limit      int
	Offset     int
}

// LinkUpdates carries the field changes a transition is allowed to apply.
// Nil pointers leave the stored value untouched; a pointer to the empty
// string clears it.
type LinkUpdates struct {
	FundingTransferRef *string
	PendingClaimantRef *string
	ClaimantRef        *string
	ClaimTransferRef   *string
}

// LinkRepository owns the durable Link rows. CompareAndTransition is the sole
// mutation primitive after creation: apply iff the stored state equals
// expected, else report domain.ErrConflict without modifying anything. Every
// state transition in the service goes through it, which is what makes the
// reconciler and the claim coordinator race-free without locks.
type LinkRepository interface {
	Create(ctx context.Context, link domain.Link) error
	GetByID(ctx context.Context, linkID string) (domain.Link, error)
	List(ctx context.Context, query ListQuery) ([]domain.Link, int, error)
	CompareAndTransition(ctx context.Context, linkID string, expected, next domain.LinkState, updates LinkUpdates, at time.Time) (domain.Link, error)
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string, now time.Time) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}

type EventDedupRepository interface {
	IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error
}

type OutboxRecord struct {
	RecordID   string
	EventClass string
	Envelope   contracts.EventEnvelope
	CreatedAt  time.Time
	SentAt     *time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, record OutboxRecord) error
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, recordID string, at time.Time) error
}
