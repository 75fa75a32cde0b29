// Package memory provides mutex-guarded in-memory repositories. They back
// the dev runtime when no database is configured and every unit test; the
// CompareAndTransition semantics are identical to the postgres adapter's.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/ports"
)

type Repositories struct {
	Links       *LinkRepository
	Idempotency *IdempotencyRepository
	EventDedup  *EventDedupRepository
	Outbox      *OutboxRepository
}

func NewRepositories() *Repositories {
	return &Repositories{
		Links: &LinkRepository{
			links: make(map[string]domain.Link),
		},
		Idempotency: &IdempotencyRepository{
			records: make(map[string]ports.IdempotencyRecord),
		},
		EventDedup: &EventDedupRepository{
			records: make(map[string]dedupRecord),
		},
		Outbox: &OutboxRepository{
			records: make(map[string]ports.OutboxRecord),
		},
	}
}

type LinkRepository struct {
	mu    sync.Mutex
	links map[string]domain.Link
	order []string
}

func (r *LinkRepository) Create(_ context.Context, link domain.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.links[link.LinkID]; ok {
		return domain.ErrConflict
	}
	r.links[link.LinkID] = link
	r.order = append(r.order, link.LinkID)
	return nil
}

func (r *LinkRepository) GetByID(_ context.Context, linkID string) (domain.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[linkID]
	if !ok {
		return domain.Link{}, domain.ErrNotFound
	}
	return link, nil
}

func (r *LinkRepository) List(_ context.Context, query ports.ListQuery) ([]domain.Link, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]domain.Link, 0, len(r.links))
	for _, link := range r.links {
		if query.CreatorRef != "" && link.CreatorRef != query.CreatorRef {
			continue
		}
		items = append(items, link)
	}
	slices.SortFunc(items, func(a, b domain.Link) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	total := len(items)
	if query.Limit <= 0 {
		query.Limit = 20
	}
	if query.Offset < 0 {
		query.Offset = 0
	}
	if query.Offset >= len(items) {
		return []domain.Link{}, total, nil
	}
	end := query.Offset + query.Limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]domain.Link, end-query.Offset)
	copy(out, items[query.Offset:end])
	return out, total, nil
}

// CompareAndTransition applies the update iff the stored state matches
// expected, atomically under the repository mutex. This mirrors the
// conditional-UPDATE semantics of the postgres adapter.
func (r *LinkRepository) CompareAndTransition(_ context.Context, linkID string, expected, next domain.LinkState, updates ports.LinkUpdates, at time.Time) (domain.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[linkID]
	if !ok {
		return domain.Link{}, domain.ErrNotFound
	}
	if link.State != expected {
		return domain.Link{}, domain.ErrConflict
	}
	link.State = next
	if updates.FundingTransferRef != nil {
		link.FundingTransferRef = *updates.FundingTransferRef
	}
	if updates.PendingClaimantRef != nil {
		link.PendingClaimantRef = *updates.PendingClaimantRef
	}
	if updates.ClaimantRef != nil {
		link.ClaimantRef = *updates.ClaimantRef
	}
	if updates.ClaimTransferRef != nil {
		link.ClaimTransferRef = *updates.ClaimTransferRef
	}
	link.UpdatedAt = at
	r.links[linkID] = link
	return link, nil
}

type IdempotencyRepository struct {
	mu      sync.Mutex
	records map[string]ports.IdempotencyRecord
}

func (r *IdempotencyRepository) Get(_ context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[key]
	if !ok {
		return nil, nil
	}
	if now.After(record.ExpiresAt) {
		delete(r.records, key)
		return nil, nil
	}
	clone := record
	clone.ResponseBody = append([]byte(nil), record.ResponseBody...)
	return &clone, nil
}

// Reserve never consults the wall clock: expiry is the caller's concern and
// is applied in Get, same as the postgres adapter's insert-or-compare.
func (r *IdempotencyRepository) Reserve(_ context.Context, key, requestHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.records[key]; ok {
		if existing.RequestHash != requestHash {
			return domain.ErrIdempotencyConflict
		}
		return nil
	}
	r.records[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		ExpiresAt:   expiresAt,
	}
	return nil
}

func (r *IdempotencyRepository) Complete(_ context.Context, key string, responseCode int, responseBody []byte, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[key]
	if !ok {
		return domain.ErrNotFound
	}
	record.ResponseCode = responseCode
	record.ResponseBody = append([]byte(nil), responseBody...)
	r.records[key] = record
	return nil
}

type dedupRecord struct {
	EventID   string
	EventType string
	ExpiresAt time.Time
}

type EventDedupRepository struct {
	mu      sync.Mutex
	records map[string]dedupRecord
}

func (r *EventDedupRepository) IsDuplicate(_ context.Context, eventID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[eventID]
	if !ok {
		return false, nil
	}
	if now.After(record.ExpiresAt) {
		delete(r.records, eventID)
		return false, nil
	}
	return true, nil
}

func (r *EventDedupRepository) MarkProcessed(_ context.Context, eventID, eventType string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[eventID] = dedupRecord{EventID: eventID, EventType: eventType, ExpiresAt: expiresAt}
	return nil
}

type OutboxRepository struct {
	mu      sync.Mutex
	records map[string]ports.OutboxRecord
	order   []string
}

func (r *OutboxRepository) Enqueue(_ context.Context, record ports.OutboxRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[record.RecordID]; ok {
		return domain.ErrConflict
	}
	r.records[record.RecordID] = record
	r.order = append(r.order, record.RecordID)
	return nil
}

func (r *OutboxRepository) ListPending(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := make([]ports.OutboxRecord, 0, limit)
	for _, id := range r.order {
		record, ok := r.records[id]
		if !ok || record.SentAt != nil {
			continue
		}
		out = append(out, record)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkSent(_ context.Context, recordID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[recordID]
	if !ok {
		return domain.ErrNotFound
	}
	record.SentAt = &at
	r.records[recordID] = record
	return nil
}
