package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/ports"
)

func seedLink(t *testing.T, repo *LinkRepository, id string, state domain.LinkState) domain.Link {
	t.Helper()
	link := domain.Link{
		LinkID:          id,
		RequestedAmount: decimal.RequireFromString("10"),
		FeeAmount:       decimal.RequireFromString("1"),
		Asset:           "USDC",
		CreatorRef:      "creator-1",
		State:           state,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), link); err != nil {
		t.Fatalf("seed link: %v", err)
	}
	return link
}

func TestCompareAndTransitionStateMismatch(t *testing.T) {
	t.Parallel()

	repos := NewRepositories()
	seedLink(t, repos.Links, "link-1", domain.LinkStateCreated)

	if _, err := repos.Links.CompareAndTransition(context.Background(), "link-1", domain.LinkStateFunded, domain.LinkStateClaiming, ports.LinkUpdates{}, time.Now().UTC()); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on state mismatch, got %v", err)
	}
	if _, err := repos.Links.CompareAndTransition(context.Background(), "missing", domain.LinkStateCreated, domain.LinkStateFunded, ports.LinkUpdates{}, time.Now().UTC()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown link, got %v", err)
	}

	ref := "transfer-a"
	updated, err := repos.Links.CompareAndTransition(context.Background(), "link-1", domain.LinkStateCreated, domain.LinkStateFunded, ports.LinkUpdates{FundingTransferRef: &ref}, time.Now().UTC())
	if err != nil {
		t.Fatalf("valid transition: %v", err)
	}
	if updated.State != domain.LinkStateFunded || updated.FundingTransferRef != "transfer-a" {
		t.Fatalf("transition not applied: %+v", updated)
	}
}

func TestCompareAndTransitionClearsWithEmptyPointer(t *testing.T) {
	t.Parallel()

	repos := NewRepositories()
	link := seedLink(t, repos.Links, "link-1", domain.LinkStateFunded)

	claimant := "claimant-1"
	if _, err := repos.Links.CompareAndTransition(context.Background(), link.LinkID, domain.LinkStateFunded, domain.LinkStateClaiming, ports.LinkUpdates{PendingClaimantRef: &claimant}, time.Now().UTC()); err != nil {
		t.Fatalf("enter claiming: %v", err)
	}

	empty := ""
	done, err := repos.Links.CompareAndTransition(context.Background(), link.LinkID, domain.LinkStateClaiming, domain.LinkStateClaimed, ports.LinkUpdates{ClaimantRef: &claimant, PendingClaimantRef: &empty}, time.Now().UTC())
	if err != nil {
		t.Fatalf("finish claim: %v", err)
	}
	if done.PendingClaimantRef != "" {
		t.Fatalf("expected pending claimant cleared, got %q", done.PendingClaimantRef)
	}
	if done.ClaimantRef != "claimant-1" {
		t.Fatalf("expected claimant recorded, got %q", done.ClaimantRef)
	}
}

func TestCompareAndTransitionConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	repos := NewRepositories()
	seedLink(t, repos.Links, "link-1", domain.LinkStateFunded)

	const racers = 16
	var wg sync.WaitGroup
	winners := make(chan struct{}, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repos.Links.CompareAndTransition(context.Background(), "link-1", domain.LinkStateFunded, domain.LinkStateClaiming, ports.LinkUpdates{}, time.Now().UTC()); err == nil {
				winners <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(winners)

	count := 0
	for range winners {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one winning transition, got %d", count)
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	t.Parallel()

	repos := NewRepositories()
	base := time.Now().UTC()
	for i, id := range []string{"link-1", "link-2", "link-3"} {
		link := domain.Link{
			LinkID:          id,
			RequestedAmount: decimal.RequireFromString("10"),
			Asset:           "USDC",
			CreatorRef:      "creator-1",
			State:           domain.LinkStateCreated,
			CreatedAt:       base.Add(time.Duration(i) * time.Second),
			UpdatedAt:       base,
		}
		if err := repos.Links.Create(context.Background(), link); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	other := domain.Link{LinkID: "link-x", Asset: "USDC", CreatorRef: "creator-2", State: domain.LinkStateCreated, CreatedAt: base, UpdatedAt: base}
	if err := repos.Links.Create(context.Background(), other); err != nil {
		t.Fatalf("seed other: %v", err)
	}

	items, total, err := repos.Links.List(context.Background(), ports.ListQuery{CreatorRef: "creator-1", Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3 for creator-1, got %d", total)
	}
	if len(items) != 2 {
		t.Fatalf("expected page of 2, got %d", len(items))
	}
	if items[0].LinkID != "link-3" {
		t.Fatalf("expected newest first, got %s", items[0].LinkID)
	}

	page2, _, err := repos.Links.List(context.Background(), ports.ListQuery{CreatorRef: "creator-1", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page2) != 1 || page2[0].LinkID != "link-1" {
		t.Fatalf("expected oldest link on page 2, got %+v", page2)
	}
}

func TestOutboxListPendingSkipsSent(t *testing.T) {
	t.Parallel()

	repos := NewRepositories()
	now := time.Now().UTC()
	for _, id := range []string{"rec-1", "rec-2"} {
		if err := repos.Outbox.Enqueue(context.Background(), ports.OutboxRecord{RecordID: id, EventClass: domain.CanonicalEventClassDomain, CreatedAt: now}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if err := repos.Outbox.MarkSent(context.Background(), "rec-1", now); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	pending, err := repos.Outbox.ListPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].RecordID != "rec-2" {
		t.Fatalf("expected only rec-2 pending, got %+v", pending)
	}
}

func TestIdempotencyReserveConflictOnDifferentHash(t *testing.T) {
	t.Parallel()

	repos := NewRepositories()
	expires := time.Now().UTC().Add(time.Hour)
	if err := repos.Idempotency.Reserve(context.Background(), "key-1", "hash-a", expires); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := repos.Idempotency.Reserve(context.Background(), "key-1", "hash-a", expires); err != nil {
		t.Fatalf("same-hash reserve should succeed: %v", err)
	}
	if err := repos.Idempotency.Reserve(context.Background(), "key-1", "hash-b", expires); !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
	}
}

// Reserve must judge an existing reservation by its stored hash alone, never
// by the wall clock; only Get applies expiry, using the caller's clock.
func TestIdempotencyReserveIgnoresWallClock(t *testing.T) {
	t.Parallel()

	repos := NewRepositories()
	past := time.Now().UTC().Add(-time.Hour)
	if err := repos.Idempotency.Reserve(context.Background(), "key-1", "hash-a", past); err != nil {
		t.Fatalf("reserve with past expiry: %v", err)
	}
	if err := repos.Idempotency.Reserve(context.Background(), "key-1", "hash-b", past.Add(2*time.Hour)); !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("expected conflict regardless of real time, got %v", err)
	}

	// The caller's clock drives expiry through Get, which clears the record.
	rec, err := repos.Idempotency.Get(context.Background(), "key-1", past.Add(time.Minute))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected record expired per caller clock, got %+v", rec)
	}
	if err := repos.Idempotency.Reserve(context.Background(), "key-1", "hash-b", past.Add(2*time.Hour)); err != nil {
		t.Fatalf("reserve after expiry cleared: %v", err)
	}
}
