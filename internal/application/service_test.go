package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	engineadapter "github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/adapters/engine"
	eventadapter "github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/adapters/events"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/ports"
)

type fixture struct {
	svc    *application.Service
	repos  *memory.Repositories
	engine *engineadapter.Mock
	domain *eventadapter.MemoryDomainPublisher
}

func newFixture(cfg application.Config) *fixture {
	repos := memory.NewRepositories()
	mock := engineadapter.NewMock()
	published := eventadapter.NewMemoryDomainPublisher()
	svc := application.NewService(application.Dependencies{
		Config:       cfg,
		Links:        repos.Links,
		Idempotency:  repos.Idempotency,
		EventDedup:   repos.EventDedup,
		Outbox:       repos.Outbox,
		Engine:       mock,
		DomainEvents: published,
		Analytics:    eventadapter.NewMemoryAnalyticsPublisher(),
		DLQ:          eventadapter.NewLoggingDLQPublisher(),
	})
	return &fixture{svc: svc, repos: repos, engine: mock, domain: published}
}

func creatorActor(key string) application.Actor {
	return application.Actor{SubjectID: "creator-1", Role: "user", IdempotencyKey: key}
}

func (f *fixture) createLink(t *testing.T, amount, fee string) domain.Link {
	t.Helper()
	feeAmount := decimal.RequireFromString(fee)
	link, err := f.svc.CreateLink(context.Background(), creatorActor("link:create:"+amount+":"+fee), application.CreateLinkInput{
		Amount:     decimal.RequireFromString(amount),
		Asset:      "USDC",
		CreatorRef: "creator-1",
		FeeAmount:  &feeAmount,
	})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	return link
}

func (f *fixture) fundLink(t *testing.T, linkID, transferRef string) domain.Link {
	t.Helper()
	out, err := f.svc.ReportFunding(context.Background(), application.Actor{SubjectID: "notifier", Role: "system"}, application.ReportFundingInput{
		LinkID:      linkID,
		TransferRef: transferRef,
	})
	if err != nil {
		t.Fatalf("report funding: %v", err)
	}
	return out.Link
}

func TestCreateLinkIdempotentReplay(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	actor := creatorActor("link:create:replay")
	input := application.CreateLinkInput{
		Amount:     decimal.RequireFromString("100"),
		Asset:      "USDC",
		CreatorRef: "creator-1",
	}

	first, err := f.svc.CreateLink(context.Background(), actor, input)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := f.svc.CreateLink(context.Background(), actor, input)
	if err != nil {
		t.Fatalf("replay create: %v", err)
	}
	if first.LinkID != second.LinkID {
		t.Fatalf("expected idempotent replay to return the same link, got %s and %s", first.LinkID, second.LinkID)
	}

	differentInput := input
	differentInput.Amount = decimal.RequireFromString("200")
	if _, err := f.svc.CreateLink(context.Background(), actor, differentInput); !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict for mutated payload, got %v", err)
	}
}

func TestCreateLinkRequiresIdempotencyKey(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	_, err := f.svc.CreateLink(context.Background(), application.Actor{SubjectID: "creator-1", Role: "user"}, application.CreateLinkInput{
		Amount: decimal.RequireFromString("10"),
	})
	if !errors.Is(err, domain.ErrIdempotencyRequired) {
		t.Fatalf("expected ErrIdempotencyRequired, got %v", err)
	}
}

func TestCreateLinkDefaultFeeFromBps(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{FeeBps: 600})
	link, err := f.svc.CreateLink(context.Background(), creatorActor("link:create:bps"), application.CreateLinkInput{
		Amount:     decimal.RequireFromString("100"),
		CreatorRef: "creator-1",
	})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	if !link.FeeAmount.Equal(decimal.RequireFromString("6")) {
		t.Fatalf("expected default fee 6 at 600 bps, got %s", link.FeeAmount)
	}
	if !link.DeliverableAmount().Equal(decimal.RequireFromString("94")) {
		t.Fatalf("expected deliverable 94, got %s", link.DeliverableAmount())
	}
}

func TestReportFundingIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	link := f.createLink(t, "50", "1")

	notifier := application.Actor{SubjectID: "notifier", Role: "system"}
	first, err := f.svc.ReportFunding(context.Background(), notifier, application.ReportFundingInput{
		LinkID:      link.LinkID,
		TransferRef: "transfer-a",
	})
	if err != nil {
		t.Fatalf("first funding report: %v", err)
	}
	if first.Status != application.FundingApplied {
		t.Fatalf("expected applied, got %s", first.Status)
	}
	if first.Link.State != domain.LinkStateFunded {
		t.Fatalf("expected funded state, got %s", first.Link.State)
	}

	second, err := f.svc.ReportFunding(context.Background(), notifier, application.ReportFundingInput{
		LinkID:      link.LinkID,
		TransferRef: "transfer-a",
	})
	if err != nil {
		t.Fatalf("duplicate funding report: %v", err)
	}
	if second.Status != application.FundingAlreadyApplied {
		t.Fatalf("expected already_applied, got %s", second.Status)
	}
	if second.Link.FundingTransferRef != "transfer-a" {
		t.Fatalf("expected stored ref unchanged, got %s", second.Link.FundingTransferRef)
	}
}

func TestReportFundingDivergentRefConflicts(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	link := f.createLink(t, "50", "1")
	f.fundLink(t, link.LinkID, "transfer-a")

	_, err := f.svc.ReportFunding(context.Background(), application.Actor{SubjectID: "notifier", Role: "system"}, application.ReportFundingInput{
		LinkID:      link.LinkID,
		TransferRef: "transfer-b",
	})
	if !errors.Is(err, domain.ErrFundingDiverged) {
		t.Fatalf("expected ErrFundingDiverged, got %v", err)
	}

	stored, err := f.repos.Links.GetByID(context.Background(), link.LinkID)
	if err != nil {
		t.Fatalf("get link: %v", err)
	}
	if stored.FundingTransferRef != "transfer-a" {
		t.Fatalf("expected first ref kept, got %s", stored.FundingTransferRef)
	}
	if stored.State != domain.LinkStateFunded {
		t.Fatalf("expected funded state preserved, got %s", stored.State)
	}
}

func TestClaimBeforeFundingRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	link := f.createLink(t, "50", "1")

	_, err := f.svc.ClaimLink(context.Background(), application.Actor{SubjectID: "claimant-1", Role: "user"}, application.ClaimLinkInput{
		LinkID:      link.LinkID,
		ClaimantRef: "claimant-1",
	})
	if !errors.Is(err, domain.ErrNotFunded) {
		t.Fatalf("expected ErrNotFunded, got %v", err)
	}
	if len(f.engine.Calls()) != 0 {
		t.Fatal("engine must not be called before funding")
	}
	stored, _ := f.repos.Links.GetByID(context.Background(), link.LinkID)
	if stored.State != domain.LinkStateCreated {
		t.Fatalf("expected state unchanged, got %s", stored.State)
	}
}

func TestClaimDeliversAmountMinusFee(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	link := f.createLink(t, "100", "6")
	f.fundLink(t, link.LinkID, "transfer-a")

	out, err := f.svc.ClaimLink(context.Background(), application.Actor{SubjectID: "claimant-1", Role: "user"}, application.ClaimLinkInput{
		LinkID:      link.LinkID,
		ClaimantRef: "claimant-1",
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if out.Status != application.ClaimStatusClaimed {
		t.Fatalf("expected claimed, got %s", out.Status)
	}
	if !out.DeliverableAmount.Equal(decimal.RequireFromString("94")) {
		t.Fatalf("expected deliverable 94, got %s", out.DeliverableAmount)
	}
	calls := f.engine.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one engine call, got %d", len(calls))
	}
	if !calls[0].Amount.Equal(decimal.RequireFromString("94")) {
		t.Fatalf("engine must receive the post-fee amount, got %s", calls[0].Amount)
	}
	if out.Link.ClaimantRef != "claimant-1" || out.Link.ClaimTransferRef == "" {
		t.Fatalf("claimed link missing claim attribution: %+v", out.Link)
	}
}

func TestClaimSmallDecimalAmounts(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	link := f.createLink(t, "0.01", "0.006")
	f.fundLink(t, link.LinkID, "transfer-a")

	out, err := f.svc.ClaimLink(context.Background(), application.Actor{SubjectID: "claimant-1", Role: "user"}, application.ClaimLinkInput{
		LinkID:      link.LinkID,
		ClaimantRef: "claimant-1",
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !out.DeliverableAmount.Equal(decimal.RequireFromString("0.004")) {
		t.Fatalf("expected deliverable 0.004, got %s", out.DeliverableAmount)
	}

	_, err = f.svc.ClaimLink(context.Background(), application.Actor{SubjectID: "claimant-2", Role: "user"}, application.ClaimLinkInput{
		LinkID:      link.LinkID,
		ClaimantRef: "claimant-2",
	})
	if !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed on second claim, got %v", err)
	}
}

func TestClaimTransientEngineFailureReleasesGate(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	link := f.createLink(t, "100", "6")
	f.fundLink(t, link.LinkID, "transfer-a")

	f.engine.ClaimFunc = func(_ context.Context, _ ports.ClaimInstruction) (string, error) {
		return "", &ports.EngineError{Code: "http_503", Reason: "engine overloaded", Retryable: true}
	}
	_, err := f.svc.ClaimLink(context.Background(), application.Actor{SubjectID: "claimant-1", Role: "user"}, application.ClaimLinkInput{
		LinkID:      link.LinkID,
		ClaimantRef: "claimant-1",
	})
	var engineErr *ports.EngineError
	if !errors.As(err, &engineErr) || !engineErr.Retryable {
		t.Fatalf("expected retryable engine error, got %v", err)
	}

	stored, _ := f.repos.Links.GetByID(context.Background(), link.LinkID)
	if stored.State != domain.LinkStateFunded {
		t.Fatalf("expected gate released back to funded, got %s", stored.State)
	}

	f.engine.ClaimFunc = nil
	out, err := f.svc.ClaimLink(context.Background(), application.Actor{SubjectID: "claimant-1", Role: "user"}, application.ClaimLinkInput{
		LinkID:      link.LinkID,
		ClaimantRef: "claimant-1",
	})
	if err != nil {
		t.Fatalf("retry claim after transient failure: %v", err)
	}
	if out.Status != application.ClaimStatusClaimed {
		t.Fatalf("expected retry to succeed, got %s", out.Status)
	}
}

func TestClaimTerminalEngineFailureThenReopen(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	link := f.createLink(t, "100", "6")
	f.fundLink(t, link.LinkID, "transfer-a")

	f.engine.ClaimFunc = func(_ context.Context, _ ports.ClaimInstruction) (string, error) {
		return "", &ports.EngineError{Code: "http_422", Reason: "recipient rejected", Retryable: false}
	}
	if _, err := f.svc.ClaimLink(context.Background(), application.Actor{SubjectID: "claimant-1", Role: "user"}, application.ClaimLinkInput{
		LinkID:      link.LinkID,
		ClaimantRef: "claimant-1",
	}); err == nil {
		t.Fatal("expected terminal claim failure")
	}

	stored, _ := f.repos.Links.GetByID(context.Background(), link.LinkID)
	if stored.State != domain.LinkStateClaimFailed {
		t.Fatalf("expected claim_failed, got %s", stored.State)
	}

	if _, err := f.svc.ClaimLink(context.Background(), application.Actor{SubjectID: "claimant-2", Role: "user"}, application.ClaimLinkInput{
		LinkID:      link.LinkID,
		ClaimantRef: "claimant-2",
	}); !errors.Is(err, domain.ErrClaimTerminal) {
		t.Fatalf("expected ErrClaimTerminal while failed, got %v", err)
	}

	if _, err := f.svc.ReopenLink(context.Background(), application.Actor{SubjectID: "claimant-2", Role: "user"}, link.LinkID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("reopen must be admin-only, got %v", err)
	}
	reopened, err := f.svc.ReopenLink(context.Background(), application.Actor{SubjectID: "ops-1", Role: "admin"}, link.LinkID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.State != domain.LinkStateFunded {
		t.Fatalf("expected funded after reopen, got %s", reopened.State)
	}

	f.engine.ClaimFunc = nil
	out, err := f.svc.ClaimLink(context.Background(), application.Actor{SubjectID: "claimant-2", Role: "user"}, application.ClaimLinkInput{
		LinkID:      link.LinkID,
		ClaimantRef: "claimant-2",
	})
	if err != nil {
		t.Fatalf("claim after reopen: %v", err)
	}
	if out.Link.ClaimantRef != "claimant-2" {
		t.Fatalf("expected second claimant to win after reopen, got %s", out.Link.ClaimantRef)
	}
}

func TestClaimIndeterminateHoldsGateUntilResolved(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	link := f.createLink(t, "100", "6")
	f.fundLink(t, link.LinkID, "transfer-a")

	f.engine.ClaimFunc = func(_ context.Context, _ ports.ClaimInstruction) (string, error) {
		return "", ports.ErrEngineIndeterminate
	}
	out, err := f.svc.ClaimLink(context.Background(), application.Actor{SubjectID: "claimant-1", Role: "user"}, application.ClaimLinkInput{
		LinkID:      link.LinkID,
		ClaimantRef: "claimant-1",
	})
	if err != nil {
		t.Fatalf("indeterminate claim must not error: %v", err)
	}
	if out.Status != application.ClaimStatusPending {
		t.Fatalf("expected pending status, got %s", out.Status)
	}

	stored, _ := f.repos.Links.GetByID(context.Background(), link.LinkID)
	if stored.State != domain.LinkStateClaiming {
		t.Fatalf("expected gate held in claiming, got %s", stored.State)
	}

	if _, err := f.svc.ClaimLink(context.Background(), application.Actor{SubjectID: "claimant-2", Role: "user"}, application.ClaimLinkInput{
		LinkID:      link.LinkID,
		ClaimantRef: "claimant-2",
	}); !errors.Is(err, domain.ErrClaimInProgress) {
		t.Fatalf("expected ErrClaimInProgress while gate held, got %v", err)
	}

	f.engine.StatusFunc = func(_ context.Context, linkID string) (ports.ClaimLookup, error) {
		return ports.ClaimLookup{State: ports.ClaimStateSettled, ClaimTransferRef: "claim-transfer-x"}, nil
	}
	resolved, err := f.svc.ResolveClaim(context.Background(), application.Actor{SubjectID: "ops-1", Role: "admin"}, link.LinkID)
	if err != nil {
		t.Fatalf("resolve claim: %v", err)
	}
	if resolved.Status != application.ClaimStatusClaimed {
		t.Fatalf("expected resolved to claimed, got %s", resolved.Status)
	}
	if resolved.Link.ClaimantRef != "claimant-1" {
		t.Fatalf("expected original claimant attributed, got %s", resolved.Link.ClaimantRef)
	}
	if resolved.Link.ClaimTransferRef != "claim-transfer-x" {
		t.Fatalf("expected engine's transfer ref recorded, got %s", resolved.Link.ClaimTransferRef)
	}
}

func TestResolveClaimFailedReleasesGate(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	link := f.createLink(t, "100", "6")
	f.fundLink(t, link.LinkID, "transfer-a")

	f.engine.ClaimFunc = func(_ context.Context, _ ports.ClaimInstruction) (string, error) {
		return "", ports.ErrEngineIndeterminate
	}
	if _, err := f.svc.ClaimLink(context.Background(), application.Actor{SubjectID: "claimant-1", Role: "user"}, application.ClaimLinkInput{
		LinkID:      link.LinkID,
		ClaimantRef: "claimant-1",
	}); err != nil {
		t.Fatalf("indeterminate claim: %v", err)
	}

	f.engine.StatusFunc = func(_ context.Context, _ string) (ports.ClaimLookup, error) {
		return ports.ClaimLookup{State: ports.ClaimStateFailed, Reason: "never received"}, nil
	}
	if _, err := f.svc.ResolveClaim(context.Background(), application.Actor{SubjectID: "ops-1", Role: "admin"}, link.LinkID); err == nil {
		t.Fatal("expected resolve to report the failure")
	}

	stored, _ := f.repos.Links.GetByID(context.Background(), link.LinkID)
	if stored.State != domain.LinkStateFunded {
		t.Fatalf("expected gate released back to funded, got %s", stored.State)
	}
}

func TestConcurrentClaimsSingleWinner(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	link := f.createLink(t, "100", "6")
	f.fundLink(t, link.LinkID, "transfer-a")

	const claimants = 8
	var wg sync.WaitGroup
	results := make([]error, claimants)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.ClaimLink(context.Background(), application.Actor{SubjectID: "claimant", Role: "user"}, application.ClaimLinkInput{
				LinkID:      link.LinkID,
				ClaimantRef: "claimant",
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		if !errors.Is(err, domain.ErrAlreadyClaimed) && !errors.Is(err, domain.ErrClaimInProgress) {
			t.Fatalf("unexpected loser error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", successes)
	}
	if len(f.engine.Calls()) != 1 {
		t.Fatalf("expected exactly one engine call, got %d", len(f.engine.Calls()))
	}
}

func TestListLinksScopedToCreator(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	mine := f.createLink(t, "10", "0")

	other, err := f.svc.CreateLink(context.Background(), application.Actor{SubjectID: "creator-2", Role: "user", IdempotencyKey: "link:create:other"}, application.CreateLinkInput{
		Amount:     decimal.RequireFromString("20"),
		CreatorRef: "creator-2",
	})
	if err != nil {
		t.Fatalf("create other link: %v", err)
	}

	out, err := f.svc.ListLinks(context.Background(), application.Actor{SubjectID: "creator-1", Role: "user"}, ports.ListQuery{})
	if err != nil {
		t.Fatalf("list links: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].LinkID != mine.LinkID {
		t.Fatalf("expected only creator-1's link, got %+v", out.Items)
	}

	adminOut, err := f.svc.ListLinks(context.Background(), application.Actor{SubjectID: "ops-1", Role: "admin"}, ports.ListQuery{})
	if err != nil {
		t.Fatalf("admin list links: %v", err)
	}
	if len(adminOut.Items) != 2 {
		t.Fatalf("expected admin to see both links, got %d", len(adminOut.Items))
	}
	_ = other
}

type flakyDomainPublisher struct {
	failures  int
	published []contracts.EventEnvelope
}

func (p *flakyDomainPublisher) PublishDomain(_ context.Context, event contracts.EventEnvelope) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("event bus unavailable")
	}
	p.published = append(p.published, event)
	return nil
}

type recordingDLQPublisher struct {
	records []contracts.DLQRecord
}

func (p *recordingDLQPublisher) PublishDLQ(_ context.Context, record contracts.DLQRecord) error {
	p.records = append(p.records, record)
	return nil
}

func TestFlushOutboxRoutesFailedPublishesToDLQ(t *testing.T) {
	t.Parallel()

	repos := memory.NewRepositories()
	bus := &flakyDomainPublisher{failures: 2}
	dlq := &recordingDLQPublisher{}
	svc := application.NewService(application.Dependencies{
		Links:        repos.Links,
		Idempotency:  repos.Idempotency,
		EventDedup:   repos.EventDedup,
		Outbox:       repos.Outbox,
		Engine:       engineadapter.NewMock(),
		DomainEvents: bus,
		Analytics:    eventadapter.NewMemoryAnalyticsPublisher(),
		DLQ:          dlq,
	})

	// First create flushes while the bus is down: its event is DLQ'd and
	// stays pending.
	if _, err := svc.CreateLink(context.Background(), creatorActor("link:create:dlq-1"), application.CreateLinkInput{
		Amount:     decimal.RequireFromString("10"),
		CreatorRef: "creator-1",
	}); err == nil {
		t.Fatal("expected create to surface the publish failure")
	}

	// Second create's flush sees both records; the first still fails and is
	// DLQ'd again, the second publishes. The batch is not aborted.
	if _, err := svc.CreateLink(context.Background(), creatorActor("link:create:dlq-2"), application.CreateLinkInput{
		Amount:     decimal.RequireFromString("20"),
		CreatorRef: "creator-1",
	}); err == nil {
		t.Fatal("expected second create to surface the lingering failure")
	}
	if len(dlq.records) != 2 {
		t.Fatalf("expected 2 DLQ records, got %d", len(dlq.records))
	}
	if dlq.records[0].OriginalEvent.EventType != domain.EventLinkCreated {
		t.Fatalf("unexpected DLQ event type: %s", dlq.records[0].OriginalEvent.EventType)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected the batch to continue past the failed record, got %d published", len(bus.published))
	}

	pending, err := repos.Outbox.ListPending(context.Background(), 100)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected only the failed record left pending, got %d", len(pending))
	}

	// Bus recovered: the next sweep drains the leftover.
	if err := svc.FlushOutbox(context.Background()); err != nil {
		t.Fatalf("flush after recovery: %v", err)
	}
	pending, _ = repos.Outbox.ListPending(context.Background(), 100)
	if len(pending) != 0 {
		t.Fatalf("expected outbox drained after recovery, got %d pending", len(pending))
	}
}

func TestFlushOutboxPublishesDomainEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(application.Config{})
	link := f.createLink(t, "100", "6")
	f.fundLink(t, link.LinkID, "transfer-a")

	published := f.domain.Published()
	types := map[string]int{}
	for _, event := range published {
		types[event.EventType]++
	}
	if types[domain.EventLinkCreated] != 1 || types[domain.EventLinkFunded] != 1 {
		t.Fatalf("expected link.created and link.funded published once each, got %v", types)
	}

	pending, err := f.repos.Outbox.ListPending(context.Background(), 100)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected outbox drained after flush, got %d pending", len(pending))
	}
}
