package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/ports"
)

func (s *Service) CreateLink(ctx context.Context, actor Actor, input CreateLinkInput) (domain.Link, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Link{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(actor.IdempotencyKey) == "" {
		return domain.Link{}, domain.ErrIdempotencyRequired
	}
	input.Asset = strings.TrimSpace(input.Asset)
	if input.Asset == "" {
		input.Asset = s.cfg.DefaultAsset
	}
	input.CreatorRef = strings.TrimSpace(input.CreatorRef)

	fee := domain.FeeForAmount(input.Amount, s.cfg.FeeBps)
	if input.FeeAmount != nil {
		fee = *input.FeeAmount
	}
	if err := domain.ValidateCreateLinkInput(input.Amount, fee, input.Asset); err != nil {
		return domain.Link{}, err
	}

	requestHash := hashPayload(input)
	now := s.nowFn()
	existing, err := s.idempotency.Get(ctx, actor.IdempotencyKey, now)
	if err != nil {
		return domain.Link{}, err
	}
	if existing != nil {
		if existing.RequestHash != requestHash {
			return domain.Link{}, domain.ErrIdempotencyConflict
		}
		var cached domain.Link
		if err := json.Unmarshal(existing.ResponseBody, &cached); err != nil {
			return domain.Link{}, err
		}
		return cached, nil
	}
	if err := s.idempotency.Reserve(ctx, actor.IdempotencyKey, requestHash, now.Add(s.cfg.IdempotencyTTL)); err != nil {
		return domain.Link{}, err
	}

	link := domain.Link{
		LinkID:          uuid.NewString(),
		RequestedAmount: input.Amount,
		FeeAmount:       fee,
		Asset:           input.Asset,
		CreatorRef:      input.CreatorRef,
		State:           domain.LinkStateCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.links.Create(ctx, link); err != nil {
		return domain.Link{}, err
	}
	if err := s.enqueueLinkCreated(ctx, link); err != nil {
		return domain.Link{}, err
	}
	if err := s.FlushOutbox(ctx); err != nil {
		return domain.Link{}, err
	}

	payload, err := json.Marshal(link)
	if err != nil {
		return domain.Link{}, err
	}
	if err := s.idempotency.Complete(ctx, actor.IdempotencyKey, 201, payload, s.nowFn()); err != nil {
		return domain.Link{}, err
	}
	return link, nil
}

func (s *Service) GetLink(ctx context.Context, actor Actor, linkID string) (domain.Link, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Link{}, domain.ErrUnauthorized
	}
	return s.links.GetByID(ctx, strings.TrimSpace(linkID))
}

func (s *Service) ListLinks(ctx context.Context, actor Actor, query ports.ListQuery) (ListLinksOutput, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return ListLinksOutput{}, domain.ErrUnauthorized
	}
	if actor.Role != "admin" {
		query.CreatorRef = actor.SubjectID
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}
	if query.Offset < 0 {
		query.Offset = 0
	}
	items, total, err := s.links.List(ctx, query)
	if err != nil {
		return ListLinksOutput{}, err
	}
	out := ListLinksOutput{Items: items}
	out.Pagination.Limit = query.Limit
	out.Pagination.Offset = query.Offset
	out.Pagination.Total = total
	return out, nil
}

// ReportFunding folds a settlement notification into the link's state. Safe
// to call any number of times, from any number of channels, with the same
// (linkID, transferRef) pair.
func (s *Service) ReportFunding(ctx context.Context, actor Actor, input ReportFundingInput) (ReportFundingOutput, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return ReportFundingOutput{}, domain.ErrUnauthorized
	}
	input.LinkID = strings.TrimSpace(input.LinkID)
	input.TransferRef = strings.TrimSpace(input.TransferRef)
	if input.LinkID == "" || input.TransferRef == "" {
		return ReportFundingOutput{}, fmt.Errorf("%w: link_id and transfer_ref are required", domain.ErrInvalidInput)
	}

	link, err := s.links.GetByID(ctx, input.LinkID)
	if err != nil {
		return ReportFundingOutput{}, err
	}

	if link.State == domain.LinkStateCreated {
		ref := input.TransferRef
		updated, casErr := s.links.CompareAndTransition(ctx, link.LinkID, domain.LinkStateCreated, domain.LinkStateFunded,
			ports.LinkUpdates{FundingTransferRef: &ref}, s.nowFn())
		if casErr == nil {
			if err := s.enqueueLinkFunded(ctx, updated); err != nil {
				return ReportFundingOutput{}, err
			}
			if err := s.FlushOutbox(ctx); err != nil {
				return ReportFundingOutput{}, err
			}
			return ReportFundingOutput{Status: FundingApplied, Link: updated}, nil
		}
		if !errors.Is(casErr, domain.ErrConflict) {
			return ReportFundingOutput{}, casErr
		}
		// Lost the race to a concurrent notification; re-read and fall
		// through to the duplicate/divergence check.
		link, err = s.links.GetByID(ctx, input.LinkID)
		if err != nil {
			return ReportFundingOutput{}, err
		}
	}

	if link.FundingTransferRef == input.TransferRef {
		return ReportFundingOutput{Status: FundingAlreadyApplied, Link: link}, nil
	}

	s.logger.ErrorContext(ctx, "funding notification carried a different transfer ref",
		"module", "application",
		"layer", "service",
		"operation", "report_funding",
		"outcome", "conflict",
		"link_id", link.LinkID,
		"stored_transfer_ref", link.FundingTransferRef,
		"reported_transfer_ref", input.TransferRef,
		"request_id", actor.RequestID,
	)
	return ReportFundingOutput{}, fmt.Errorf("%w: link %s already funded by %s", domain.ErrFundingDiverged, link.LinkID, link.FundingTransferRef)
}

// ClaimLink grants at most one successful claim per link. The CAS from funded
// to claiming is the single serialization point; it happens before the slow
// external call, so no second claimant can ever hold the gate concurrently.
func (s *Service) ClaimLink(ctx context.Context, actor Actor, input ClaimLinkInput) (ClaimLinkOutput, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return ClaimLinkOutput{}, domain.ErrUnauthorized
	}
	input.LinkID = strings.TrimSpace(input.LinkID)
	input.ClaimantRef = strings.TrimSpace(input.ClaimantRef)
	if input.LinkID == "" || input.ClaimantRef == "" {
		return ClaimLinkOutput{}, fmt.Errorf("%w: link_id and claimant_ref are required", domain.ErrInvalidInput)
	}

	claimant := input.ClaimantRef
	link, err := s.links.CompareAndTransition(ctx, input.LinkID, domain.LinkStateFunded, domain.LinkStateClaiming,
		ports.LinkUpdates{PendingClaimantRef: &claimant}, s.nowFn())
	if err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return ClaimLinkOutput{}, err
		}
		current, getErr := s.links.GetByID(ctx, input.LinkID)
		if getErr != nil {
			return ClaimLinkOutput{}, getErr
		}
		switch current.State {
		case domain.LinkStateClaimed:
			return ClaimLinkOutput{}, domain.ErrAlreadyClaimed
		case domain.LinkStateClaiming:
			return ClaimLinkOutput{}, domain.ErrClaimInProgress
		case domain.LinkStateCreated:
			return ClaimLinkOutput{}, domain.ErrNotFunded
		case domain.LinkStateClaimFailed:
			return ClaimLinkOutput{}, domain.ErrClaimTerminal
		default:
			return ClaimLinkOutput{}, domain.ErrConflict
		}
	}

	deliverable := link.DeliverableAmount()
	s.publishAnalyticsClaimAttempted(ctx, link, input.ClaimantRef, deliverable)

	claimRef, claimErr := s.engine.Claim(ctx, ports.ClaimInstruction{
		LinkID:       link.LinkID,
		Amount:       deliverable,
		Asset:        link.Asset,
		RecipientRef: input.ClaimantRef,
	})
	if claimErr != nil {
		return s.settleClaimFailure(ctx, actor, link, deliverable, claimErr)
	}

	updated, casErr := s.links.CompareAndTransition(ctx, link.LinkID, domain.LinkStateClaiming, domain.LinkStateClaimed,
		ports.LinkUpdates{ClaimantRef: &claimant, ClaimTransferRef: &claimRef, PendingClaimantRef: strPtr("")}, s.nowFn())
	if casErr != nil {
		// Only the gate holder may move claiming -> claimed. If that fails,
		// the row was mutated behind our back: alert, never retry.
		return ClaimLinkOutput{}, s.consistencyFailure(ctx, link.LinkID, domain.LinkStateClaimed, casErr)
	}
	if err := s.enqueueLinkClaimed(ctx, updated, deliverable); err != nil {
		return ClaimLinkOutput{}, err
	}
	if err := s.FlushOutbox(ctx); err != nil {
		return ClaimLinkOutput{}, err
	}
	return ClaimLinkOutput{
		Status:            ClaimStatusClaimed,
		DeliverableAmount: deliverable,
		ClaimTransferRef:  claimRef,
		Link:              updated,
	}, nil
}

func (s *Service) settleClaimFailure(ctx context.Context, actor Actor, link domain.Link, deliverable decimal.Decimal, claimErr error) (ClaimLinkOutput, error) {
	if errors.Is(claimErr, ports.ErrEngineIndeterminate) {
		// The engine may still complete the transfer. Releasing the gate
		// here could let a second claim through; hold it until ResolveClaim.
		s.logger.WarnContext(ctx, "claim outcome indeterminate; link held in claiming",
			"module", "application",
			"layer", "service",
			"operation", "claim_link",
			"outcome", "pending",
			"link_id", link.LinkID,
			"request_id", actor.RequestID,
		)
		return ClaimLinkOutput{
			Status:            ClaimStatusPending,
			DeliverableAmount: deliverable,
			Link:              link,
		}, nil
	}

	var engineErr *ports.EngineError
	if errors.As(claimErr, &engineErr) && engineErr.Retryable {
		if _, casErr := s.links.CompareAndTransition(ctx, link.LinkID, domain.LinkStateClaiming, domain.LinkStateFunded,
			ports.LinkUpdates{PendingClaimantRef: strPtr("")}, s.nowFn()); casErr != nil {
			return ClaimLinkOutput{}, s.consistencyFailure(ctx, link.LinkID, domain.LinkStateFunded, casErr)
		}
		s.logger.WarnContext(ctx, "engine claim failed transiently; gate released",
			"module", "application",
			"layer", "service",
			"operation", "claim_link",
			"outcome", "retryable_failure",
			"link_id", link.LinkID,
			"error", claimErr,
		)
		return ClaimLinkOutput{}, fmt.Errorf("engine claim: %w", claimErr)
	}

	failed, casErr := s.links.CompareAndTransition(ctx, link.LinkID, domain.LinkStateClaiming, domain.LinkStateClaimFailed,
		ports.LinkUpdates{PendingClaimantRef: strPtr("")}, s.nowFn())
	if casErr != nil {
		return ClaimLinkOutput{}, s.consistencyFailure(ctx, link.LinkID, domain.LinkStateClaimFailed, casErr)
	}
	s.logger.ErrorContext(ctx, "engine claim failed terminally; operator intervention required",
		"module", "application",
		"layer", "service",
		"operation", "claim_link",
		"outcome", "terminal_failure",
		"link_id", link.LinkID,
		"error", claimErr,
	)
	if err := s.enqueueLinkClaimFailed(ctx, failed, claimErr.Error()); err != nil {
		return ClaimLinkOutput{}, err
	}
	if err := s.FlushOutbox(ctx); err != nil {
		return ClaimLinkOutput{}, err
	}
	return ClaimLinkOutput{}, fmt.Errorf("engine claim: %w", claimErr)
}

// ResolveClaim settles a link stuck in claiming after an indeterminate engine
// call by asking the engine what actually happened. Admin-only.
func (s *Service) ResolveClaim(ctx context.Context, actor Actor, linkID string) (ClaimLinkOutput, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return ClaimLinkOutput{}, domain.ErrUnauthorized
	}
	if actor.Role != "admin" {
		return ClaimLinkOutput{}, domain.ErrForbidden
	}
	linkID = strings.TrimSpace(linkID)
	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return ClaimLinkOutput{}, err
	}
	if link.State != domain.LinkStateClaiming {
		return ClaimLinkOutput{}, fmt.Errorf("%w: link %s is %s, only claiming links can be resolved", domain.ErrConflict, linkID, link.State)
	}

	lookup, err := s.engine.ClaimStatus(ctx, linkID)
	if err != nil {
		return ClaimLinkOutput{}, fmt.Errorf("engine claim status: %w", err)
	}
	deliverable := link.DeliverableAmount()

	switch lookup.State {
	case ports.ClaimStateSettled:
		claimant := link.PendingClaimantRef
		ref := lookup.ClaimTransferRef
		updated, casErr := s.links.CompareAndTransition(ctx, linkID, domain.LinkStateClaiming, domain.LinkStateClaimed,
			ports.LinkUpdates{ClaimantRef: &claimant, ClaimTransferRef: &ref, PendingClaimantRef: strPtr("")}, s.nowFn())
		if casErr != nil {
			return ClaimLinkOutput{}, s.consistencyFailure(ctx, linkID, domain.LinkStateClaimed, casErr)
		}
		if err := s.enqueueLinkClaimed(ctx, updated, deliverable); err != nil {
			return ClaimLinkOutput{}, err
		}
		if err := s.FlushOutbox(ctx); err != nil {
			return ClaimLinkOutput{}, err
		}
		return ClaimLinkOutput{Status: ClaimStatusClaimed, DeliverableAmount: deliverable, ClaimTransferRef: ref, Link: updated}, nil
	case ports.ClaimStateFailed:
		reason := lookup.Reason
		if reason == "" {
			reason = "engine reported claim failure"
		}
		if _, casErr := s.links.CompareAndTransition(ctx, linkID, domain.LinkStateClaiming, domain.LinkStateFunded,
			ports.LinkUpdates{PendingClaimantRef: strPtr("")}, s.nowFn()); casErr != nil {
			return ClaimLinkOutput{}, s.consistencyFailure(ctx, linkID, domain.LinkStateFunded, casErr)
		}
		return ClaimLinkOutput{}, fmt.Errorf("engine claim: %w", &ports.EngineError{Code: "resolved_failed", Reason: reason, Retryable: true})
	default:
		return ClaimLinkOutput{Status: ClaimStatusPending, DeliverableAmount: deliverable, Link: link}, nil
	}
}

// ReopenLink moves a terminally failed link back to funded so a fresh claim
// can be attempted. Deliberately manual; the service never does this itself.
func (s *Service) ReopenLink(ctx context.Context, actor Actor, linkID string) (domain.Link, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Link{}, domain.ErrUnauthorized
	}
	if actor.Role != "admin" {
		return domain.Link{}, domain.ErrForbidden
	}
	linkID = strings.TrimSpace(linkID)
	updated, err := s.links.CompareAndTransition(ctx, linkID, domain.LinkStateClaimFailed, domain.LinkStateFunded,
		ports.LinkUpdates{}, s.nowFn())
	if err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return domain.Link{}, err
		}
		current, getErr := s.links.GetByID(ctx, linkID)
		if getErr != nil {
			return domain.Link{}, getErr
		}
		return domain.Link{}, fmt.Errorf("%w: link %s is %s, only claim_failed links can be reopened", domain.ErrConflict, linkID, current.State)
	}
	s.logger.InfoContext(ctx, "link reopened for claiming",
		"module", "application",
		"layer", "service",
		"operation", "reopen_link",
		"outcome", "success",
		"link_id", linkID,
		"actor", actor.SubjectID,
	)
	return updated, nil
}

func (s *Service) consistencyFailure(ctx context.Context, linkID string, attempted domain.LinkState, cause error) error {
	s.logger.ErrorContext(ctx, "expected transition failed; link row mutated outside the claim gate",
		"module", "application",
		"layer", "service",
		"operation", "compare_and_transition",
		"outcome", "fatal",
		"link_id", linkID,
		"attempted_state", string(attempted),
		"error", cause,
	)
	return fmt.Errorf("%w: transition to %s on link %s: %v", domain.ErrConsistency, attempted, linkID, cause)
}

func strPtr(v string) *string { return &v }

func hashPayload(value interface{}) string {
	blob, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}
