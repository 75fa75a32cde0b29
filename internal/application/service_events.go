package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/ports"
)

// HandleDomainEvent consumes engine.transfer_settled notifications from the
// event bus. This is one of several redundant channels feeding ReportFunding;
// the operation itself is idempotent on (link_id, transfer_ref), the event ID
// dedup only spares redundant store reads.
func (s *Service) HandleDomainEvent(ctx context.Context, event contracts.EventEnvelope) error {
	if event.EventType != domain.EventTransferSettled {
		return domain.ErrUnsupportedEventType
	}
	if err := validateDomainEventEnvelope(event, domain.EventTransferSettled, "data.link_id"); err != nil {
		return err
	}

	now := s.nowFn()
	dup, err := s.eventDedup.IsDuplicate(ctx, event.EventID, now)
	if err != nil {
		return err
	}
	if dup {
		return nil
	}

	var payload contracts.TransferSettledPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("decode engine.transfer_settled payload: %w", err)
	}

	if _, err := s.ReportFunding(ctx, Actor{
		SubjectID: "engine-notifier",
		Role:      "system",
		RequestID: event.TraceID,
	}, ReportFundingInput{
		LinkID:      payload.LinkID,
		TransferRef: payload.TransferRef,
	}); err != nil {
		return err
	}
	return s.eventDedup.MarkProcessed(ctx, event.EventID, event.EventType, now.Add(s.cfg.EventDedupTTL))
}

// FlushOutbox drains pending domain events to the bus. A failed publish is
// routed to the DLQ and left pending for the next sweep; the rest of the
// batch still goes out.
func (s *Service) FlushOutbox(ctx context.Context) error {
	pending, err := s.outbox.ListPending(ctx, s.cfg.OutboxFlushBatchSize)
	if err != nil {
		return err
	}
	var firstErr error
	for _, record := range pending {
		if record.EventClass != domain.CanonicalEventClassDomain {
			continue
		}
		if err := s.domainEvents.PublishDomain(ctx, record.Envelope); err != nil {
			if s.dlq != nil {
				now := s.nowFn()
				_ = s.dlq.PublishDLQ(ctx, contracts.DLQRecord{
					OriginalEvent: record.Envelope,
					ErrorSummary:  err.Error(),
					RetryCount:    1,
					FirstSeenAt:   now,
					LastErrorAt:   now,
					SourceTopic:   record.Envelope.EventType,
					TraceID:       record.Envelope.TraceID,
				})
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := s.outbox.MarkSent(ctx, record.RecordID, s.nowFn()); err != nil {
			return err
		}
	}
	return firstErr
}

func (s *Service) enqueueLinkCreated(ctx context.Context, link domain.Link) error {
	payload := contracts.LinkCreatedPayload{
		LinkID:          link.LinkID,
		CreatorRef:      link.CreatorRef,
		Asset:           link.Asset,
		RequestedAmount: link.RequestedAmount.String(),
		FeeAmount:       link.FeeAmount.String(),
		CreatedAt:       link.CreatedAt.Format(time.RFC3339),
	}
	return s.enqueueDomain(ctx, domain.EventLinkCreated, link.LinkID, payload)
}

func (s *Service) enqueueLinkFunded(ctx context.Context, link domain.Link) error {
	payload := contracts.LinkFundedPayload{
		LinkID:      link.LinkID,
		TransferRef: link.FundingTransferRef,
		FundedAt:    link.UpdatedAt.Format(time.RFC3339),
	}
	return s.enqueueDomain(ctx, domain.EventLinkFunded, link.LinkID, payload)
}

func (s *Service) enqueueLinkClaimed(ctx context.Context, link domain.Link, deliverable decimal.Decimal) error {
	payload := contracts.LinkClaimedPayload{
		LinkID:            link.LinkID,
		ClaimantRef:       link.ClaimantRef,
		ClaimTransferRef:  link.ClaimTransferRef,
		DeliverableAmount: deliverable.String(),
		ClaimedAt:         link.UpdatedAt.Format(time.RFC3339),
	}
	return s.enqueueDomain(ctx, domain.EventLinkClaimed, link.LinkID, payload)
}

func (s *Service) enqueueLinkClaimFailed(ctx context.Context, link domain.Link, reason string) error {
	payload := contracts.LinkClaimFailedPayload{
		LinkID:   link.LinkID,
		Reason:   reason,
		FailedAt: link.UpdatedAt.Format(time.RFC3339),
	}
	return s.enqueueDomain(ctx, domain.EventLinkClaimFailed, link.LinkID, payload)
}

func (s *Service) enqueueDomain(ctx context.Context, eventType, linkID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.outbox.Enqueue(ctx, ports.OutboxRecord{
		RecordID:   uuid.NewString(),
		EventClass: domain.CanonicalEventClassDomain,
		Envelope: contracts.EventEnvelope{
			EventID:          uuid.NewString(),
			EventType:        eventType,
			EventClass:       domain.CanonicalEventClassDomain,
			OccurredAt:       s.nowFn(),
			PartitionKeyPath: "data.link_id",
			PartitionKey:     linkID,
			SourceService:    s.cfg.ServiceName,
			TraceID:          uuid.NewString(),
			SchemaVersion:    "v1",
			Data:             data,
		},
		CreatedAt: s.nowFn(),
	})
}

// publishAnalyticsClaimAttempted is fire-and-forget observability; a claim
// must never fail because the analytics pipeline is down.
func (s *Service) publishAnalyticsClaimAttempted(ctx context.Context, link domain.Link, claimantRef string, deliverable decimal.Decimal) {
	at := s.nowFn()
	payload := contracts.ClaimAttemptedPayload{
		LinkID:            link.LinkID,
		ClaimantRef:       claimantRef,
		DeliverableAmount: deliverable.String(),
		AttemptedAt:       at.Format(time.RFC3339),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = s.analytics.PublishAnalytics(ctx, contracts.EventEnvelope{
		EventID:          uuid.NewString(),
		EventType:        domain.EventLinkClaimAttempted,
		EventClass:       domain.CanonicalEventClassAnalyticsOnly,
		OccurredAt:       at,
		PartitionKeyPath: "data.link_id",
		PartitionKey:     link.LinkID,
		SourceService:    s.cfg.ServiceName,
		TraceID:          uuid.NewString(),
		SchemaVersion:    "v1",
		Data:             data,
	})
}

func validateDomainEventEnvelope(event contracts.EventEnvelope, expectedEventType, expectedPartitionPath string) error {
	if strings.TrimSpace(event.EventID) == "" {
		return fmt.Errorf("%w: missing event_id", domain.ErrInvalidInput)
	}
	if event.EventType != expectedEventType {
		return fmt.Errorf("%w: unsupported event_type %s", domain.ErrInvalidInput, event.EventType)
	}
	if event.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing occurred_at", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(event.SourceService) == "" {
		return fmt.Errorf("%w: missing source_service", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(event.TraceID) == "" {
		return fmt.Errorf("%w: missing trace_id", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(event.SchemaVersion) == "" {
		return fmt.Errorf("%w: missing schema_version", domain.ErrInvalidInput)
	}
	if len(event.Data) == 0 {
		return fmt.Errorf("%w: missing data payload", domain.ErrInvalidInput)
	}
	if event.PartitionKeyPath != expectedPartitionPath {
		return fmt.Errorf("%w: expected partition_key_path %s", domain.ErrInvalidInput, expectedPartitionPath)
	}
	field := strings.TrimPrefix(event.PartitionKeyPath, "data.")
	var payload map[string]interface{}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("%w: invalid data payload", domain.ErrInvalidInput)
	}
	value, ok := payload[field]
	if !ok {
		return fmt.Errorf("%w: partition key field %s missing from payload", domain.ErrInvalidInput, field)
	}
	if fmt.Sprint(value) != event.PartitionKey {
		return fmt.Errorf("%w: partition key mismatch", domain.ErrInvalidInput)
	}
	return nil
}
