package events

import (
	"context"
	"log/slog"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/contracts"
)

// LoggingPublisher emits envelopes as structured log lines. It stands in for
// the platform event bus in deployments that have not wired a broker yet, so
// downstream consumers can at least be replayed from logs.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) PublishDomain(ctx context.Context, event contracts.EventEnvelope) error {
	p.logger.InfoContext(ctx, "domain event published",
		"module", "events",
		"layer", "adapter",
		"operation", "publish_domain",
		"outcome", "success",
		"event_id", event.EventID,
		"event_type", event.EventType,
	)
	return nil
}

func (p *LoggingPublisher) PublishAnalytics(ctx context.Context, event contracts.EventEnvelope) error {
	p.logger.InfoContext(ctx, "analytics event published",
		"module", "events",
		"layer", "adapter",
		"operation", "publish_analytics",
		"outcome", "success",
		"event_id", event.EventID,
		"event_type", event.EventType,
	)
	return nil
}

func (p *LoggingPublisher) PublishDLQ(ctx context.Context, record contracts.DLQRecord) error {
	p.logger.ErrorContext(ctx, "event routed to dlq",
		"module", "events",
		"layer", "adapter",
		"operation", "publish_dlq",
		"outcome", "dead_letter",
		"event_id", record.OriginalEvent.EventID,
		"event_type", record.OriginalEvent.EventType,
		"reason", record.ErrorSummary,
	)
	return nil
}
