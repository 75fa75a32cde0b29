package application

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/ports"
)

type Config struct {
	ServiceName          string
	IdempotencyTTL       time.Duration
	EventDedupTTL        time.Duration
	DefaultAsset         string
	FeeBps               int64
	OutboxFlushBatchSize int
}

type Actor struct {
	SubjectID      string
	Role           string
	RequestID      string
	IdempotencyKey string
}

type CreateLinkInput struct {
	Amount     decimal.Decimal
	Asset      string
	CreatorRef string
	FeeAmount  *decimal.Decimal
}

type ReportFundingInput struct {
	LinkID      string
	TransferRef string
}

type ClaimLinkInput struct {
	LinkID      string
	ClaimantRef string
}

type FundingStatus string

const (
	FundingApplied        FundingStatus = "applied"
	FundingAlreadyApplied FundingStatus = "already_applied"
)

type ReportFundingOutput struct {
	Status FundingStatus
	Link   domain.Link
}

type ClaimStatus string

const (
	// ClaimStatusClaimed is the single successful outcome a link can ever
	// produce.
	ClaimStatusClaimed ClaimStatus = "claimed"
	// ClaimStatusPending means the engine call ended without a definitive
	// outcome. The link stays in claiming until ResolveClaim settles it.
	ClaimStatusPending ClaimStatus = "pending"
)

type ClaimLinkOutput struct {
	Status            ClaimStatus
	DeliverableAmount decimal.Decimal
	ClaimTransferRef  string
	Link              domain.Link
}

type ListLinksOutput struct {
	Items      []domain.Link
	Pagination contracts.Pagination
}

type Service struct {
	cfg         Config
	logger      *slog.Logger
	links       ports.LinkRepository
	idempotency ports.IdempotencyRepository
	eventDedup  ports.EventDedupRepository
	outbox      ports.OutboxRepository

	engine ports.ValueTransferEngine

	domainEvents ports.DomainPublisher
	analytics    ports.AnalyticsPublisher
	dlq          ports.DLQPublisher
	nowFn        func() time.Time
}

type Dependencies struct {
	Config       Config
	Logger       *slog.Logger
	Links        ports.LinkRepository
	Idempotency  ports.IdempotencyRepository
	EventDedup   ports.EventDedupRepository
	Outbox       ports.OutboxRepository
	Engine       ports.ValueTransferEngine
	DomainEvents ports.DomainPublisher
	Analytics    ports.AnalyticsPublisher
	DLQ          ports.DLQPublisher
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "M21-Payment-Link-Service"
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.EventDedupTTL <= 0 {
		cfg.EventDedupTTL = 7 * 24 * time.Hour
	}
	if cfg.DefaultAsset == "" {
		cfg.DefaultAsset = "USDC"
	}
	if cfg.FeeBps < 0 {
		cfg.FeeBps = 0
	}
	if cfg.OutboxFlushBatchSize <= 0 {
		cfg.OutboxFlushBatchSize = 100
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:          cfg,
		logger:       logger,
		links:        deps.Links,
		idempotency:  deps.Idempotency,
		eventDedup:   deps.EventDedup,
		outbox:       deps.Outbox,
		engine:       deps.Engine,
		domainEvents: deps.DomainEvents,
		analytics:    deps.Analytics,
		dlq:          deps.DLQ,
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}
