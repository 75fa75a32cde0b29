package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

type linkModel struct {
	LinkID             string          `gorm:"column:link_id;type:uuid;primaryKey"`
	RequestedAmount    decimal.Decimal `gorm:"column:requested_amount;type:numeric(38,18)"`
	FeeAmount          decimal.Decimal `gorm:"column:fee_amount;type:numeric(38,18)"`
	Asset              string          `gorm:"column:asset"`
	CreatorRef         *string         `gorm:"column:creator_ref"`
	State              string          `gorm:"column:state"`
	FundingTransferRef *string         `gorm:"column:funding_transfer_ref"`
	PendingClaimantRef *string         `gorm:"column:pending_claimant_ref"`
	ClaimantRef        *string         `gorm:"column:claimant_ref"`
	ClaimTransferRef   *string         `gorm:"column:claim_transfer_ref"`
	CreatedAt          time.Time       `gorm:"column:created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at"`
}

func (linkModel) TableName() string { return "payment_links" }

type idempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	ResponseCode   *int      `gorm:"column:response_code"`
	ResponseBody   []byte    `gorm:"column:response_body;type:jsonb"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string { return "link_idempotency" }

type eventDedupModel struct {
	EventID   string    `gorm:"column:event_id;primaryKey"`
	EventType string    `gorm:"column:event_type"`
	ExpiresAt time.Time `gorm:"column:expires_at"`
}

func (eventDedupModel) TableName() string { return "link_event_dedup" }

type outboxModel struct {
	RecordID   string     `gorm:"column:record_id;type:uuid;primaryKey"`
	EventClass string     `gorm:"column:event_class"`
	Envelope   []byte     `gorm:"column:envelope;type:jsonb"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	SentAt     *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string { return "link_outbox" }
