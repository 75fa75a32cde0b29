package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type LinkState string

const (
	LinkStateCreated     LinkState = "created"
	LinkStateFunded      LinkState = "funded"
	LinkStateClaiming    LinkState = "claiming"
	LinkStateClaimed     LinkState = "claimed"
	LinkStateClaimFailed LinkState = "claim_failed"
)

// Link is the metadata record for one requested value transfer. Funds never
// touch this service; the external engine's transfer references are the only
// proof of movement the record carries.
type Link struct {
	LinkID             string          `json:"link_id"`
	RequestedAmount    decimal.Decimal `json:"requested_amount"`
	FeeAmount          decimal.Decimal `json:"fee_amount"`
	Asset              string          `json:"asset"`
	CreatorRef         string          `json:"creator_ref,omitempty"`
	State              LinkState       `json:"state"`
	FundingTransferRef string          `json:"funding_transfer_ref,omitempty"`
	PendingClaimantRef string          `json:"pending_claimant_ref,omitempty"`
	ClaimantRef        string          `json:"claimant_ref,omitempty"`
	ClaimTransferRef   string          `json:"claim_transfer_ref,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// DeliverableAmount is what a claimant actually receives. The fee is fixed at
// creation and deducted before the external claim call, never afterwards.
func (l Link) DeliverableAmount() decimal.Decimal {
	return l.RequestedAmount.Sub(l.FeeAmount)
}

func ValidateCreateLinkInput(amount, fee decimal.Decimal, asset string) error {
	if strings.TrimSpace(asset) == "" {
		return fmt.Errorf("%w: asset is required", ErrInvalidInput)
	}
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if fee.Sign() < 0 {
		return fmt.Errorf("%w: fee must not be negative", ErrInvalidInput)
	}
	if fee.GreaterThanOrEqual(amount) {
		return fmt.Errorf("%w: fee %s would consume the whole amount %s", ErrInvalidInput, fee, amount)
	}
	return nil
}

// FeeForAmount computes the default fee from basis points. Pure; called once
// at creation when the request does not carry an explicit fee.
func FeeForAmount(amount decimal.Decimal, bps int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(bps)).Div(decimal.NewFromInt(10000))
}
