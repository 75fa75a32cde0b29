package contracts

import (
	"github.com/shopspring/decimal"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/domain"
)

type CreateLinkRequest struct {
	Amount     decimal.Decimal  `json:"amount"`
	Asset      string           `json:"asset"`
	CreatorRef string           `json:"creator_ref,omitempty"`
	FeeAmount  *decimal.Decimal `json:"fee_amount,omitempty"`
}

type ReportFundingRequest struct {
	TransferRef string `json:"transfer_ref"`
}

type ClaimLinkRequest struct {
	ClaimantRef string `json:"claimant_ref"`
}

type ReportFundingResponse struct {
	Status string      `json:"status"`
	Link   domain.Link `json:"link"`
}

type ClaimLinkResponse struct {
	Status            string          `json:"status"`
	DeliverableAmount decimal.Decimal `json:"deliverable_amount"`
	ClaimTransferRef  string          `json:"claim_transfer_ref,omitempty"`
	Link              domain.Link     `json:"link"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}
