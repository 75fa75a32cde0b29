package postgres

import (
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/domain"
)

func toDomainLink(rec linkModel) domain.Link {
	return domain.Link{
		LinkID:             rec.LinkID,
		RequestedAmount:    rec.RequestedAmount,
		FeeAmount:          rec.FeeAmount,
		Asset:              rec.Asset,
		CreatorRef:         stringValue(rec.CreatorRef),
		State:              domain.LinkState(rec.State),
		FundingTransferRef: stringValue(rec.FundingTransferRef),
		PendingClaimantRef: stringValue(rec.PendingClaimantRef),
		ClaimantRef:        stringValue(rec.ClaimantRef),
		ClaimTransferRef:   stringValue(rec.ClaimTransferRef),
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
	}
}

func toLinkModel(link domain.Link) linkModel {
	return linkModel{
		LinkID:             link.LinkID,
		RequestedAmount:    link.RequestedAmount,
		FeeAmount:          link.FeeAmount,
		Asset:              link.Asset,
		CreatorRef:         nullableString(link.CreatorRef),
		State:              string(link.State),
		FundingTransferRef: nullableString(link.FundingTransferRef),
		PendingClaimantRef: nullableString(link.PendingClaimantRef),
		ClaimantRef:        nullableString(link.ClaimantRef),
		ClaimTransferRef:   nullableString(link.ClaimTransferRef),
		CreatedAt:          link.CreatedAt,
		UpdatedAt:          link.UpdatedAt,
	}
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
