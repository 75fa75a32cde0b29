package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/ports"
)

type linkRepository struct {
	db *gorm.DB
}

func (r *linkRepository) Create(ctx context.Context, link domain.Link) error {
	rec := toLinkModel(link)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *linkRepository) GetByID(ctx context.Context, linkID string) (domain.Link, error) {
	var rec linkModel
	if err := r.db.WithContext(ctx).Where("link_id = ?", linkID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Link{}, domain.ErrNotFound
		}
		return domain.Link{}, err
	}
	return toDomainLink(rec), nil
}

func (r *linkRepository) List(ctx context.Context, query ports.ListQuery) ([]domain.Link, int, error) {
	base := r.db.WithContext(ctx).Model(&linkModel{})
	if query.CreatorRef != "" {
		base = base.Where("creator_ref = ?", query.CreatorRef)
	}
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []linkModel
	if err := base.Order("created_at DESC").Limit(query.Limit).Offset(query.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.Link, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomainLink(rec))
	}
	return out, int(total), nil
}

// CompareAndTransition is a single conditional UPDATE guarded by the expected
// state. Zero rows affected means someone else moved the link first (or the
// link does not exist); the distinction is resolved by one follow-up read.
func (r *linkRepository) CompareAndTransition(ctx context.Context, linkID string, expected, next domain.LinkState, updates ports.LinkUpdates, at time.Time) (domain.Link, error) {
	values := map[string]interface{}{
		"state":      string(next),
		"updated_at": at,
	}
	if updates.FundingTransferRef != nil {
		values["funding_transfer_ref"] = nullableString(*updates.FundingTransferRef)
	}
	if updates.PendingClaimantRef != nil {
		values["pending_claimant_ref"] = nullableString(*updates.PendingClaimantRef)
	}
	if updates.ClaimantRef != nil {
		values["claimant_ref"] = nullableString(*updates.ClaimantRef)
	}
	if updates.ClaimTransferRef != nil {
		values["claim_transfer_ref"] = nullableString(*updates.ClaimTransferRef)
	}

	res := r.db.WithContext(ctx).
		Model(&linkModel{}).
		Where("link_id = ?", linkID).
		Where("state = ?", string(expected)).
		Updates(values)
	if res.Error != nil {
		return domain.Link{}, res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&linkModel{}).Where("link_id = ?", linkID).Count(&exists).Error; err != nil {
			return domain.Link{}, err
		}
		if exists == 0 {
			return domain.Link{}, domain.ErrNotFound
		}
		return domain.Link{}, domain.ErrConflict
	}
	return r.GetByID(ctx, linkID)
}
