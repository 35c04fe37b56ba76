package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/referral/internal/referral/domain"
	"gorm.io/gorm"
)

type linkRepo struct{}

func ProvideLink() domain.LinkRepository {
	return &linkRepo{}
}

func (r *linkRepo) Insert(ctx context.Context, db *gorm.DB, link *domain.ReferralLink) error {
	return db.WithContext(ctx).Create(link).Error
}

func (r *linkRepo) FindRedeemable(ctx context.Context, db *gorm.DB, code string, now time.Time) (*domain.ReferralLink, error) {
	var link domain.ReferralLink
	err := db.WithContext(ctx).
		Where("code = ? AND is_active = ? AND expires_at > ?", code, true, now).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepo) MarkUsed(ctx context.Context, db *gorm.DB, code, usedBy string, deactivate bool, now time.Time) error {
	updates := map[string]any{
		"usage_count": gorm.Expr("usage_count + 1"),
		"used_by":     usedBy,
		"used_at":     now,
	}
	if deactivate {
		updates["is_active"] = false
	}
	result := db.WithContext(ctx).
		Model(&domain.ReferralLink{}).
		Where("code = ?", code).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
