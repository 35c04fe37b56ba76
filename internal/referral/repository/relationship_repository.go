package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/referral/internal/referral/domain"
	"gorm.io/gorm"
)

type relationshipRepo struct{}

func ProvideRelationship() domain.RelationshipRepository {
	return &relationshipRepo{}
}

func (r *relationshipRepo) Insert(ctx context.Context, db *gorm.DB, rel *domain.ReferralRelationship) error {
	return db.WithContext(ctx).Create(rel).Error
}

func (r *relationshipRepo) FindByReferredUser(ctx context.Context, db *gorm.DB, userID string) (*domain.ReferralRelationship, error) {
	var rel domain.ReferralRelationship
	err := db.WithContext(ctx).
		Where("referred_user_id = ?", userID).
		First(&rel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rel, nil
}

func (r *relationshipRepo) ApplyCommission(ctx context.Context, db *gorm.DB, referrerID, referredUserID string, amount float64) error {
	result := db.WithContext(ctx).
		Model(&domain.ReferralRelationship{}).
		Where("referrer_id = ? AND referred_user_id = ?", referrerID, referredUserID).
		Updates(map[string]any{
			"total_commission_earned": gorm.Expr("total_commission_earned + ?", amount),
			"transaction_count":       gorm.Expr("transaction_count + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
