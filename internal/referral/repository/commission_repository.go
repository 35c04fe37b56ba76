package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/referral/internal/referral/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type commissionRepo struct{}

func ProvideCommission() domain.CommissionRepository {
	return &commissionRepo{}
}

// InsertIdempotent is a conditional write, not a blind insert: the ON
// CONFLICT DO NOTHING clause on the transaction_id unique index makes
// concurrent duplicate deliveries race safely, with RowsAffected telling the
// loser it lost.
func (r *commissionRepo) InsertIdempotent(ctx context.Context, db *gorm.DB, record *domain.CommissionHistory) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_id"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *commissionRepo) FindByTransactionID(ctx context.Context, db *gorm.DB, transactionID string) (*domain.CommissionHistory, error) {
	var record domain.CommissionHistory
	err := db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *commissionRepo) ListByReferrer(ctx context.Context, db *gorm.DB, referrerID string, offset, limit int) ([]domain.CommissionHistory, int64, error) {
	var total int64
	if err := db.WithContext(ctx).
		Model(&domain.CommissionHistory{}).
		Where("referrer_id = ?", referrerID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []domain.CommissionHistory
	err := db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *commissionRepo) SumCompleted(ctx context.Context, db *gorm.DB, referrerID string) (float64, error) {
	var total float64
	err := db.WithContext(ctx).
		Model(&domain.CommissionHistory{}).
		Select("COALESCE(SUM(commission_amount), 0)").
		Where("referrer_id = ? AND status = ?", referrerID, domain.CommissionStatusCompleted).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
