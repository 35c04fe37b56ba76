package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// LinkRepository owns the referral_links collection.
type LinkRepository interface {
	// Insert persists a new link. A duplicate code surfaces as a
	// duplicate-key error for the caller to retry with a fresh code.
	Insert(ctx context.Context, db *gorm.DB, link *ReferralLink) error

	// FindRedeemable returns the link only if it is active and unexpired at
	// now. This is a validation read, not a reservation.
	FindRedeemable(ctx context.Context, db *gorm.DB, code string, now time.Time) (*ReferralLink, error)

	// MarkUsed atomically increments usage_count and stamps used_by/used_at.
	// deactivate additionally clears is_active (single-use policy).
	MarkUsed(ctx context.Context, db *gorm.DB, code, usedBy string, deactivate bool, now time.Time) error
}

// RelationshipRepository owns the referral_relationships collection.
type RelationshipRepository interface {
	// Insert persists a new relationship. The unique index on
	// referred_user_id is the enforcement point for "join at most once";
	// a lost race surfaces as a duplicate-key error.
	Insert(ctx context.Context, db *gorm.DB, rel *ReferralRelationship) error

	FindByReferredUser(ctx context.Context, db *gorm.DB, userID string) (*ReferralRelationship, error)

	// ApplyCommission atomically adds amount to total_commission_earned and
	// increments transaction_count. Safe under concurrent callers.
	ApplyCommission(ctx context.Context, db *gorm.DB, referrerID, referredUserID string, amount float64) error
}

// CommissionRepository owns the commission_history collection.
type CommissionRepository interface {
	// InsertIdempotent appends the record unless a record for the same
	// transaction_id already exists. Returns whether the row was inserted;
	// (false, nil) means an earlier delivery already won.
	InsertIdempotent(ctx context.Context, db *gorm.DB, record *CommissionHistory) (bool, error)

	FindByTransactionID(ctx context.Context, db *gorm.DB, transactionID string) (*CommissionHistory, error)

	// ListByReferrer returns a page of records ordered by created_at
	// descending plus the total matching count independent of the window.
	ListByReferrer(ctx context.Context, db *gorm.DB, referrerID string, offset, limit int) ([]CommissionHistory, int64, error)

	// SumCompleted sums commission_amount over completed records for the
	// referrer; zero when none exist.
	SumCompleted(ctx context.Context, db *gorm.DB, referrerID string) (float64, error)
}
