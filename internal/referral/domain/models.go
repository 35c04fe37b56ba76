package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ReferralLink is a redeemable invitation issued by a referrer. Links are
// never deleted; they expire or get soft-disabled via IsActive.
type ReferralLink struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Code       string       `gorm:"type:text;not null;uniqueIndex:ux_referral_links_code" json:"code"`
	ReferrerID string       `gorm:"type:text;not null;index" json:"referrerId"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	ExpiresAt  time.Time    `gorm:"not null" json:"expiresAt"`
	// No gorm default on purpose: a default tag makes gorm omit false from
	// the INSERT, so inactive rows would silently come back active.
	IsActive bool `gorm:"not null" json:"isActive"`

	// UsageCount, UsedBy and UsedAt are an audit trail, not a correctness
	// mechanism. Single-use semantics are enforced by the relationship
	// table's unique index on referred_user_id.
	UsageCount int64      `gorm:"not null;default:0" json:"usageCount"`
	UsedBy     *string    `gorm:"type:text" json:"usedBy,omitempty"`
	UsedAt     *time.Time `json:"usedAt,omitempty"`
}

// TableName sets the database table name.
func (ReferralLink) TableName() string { return "referral_links" }

// Redeemable reports whether the link can still be consumed at the given time.
func (l ReferralLink) Redeemable(now time.Time) bool {
	return l.IsActive && now.Before(l.ExpiresAt)
}

// ReferralRelationship is the durable referrer-to-referred binding. At most
// one relationship exists per referred user, ever.
type ReferralRelationship struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	ReferrerID     string       `gorm:"type:text;not null;index" json:"referrerId"`
	ReferredUserID string       `gorm:"type:text;not null;uniqueIndex:ux_referral_relationships_referred_user" json:"referredUserId"`
	ReferralCode   string       `gorm:"type:text;not null" json:"referralCode"`
	JoinedAt       time.Time    `gorm:"not null" json:"joinedAt"`
	IsActive       bool         `gorm:"not null" json:"isActive"`

	// Running aggregates, denormalized for fast reads. Mutated only by
	// ApplyCommission, monotonically.
	TotalCommissionEarned float64 `gorm:"not null;default:0" json:"totalCommissionEarned"`
	TransactionCount      int64   `gorm:"not null;default:0" json:"transactionCount"`
}

// TableName sets the database table name.
func (ReferralRelationship) TableName() string { return "referral_relationships" }

// CommissionStatus is the terminal state of a commission record.
type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusCompleted CommissionStatus = "completed"
	CommissionStatusFailed    CommissionStatus = "failed"
)

// CommissionHistory is one record per commissionable transaction. The unique
// index on transaction_id is the idempotency anchor for at-least-once event
// delivery: a terminal record exists at most once per transaction and is
// immutable afterwards.
type CommissionHistory struct {
	ID                        snowflake.ID     `gorm:"primaryKey" json:"id"`
	TransactionID             string           `gorm:"type:text;not null;uniqueIndex:ux_commission_history_transaction" json:"transactionId"`
	ReferrerID                string           `gorm:"type:text;not null;index" json:"referrerId"`
	ReferredUserID            string           `gorm:"type:text;not null;index" json:"referredUserId"`
	CommissionAmount          float64          `gorm:"not null" json:"commissionAmount"`
	OriginalTransactionAmount float64          `gorm:"not null" json:"originalTransactionAmount"`
	CommissionRate            float64          `gorm:"not null" json:"commissionRate"`
	CreatedAt                 time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	Status                    CommissionStatus `gorm:"type:text;not null" json:"status"`
	ProcessedAt               *time.Time       `json:"processedAt,omitempty"`
	FailureReason             *string          `gorm:"type:text" json:"failureReason,omitempty"`
}

// TableName sets the database table name.
func (CommissionHistory) TableName() string { return "commission_history" }
