package domain

import (
	"context"
	"errors"
)

// TransactionStatusCompleted is the only transaction status that earns a
// commission; every other status is ignored.
const TransactionStatusCompleted = "completed"

type CreateLinkRequest struct {
	ReferrerID string `json:"referrerId" binding:"required"`
	// ExpirationDays overrides the configured default when > 0.
	ExpirationDays int `json:"expirationDays,omitempty"`
}

type CreateLinkResponse struct {
	Code string       `json:"code"`
	Link string       `json:"link"`
	Item ReferralLink `json:"item"`
}

// TransactionEvent is the transaction-completed notification delivered over
// HTTP or the message bus. ReferralBy is advisory; the relationship store is
// authoritative for attribution.
type TransactionEvent struct {
	TransactionID string  `json:"transactionId" binding:"required"`
	UserID        string  `json:"userId" binding:"required"`
	Amount        float64 `json:"amount"`
	Status        string  `json:"status"`
	ReferralBy    string  `json:"referralBy,omitempty"`
}

// ProcessOutcome classifies what ingesting a transaction event did.
type ProcessOutcome string

const (
	// OutcomeSkipped means the event was not commissionable (wrong status,
	// no attribution, or no relationship). Not an error.
	OutcomeSkipped ProcessOutcome = "skipped"
	// OutcomeCommissioned means a completed record was appended and the
	// relationship aggregates were updated.
	OutcomeCommissioned ProcessOutcome = "commissioned"
	// OutcomeDuplicate means a terminal record for the transaction already
	// existed; the replay was a pure no-op.
	OutcomeDuplicate ProcessOutcome = "duplicate"
	// OutcomeFailed means processing failed and a terminal failed record
	// was appended to keep the ledger complete.
	OutcomeFailed ProcessOutcome = "failed"
)

type ProcessResult struct {
	Outcome ProcessOutcome     `json:"outcome"`
	Record  *CommissionHistory `json:"record,omitempty"`
}

type GetHistoryRequest struct {
	ReferrerID string
	Page       int
	Limit      int
}

type HistoryResponse struct {
	History     []CommissionHistory `json:"history"`
	Total       int64               `json:"total"`
	Page        int                 `json:"page"`
	Limit       int                 `json:"limit"`
	TotalEarned float64             `json:"totalEarned"`
}

type Service interface {
	// CreateLink issues a new referral link for the referrer.
	CreateLink(ctx context.Context, req CreateLinkRequest) (*CreateLinkResponse, error)

	// Redeem consumes a code on behalf of userID, creating the relationship.
	// Terminal on first rejection; callers re-invoke with a fresh code.
	Redeem(ctx context.Context, code, userID string) (*ReferralRelationship, error)

	// ProcessTransactionEvent converts a transaction-completed event into at
	// most one terminal commission record. Safe under duplicate delivery.
	ProcessTransactionEvent(ctx context.Context, event TransactionEvent) (ProcessResult, error)

	// GetHistory returns a page of commission records plus aggregate totals.
	GetHistory(ctx context.Context, req GetHistoryRequest) (*HistoryResponse, error)
}

var (
	ErrInvalidReferrer    = errors.New("invalid_referrer")
	ErrInvalidUser        = errors.New("invalid_user")
	ErrInvalidCodeFormat  = errors.New("invalid_code_format")
	ErrCodeNotFound       = errors.New("code_not_found_or_expired")
	ErrSelfReferral       = errors.New("self_referral")
	ErrAlreadyReferred    = errors.New("already_referred")
	ErrCodeSpaceExhausted = errors.New("code_space_exhausted")
)
