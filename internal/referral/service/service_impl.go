package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/config"
	obsmetrics "github.com/smallbiznis/referral/internal/observability/metrics"
	"github.com/smallbiznis/referral/internal/referral/domain"
	"github.com/smallbiznis/referral/internal/referralcode"
	"github.com/smallbiznis/referral/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxCodeAttempts bounds code regeneration on duplicate-key collisions.
// Operationally unreachable with an 8-char alphanumeric space, but a broken
// entropy source must surface as an error instead of spinning forever.
const maxCodeAttempts = 5

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Cfg           config.Config
	Links         domain.LinkRepository
	Relationships domain.RelationshipRepository
	Commissions   domain.CommissionRepository
	Metrics       *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	cfg           config.ReferralConfig
	links         domain.LinkRepository
	relationships domain.RelationshipRepository
	commissions   domain.CommissionRepository
	metrics       *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("referral.service"),
		genID:         p.GenID,
		cfg:           p.Cfg.Referral,
		links:         p.Links,
		relationships: p.Relationships,
		commissions:   p.Commissions,
		metrics:       p.Metrics,
	}
}

func (s *Service) CreateLink(ctx context.Context, req domain.CreateLinkRequest) (*domain.CreateLinkResponse, error) {
	referrerID := strings.TrimSpace(req.ReferrerID)
	if referrerID == "" {
		return nil, domain.ErrInvalidReferrer
	}

	days := req.ExpirationDays
	if days <= 0 {
		days = s.cfg.LinkExpirationDays
	}

	now := time.Now().UTC()
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := referralcode.Generate()
		link := domain.ReferralLink{
			ID:         s.genID.Generate(),
			Code:       code,
			ReferrerID: referrerID,
			CreatedAt:  now,
			ExpiresAt:  now.AddDate(0, 0, days),
			IsActive:   true,
		}

		if err := s.links.Insert(ctx, s.db, &link); err != nil {
			if db.IsDuplicateKeyErr(err) {
				s.log.Warn("referral code collision, regenerating",
					zap.String("code", code),
					zap.Int("attempt", attempt+1),
				)
				continue
			}
			return nil, err
		}

		s.metrics.RecordLinkCreated(ctx)
		s.log.Info("referral link created",
			zap.String("referrer_id", referrerID),
			zap.String("code", code),
		)
		return &domain.CreateLinkResponse{
			Code: code,
			Link: referralcode.Link(s.cfg.BaseURL, code),
			Item: link,
		}, nil
	}

	return nil, domain.ErrCodeSpaceExhausted
}

func (s *Service) Redeem(ctx context.Context, code, userID string) (*domain.ReferralRelationship, error) {
	code = strings.TrimSpace(code)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	if !referralcode.ValidFormat(code) {
		return nil, domain.ErrInvalidCodeFormat
	}

	now := time.Now().UTC()
	link, err := s.links.FindRedeemable(ctx, s.db, code, now)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, domain.ErrCodeNotFound
	}

	if link.ReferrerID == userID {
		return nil, domain.ErrSelfReferral
	}

	existing, err := s.relationships.FindByReferredUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyReferred
	}

	rel := &domain.ReferralRelationship{
		ID:             s.genID.Generate(),
		ReferrerID:     link.ReferrerID,
		ReferredUserID: userID,
		ReferralCode:   code,
		JoinedAt:       now,
		IsActive:       true,
	}
	if err := s.relationships.Insert(ctx, s.db, rel); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost a concurrent redemption race; the unique index on
			// referred_user_id picked the winner.
			s.metrics.RecordRedemption(ctx, "conflict")
			return nil, domain.ErrAlreadyReferred
		}
		return nil, err
	}

	// Audit trail only. The relationship insert above is the authoritative
	// outcome, so a failure here is logged, not fatal.
	if err := s.links.MarkUsed(ctx, s.db, code, userID, s.cfg.SingleUseCodes, now); err != nil {
		s.log.Warn("failed to mark referral link used",
			zap.String("code", code),
			zap.Error(err),
		)
	}

	s.metrics.RecordRedemption(ctx, "created")
	s.log.Info("user joined via referral code",
		zap.String("user_id", userID),
		zap.String("code", code),
		zap.String("referrer_id", link.ReferrerID),
	)
	return rel, nil
}

func (s *Service) ProcessTransactionEvent(ctx context.Context, event domain.TransactionEvent) (domain.ProcessResult, error) {
	log := s.log.With(
		zap.String("transaction_id", event.TransactionID),
		zap.String("user_id", event.UserID),
	)

	if event.Status != domain.TransactionStatusCompleted {
		log.Debug("skipping transaction", zap.String("status", event.Status))
		return domain.ProcessResult{Outcome: domain.OutcomeSkipped}, nil
	}
	if strings.TrimSpace(event.ReferralBy) == "" {
		log.Debug("transaction has no referral attribution")
		return domain.ProcessResult{Outcome: domain.OutcomeSkipped}, nil
	}

	rel, err := s.relationships.FindByReferredUser(ctx, s.db, event.UserID)
	if err != nil {
		// Substrate outage before any ledger write; propagate so the
		// consumer retries with backoff.
		return domain.ProcessResult{}, err
	}
	if rel == nil {
		log.Debug("no referral relationship for user")
		return domain.ProcessResult{Outcome: domain.OutcomeSkipped}, nil
	}

	rate := s.cfg.CommissionRate
	amount := event.Amount * rate
	now := time.Now().UTC()
	record := &domain.CommissionHistory{
		ID:                        s.genID.Generate(),
		TransactionID:             event.TransactionID,
		ReferrerID:                rel.ReferrerID,
		ReferredUserID:            event.UserID,
		CommissionAmount:          amount,
		OriginalTransactionAmount: event.Amount,
		CommissionRate:            rate,
		CreatedAt:                 now,
		Status:                    domain.CommissionStatusCompleted,
		ProcessedAt:               &now,
	}

	// Ledger append and aggregate update commit together; the idempotent
	// append decides whether this delivery won.
	var inserted bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		inserted, txErr = s.commissions.InsertIdempotent(ctx, tx, record)
		if txErr != nil {
			return txErr
		}
		if !inserted {
			return nil
		}
		return s.relationships.ApplyCommission(ctx, tx, rel.ReferrerID, event.UserID, amount)
	})
	if err != nil {
		return s.recordFailure(ctx, log, rel, event, err)
	}

	if !inserted {
		existing, findErr := s.commissions.FindByTransactionID(ctx, s.db, event.TransactionID)
		if findErr != nil {
			return domain.ProcessResult{}, findErr
		}
		s.metrics.RecordCommission(ctx, string(domain.OutcomeDuplicate))
		log.Info("duplicate transaction event ignored")
		return domain.ProcessResult{Outcome: domain.OutcomeDuplicate, Record: existing}, nil
	}

	s.metrics.RecordCommission(ctx, string(domain.OutcomeCommissioned))
	log.Info("referral commission recorded",
		zap.String("referrer_id", rel.ReferrerID),
		zap.Float64("commission_amount", amount),
	)
	return domain.ProcessResult{Outcome: domain.OutcomeCommissioned, Record: record}, nil
}

// recordFailure converts a processing error into a terminal failed ledger
// record so the event is observable instead of silently dropped. Only when
// even that write fails does the original error propagate for external retry.
func (s *Service) recordFailure(ctx context.Context, log *zap.Logger, rel *domain.ReferralRelationship, event domain.TransactionEvent, cause error) (domain.ProcessResult, error) {
	now := time.Now().UTC()
	reason := cause.Error()
	failed := &domain.CommissionHistory{
		ID:                        s.genID.Generate(),
		TransactionID:             event.TransactionID,
		ReferrerID:                rel.ReferrerID,
		ReferredUserID:            event.UserID,
		CommissionAmount:          0,
		OriginalTransactionAmount: event.Amount,
		CommissionRate:            s.cfg.CommissionRate,
		CreatedAt:                 now,
		Status:                    domain.CommissionStatusFailed,
		FailureReason:             &reason,
	}

	inserted, insErr := s.commissions.InsertIdempotent(ctx, s.db, failed)
	if insErr != nil {
		log.Error("unable to record commission failure",
			zap.NamedError("cause", cause),
			zap.Error(insErr),
		)
		return domain.ProcessResult{}, cause
	}
	if !inserted {
		// A concurrent delivery won between the rolled-back transaction and
		// this write; the stored record is the terminal outcome, not ours.
		existing, findErr := s.commissions.FindByTransactionID(ctx, s.db, event.TransactionID)
		if findErr != nil {
			return domain.ProcessResult{}, findErr
		}
		s.metrics.RecordCommission(ctx, string(domain.OutcomeDuplicate))
		log.Info("duplicate transaction event ignored")
		return domain.ProcessResult{Outcome: domain.OutcomeDuplicate, Record: existing}, nil
	}

	s.metrics.RecordCommission(ctx, string(domain.OutcomeFailed))
	log.Error("referral commission failed", zap.Error(cause))
	return domain.ProcessResult{Outcome: domain.OutcomeFailed, Record: failed}, nil
}

func (s *Service) GetHistory(ctx context.Context, req domain.GetHistoryRequest) (*domain.HistoryResponse, error) {
	referrerID := strings.TrimSpace(req.ReferrerID)
	if referrerID == "" {
		return nil, domain.ErrInvalidReferrer
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	records, total, err := s.commissions.ListByReferrer(ctx, s.db, referrerID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}

	totalEarned, err := s.commissions.SumCompleted(ctx, s.db, referrerID)
	if err != nil {
		return nil, err
	}

	if records == nil {
		records = []domain.CommissionHistory{}
	}
	return &domain.HistoryResponse{
		History:     records,
		Total:       total,
		Page:        page,
		Limit:       limit,
		TotalEarned: totalEarned,
	}, nil
}
