package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/referral/domain"
	"github.com/smallbiznis/referral/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationshipUniquePerReferredUser(t *testing.T) {
	conn := newTestDB(t, "repo_rel_unique")
	repo := ProvideRelationship()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Insert(ctx, conn, &domain.ReferralRelationship{
		ID:             snowflake.ID(1),
		ReferrerID:     "referrer-1",
		ReferredUserID: "user-1",
		ReferralCode:   "CODE1234",
		JoinedAt:       now,
		IsActive:       true,
	}))

	// A second relationship for the same referred user loses to the unique
	// index, even with a different referrer.
	err := repo.Insert(ctx, conn, &domain.ReferralRelationship{
		ID:             snowflake.ID(2),
		ReferrerID:     "referrer-2",
		ReferredUserID: "user-1",
		ReferralCode:   "CODE5678",
		JoinedAt:       now,
		IsActive:       true,
	})
	require.Error(t, err)
	assert.True(t, db.IsDuplicateKeyErr(err))

	found, err := repo.FindByReferredUser(ctx, conn, "user-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "referrer-1", found.ReferrerID)

	missing, err := repo.FindByReferredUser(ctx, conn, "user-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRelationshipInactiveRoundTrip(t *testing.T) {
	conn := newTestDB(t, "repo_rel_inactive")
	repo := ProvideRelationship()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, conn, &domain.ReferralRelationship{
		ID:             snowflake.ID(1),
		ReferrerID:     "referrer-1",
		ReferredUserID: "user-1",
		ReferralCode:   "CODE1234",
		JoinedAt:       time.Now().UTC(),
		IsActive:       false,
	}))

	rel, err := repo.FindByReferredUser(ctx, conn, "user-1")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.False(t, rel.IsActive)
}

func TestApplyCommission(t *testing.T) {
	conn := newTestDB(t, "repo_rel_apply")
	repo := ProvideRelationship()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Insert(ctx, conn, &domain.ReferralRelationship{
		ID:             snowflake.ID(1),
		ReferrerID:     "referrer-1",
		ReferredUserID: "user-1",
		ReferralCode:   "CODE1234",
		JoinedAt:       now,
		IsActive:       true,
	}))

	require.NoError(t, repo.ApplyCommission(ctx, conn, "referrer-1", "user-1", 15))
	require.NoError(t, repo.ApplyCommission(ctx, conn, "referrer-1", "user-1", 7.5))

	rel, err := repo.FindByReferredUser(ctx, conn, "user-1")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.InDelta(t, 22.5, rel.TotalCommissionEarned, 1e-9)
	assert.EqualValues(t, 2, rel.TransactionCount)

	err = repo.ApplyCommission(ctx, conn, "referrer-1", "user-unknown", 15)
	assert.Error(t, err)
}
