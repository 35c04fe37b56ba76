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

func TestLinkFindRedeemable(t *testing.T) {
	conn := newTestDB(t, "repo_link_redeemable")
	repo := ProvideLink()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Insert(ctx, conn, &domain.ReferralLink{
		ID:         snowflake.ID(1),
		Code:       "GOOD1234",
		ReferrerID: "referrer-1",
		CreatedAt:  now,
		ExpiresAt:  now.AddDate(0, 0, 30),
		IsActive:   true,
	}))
	require.NoError(t, repo.Insert(ctx, conn, &domain.ReferralLink{
		ID:         snowflake.ID(2),
		Code:       "GONE1234",
		ReferrerID: "referrer-1",
		CreatedAt:  now.AddDate(0, 0, -60),
		ExpiresAt:  now.AddDate(0, 0, -30),
		IsActive:   true,
	}))
	require.NoError(t, repo.Insert(ctx, conn, &domain.ReferralLink{
		ID:         snowflake.ID(3),
		Code:       "OFF01234",
		ReferrerID: "referrer-1",
		CreatedAt:  now,
		ExpiresAt:  now.AddDate(0, 0, 30),
		IsActive:   false,
	}))

	link, err := repo.FindRedeemable(ctx, conn, "GOOD1234", now)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "referrer-1", link.ReferrerID)

	expired, err := repo.FindRedeemable(ctx, conn, "GONE1234", now)
	require.NoError(t, err)
	assert.Nil(t, expired)

	inactive, err := repo.FindRedeemable(ctx, conn, "OFF01234", now)
	require.NoError(t, err)
	assert.Nil(t, inactive)

	// The false flag must survive the insert; a swallowed zero value would
	// store the row as active and make it redeemable.
	var stored domain.ReferralLink
	require.NoError(t, conn.Where("code = ?", "OFF01234").First(&stored).Error)
	assert.False(t, stored.IsActive)

	unknown, err := repo.FindRedeemable(ctx, conn, "NOPE1234", now)
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestLinkInsertDuplicateCode(t *testing.T) {
	conn := newTestDB(t, "repo_link_duplicate")
	repo := ProvideLink()
	ctx := context.Background()
	now := time.Now().UTC()

	first := domain.ReferralLink{
		ID:         snowflake.ID(1),
		Code:       "SAME1234",
		ReferrerID: "referrer-1",
		CreatedAt:  now,
		ExpiresAt:  now.AddDate(0, 0, 30),
		IsActive:   true,
	}
	require.NoError(t, repo.Insert(ctx, conn, &first))

	second := first
	second.ID = snowflake.ID(2)
	err := repo.Insert(ctx, conn, &second)
	require.Error(t, err)
	assert.True(t, db.IsDuplicateKeyErr(err))
}

func TestLinkMarkUsed(t *testing.T) {
	conn := newTestDB(t, "repo_link_mark_used")
	repo := ProvideLink()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Insert(ctx, conn, &domain.ReferralLink{
		ID:         snowflake.ID(1),
		Code:       "USED1234",
		ReferrerID: "referrer-1",
		CreatedAt:  now,
		ExpiresAt:  now.AddDate(0, 0, 30),
		IsActive:   true,
	}))

	require.NoError(t, repo.MarkUsed(ctx, conn, "USED1234", "user-1", false, now))
	require.NoError(t, repo.MarkUsed(ctx, conn, "USED1234", "user-2", false, now))

	var link domain.ReferralLink
	require.NoError(t, conn.Where("code = ?", "USED1234").First(&link).Error)
	assert.EqualValues(t, 2, link.UsageCount)
	require.NotNil(t, link.UsedBy)
	assert.Equal(t, "user-2", *link.UsedBy)
	assert.True(t, link.IsActive)

	// deactivate flips the link off for single-use policies.
	require.NoError(t, repo.MarkUsed(ctx, conn, "USED1234", "user-3", true, now))
	require.NoError(t, conn.Where("code = ?", "USED1234").First(&link).Error)
	assert.False(t, link.IsActive)

	err := repo.MarkUsed(ctx, conn, "NOPE1234", "user-1", false, now)
	assert.Error(t, err)
}
