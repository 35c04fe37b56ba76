package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/referral/internal/referral/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&domain.ReferralLink{},
		&domain.ReferralRelationship{},
		&domain.CommissionHistory{},
	))
	return conn
}

func newCommissionRecord(node *snowflake.Node, txnID string, amount float64, status domain.CommissionStatus, createdAt time.Time) *domain.CommissionHistory {
	return &domain.CommissionHistory{
		ID:                        node.Generate(),
		TransactionID:             txnID,
		ReferrerID:                "referrer-1",
		ReferredUserID:            "user-1",
		CommissionAmount:          amount,
		OriginalTransactionAmount: amount / 0.015,
		CommissionRate:            0.015,
		CreatedAt:                 createdAt,
		Status:                    status,
	}
}

func TestInsertIdempotent(t *testing.T) {
	conn := newTestDB(t, "repo_commission_idempotent")
	repo := ProvideCommission()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Now().UTC()
	inserted, err := repo.InsertIdempotent(ctx, conn, newCommissionRecord(node, "txn-1", 15, domain.CommissionStatusCompleted, now))
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same transaction, different row id: the unique index wins, no error.
	inserted, err = repo.InsertIdempotent(ctx, conn, newCommissionRecord(node, "txn-1", 15, domain.CommissionStatusCompleted, now))
	require.NoError(t, err)
	assert.False(t, inserted)

	var count int64
	require.NoError(t, conn.Model(&domain.CommissionHistory{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	found, err := repo.FindByTransactionID(ctx, conn, "txn-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "txn-1", found.TransactionID)

	missing, err := repo.FindByTransactionID(ctx, conn, "txn-missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListByReferrer(t *testing.T) {
	conn := newTestDB(t, "repo_commission_list")
	repo := ProvideCommission()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 15; i++ {
		record := newCommissionRecord(node, fmt.Sprintf("txn-%02d", i), 15, domain.CommissionStatusCompleted, base.Add(time.Duration(i)*time.Minute))
		inserted, err := repo.InsertIdempotent(ctx, conn, record)
		require.NoError(t, err)
		require.True(t, inserted)
	}

	page1, total, err := repo.ListByReferrer(ctx, conn, "referrer-1", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 15, total)
	require.Len(t, page1, 10)
	// Newest first.
	assert.Equal(t, "txn-14", page1[0].TransactionID)

	page2, total, err := repo.ListByReferrer(ctx, conn, "referrer-1", 10, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 15, total)
	require.Len(t, page2, 5)
	assert.Equal(t, "txn-00", page2[4].TransactionID)

	none, total, err := repo.ListByReferrer(ctx, conn, "referrer-nobody", 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)
}

func TestSumCompleted(t *testing.T) {
	conn := newTestDB(t, "repo_commission_sum")
	repo := ProvideCommission()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()

	total, err := repo.SumCompleted(ctx, conn, "referrer-1")
	require.NoError(t, err)
	assert.Zero(t, total)

	now := time.Now().UTC()
	for i, rec := range []*domain.CommissionHistory{
		newCommissionRecord(node, "txn-a", 15, domain.CommissionStatusCompleted, now),
		newCommissionRecord(node, "txn-b", 7.5, domain.CommissionStatusCompleted, now),
		newCommissionRecord(node, "txn-c", 0, domain.CommissionStatusFailed, now),
	} {
		inserted, err := repo.InsertIdempotent(ctx, conn, rec)
		require.NoError(t, err, "record %d", i)
		require.True(t, inserted)
	}

	total, err = repo.SumCompleted(ctx, conn, "referrer-1")
	require.NoError(t, err)
	assert.InDelta(t, 22.5, total, 1e-9)
}
