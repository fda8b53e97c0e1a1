package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendio-backend/pkg/db/models"
	"github.com/angelmondragon/vendio-backend/pkg/enums"
)

func setupSettlementTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:settlement_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	transactions := `
CREATE TABLE transactions (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  order_item_id TEXT,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  platform_fee_bps INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'captured',
  provider_ref TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	payouts := `
CREATE TABLE payouts (
  id TEXT PRIMARY KEY,
  transaction_id TEXT NOT NULL,
  to_user_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  provider_ref TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	escrows := `
CREATE TABLE payment_escrows (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  payout_trigger TEXT NOT NULL DEFAULT 'delivered',
  current_status TEXT NOT NULL DEFAULT 'held',
  released_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (order_id, seller_id)
);`
	require.NoError(t, db.Exec(transactions).Error)
	require.NoError(t, db.Exec(payouts).Error)
	require.NoError(t, db.Exec(escrows).Error)
	return db
}

func seedTransaction(t *testing.T, db *gorm.DB, orderID uuid.UUID) *models.Transaction {
	t.Helper()

	txn := &models.Transaction{
		ID:             uuid.New(),
		OrderID:        orderID,
		BuyerID:        uuid.New(),
		SellerID:       uuid.New(),
		AmountCents:    1000,
		PlatformFeeBps: 1200,
		Status:         enums.TransactionStatusCaptured,
	}
	require.NoError(t, db.Create(txn).Error)
	return txn
}

func seedEscrow(t *testing.T, db *gorm.DB, orderID uuid.UUID, status enums.EscrowStatus) *models.PaymentEscrow {
	t.Helper()

	escrow := &models.PaymentEscrow{
		ID:            uuid.New(),
		OrderID:       orderID,
		SellerID:      uuid.New(),
		AmountCents:   880,
		PayoutTrigger: enums.PayoutTriggerDelivered,
		CurrentStatus: status,
	}
	require.NoError(t, db.Create(escrow).Error)
	return escrow
}

func TestHasTransactionsForOrder(t *testing.T) {
	t.Parallel()

	db := setupSettlementTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	require.NoError(t, repo.CreateTransactions(ctx, nil))

	settled, err := repo.HasTransactionsForOrder(ctx, orderID)
	require.NoError(t, err)
	assert.False(t, settled)

	seedTransaction(t, db, orderID)

	settled, err = repo.HasTransactionsForOrder(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, settled)

	other, err := repo.HasTransactionsForOrder(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, other)
}

func TestSetPayoutProviderRef(t *testing.T) {
	t.Parallel()

	db := setupSettlementTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	txn := seedTransaction(t, db, uuid.New())
	payout := &models.Payout{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		ToUserID:      txn.SellerID,
		AmountCents:   880,
	}
	require.NoError(t, repo.CreatePayout(ctx, payout))

	paidAt := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetPayoutProviderRef(ctx, payout.ID, "tr_1", &paidAt))

	var after models.Payout
	require.NoError(t, db.First(&after, "id = ?", payout.ID).Error)
	require.NotNil(t, after.ProviderRef)
	assert.Equal(t, "tr_1", *after.ProviderRef)
	require.NotNil(t, after.PaidAt)
	assert.True(t, after.PaidAt.Equal(paidAt))
}

func TestSetPayoutProviderRef_FailureSentinelLeavesPaidAtEmpty(t *testing.T) {
	t.Parallel()

	db := setupSettlementTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	txn := seedTransaction(t, db, uuid.New())
	payout := &models.Payout{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		ToUserID:      txn.SellerID,
		AmountCents:   880,
	}
	require.NoError(t, repo.CreatePayout(ctx, payout))

	require.NoError(t, repo.SetPayoutProviderRef(ctx, payout.ID, "failed_1756461600", nil))

	var after models.Payout
	require.NoError(t, db.First(&after, "id = ?", payout.ID).Error)
	require.NotNil(t, after.ProviderRef)
	assert.Equal(t, "failed_1756461600", *after.ProviderRef)
	assert.Nil(t, after.PaidAt)
}

func TestFindEscrow(t *testing.T) {
	t.Parallel()

	db := setupSettlementTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	seeded := seedEscrow(t, db, orderID, enums.EscrowStatusHeld)

	found, err := repo.FindEscrow(ctx, orderID, seeded.SellerID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, seeded.ID, found.ID)

	missing, err := repo.FindEscrow(ctx, orderID, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReleaseEscrows(t *testing.T) {
	t.Parallel()

	db := setupSettlementTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	first := seedEscrow(t, db, orderID, enums.EscrowStatusHeld)
	second := seedEscrow(t, db, orderID, enums.EscrowStatusHeld)
	already := seedEscrow(t, db, orderID, enums.EscrowStatusReleased)
	other := seedEscrow(t, db, uuid.New(), enums.EscrowStatusHeld)

	at := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	released, err := repo.ReleaseEscrows(ctx, orderID, at)
	require.NoError(t, err)
	assert.Equal(t, int64(2), released)

	for _, id := range []uuid.UUID{first.ID, second.ID} {
		var after models.PaymentEscrow
		require.NoError(t, db.First(&after, "id = ?", id).Error)
		assert.Equal(t, enums.EscrowStatusReleased, after.CurrentStatus)
		require.NotNil(t, after.ReleasedAt)
		assert.True(t, after.ReleasedAt.Equal(at))
	}

	// rows already out of held are not touched again
	var untouched models.PaymentEscrow
	require.NoError(t, db.First(&untouched, "id = ?", already.ID).Error)
	assert.Nil(t, untouched.ReleasedAt)

	var foreign models.PaymentEscrow
	require.NoError(t, db.First(&foreign, "id = ?", other.ID).Error)
	assert.Equal(t, enums.EscrowStatusHeld, foreign.CurrentStatus)
}
