package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appcommission "github.com/marketplace/backend/internal/application/commission"
	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared/valueobject"
	"github.com/marketplace/backend/internal/infrastructure/cache"
	"github.com/marketplace/backend/internal/infrastructure/persistence"
)

type resolutionStack struct {
	overrides   *persistence.GormOverrideRepository
	audits      *persistence.GormAuditRepository
	checkpoints *persistence.GormCheckpointRepository
	resolutions *appcommission.ResolutionService
	bulk        *appcommission.BulkService
}

func newResolutionStack(t *testing.T, testDB *TestDB) *resolutionStack {
	t.Helper()

	overrides := persistence.NewGormOverrideRepository(testDB.DB)
	discounts := persistence.NewGormMembershipDiscountRepository(testDB.DB)
	audits := persistence.NewGormAuditRepository(testDB.DB)
	checkpoints := persistence.NewGormCheckpointRepository(testDB.DB)

	policy := appcommission.ResolutionPolicy{
		DefaultRate: valueobject.MustNewPercent(decimal.NewFromFloat(10)),
		RateFloor:   valueobject.MustNewPercent(decimal.NewFromFloat(0)),
	}
	discountSource := cache.NewCachedDiscountSource(discounts, zap.NewNop())
	resolutions := appcommission.NewResolutionService(overrides, audits, discountSource, policy, zap.NewNop())
	bulk := appcommission.NewBulkService(resolutions, checkpoints, zap.NewNop())

	return &resolutionStack{
		overrides:   overrides,
		audits:      audits,
		checkpoints: checkpoints,
		resolutions: resolutions,
		bulk:        bulk,
	}
}

func goldLineItem(t *testing.T, ref string, vendorID uuid.UUID, at time.Time) commission.LineItem {
	t.Helper()
	amount, err := valueobject.NewMoneyFromString("1000.00", "USD")
	require.NoError(t, err)
	return commission.LineItem{
		LineItemRef: ref,
		ProductID:   uuid.New(),
		VendorID:    vendorID,
		CategoryID:  uuid.New(),
		VendorTier:  commission.TierGold,
		Amount:      amount,
		At:          at,
	}
}

func TestResolutionFlow_AuditBeforeReturn(t *testing.T) {
	testDB := NewSharedTestDB(t)
	testDB.CleanTables()
	stack := newResolutionStack(t, testDB)
	ctx := context.Background()

	vendorID := uuid.New()
	override := newOverride(t, commission.VariantVendor, &vendorID, 7.5, commission.ValidityWindow{})
	require.NoError(t, stack.overrides.Upsert(ctx, override))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	item := goldLineItem(t, "order-1/line-1", vendorID, at)

	resolved, err := stack.resolutions.Resolve(ctx, item)
	require.NoError(t, err)
	require.NotNil(t, resolved.Record)
	assert.False(t, resolved.Replayed)

	// Vendor override 7.5% minus the seeded gold discount of 3.0%
	assert.True(t, resolved.Resolution.FinalRate.Decimal().Equal(decimal.NewFromFloat(4.5)),
		"final rate: %s", resolved.Resolution.FinalRate.Decimal())
	assert.True(t, resolved.Resolution.CommissionAmount.Amount().Equal(decimal.NewFromFloat(45)),
		"commission amount: %s", resolved.Resolution.CommissionAmount.Amount())

	// The record hit the database before Resolve returned
	stored, err := stack.audits.FindByID(ctx, resolved.Record.ID)
	require.NoError(t, err)
	assert.True(t, stored.Verify(), "stored record failed checksum verification")
	assert.Equal(t, "order-1/line-1", stored.Resolution.LineItemRef)
}

func TestResolutionFlow_ReplaySameKey(t *testing.T) {
	testDB := NewSharedTestDB(t)
	testDB.CleanTables()
	stack := newResolutionStack(t, testDB)
	ctx := context.Background()

	vendorID := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	item := goldLineItem(t, "order-2/line-1", vendorID, at)

	first, err := stack.resolutions.Resolve(ctx, item)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	// Same ref and instant resolves to the stored record, not a new row
	second, err := stack.resolutions.Resolve(ctx, item)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Record.ID, second.Record.ID)

	var count int64
	require.NoError(t, testDB.DB.Table("commission_audit_records").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestResolutionFlow_BulkRunAndResume(t *testing.T) {
	testDB := NewSharedTestDB(t)
	testDB.CleanTables()
	stack := newResolutionStack(t, testDB)
	ctx := context.Background()

	vendorID := uuid.New()
	at := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	items := make([]commission.LineItem, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, goldLineItem(t, fmt.Sprintf("batch-a/line-%03d", i), vendorID, at))
	}

	batchID := uuid.New()
	summary, err := stack.bulk.Run(ctx, appcommission.NewSliceSource(items), appcommission.BatchOptions{
		BatchID:     batchID,
		Concurrency: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), summary.Processed)
	assert.Equal(t, int64(10), summary.Succeeded)
	assert.Zero(t, summary.Failed)
	require.NotEmpty(t, summary.CheckpointToken)

	checkpoint, err := stack.checkpoints.FindByBatchID(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), checkpoint.Offset)

	var count int64
	require.NoError(t, testDB.DB.Table("commission_audit_records").Count(&count).Error)
	assert.Equal(t, int64(10), count)

	// Re-running the same batch from the returned token audits nothing
	// new: every offset is already behind the resume point
	resumed, err := stack.bulk.Run(ctx, appcommission.NewSliceSource(items), appcommission.BatchOptions{
		BatchID:     batchID,
		ResumeToken: summary.CheckpointToken,
		Concurrency: 3,
	})
	require.NoError(t, err)
	assert.Zero(t, resumed.Processed)
	assert.Zero(t, resumed.Failed)
	assert.Equal(t, summary.CheckpointToken, resumed.CheckpointToken)

	require.NoError(t, testDB.DB.Table("commission_audit_records").Count(&count).Error)
	assert.Equal(t, int64(10), count)
}

func TestMain(m *testing.M) {
	code := m.Run()
	CleanupSharedContainer()
	os.Exit(code)
}
