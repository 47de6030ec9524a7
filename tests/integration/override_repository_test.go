package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketplace/backend/internal/domain/commission"
	domainshared "github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/infrastructure/persistence"
)

func newOverride(t *testing.T, variant commission.OverrideVariant, scopeID *uuid.UUID, rate float64, window commission.ValidityWindow) *commission.CommissionOverride {
	t.Helper()
	override, err := commission.NewCommissionOverride(
		variant, scopeID, decimal.NewFromFloat(rate), window, "integration fixture", uuid.New())
	require.NoError(t, err)
	return override
}

func windowBetween(t *testing.T, from, to time.Time) commission.ValidityWindow {
	t.Helper()
	w, err := commission.NewValidityWindow(&from, &to)
	require.NoError(t, err)
	return w
}

func TestOverrideRepository_UpsertAndFind(t *testing.T) {
	testDB := NewSharedTestDB(t)
	testDB.CleanTables()
	repo := persistence.NewGormOverrideRepository(testDB.DB)
	ctx := context.Background()

	scopeID := uuid.New()
	override := newOverride(t, commission.VariantVendor, &scopeID, 7.5, commission.ValidityWindow{})

	require.NoError(t, repo.Upsert(ctx, override))

	found, err := repo.FindByID(ctx, override.ID)
	require.NoError(t, err)
	assert.Equal(t, commission.VariantVendor, found.Variant)
	require.NotNil(t, found.ScopeID)
	assert.Equal(t, scopeID, *found.ScopeID)
	assert.True(t, found.Rate.Decimal().Equal(decimal.NewFromFloat(7.5)),
		"rate roundtrip mismatch: %s", found.Rate.Decimal())
}

func TestOverrideRepository_OverlapRejected(t *testing.T) {
	testDB := NewSharedTestDB(t)
	testDB.CleanTables()
	repo := persistence.NewGormOverrideRepository(testDB.DB)
	ctx := context.Background()

	scopeID := uuid.New()
	open := newOverride(t, commission.VariantVendor, &scopeID, 7.5, commission.ValidityWindow{})
	require.NoError(t, repo.Upsert(ctx, open))

	// An open-ended window overlaps everything for the same scope
	conflicting := newOverride(t, commission.VariantVendor, &scopeID, 9.0, commission.ValidityWindow{})
	err := repo.Upsert(ctx, conflicting)
	require.Error(t, err)

	var domainErr *domainshared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, commission.ErrCodeRejectedOverlap, domainErr.Code)

	// A different scope is untouched by the conflict check
	otherScope := uuid.New()
	other := newOverride(t, commission.VariantVendor, &otherScope, 9.0, commission.ValidityWindow{})
	assert.NoError(t, repo.Upsert(ctx, other))
}

func TestOverrideRepository_DisjointWindows(t *testing.T) {
	testDB := NewSharedTestDB(t)
	testDB.CleanTables()
	repo := persistence.NewGormOverrideRepository(testDB.DB)
	ctx := context.Background()

	scopeID := uuid.New()
	q1 := windowBetween(t,
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	q2 := windowBetween(t,
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))

	first := newOverride(t, commission.VariantVendor, &scopeID, 6.0, q1)
	second := newOverride(t, commission.VariantVendor, &scopeID, 8.0, q2)
	require.NoError(t, repo.Upsert(ctx, first))
	require.NoError(t, repo.Upsert(ctx, second))

	// February falls in the first quarter's window only
	active, err := repo.ListActive(ctx, commission.VariantVendor, &scopeID,
		time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)

	// May falls in the second
	active, err = repo.ListActive(ctx, commission.VariantVendor, &scopeID,
		time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}

func TestOverrideRepository_Expire(t *testing.T) {
	testDB := NewSharedTestDB(t)
	testDB.CleanTables()
	repo := persistence.NewGormOverrideRepository(testDB.DB)
	ctx := context.Background()

	scopeID := uuid.New()
	override := newOverride(t, commission.VariantVendor, &scopeID, 7.5, commission.ValidityWindow{})
	require.NoError(t, repo.Upsert(ctx, override))

	expireAt := time.Now().UTC().Add(-time.Minute)
	expired, err := repo.Expire(ctx, override.ID, expireAt)
	require.NoError(t, err)
	require.NotNil(t, expired.Window.To)

	// The row is kept for historical resolutions but no longer listed
	active, err := repo.ListActive(ctx, commission.VariantVendor, &scopeID, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, active)

	found, err := repo.FindByID(ctx, override.ID)
	require.NoError(t, err)
	assert.Equal(t, override.ID, found.ID)
}

func TestOverrideRepository_LoadSnapshot(t *testing.T) {
	testDB := NewSharedTestDB(t)
	testDB.CleanTables()
	repo := persistence.NewGormOverrideRepository(testDB.DB)
	ctx := context.Background()

	productID := uuid.New()
	vendorID := uuid.New()
	categoryID := uuid.New()

	require.NoError(t, repo.Upsert(ctx, newOverride(t, commission.VariantProduct, &productID, 4.0, commission.ValidityWindow{})))
	require.NoError(t, repo.Upsert(ctx, newOverride(t, commission.VariantVendor, &vendorID, 7.5, commission.ValidityWindow{})))
	require.NoError(t, repo.Upsert(ctx, newOverride(t, commission.VariantGlobal, nil, 10.0, commission.ValidityWindow{})))

	// Overrides scoped to other entities must not leak into the snapshot
	otherVendor := uuid.New()
	require.NoError(t, repo.Upsert(ctx, newOverride(t, commission.VariantVendor, &otherVendor, 12.0, commission.ValidityWindow{})))

	item := commission.LineItem{
		LineItemRef: "snap-001",
		ProductID:   productID,
		VendorID:    vendorID,
		CategoryID:  categoryID,
		VendorTier:  commission.TierBronze,
		At:          time.Now().UTC(),
	}

	snapshot, err := repo.LoadSnapshot(ctx, item)
	require.NoError(t, err)

	require.Len(t, snapshot.ActiveAt(commission.VariantProduct, &productID, item.At), 1)
	require.Len(t, snapshot.ActiveAt(commission.VariantVendor, &vendorID, item.At), 1)
	assert.Empty(t, snapshot.ActiveAt(commission.VariantCategory, &categoryID, item.At))
	require.Len(t, snapshot.ActiveAt(commission.VariantGlobal, nil, item.At), 1)

	// The other vendor's override must not appear for this item's vendor
	assert.Empty(t, snapshot.ActiveAt(commission.VariantVendor, &otherVendor, item.At))
}
