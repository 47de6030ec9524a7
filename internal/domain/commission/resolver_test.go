package commission

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/domain/shared/valueobject"
)

func testLineItem(t *testing.T) LineItem {
	t.Helper()
	amount, err := valueobject.NewMoneyFromFloat(1000, valueobject.USD)
	require.NoError(t, err)
	return LineItem{
		LineItemRef: "order-1/line-1",
		ProductID:   uuid.New(),
		VendorID:    uuid.New(),
		CategoryID:  uuid.New(),
		VendorTier:  TierBronze,
		Amount:      amount,
		At:          ts("2024-06-01T00:00:00Z"),
	}
}

func overrideFor(t *testing.T, variant OverrideVariant, scope *uuid.UUID, rate float64, window ValidityWindow) *CommissionOverride {
	t.Helper()
	o, err := NewCommissionOverride(variant, scope, decimal.NewFromFloat(rate), window, "", uuid.New())
	require.NoError(t, err)
	return o
}

func snapshotOf(overrides ...*CommissionOverride) *Snapshot {
	byVariant := make(map[OverrideVariant][]*CommissionOverride)
	for _, o := range overrides {
		byVariant[o.Variant] = append(byVariant[o.Variant], o)
	}
	return NewSnapshot(byVariant)
}

func TestResolverPriorityOrder(t *testing.T) {
	resolver := NewResolver(DefaultDiscountResolver())
	item := testLineItem(t)

	t.Run("product override wins over all lower layers", func(t *testing.T) {
		snap := snapshotOf(
			overrideFor(t, VariantProduct, &item.ProductID, 6.0, AlwaysActive()),
			overrideFor(t, VariantVendor, &item.VendorID, 9.0, AlwaysActive()),
			overrideFor(t, VariantCategory, &item.CategoryID, 12.0, AlwaysActive()),
			overrideFor(t, VariantGlobal, nil, 4.0, AlwaysActive()),
		)

		res, err := resolver.Resolve(item, snap)

		require.NoError(t, err)
		assert.Equal(t, VariantProduct, res.SelectedVariant)
		assert.True(t, res.BaseRate.Decimal().Equal(decimal.NewFromFloat(6.0)))
	})

	t.Run("vendor override wins when no product override", func(t *testing.T) {
		snap := snapshotOf(
			overrideFor(t, VariantVendor, &item.VendorID, 9.0, AlwaysActive()),
			overrideFor(t, VariantCategory, &item.CategoryID, 12.0, AlwaysActive()),
		)

		res, err := resolver.Resolve(item, snap)

		require.NoError(t, err)
		assert.Equal(t, VariantVendor, res.SelectedVariant)
	})

	t.Run("category override wins over global", func(t *testing.T) {
		snap := snapshotOf(
			overrideFor(t, VariantCategory, &item.CategoryID, 12.0, AlwaysActive()),
			overrideFor(t, VariantGlobal, nil, 4.0, AlwaysActive()),
		)

		res, err := resolver.Resolve(item, snap)

		require.NoError(t, err)
		assert.Equal(t, VariantCategory, res.SelectedVariant)
	})

	t.Run("global override applies when nothing more specific matches", func(t *testing.T) {
		global := overrideFor(t, VariantGlobal, nil, 4.0, AlwaysActive())

		res, err := resolver.Resolve(item, snapshotOf(global))

		require.NoError(t, err)
		assert.Equal(t, VariantGlobal, res.SelectedVariant)
		require.NotNil(t, res.SelectedOverride)
		assert.Equal(t, global.ID, *res.SelectedOverride)
		assert.False(t, res.UsedSystemDefault())
	})

	t.Run("trail records every probe", func(t *testing.T) {
		snap := snapshotOf(overrideFor(t, VariantCategory, &item.CategoryID, 12.0, AlwaysActive()))

		res, err := resolver.Resolve(item, snap)

		require.NoError(t, err)
		// product and vendor misses, then the category match
		require.Len(t, res.Trail, 3)
		assert.False(t, res.Trail[0].Matched)
		assert.False(t, res.Trail[1].Matched)
		assert.True(t, res.Trail[2].Matched)
		assert.Equal(t, VariantCategory, res.Trail[2].Variant)
	})
}

func TestResolverTimeWindows(t *testing.T) {
	resolver := NewResolver(DefaultDiscountResolver())
	window, _ := NewValidityWindow(tsPtr("2024-01-01T00:00:00Z"), tsPtr("2024-06-01T00:00:00Z"))

	makeItem := func(at time.Time) (LineItem, *Snapshot) {
		item := testLineItem(t)
		item.At = at
		snap := snapshotOf(overrideFor(t, VariantProduct, &item.ProductID, 6.0, window))
		return item, snap
	}

	t.Run("matches at window start", func(t *testing.T) {
		item, snap := makeItem(ts("2024-01-01T00:00:00Z"))
		res, err := resolver.Resolve(item, snap)

		require.NoError(t, err)
		assert.Equal(t, VariantProduct, res.SelectedVariant)
	})

	t.Run("does not match before start", func(t *testing.T) {
		item, snap := makeItem(ts("2023-12-31T23:59:59Z"))
		res, err := resolver.Resolve(item, snap)

		require.NoError(t, err)
		assert.True(t, res.UsedSystemDefault())
	})

	t.Run("does not match at exclusive end", func(t *testing.T) {
		item, snap := makeItem(ts("2024-06-01T00:00:00Z"))
		res, err := resolver.Resolve(item, snap)

		require.NoError(t, err)
		assert.True(t, res.UsedSystemDefault())
	})
}

func TestResolverScenarioA(t *testing.T) {
	// Product override 6.0% valid [2024-01-01, 2024-12-31), gold vendor
	// discount 3%, line amount 1,000,000 SYP at 2024-06-01
	resolver := NewResolver(DefaultDiscountResolver())

	item := testLineItem(t)
	item.VendorTier = TierGold
	amount, err := valueobject.NewMoneyFromFloat(1000000, valueobject.SYP)
	require.NoError(t, err)
	item.Amount = amount

	window, _ := NewValidityWindow(tsPtr("2024-01-01T00:00:00Z"), tsPtr("2024-12-31T00:00:00Z"))
	snap := snapshotOf(overrideFor(t, VariantProduct, &item.ProductID, 6.0, window))

	res, err := resolver.Resolve(item, snap)

	require.NoError(t, err)
	assert.Equal(t, VariantProduct, res.SelectedVariant)
	assert.True(t, res.BaseRate.Decimal().Equal(decimal.NewFromFloat(6.0)))
	assert.True(t, res.DiscountApplied.Decimal().Equal(decimal.NewFromFloat(3.0)))
	assert.True(t, res.FinalRate.Decimal().Equal(decimal.NewFromFloat(3.0)))
	assert.True(t, res.CommissionAmount.Amount().Equal(decimal.NewFromInt(30000)))
	assert.Equal(t, valueobject.SYP, res.CommissionAmount.Currency())
	assert.Empty(t, res.Warnings)
}

func TestResolverScenarioB(t *testing.T) {
	// no override active anywhere, global absent: system default applies
	resolver := NewResolver(DefaultDiscountResolver())
	item := testLineItem(t)

	res, err := resolver.Resolve(item, EmptySnapshot())

	require.NoError(t, err)
	assert.Equal(t, VariantGlobal, res.SelectedVariant)
	assert.Nil(t, res.SelectedOverride)
	assert.True(t, res.UsedSystemDefault())
	assert.True(t, res.BaseRate.Decimal().Equal(decimal.NewFromFloat(5.0)))
}

func TestResolverConfiguredPolicy(t *testing.T) {
	t.Run("configured default rate replaces the built-in", func(t *testing.T) {
		resolver := NewResolver(DefaultDiscountResolver(),
			WithDefaultRate(valueobject.MustNewPercent(decimal.NewFromFloat(7.5))))

		res, err := resolver.Resolve(testLineItem(t), EmptySnapshot())

		require.NoError(t, err)
		assert.True(t, res.FinalRate.Decimal().Equal(decimal.NewFromFloat(7.5)))
	})

	t.Run("discount never drags the rate below the floor", func(t *testing.T) {
		resolver := NewResolver(DefaultDiscountResolver(),
			WithDefaultRate(valueobject.MustNewPercent(decimal.NewFromFloat(2.0))),
			WithRateFloor(valueobject.MustNewPercent(decimal.NewFromFloat(1.0))))

		item := testLineItem(t)
		item.VendorTier = TierPlatinum // 5% discount against a 2% base

		res, err := resolver.Resolve(item, EmptySnapshot())

		require.NoError(t, err)
		assert.True(t, res.FinalRate.Decimal().Equal(decimal.NewFromInt(1)))
	})
}

func TestResolverOverlapTieBreak(t *testing.T) {
	resolver := NewResolver(DefaultDiscountResolver())
	item := testLineItem(t)

	older := overrideFor(t, VariantVendor, &item.VendorID, 5.0, AlwaysActive())
	older.CreatedAt = ts("2024-01-01T00:00:00Z")
	newer := overrideFor(t, VariantVendor, &item.VendorID, 8.0, AlwaysActive())
	newer.CreatedAt = ts("2024-03-01T00:00:00Z")

	res, err := resolver.Resolve(item, snapshotOf(older, newer))

	require.NoError(t, err)
	require.NotNil(t, res.SelectedOverride)
	assert.Equal(t, newer.ID, *res.SelectedOverride)
	assert.True(t, res.BaseRate.Decimal().Equal(decimal.NewFromFloat(8.0)))
	assert.True(t, res.HasWarning(WarnOverlapTieBreak))
}

func TestResolverRateClamping(t *testing.T) {
	resolver := NewResolver(DefaultDiscountResolver())
	item := testLineItem(t)

	// simulate a legacy row whose raw rate bypassed write-time validation
	var badRate valueobject.Percent
	require.NoError(t, badRate.Scan("250"))
	legacy := &CommissionOverride{
		BaseEntity: shared.NewBaseEntity(),
		Variant:    VariantVendor,
		ScopeID:    &item.VendorID,
		Rate:       badRate,
		Window:     AlwaysActive(),
	}

	res, err := resolver.Resolve(item, snapshotOf(legacy))

	require.NoError(t, err)
	assert.True(t, res.BaseRate.Decimal().Equal(decimal.NewFromInt(100)))
	assert.True(t, res.HasWarning(WarnRateClamped))
}

func TestResolverUnknownTier(t *testing.T) {
	resolver := NewResolver(DefaultDiscountResolver())
	item := testLineItem(t)
	item.VendorTier = MembershipTier("diamond")

	res, err := resolver.Resolve(item, EmptySnapshot())

	require.NoError(t, err)
	assert.True(t, res.DiscountApplied.IsZero())
	assert.True(t, res.HasWarning(WarnUnknownTier))
}

func TestResolverRefundReversal(t *testing.T) {
	resolver := NewResolver(DefaultDiscountResolver())
	item := testLineItem(t)
	amount, err := valueobject.NewMoneyFromFloat(-1000, valueobject.USD)
	require.NoError(t, err)
	item.Amount = amount

	snap := snapshotOf(overrideFor(t, VariantProduct, &item.ProductID, 6.0, AlwaysActive()))

	res, err := resolver.Resolve(item, snap)

	require.NoError(t, err)
	// refund commission is computed symmetrically, not special-cased
	assert.True(t, res.CommissionAmount.Amount().Equal(decimal.NewFromInt(-60)))
}

func TestResolverRoundingDeterminism(t *testing.T) {
	resolver := NewResolver(DefaultDiscountResolver(),
		WithDefaultRate(valueobject.MustNewPercent(decimal.NewFromFloat(7.5))))

	item := testLineItem(t)
	amount, err := valueobject.NewMoneyFromString("100.005", valueobject.USD)
	require.NoError(t, err)
	item.Amount = amount

	first, err := resolver.Resolve(item, EmptySnapshot())
	require.NoError(t, err)

	for range 20 {
		res, err := resolver.Resolve(item, EmptySnapshot())
		require.NoError(t, err)
		assert.True(t, first.CommissionAmount.Equals(res.CommissionAmount))
	}

	// 100.005 * 7.5% = 7.500375, banker's rounding to cents
	assert.Equal(t, "7.50", first.CommissionAmount.Amount().StringFixed(2))
}

func TestResolverValidation(t *testing.T) {
	resolver := NewResolver(DefaultDiscountResolver())

	t.Run("rejects missing category", func(t *testing.T) {
		item := testLineItem(t)
		item.CategoryID = uuid.Nil

		_, err := resolver.Resolve(item, EmptySnapshot())

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, ErrCodeInvalidLineItem, domainErr.Code)
	})

	t.Run("rejects empty line item ref", func(t *testing.T) {
		item := testLineItem(t)
		item.LineItemRef = ""

		_, err := resolver.Resolve(item, EmptySnapshot())
		assert.Error(t, err)
	})

	t.Run("zero amount still resolves", func(t *testing.T) {
		item := testLineItem(t)
		item.Amount = valueobject.Zero(valueobject.USD)

		res, err := resolver.Resolve(item, EmptySnapshot())

		require.NoError(t, err)
		assert.True(t, res.CommissionAmount.IsZero())
	})
}
