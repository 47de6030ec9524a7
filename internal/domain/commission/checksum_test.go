package commission

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketplace/backend/internal/domain/shared/valueobject"
)

func resolvedFixture(t *testing.T) *CommissionResolution {
	t.Helper()
	resolver := NewResolver(DefaultDiscountResolver())
	item := testLineItem(t)
	item.VendorTier = TierGold
	snap := snapshotOf(overrideFor(t, VariantProduct, &item.ProductID, 6.0, AlwaysActive()))

	res, err := resolver.Resolve(item, snap)
	require.NoError(t, err)
	return res
}

func TestComputeChecksum(t *testing.T) {
	t.Run("identical resolutions hash identically", func(t *testing.T) {
		res := resolvedFixture(t)

		assert.Equal(t, ComputeChecksum(res), ComputeChecksum(res))
	})

	t.Run("checksum is independent of the wall-clock timezone", func(t *testing.T) {
		res := resolvedFixture(t)
		shifted := *res
		shifted.EvaluatedAt = res.EvaluatedAt.Local()

		assert.Equal(t, ComputeChecksum(res), ComputeChecksum(&shifted))
	})

	t.Run("different line items hash differently", func(t *testing.T) {
		a := resolvedFixture(t)
		b := resolvedFixture(t)

		assert.NotEqual(t, ComputeChecksum(a), ComputeChecksum(b))
	})
}

func TestAuditRecordVerify(t *testing.T) {
	t.Run("fresh record verifies", func(t *testing.T) {
		record := NewCommissionAuditRecord(resolvedFixture(t))

		assert.True(t, record.Verify())
		assert.False(t, record.RecordedAt.IsZero())
	})

	t.Run("tampering any field breaks verification", func(t *testing.T) {
		base := resolvedFixture(t)

		mutations := map[string]func(r *CommissionResolution){
			"line item ref":  func(r *CommissionResolution) { r.LineItemRef = "order-1/line-2" },
			"vendor":         func(r *CommissionResolution) { r.VendorID = uuid.New() },
			"evaluated at":   func(r *CommissionResolution) { r.EvaluatedAt = r.EvaluatedAt.Add(1) },
			"selected layer": func(r *CommissionResolution) { r.SelectedVariant = VariantVendor },
			"final rate": func(r *CommissionResolution) {
				r.FinalRate = valueobject.MustNewPercent(decimal.NewFromFloat(2.9))
			},
			"commission amount": func(r *CommissionResolution) {
				r.CommissionAmount = valueobject.Zero(r.CommissionAmount.Currency())
			},
			"trail detail": func(r *CommissionResolution) { r.Trail[0].Detail = "edited" },
		}

		for name, mutate := range mutations {
			t.Run(name, func(t *testing.T) {
				record := NewCommissionAuditRecord(base)
				mutate(&record.Resolution)

				assert.False(t, record.Verify())
			})
		}
	})

	t.Run("tampering the checksum itself breaks verification", func(t *testing.T) {
		record := NewCommissionAuditRecord(resolvedFixture(t))
		record.Checksum = "deadbeef"

		assert.False(t, record.Verify())
	})
}
