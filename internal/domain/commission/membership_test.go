package commission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMembershipDiscount(t *testing.T) {
	t.Run("creates valid discount", func(t *testing.T) {
		d, err := NewMembershipDiscount(TierGold, decimal.NewFromFloat(3.0))

		require.NoError(t, err)
		assert.Equal(t, TierGold, d.Tier)
		assert.Equal(t, "3%", d.Discount.String())
	})

	t.Run("rejects unknown tier", func(t *testing.T) {
		_, err := NewMembershipDiscount(MembershipTier("diamond"), decimal.NewFromInt(1))
		assert.Error(t, err)
	})

	t.Run("rejects out-of-range discount", func(t *testing.T) {
		_, err := NewMembershipDiscount(TierSilver, decimal.NewFromInt(-1))
		assert.Error(t, err)
	})
}

func TestStaticDiscountResolver(t *testing.T) {
	resolver := DefaultDiscountResolver()

	t.Run("known tier resolves its discount", func(t *testing.T) {
		discount, known := resolver.DiscountFor(TierGold)

		assert.True(t, known)
		assert.True(t, discount.Decimal().Equal(decimal.NewFromFloat(3.0)))
	})

	t.Run("bronze has no benefit", func(t *testing.T) {
		discount, known := resolver.DiscountFor(TierBronze)

		assert.True(t, known)
		assert.True(t, discount.IsZero())
	})

	t.Run("unknown tier is zero discount, not an error", func(t *testing.T) {
		discount, known := resolver.DiscountFor(MembershipTier("diamond"))

		assert.False(t, known)
		assert.True(t, discount.IsZero())
	})
}
