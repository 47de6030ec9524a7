package commission

import (
	"github.com/shopspring/decimal"

	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/domain/shared/valueobject"
)

// MembershipTier is a vendor's loyalty level. Tiers map to a percentage
// subtracted from the resolved base rate.
type MembershipTier string

const (
	TierBronze   MembershipTier = "bronze"
	TierSilver   MembershipTier = "silver"
	TierGold     MembershipTier = "gold"
	TierPlatinum MembershipTier = "platinum"
)

// IsKnown checks if the tier is one of the standard levels
func (t MembershipTier) IsKnown() bool {
	switch t {
	case TierBronze, TierSilver, TierGold, TierPlatinum:
		return true
	}
	return false
}

// MembershipDiscount is the admin-editable mapping from a tier to the
// discount percentage subtracted from the resolved base rate.
type MembershipDiscount struct {
	shared.BaseEntity
	Tier     MembershipTier      `json:"tier"`
	Discount valueobject.Percent `json:"discount"`
}

// NewMembershipDiscount creates a validated tier discount
func NewMembershipDiscount(tier MembershipTier, discount decimal.Decimal) (*MembershipDiscount, error) {
	if !tier.IsKnown() {
		return nil, shared.NewDomainError("INVALID_TIER", "Unknown membership tier: "+string(tier))
	}
	pct, err := valueobject.NewPercent(discount)
	if err != nil {
		return nil, NewRateBoundsError(err.Error())
	}
	return &MembershipDiscount{
		BaseEntity: shared.NewBaseEntity(),
		Tier:       tier,
		Discount:   pct,
	}, nil
}

// DiscountResolver maps a membership tier to its discount percentage.
// An unknown tier yields a zero discount and known=false - it is treated
// as "no membership benefit", never as a fault; callers surface it as a
// data-quality warning.
type DiscountResolver interface {
	DiscountFor(tier MembershipTier) (discount valueobject.Percent, known bool)
}

// StaticDiscountResolver resolves discounts from a fixed in-memory table.
// It backs the default tier schedule and tests; production wiring reads
// the table from storage at startup and refreshes it on admin edits.
type StaticDiscountResolver struct {
	discounts map[MembershipTier]valueobject.Percent
}

// NewStaticDiscountResolver creates a resolver over the given table
func NewStaticDiscountResolver(discounts map[MembershipTier]valueobject.Percent) *StaticDiscountResolver {
	table := make(map[MembershipTier]valueobject.Percent, len(discounts))
	for tier, discount := range discounts {
		table[tier] = discount
	}
	return &StaticDiscountResolver{discounts: table}
}

// DefaultDiscountResolver returns the standard tier schedule
func DefaultDiscountResolver() *StaticDiscountResolver {
	return NewStaticDiscountResolver(map[MembershipTier]valueobject.Percent{
		TierBronze:   valueobject.ZeroPercent(),
		TierSilver:   valueobject.MustNewPercent(decimal.NewFromFloat(1.5)),
		TierGold:     valueobject.MustNewPercent(decimal.NewFromFloat(3.0)),
		TierPlatinum: valueobject.MustNewPercent(decimal.NewFromFloat(5.0)),
	})
}

// DiscountFor implements DiscountResolver
func (r *StaticDiscountResolver) DiscountFor(tier MembershipTier) (valueobject.Percent, bool) {
	if discount, ok := r.discounts[tier]; ok {
		return discount, true
	}
	return valueobject.ZeroPercent(), false
}
