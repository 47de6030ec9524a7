package commission

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/domain/shared/valueobject"
)

// OverrideVariant identifies which layer of the hierarchy an override
// belongs to. Resolution walks variants in priority order; the first
// active match wins.
type OverrideVariant string

const (
	VariantProduct  OverrideVariant = "product"
	VariantVendor   OverrideVariant = "vendor"
	VariantCategory OverrideVariant = "category"
	VariantGlobal   OverrideVariant = "global"
)

// VariantPriorityOrder lists the variants from most to least specific
var VariantPriorityOrder = []OverrideVariant{
	VariantProduct,
	VariantVendor,
	VariantCategory,
	VariantGlobal,
}

// IsValid checks if the variant is one of the four known layers
func (v OverrideVariant) IsValid() bool {
	switch v {
	case VariantProduct, VariantVendor, VariantCategory, VariantGlobal:
		return true
	}
	return false
}

// RequiresScope returns true for variants that apply to a specific entity.
// Global overrides have an implicit scope of "all".
func (v OverrideVariant) RequiresScope() bool {
	return v != VariantGlobal
}

// Policy band for product and category overrides. Vendor and global
// overrides may use the full [0, 100] range; per-product and per-category
// deals are contractually bounded.
var (
	policyBandMin = decimal.NewFromFloat(0.5)
	policyBandMax = decimal.NewFromFloat(15.0)
)

// CommissionOverride is an administrator-defined commission percentage
// scoped to a product, vendor, category, or the whole platform, optionally
// bounded by a validity window.
type CommissionOverride struct {
	shared.BaseEntity
	Variant   OverrideVariant     `json:"variant"`
	ScopeID   *uuid.UUID          `json:"scope_id,omitempty"`
	Rate      valueobject.Percent `json:"rate"`
	Window    ValidityWindow      `json:"window"`
	Note      string              `json:"note,omitempty"`
	CreatedBy uuid.UUID           `json:"created_by"`
}

// NewCommissionOverride creates a validated override. Rates outside
// [0, 100] - or outside the [0.5, 15] policy band for product and category
// variants - are rejected at write time, never silently clamped here.
func NewCommissionOverride(
	variant OverrideVariant,
	scopeID *uuid.UUID,
	rate decimal.Decimal,
	window ValidityWindow,
	note string,
	createdBy uuid.UUID,
) (*CommissionOverride, error) {
	if !variant.IsValid() {
		return nil, shared.NewDomainError("INVALID_VARIANT", "Override variant must be product, vendor, category or global")
	}
	if variant.RequiresScope() {
		if scopeID == nil || *scopeID == uuid.Nil {
			return nil, shared.NewDomainError("INVALID_SCOPE", "Override of variant "+string(variant)+" requires a scope ID")
		}
	} else if scopeID != nil {
		return nil, shared.NewDomainError("INVALID_SCOPE", "Global overrides must not carry a scope ID")
	}

	pct, err := valueobject.NewPercent(rate)
	if err != nil {
		return nil, NewRateBoundsError(err.Error())
	}
	if variant == VariantProduct || variant == VariantCategory {
		if rate.LessThan(policyBandMin) || rate.GreaterThan(policyBandMax) {
			return nil, NewRateBoundsError(
				"rate " + rate.String() + " is outside the [0.5, 15] policy band for " + string(variant) + " overrides")
		}
	}

	return &CommissionOverride{
		BaseEntity: shared.NewBaseEntity(),
		Variant:    variant,
		ScopeID:    scopeID,
		Rate:       pct,
		Window:     window,
		Note:       note,
		CreatedBy:  createdBy,
	}, nil
}

// ActiveAt reports whether the override applies at the given instant
func (o *CommissionOverride) ActiveAt(t time.Time) bool {
	return o.Window.ActiveAt(t)
}

// Overlaps reports whether another override of the same variant and scope
// would conflict with this one's validity window
func (o *CommissionOverride) Overlaps(other *CommissionOverride) bool {
	if o.Variant != other.Variant {
		return false
	}
	if !sameScope(o.ScopeID, other.ScopeID) {
		return false
	}
	return o.Window.Overlaps(other.Window)
}

// Expire closes the override's window at the given instant. The override
// keeps matching historical resolutions before the instant; replays stay
// correct.
func (o *CommissionOverride) Expire(at time.Time) {
	o.Window = o.Window.TruncateAt(at)
	o.Touch()
}

// UpdateRate replaces the rate, applying the same write-time validation
// as NewCommissionOverride
func (o *CommissionOverride) UpdateRate(rate decimal.Decimal) error {
	pct, err := valueobject.NewPercent(rate)
	if err != nil {
		return NewRateBoundsError(err.Error())
	}
	if o.Variant == VariantProduct || o.Variant == VariantCategory {
		if rate.LessThan(policyBandMin) || rate.GreaterThan(policyBandMax) {
			return NewRateBoundsError(
				"rate " + rate.String() + " is outside the [0.5, 15] policy band for " + string(o.Variant) + " overrides")
		}
	}
	o.Rate = pct
	o.Touch()
	return nil
}

func sameScope(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
