package commission

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/domain/shared/valueobject"
)

// Resolver walks the override hierarchy for a line item and produces a
// resolved rate plus the decision trail that justifies it. It holds no
// mutable state and performs no I/O: every evaluation is a pure function
// of the line item, the snapshot, and the configured policy constants.
type Resolver struct {
	discounts   DiscountResolver
	defaultRate valueobject.Percent
	floor       valueobject.Percent
	logger      *zap.Logger
}

// ResolverOption is a functional option for Resolver configuration
type ResolverOption func(*Resolver)

// WithDefaultRate sets the system default rate used when no global
// override is active. The default never leaves a line item unresolved.
func WithDefaultRate(rate valueobject.Percent) ResolverOption {
	return func(r *Resolver) {
		r.defaultRate = rate
	}
}

// WithRateFloor sets the floor the discounted rate is clamped to
func WithRateFloor(floor valueobject.Percent) ResolverOption {
	return func(r *Resolver) {
		r.floor = floor
	}
}

// WithLogger sets the logger used for data-quality warnings
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a resolver with the given discount table.
// Without options it uses a 5% system default and a 0% floor.
func NewResolver(discounts DiscountResolver, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		discounts:   discounts,
		defaultRate: valueobject.MustNewPercent(decimal.NewFromFloat(5.0)),
		floor:       valueobject.ZeroPercent(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve evaluates one line item against a point-in-time snapshot.
// Variants are probed from most to least specific; the first active match
// supplies the base rate. An absent global override falls back to the
// configured system default. The membership discount is then subtracted
// and the result clamped to the floor.
func (r *Resolver) Resolve(item LineItem, snap *Snapshot) (*CommissionResolution, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	resolution := &CommissionResolution{
		LineItemRef: item.LineItemRef,
		ProductID:   item.ProductID,
		VendorID:    item.VendorID,
		CategoryID:  item.CategoryID,
		EvaluatedAt: item.At,
		Amount:      item.Amount,
	}

	selected := r.selectOverride(item, snap, resolution)

	var baseRate valueobject.Percent
	if selected != nil {
		rate, clamped := valueobject.ClampPercent(selected.Rate.Decimal())
		if clamped {
			r.warn(resolution, WarnRateClamped, fmt.Sprintf(
				"override %s carried out-of-range rate %s, clamped to %s",
				selected.ID, selected.Rate.Decimal(), rate))
		}
		baseRate = rate
		id := selected.ID
		resolution.SelectedVariant = selected.Variant
		resolution.SelectedOverride = &id
	} else {
		baseRate = r.defaultRate
		resolution.SelectedVariant = VariantGlobal
		resolution.Trail = append(resolution.Trail, TrailStep{
			Variant: VariantGlobal,
			Matched: true,
			Rate:    rateString(baseRate),
			Detail:  "no override active; system default rate applied",
		})
	}

	discount, known := r.discounts.DiscountFor(item.VendorTier)
	if !known && item.VendorTier != "" {
		r.warn(resolution, WarnUnknownTier, fmt.Sprintf(
			"membership tier %q is not configured; no discount applied", item.VendorTier))
	}

	resolution.BaseRate = baseRate
	resolution.DiscountApplied = discount
	resolution.FinalRate = baseRate.SubWithFloor(discount, r.floor)
	resolution.CommissionAmount = item.Amount.
		Percentage(resolution.FinalRate.Decimal()).
		RoundToMinorUnit()

	return resolution, nil
}

// selectOverride probes the priority chain and returns the winning
// override, recording every probe on the trail. Returns nil when no layer
// has an active override.
func (r *Resolver) selectOverride(item LineItem, snap *Snapshot, resolution *CommissionResolution) *CommissionOverride {
	for _, variant := range VariantPriorityOrder {
		scopeID := scopeFor(variant, item)
		matches := snap.ActiveAt(variant, scopeID, item.At)

		if len(matches) == 0 {
			resolution.Trail = append(resolution.Trail, TrailStep{
				Variant: variant,
				ScopeID: scopeID,
				Matched: false,
				Detail:  "no active override",
			})
			continue
		}

		winner := matches[0]
		if len(matches) > 1 {
			// overlapping windows should have been rejected on upsert; a
			// deterministic tie-break keeps resolution total instead of
			// crashing on bad data
			r.warn(resolution, WarnOverlapTieBreak, fmt.Sprintf(
				"%d overlapping %s overrides active at %s; most recently created (%s) preferred",
				len(matches), variant, item.At.Format("2006-01-02T15:04:05Z07:00"), winner.ID))
		}

		id := winner.ID
		resolution.Trail = append(resolution.Trail, TrailStep{
			Variant:    variant,
			ScopeID:    scopeID,
			Matched:    true,
			OverrideID: &id,
			Rate:       rateString(winner.Rate),
			Detail:     "active override matched, window " + winner.Window.String(),
		})
		return winner
	}
	return nil
}

func (r *Resolver) warn(resolution *CommissionResolution, code WarningCode, message string) {
	resolution.Warnings = append(resolution.Warnings, ResolutionWarning{Code: code, Message: message})
	r.logger.Warn("commission resolution warning",
		zap.String("line_item_ref", resolution.LineItemRef),
		zap.String("code", string(code)),
		zap.String("detail", message),
	)
}

func scopeFor(variant OverrideVariant, item LineItem) *uuid.UUID {
	switch variant {
	case VariantProduct:
		id := item.ProductID
		return &id
	case VariantVendor:
		id := item.VendorID
		return &id
	case VariantCategory:
		id := item.CategoryID
		return &id
	default:
		return nil
	}
}

func rateString(p valueobject.Percent) *string {
	s := p.Decimal().String()
	return &s
}
