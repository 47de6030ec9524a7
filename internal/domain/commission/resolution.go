package commission

import (
	"time"

	"github.com/google/uuid"

	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/domain/shared/valueobject"
)

// LineItem carries the order-line facts the engine resolves against.
// IDs are plain foreign-key-style identifiers supplied by the order
// component; the resolver never follows them into the entity graph.
type LineItem struct {
	LineItemRef string            `json:"line_item_ref"`
	ProductID   uuid.UUID         `json:"product_id"`
	VendorID    uuid.UUID         `json:"vendor_id"`
	CategoryID  uuid.UUID         `json:"category_id"`
	VendorTier  MembershipTier    `json:"vendor_tier"`
	Amount      valueobject.Money `json:"amount"`
	At          time.Time         `json:"at"`
}

// Validate rejects line items the resolver cannot evaluate. Zero and
// negative amounts are allowed: refund reversals resolve symmetrically.
func (li LineItem) Validate() error {
	if li.LineItemRef == "" {
		return shared.NewDomainError(ErrCodeInvalidLineItem, "line item ref cannot be empty")
	}
	if li.ProductID == uuid.Nil {
		return shared.NewDomainError(ErrCodeInvalidLineItem, "line item "+li.LineItemRef+" references no product")
	}
	if li.VendorID == uuid.Nil {
		return shared.NewDomainError(ErrCodeInvalidLineItem, "line item "+li.LineItemRef+" references no vendor")
	}
	if li.CategoryID == uuid.Nil {
		return shared.NewDomainError(ErrCodeInvalidLineItem, "line item "+li.LineItemRef+" references an unknown category")
	}
	if li.Amount.Currency() == "" {
		return shared.NewDomainError(ErrCodeInvalidLineItem, "line item "+li.LineItemRef+" has no currency")
	}
	if li.At.IsZero() {
		return shared.NewDomainError(ErrCodeInvalidLineItem, "line item "+li.LineItemRef+" has no evaluation timestamp")
	}
	return nil
}

// WarningCode classifies non-fatal resolution events
type WarningCode string

const (
	WarnRateClamped     WarningCode = "RATE_CLAMPED"
	WarnOverlapTieBreak WarningCode = "OVERLAP_TIEBREAK"
	WarnUnknownTier     WarningCode = "UNKNOWN_TIER"
)

// ResolutionWarning is attached to a resolution's trail when the engine
// had to clamp a rate, break a tie between overlapping overrides, or fall
// back for an unknown membership tier. Warnings never abort processing.
type ResolutionWarning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// TrailStep records one probe of the priority chain. The full trail is
// what makes a resolution explainable: a disputed payout is settled by
// replaying the steps, not by re-deriving assumptions.
type TrailStep struct {
	Variant    OverrideVariant `json:"variant"`
	ScopeID    *uuid.UUID      `json:"scope_id,omitempty"`
	Matched    bool            `json:"matched"`
	OverrideID *uuid.UUID      `json:"override_id,omitempty"`
	Rate       *string         `json:"rate,omitempty"`
	Detail     string          `json:"detail"`
}

// CommissionResolution is the full output of evaluating one line item:
// the selected layer, the rates before and after discount, the settled
// commission amount, and the decision trail that justifies them.
type CommissionResolution struct {
	LineItemRef      string              `json:"line_item_ref"`
	ProductID        uuid.UUID           `json:"product_id"`
	VendorID         uuid.UUID           `json:"vendor_id"`
	CategoryID       uuid.UUID           `json:"category_id"`
	EvaluatedAt      time.Time           `json:"evaluated_at"`
	SelectedVariant  OverrideVariant     `json:"selected_variant"`
	SelectedOverride *uuid.UUID          `json:"selected_override,omitempty"`
	BaseRate         valueobject.Percent `json:"base_rate"`
	DiscountApplied  valueobject.Percent `json:"discount_applied"`
	FinalRate        valueobject.Percent `json:"final_rate"`
	Amount           valueobject.Money   `json:"amount"`
	CommissionAmount valueobject.Money   `json:"commission_amount"`
	Trail            []TrailStep         `json:"trail"`
	Warnings         []ResolutionWarning `json:"warnings,omitempty"`
}

// UsedSystemDefault reports whether the resolution fell through the whole
// hierarchy to the configured default rate
func (r *CommissionResolution) UsedSystemDefault() bool {
	return r.SelectedVariant == VariantGlobal && r.SelectedOverride == nil
}

// HasWarning reports whether the trail carries a warning with the code
func (r *CommissionResolution) HasWarning(code WarningCode) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
