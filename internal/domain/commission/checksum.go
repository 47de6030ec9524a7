package commission

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// canonicalResolution is the fixed-order, string-normalized form of a
// resolution used for checksumming. Field order is given by the struct,
// timestamps are UTC RFC3339Nano, and decimals are rendered with
// decimal.String, so the checksum does not depend on JSON map ordering or
// on the timezone the resolution was computed in.
type canonicalResolution struct {
	LineItemRef      string               `json:"line_item_ref"`
	ProductID        string               `json:"product_id"`
	VendorID         string               `json:"vendor_id"`
	CategoryID       string               `json:"category_id"`
	EvaluatedAt      string               `json:"evaluated_at"`
	SelectedVariant  string               `json:"selected_variant"`
	SelectedOverride string               `json:"selected_override"`
	BaseRate         string               `json:"base_rate"`
	DiscountApplied  string               `json:"discount_applied"`
	FinalRate        string               `json:"final_rate"`
	Amount           string               `json:"amount"`
	Currency         string               `json:"currency"`
	CommissionAmount string               `json:"commission_amount"`
	Trail            []canonicalTrailStep `json:"trail"`
	Warnings         []string             `json:"warnings"`
}

type canonicalTrailStep struct {
	Variant    string `json:"variant"`
	ScopeID    string `json:"scope_id"`
	Matched    bool   `json:"matched"`
	OverrideID string `json:"override_id"`
	Rate       string `json:"rate"`
	Detail     string `json:"detail"`
}

// CanonicalSerialization renders the resolution in its canonical byte form
func CanonicalSerialization(r *CommissionResolution) []byte {
	c := canonicalResolution{
		LineItemRef:     r.LineItemRef,
		ProductID:       r.ProductID.String(),
		VendorID:        r.VendorID.String(),
		CategoryID:      r.CategoryID.String(),
		EvaluatedAt:     r.EvaluatedAt.UTC().Format(time.RFC3339Nano),
		SelectedVariant: string(r.SelectedVariant),
		BaseRate:        r.BaseRate.Decimal().String(),
		DiscountApplied: r.DiscountApplied.Decimal().String(),
		FinalRate:       r.FinalRate.Decimal().String(),
		Amount:          r.Amount.Amount().String(),
		Currency:        string(r.Amount.Currency()),
		CommissionAmount: r.CommissionAmount.Amount().String(),
		Trail:           make([]canonicalTrailStep, 0, len(r.Trail)),
		Warnings:        make([]string, 0, len(r.Warnings)),
	}
	if r.SelectedOverride != nil {
		c.SelectedOverride = r.SelectedOverride.String()
	}
	for _, step := range r.Trail {
		cs := canonicalTrailStep{
			Variant: string(step.Variant),
			Matched: step.Matched,
			Detail:  step.Detail,
		}
		if step.ScopeID != nil {
			cs.ScopeID = step.ScopeID.String()
		}
		if step.OverrideID != nil {
			cs.OverrideID = step.OverrideID.String()
		}
		if step.Rate != nil {
			cs.Rate = *step.Rate
		}
		c.Trail = append(c.Trail, cs)
	}
	for _, w := range r.Warnings {
		c.Warnings = append(c.Warnings, strings.Join([]string{string(w.Code), w.Message}, ":"))
	}

	// marshaling a fixed struct cannot fail
	data, _ := json.Marshal(c)
	return data
}

// ComputeChecksum returns the hex SHA-256 of the canonical serialization.
// Any post-hoc mutation of a stored record's payload changes the digest.
func ComputeChecksum(r *CommissionResolution) string {
	sum := sha256.Sum256(CanonicalSerialization(r))
	return hex.EncodeToString(sum[:])
}
