package commission

import (
	"time"

	"github.com/google/uuid"

	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared/valueobject"
)

// =============================================================================
// Override DTOs
// =============================================================================

// UpsertOverrideRequest represents a request to create a commission override
type UpsertOverrideRequest struct {
	Variant   string     `json:"variant" binding:"required,oneof=product vendor category global"`
	ScopeID   *uuid.UUID `json:"scope_id"`
	Rate      string     `json:"rate" binding:"required"`
	ValidFrom *time.Time `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to"`
	Note      string     `json:"note" binding:"max=500"`
}

// UpdateOverrideRequest represents a request to change an existing override
type UpdateOverrideRequest struct {
	Rate      *string    `json:"rate"`
	ValidFrom *time.Time `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to"`
	Note      *string    `json:"note" binding:"omitempty,max=500"`
}

// OverrideResponse represents a commission override in API responses
type OverrideResponse struct {
	ID        uuid.UUID  `json:"id"`
	Variant   string     `json:"variant"`
	ScopeID   *uuid.UUID `json:"scope_id,omitempty"`
	Rate      string     `json:"rate"`
	ValidFrom *time.Time `json:"valid_from,omitempty"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`
	Note      string     `json:"note,omitempty"`
	CreatedBy uuid.UUID  `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ToOverrideResponse converts a domain override to its API shape
func ToOverrideResponse(o *commission.CommissionOverride) OverrideResponse {
	return OverrideResponse{
		ID:        o.ID,
		Variant:   string(o.Variant),
		ScopeID:   o.ScopeID,
		Rate:      o.Rate.Decimal().String(),
		ValidFrom: o.Window.From,
		ValidTo:   o.Window.To,
		Note:      o.Note,
		CreatedBy: o.CreatedBy,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

// =============================================================================
// Membership discount DTOs
// =============================================================================

// UpdateDiscountRequest represents a request to change a tier's discount
type UpdateDiscountRequest struct {
	Discount string `json:"discount" binding:"required"`
}

// DiscountResponse represents a tier discount in API responses
type DiscountResponse struct {
	Tier      string    `json:"tier"`
	Discount  string    `json:"discount"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToDiscountResponse converts a domain discount to its API shape
func ToDiscountResponse(d *commission.MembershipDiscount) DiscountResponse {
	return DiscountResponse{
		Tier:      string(d.Tier),
		Discount:  d.Discount.Decimal().String(),
		UpdatedAt: d.UpdatedAt,
	}
}

// =============================================================================
// Resolution DTOs
// =============================================================================

// ResolveRequest carries one line item from the order component
type ResolveRequest struct {
	LineItemRef string    `json:"line_item_ref" binding:"required"`
	ProductID   uuid.UUID `json:"product_id" binding:"required"`
	VendorID    uuid.UUID `json:"vendor_id" binding:"required"`
	CategoryID  uuid.UUID `json:"category_id"`
	VendorTier  string    `json:"vendor_tier"`
	Amount      string    `json:"amount" binding:"required"`
	Currency    string    `json:"currency" binding:"required,len=3"`
	At          time.Time `json:"at" binding:"required"`
}

// ToLineItem converts the request into a domain line item
func (r ResolveRequest) ToLineItem() (commission.LineItem, error) {
	amount, err := valueobject.NewMoneyFromString(r.Amount, valueobject.Currency(r.Currency))
	if err != nil {
		return commission.LineItem{}, err
	}
	return commission.LineItem{
		LineItemRef: r.LineItemRef,
		ProductID:   r.ProductID,
		VendorID:    r.VendorID,
		CategoryID:  r.CategoryID,
		VendorTier:  commission.MembershipTier(r.VendorTier),
		Amount:      amount,
		At:          r.At,
	}, nil
}

// ResolutionResponse is the audited outcome returned to the caller. The
// payout component trusts FinalRate and CommissionAmount as-is and never
// recomputes them.
type ResolutionResponse struct {
	LineItemRef      string                         `json:"line_item_ref"`
	EvaluatedAt      time.Time                      `json:"evaluated_at"`
	SelectedVariant  string                         `json:"selected_variant"`
	SelectedOverride *uuid.UUID                     `json:"selected_override,omitempty"`
	BaseRate         string                         `json:"base_rate"`
	DiscountApplied  string                         `json:"discount_applied"`
	FinalRate        string                         `json:"final_rate"`
	Amount           string                         `json:"amount"`
	Currency         string                         `json:"currency"`
	CommissionAmount string                         `json:"commission_amount"`
	Trail            []commission.TrailStep         `json:"trail"`
	Warnings         []commission.ResolutionWarning `json:"warnings,omitempty"`
	AuditRecordID    uuid.UUID                      `json:"audit_record_id"`
	Checksum         string                         `json:"checksum"`
}

// ToResolutionResponse converts an audited resolution to its API shape
func ToResolutionResponse(a *AuditedResolution) ResolutionResponse {
	res := a.Resolution
	return ResolutionResponse{
		LineItemRef:      res.LineItemRef,
		EvaluatedAt:      res.EvaluatedAt,
		SelectedVariant:  string(res.SelectedVariant),
		SelectedOverride: res.SelectedOverride,
		BaseRate:         res.BaseRate.Decimal().String(),
		DiscountApplied:  res.DiscountApplied.Decimal().String(),
		FinalRate:        res.FinalRate.Decimal().String(),
		Amount:           res.Amount.Amount().String(),
		Currency:         string(res.Amount.Currency()),
		CommissionAmount: res.CommissionAmount.Amount().String(),
		Trail:            res.Trail,
		Warnings:         res.Warnings,
		AuditRecordID:    a.Record.ID,
		Checksum:         a.Record.Checksum,
	}
}

// =============================================================================
// Audit query DTOs
// =============================================================================

// AuditQueryRequest filters the resolution audit trail
type AuditQueryRequest struct {
	LineItemRef string     `form:"line_item_ref"`
	VendorID    *uuid.UUID `form:"vendor_id"`
	ProductID   *uuid.UUID `form:"product_id"`
	From        *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To          *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page        int        `form:"page"`
	PageSize    int        `form:"page_size"`
}

// AuditRecordResponse represents a stored audit record
type AuditRecordResponse struct {
	ID         uuid.UUID                       `json:"id"`
	Resolution commission.CommissionResolution `json:"resolution"`
	Checksum   string                          `json:"checksum"`
	RecordedAt time.Time                       `json:"recorded_at"`
}

// ToAuditRecordResponse converts a domain audit record to its API shape
func ToAuditRecordResponse(r *commission.CommissionAuditRecord) AuditRecordResponse {
	return AuditRecordResponse{
		ID:         r.ID,
		Resolution: r.Resolution,
		Checksum:   r.Checksum,
		RecordedAt: r.RecordedAt,
	}
}

// AuditVerifyResponse reports the checksum verification outcome for one record
type AuditVerifyResponse struct {
	ID          uuid.UUID `json:"id"`
	LineItemRef string    `json:"line_item_ref"`
	Checksum    string    `json:"checksum"`
	Valid       bool      `json:"valid"`
}

// =============================================================================
// Bulk resolution DTOs
// =============================================================================

// BulkResolveRequest carries a batch of line items for settlement runs.
// BatchID and ResumeToken let an interrupted run continue where it
// stopped without re-auditing completed items.
type BulkResolveRequest struct {
	BatchID     *uuid.UUID       `json:"batch_id"`
	ResumeToken string           `json:"resume_token"`
	Concurrency int              `json:"concurrency"`
	Items       []ResolveRequest `json:"items" binding:"required,min=1"`
}
