package commission

import (
	"fmt"

	"github.com/marketplace/backend/internal/domain/shared"
)

// Error codes specific to the commission engine
const (
	ErrCodeRejectedOverlap   = "REJECTED_OVERLAP"
	ErrCodeInvalidRateBounds = "INVALID_RATE_BOUNDS"
	ErrCodeAuditWriteFailure = "AUDIT_WRITE_FAILURE"
	ErrCodeInvalidLineItem   = "INVALID_LINE_ITEM"
)

// Common commission errors
var (
	ErrRejectedOverlap   = shared.NewDomainError(ErrCodeRejectedOverlap, "Override window overlaps an existing active override for the same scope")
	ErrInvalidRateBounds = shared.NewDomainError(ErrCodeInvalidRateBounds, "Percentage is outside the allowed policy bounds")
	ErrAuditWriteFailure = shared.NewDomainError(ErrCodeAuditWriteFailure, "Resolution could not be audited and must not be settled")
)

// NewOverlapError builds an actionable RejectedOverlap error naming the
// conflicting override's window, so the admin can narrow or delete it.
func NewOverlapError(existing *CommissionOverride) *shared.DomainError {
	return shared.NewDomainError(ErrCodeRejectedOverlap,
		fmt.Sprintf("overlaps existing %s override (id %s) valid %s",
			existing.Variant, existing.ID, existing.Window))
}

// NewRateBoundsError reports the policy band a rejected rate fell outside of
func NewRateBoundsError(detail string) *shared.DomainError {
	return shared.NewDomainError(ErrCodeInvalidRateBounds, detail)
}
