package commission

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marketplace/backend/internal/domain/shared"
)

// OverrideRepository owns the override lifecycle. Upsert must perform the
// overlap check and the write atomically (one serialized transaction), so
// two concurrent upserts can never both land with overlapping windows.
type OverrideRepository interface {
	// Upsert inserts or updates an override, failing with a
	// REJECTED_OVERLAP domain error when another override of the same
	// variant and scope has an intersecting validity window.
	Upsert(ctx context.Context, override *CommissionOverride) error

	FindByID(ctx context.Context, id uuid.UUID) (*CommissionOverride, error)

	// ListActive returns the overrides of a variant/scope active at the
	// given instant, newest creation first.
	ListActive(ctx context.Context, variant OverrideVariant, scopeID *uuid.UUID, at time.Time) ([]*CommissionOverride, error)

	// LoadSnapshot reads every override relevant to the line item's four
	// layers inside a single read transaction.
	LoadSnapshot(ctx context.Context, item LineItem) (*Snapshot, error)

	// Expire truncates an override's window at the given instant
	Expire(ctx context.Context, id uuid.UUID, at time.Time) (*CommissionOverride, error)
}

// MembershipDiscountRepository stores the tier discount table
type MembershipDiscountRepository interface {
	FindByTier(ctx context.Context, tier MembershipTier) (*MembershipDiscount, error)
	ListAll(ctx context.Context) ([]*MembershipDiscount, error)
	Save(ctx context.Context, discount *MembershipDiscount) error
}

// AuditQuery filters the resolution audit trail for compliance reporting
type AuditQuery struct {
	LineItemRef string
	VendorID    *uuid.UUID
	ProductID   *uuid.UUID
	From        *time.Time
	To          *time.Time
	Filter      shared.Filter
}

// AuditRepository persists resolution audit records. The contract is
// append-only by construction: no update or delete operation exists.
type AuditRepository interface {
	// Record writes the audit record exactly once. A second write for the
	// same (line item ref, evaluated at) pair fails with ALREADY_EXISTS,
	// backed by a unique constraint at the storage layer.
	Record(ctx context.Context, record *CommissionAuditRecord) error

	FindByID(ctx context.Context, id uuid.UUID) (*CommissionAuditRecord, error)

	// FindByDedupeKey returns the record already written for the pair,
	// or NOT_FOUND. Retried resolutions return the original record
	// instead of writing a duplicate.
	FindByDedupeKey(ctx context.Context, lineItemRef string, evaluatedAt time.Time) (*CommissionAuditRecord, error)

	// Exists reports whether a record for the dedupe key is already
	// written; bulk re-runs use it to skip already-audited items.
	Exists(ctx context.Context, lineItemRef string, evaluatedAt time.Time) (bool, error)

	Query(ctx context.Context, query AuditQuery) ([]*CommissionAuditRecord, int64, error)
}

// RuleChangeAuditRepository persists the administrative audit stream
type RuleChangeAuditRepository interface {
	Record(ctx context.Context, entry *RuleChangeAudit) error
	FindByTarget(ctx context.Context, targetID uuid.UUID) ([]*RuleChangeAudit, error)
}

// BatchCheckpoint marks how far a bulk run has progressed. Offset counts
// line items consumed from the source; re-running with the same token
// skips them.
type BatchCheckpoint struct {
	shared.BaseEntity
	BatchID uuid.UUID `json:"batch_id"`
	Offset  int64     `json:"offset"`
}

// NewBatchCheckpoint creates a checkpoint at offset zero for a batch
func NewBatchCheckpoint(batchID uuid.UUID) *BatchCheckpoint {
	return &BatchCheckpoint{
		BaseEntity: shared.NewBaseEntity(),
		BatchID:    batchID,
	}
}

// CheckpointRepository persists batch progress for crash-and-resume
type CheckpointRepository interface {
	Save(ctx context.Context, checkpoint *BatchCheckpoint) error
	FindByBatchID(ctx context.Context, batchID uuid.UUID) (*BatchCheckpoint, error)
}
