package commission

import (
	"time"

	"github.com/marketplace/backend/internal/domain/shared"
)

// CommissionAuditRecord is an immutable, checksummed copy of a resolution.
// A record is created exactly once per resolution, never updated, never
// deleted, and retained indefinitely for reconciliation. Corrections are
// issued as new compensating records referencing the same line item ref.
type CommissionAuditRecord struct {
	shared.BaseEntity
	Resolution CommissionResolution `json:"resolution"`
	Checksum   string               `json:"checksum"`
	RecordedAt time.Time            `json:"recorded_at"`
}

// NewCommissionAuditRecord seals a resolution into an audit record,
// computing the checksum over its canonical serialization
func NewCommissionAuditRecord(resolution *CommissionResolution) *CommissionAuditRecord {
	return &CommissionAuditRecord{
		BaseEntity: shared.NewBaseEntity(),
		Resolution: *resolution,
		Checksum:   ComputeChecksum(resolution),
		RecordedAt: time.Now(),
	}
}

// Verify recomputes the checksum from the stored payload and compares it
// to the recorded digest. A false result means the record was tampered
// with after it was written.
func (r *CommissionAuditRecord) Verify() bool {
	return ComputeChecksum(&r.Resolution) == r.Checksum
}
