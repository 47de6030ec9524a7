package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared/valueobject"
)

// logger for model conversion errors (silent failures are logged for debugging)
var modelLogger = zap.L().Named("commission.models")

// CommissionOverrideModel is the persistence model for commission overrides.
// The (variant, scope_id) pair identifies the hierarchy layer a row belongs
// to; global overrides carry a NULL scope.
type CommissionOverrideModel struct {
	BaseModel
	Variant   commission.OverrideVariant `gorm:"type:varchar(20);not null;index:idx_overrides_scope"`
	ScopeID   *uuid.UUID                 `gorm:"type:uuid;index:idx_overrides_scope"`
	Rate      valueobject.Percent        `gorm:"type:numeric(6,3);not null"`
	ValidFrom *time.Time                 `gorm:"index"`
	ValidTo   *time.Time                 `gorm:"index"`
	Note      string                     `gorm:"type:varchar(500)"`
	CreatedBy uuid.UUID                  `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (CommissionOverrideModel) TableName() string {
	return "commission_overrides"
}

// ToDomain converts the persistence model to a domain CommissionOverride
func (m *CommissionOverrideModel) ToDomain() *commission.CommissionOverride {
	return &commission.CommissionOverride{
		BaseEntity: m.BaseModel.ToDomain(),
		Variant:    m.Variant,
		ScopeID:    m.ScopeID,
		Rate:       m.Rate,
		Window:     commission.ValidityWindow{From: m.ValidFrom, To: m.ValidTo},
		Note:       m.Note,
		CreatedBy:  m.CreatedBy,
	}
}

// FromDomain populates the model from a domain CommissionOverride
func (m *CommissionOverrideModel) FromDomain(o *commission.CommissionOverride) {
	m.FromDomainBaseEntity(o.BaseEntity)
	m.Variant = o.Variant
	m.ScopeID = o.ScopeID
	m.Rate = o.Rate
	m.ValidFrom = o.Window.From
	m.ValidTo = o.Window.To
	m.Note = o.Note
	m.CreatedBy = o.CreatedBy
}

// MembershipDiscountModel is the persistence model for tier discounts.
// One row per tier.
type MembershipDiscountModel struct {
	BaseModel
	Tier     commission.MembershipTier `gorm:"type:varchar(20);not null;uniqueIndex"`
	Discount valueobject.Percent       `gorm:"type:numeric(6,3);not null"`
}

// TableName returns the table name for GORM
func (MembershipDiscountModel) TableName() string {
	return "membership_discounts"
}

// ToDomain converts the persistence model to a domain MembershipDiscount
func (m *MembershipDiscountModel) ToDomain() *commission.MembershipDiscount {
	return &commission.MembershipDiscount{
		BaseEntity: m.BaseModel.ToDomain(),
		Tier:       m.Tier,
		Discount:   m.Discount,
	}
}

// FromDomain populates the model from a domain MembershipDiscount
func (m *MembershipDiscountModel) FromDomain(d *commission.MembershipDiscount) {
	m.FromDomainBaseEntity(d.BaseEntity)
	m.Tier = d.Tier
	m.Discount = d.Discount
}

// CommissionAuditRecordModel is the persistence model for resolution audit
// records. The unique index over (line_item_ref, evaluated_at) is the
// exactly-once guarantee: a duplicate write fails at the database, not in
// application code. The full resolution is stored as a JSONB payload so the
// checksum can be re-verified against exactly what was recorded.
type CommissionAuditRecordModel struct {
	BaseModel
	LineItemRef    string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_audit_dedupe"`
	EvaluatedAt    time.Time `gorm:"not null;uniqueIndex:idx_audit_dedupe"`
	VendorID       uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"type:uuid;not null;index"`
	ResolutionJSON string    `gorm:"column:resolution;type:jsonb;not null"`
	Checksum       string    `gorm:"type:char(64);not null"`
	RecordedAt     time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (CommissionAuditRecordModel) TableName() string {
	return "commission_audit_records"
}

// ToDomain converts the persistence model to a domain CommissionAuditRecord.
// An unreadable resolution payload is an error, not a warning: a record
// whose payload cannot be parsed can never pass checksum verification.
func (m *CommissionAuditRecordModel) ToDomain() (*commission.CommissionAuditRecord, error) {
	record := &commission.CommissionAuditRecord{
		BaseEntity: m.BaseModel.ToDomain(),
		Checksum:   m.Checksum,
		RecordedAt: m.RecordedAt,
	}
	if err := json.Unmarshal([]byte(m.ResolutionJSON), &record.Resolution); err != nil {
		modelLogger.Warn("failed to parse resolution JSON",
			zap.String("line_item_ref", m.LineItemRef),
			zap.Error(err))
		return nil, fmt.Errorf("audit record %s has unreadable resolution payload: %w", m.ID, err)
	}
	return record, nil
}

// FromDomain populates the model from a domain CommissionAuditRecord
func (m *CommissionAuditRecordModel) FromDomain(r *commission.CommissionAuditRecord) error {
	payload, err := json.Marshal(r.Resolution)
	if err != nil {
		return fmt.Errorf("failed to serialize resolution: %w", err)
	}
	m.FromDomainBaseEntity(r.BaseEntity)
	m.LineItemRef = r.Resolution.LineItemRef
	m.EvaluatedAt = r.Resolution.EvaluatedAt
	m.VendorID = r.Resolution.VendorID
	m.ProductID = r.Resolution.ProductID
	m.ResolutionJSON = string(payload)
	m.Checksum = r.Checksum
	m.RecordedAt = r.RecordedAt
	return nil
}

// RuleChangeAuditModel is the persistence model for the administrative
// audit stream. Old and new values are free-form JSONB documents.
type RuleChangeAuditModel struct {
	BaseModel
	Action       commission.RuleChangeAction `gorm:"type:varchar(20);not null"`
	Variant      commission.OverrideVariant  `gorm:"type:varchar(20)"`
	TargetID     uuid.UUID                   `gorm:"type:uuid;not null;index"`
	ScopeID      *uuid.UUID                  `gorm:"type:uuid"`
	OldValueJSON string                      `gorm:"column:old_value;type:jsonb"`
	NewValueJSON string                      `gorm:"column:new_value;type:jsonb"`
	ActorID      uuid.UUID                   `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (RuleChangeAuditModel) TableName() string {
	return "rule_change_audits"
}

// ToDomain converts the persistence model to a domain RuleChangeAudit
func (m *RuleChangeAuditModel) ToDomain() *commission.RuleChangeAudit {
	entry := &commission.RuleChangeAudit{
		BaseEntity: m.BaseModel.ToDomain(),
		Action:     m.Action,
		Variant:    m.Variant,
		TargetID:   m.TargetID,
		ScopeID:    m.ScopeID,
		ActorID:    m.ActorID,
	}
	if m.OldValueJSON != "" {
		if err := json.Unmarshal([]byte(m.OldValueJSON), &entry.OldValue); err != nil {
			modelLogger.Warn("failed to parse old_value JSON",
				zap.String("target_id", m.TargetID.String()),
				zap.Error(err))
		}
	}
	if m.NewValueJSON != "" {
		if err := json.Unmarshal([]byte(m.NewValueJSON), &entry.NewValue); err != nil {
			modelLogger.Warn("failed to parse new_value JSON",
				zap.String("target_id", m.TargetID.String()),
				zap.Error(err))
		}
	}
	return entry
}

// FromDomain populates the model from a domain RuleChangeAudit
func (m *RuleChangeAuditModel) FromDomain(e *commission.RuleChangeAudit) error {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.Action = e.Action
	m.Variant = e.Variant
	m.TargetID = e.TargetID
	m.ScopeID = e.ScopeID
	m.ActorID = e.ActorID
	if e.OldValue != nil {
		payload, err := json.Marshal(e.OldValue)
		if err != nil {
			return fmt.Errorf("failed to serialize old_value: %w", err)
		}
		m.OldValueJSON = string(payload)
	}
	if e.NewValue != nil {
		payload, err := json.Marshal(e.NewValue)
		if err != nil {
			return fmt.Errorf("failed to serialize new_value: %w", err)
		}
		m.NewValueJSON = string(payload)
	}
	return nil
}

// BatchCheckpointModel is the persistence model for bulk run progress.
// The offset column avoids the reserved word OFFSET.
type BatchCheckpointModel struct {
	BaseModel
	BatchID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	ItemOffset int64     `gorm:"column:item_offset;not null"`
}

// TableName returns the table name for GORM
func (BatchCheckpointModel) TableName() string {
	return "batch_checkpoints"
}

// ToDomain converts the persistence model to a domain BatchCheckpoint
func (m *BatchCheckpointModel) ToDomain() *commission.BatchCheckpoint {
	return &commission.BatchCheckpoint{
		BaseEntity: m.BaseModel.ToDomain(),
		BatchID:    m.BatchID,
		Offset:     m.ItemOffset,
	}
}

// FromDomain populates the model from a domain BatchCheckpoint
func (m *BatchCheckpointModel) FromDomain(c *commission.BatchCheckpoint) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.BatchID = c.BatchID
	m.ItemOffset = c.Offset
}
