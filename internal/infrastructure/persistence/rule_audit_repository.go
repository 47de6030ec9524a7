package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/infrastructure/persistence/models"
)

// GormRuleChangeAuditRepository implements RuleChangeAuditRepository using GORM
type GormRuleChangeAuditRepository struct {
	db *gorm.DB
}

// NewGormRuleChangeAuditRepository creates a new GormRuleChangeAuditRepository
func NewGormRuleChangeAuditRepository(db *gorm.DB) *GormRuleChangeAuditRepository {
	return &GormRuleChangeAuditRepository{db: db}
}

// Record appends a rule change entry to the administrative audit stream
func (r *GormRuleChangeAuditRepository) Record(ctx context.Context, entry *commission.RuleChangeAudit) error {
	model := &models.RuleChangeAuditModel{}
	if err := model.FromDomain(entry); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByTarget returns the change history of one override or discount,
// newest first
func (r *GormRuleChangeAuditRepository) FindByTarget(ctx context.Context, targetID uuid.UUID) ([]*commission.RuleChangeAudit, error) {
	var rows []*models.RuleChangeAuditModel
	if err := r.db.WithContext(ctx).
		Where("target_id = ?", targetID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]*commission.RuleChangeAudit, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.ToDomain())
	}
	return entries, nil
}

var _ commission.RuleChangeAuditRepository = (*GormRuleChangeAuditRepository)(nil)
