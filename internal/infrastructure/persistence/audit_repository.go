package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/infrastructure/persistence/models"
)

// GormAuditRepository implements AuditRepository using GORM. The table is
// append-only: this type exposes no update or delete path, and the unique
// index over (line_item_ref, evaluated_at) enforces exactly-once writes.
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Record writes the audit record exactly once. A second write for the same
// (line item ref, evaluated at) pair surfaces as ErrAlreadyExists so the
// caller can replay the original record instead.
func (r *GormAuditRepository) Record(ctx context.Context, record *commission.CommissionAuditRecord) error {
	model := &models.CommissionAuditRecordModel{}
	if err := model.FromDomain(record); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// FindByID finds an audit record by its ID
func (r *GormAuditRepository) FindByID(ctx context.Context, id uuid.UUID) (*commission.CommissionAuditRecord, error) {
	var model models.CommissionAuditRecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByDedupeKey returns the record already written for the pair, or
// ErrNotFound
func (r *GormAuditRepository) FindByDedupeKey(ctx context.Context, lineItemRef string, evaluatedAt time.Time) (*commission.CommissionAuditRecord, error) {
	var model models.CommissionAuditRecordModel
	if err := r.db.WithContext(ctx).
		Where("line_item_ref = ? AND evaluated_at = ?", lineItemRef, evaluatedAt).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// Exists reports whether a record for the dedupe key is already written
func (r *GormAuditRepository) Exists(ctx context.Context, lineItemRef string, evaluatedAt time.Time) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CommissionAuditRecordModel{}).
		Where("line_item_ref = ? AND evaluated_at = ?", lineItemRef, evaluatedAt).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Query filters the audit trail and returns one page of records plus the
// total match count
func (r *GormAuditRepository) Query(ctx context.Context, query commission.AuditQuery) ([]*commission.CommissionAuditRecord, int64, error) {
	var total int64
	if err := r.auditScope(ctx, query).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []*models.CommissionAuditRecordModel
	if err := r.auditScope(ctx, query).
		Order(auditOrderClause(query.Filter)).
		Offset(query.Filter.Offset()).
		Limit(query.Filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	records := make([]*commission.CommissionAuditRecord, 0, len(rows))
	for _, row := range rows {
		record, err := row.ToDomain()
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	return records, total, nil
}

// auditScope builds a fresh query carrying the filter's conditions. Count
// and Find each get their own statement so conditions never accumulate
// across the two executions.
func (r *GormAuditRepository) auditScope(ctx context.Context, query commission.AuditQuery) *gorm.DB {
	scope := r.db.WithContext(ctx).Model(&models.CommissionAuditRecordModel{})
	if query.LineItemRef != "" {
		scope = scope.Where("line_item_ref = ?", query.LineItemRef)
	}
	if query.VendorID != nil {
		scope = scope.Where("vendor_id = ?", *query.VendorID)
	}
	if query.ProductID != nil {
		scope = scope.Where("product_id = ?", *query.ProductID)
	}
	if query.From != nil {
		scope = scope.Where("evaluated_at >= ?", *query.From)
	}
	if query.To != nil {
		scope = scope.Where("evaluated_at < ?", *query.To)
	}
	return scope
}

// auditOrderClause maps the filter's ordering onto known columns. Anything
// outside the whitelist falls back to recorded time, which also keeps user
// input out of the ORDER BY clause.
func auditOrderClause(filter shared.Filter) string {
	column := "recorded_at"
	switch filter.OrderBy {
	case "evaluated_at", "recorded_at", "created_at", "line_item_ref":
		column = filter.OrderBy
	}
	direction := "DESC"
	if strings.EqualFold(filter.OrderDir, "asc") {
		direction = "ASC"
	}
	return column + " " + direction
}

// isUniqueViolation detects a unique constraint failure from either the
// driver or GORM's own translation layer.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var _ commission.AuditRepository = (*GormAuditRepository)(nil)
