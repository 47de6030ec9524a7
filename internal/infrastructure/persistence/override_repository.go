package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/infrastructure/persistence/models"
)

// GormOverrideRepository implements OverrideRepository using GORM
type GormOverrideRepository struct {
	db *gorm.DB
}

// NewGormOverrideRepository creates a new GormOverrideRepository
func NewGormOverrideRepository(db *gorm.DB) *GormOverrideRepository {
	return &GormOverrideRepository{db: db}
}

// Upsert inserts or updates an override after checking the layer for
// window conflicts. The read and the write run in one serializable
// transaction so two concurrent upserts cannot both land with
// overlapping windows.
func (r *GormOverrideRepository) Upsert(ctx context.Context, override *commission.CommissionOverride) error {
	model := &models.CommissionOverrideModel{}
	model.FromDomain(override)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var neighbors []*models.CommissionOverrideModel
		if err := scopeQuery(tx, override.Variant, override.ScopeID).
			Where("id <> ?", override.ID).
			Find(&neighbors).Error; err != nil {
			return err
		}
		for _, neighbor := range neighbors {
			window := commission.ValidityWindow{From: neighbor.ValidFrom, To: neighbor.ValidTo}
			if override.Window.Overlaps(window) {
				return commission.NewOverlapError(neighbor.ToDomain())
			}
		}

		var count int64
		if err := tx.Model(&models.CommissionOverrideModel{}).
			Where("id = ?", override.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return tx.Save(model).Error
		}
		return tx.Create(model).Error
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// FindByID finds an override by its ID
func (r *GormOverrideRepository) FindByID(ctx context.Context, id uuid.UUID) (*commission.CommissionOverride, error) {
	var model models.CommissionOverrideModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListActive returns the overrides of a variant/scope whose windows cover
// the given instant, newest creation first
func (r *GormOverrideRepository) ListActive(ctx context.Context, variant commission.OverrideVariant, scopeID *uuid.UUID, at time.Time) ([]*commission.CommissionOverride, error) {
	var rows []*models.CommissionOverrideModel
	if err := scopeQuery(r.db.WithContext(ctx), variant, scopeID).
		Where("(valid_from IS NULL OR valid_from <= ?) AND (valid_to IS NULL OR valid_to > ?)", at, at).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	overrides := make([]*commission.CommissionOverride, 0, len(rows))
	for _, row := range rows {
		overrides = append(overrides, row.ToDomain())
	}
	return overrides, nil
}

// LoadSnapshot reads every override relevant to the line item's four
// layers in one query. Window filtering is left to the snapshot so the
// resolver's trail can still name overrides it skipped as inactive.
func (r *GormOverrideRepository) LoadSnapshot(ctx context.Context, item commission.LineItem) (*commission.Snapshot, error) {
	var rows []*models.CommissionOverrideModel
	if err := r.db.WithContext(ctx).
		Where(`(variant = ? AND scope_id = ?) OR (variant = ? AND scope_id = ?) OR (variant = ? AND scope_id = ?) OR (variant = ? AND scope_id IS NULL)`,
			commission.VariantProduct, item.ProductID,
			commission.VariantVendor, item.VendorID,
			commission.VariantCategory, item.CategoryID,
			commission.VariantGlobal).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	overrides := make(map[commission.OverrideVariant][]*commission.CommissionOverride, len(commission.VariantPriorityOrder))
	for _, row := range rows {
		overrides[row.Variant] = append(overrides[row.Variant], row.ToDomain())
	}
	return commission.NewSnapshot(overrides), nil
}

// Expire truncates an override's window at the given instant and returns
// the updated override
func (r *GormOverrideRepository) Expire(ctx context.Context, id uuid.UUID, at time.Time) (*commission.CommissionOverride, error) {
	var expired *commission.CommissionOverride
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.CommissionOverrideModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		override := model.ToDomain()
		override.Expire(at)
		model.FromDomain(override)
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		expired = override
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// scopeQuery narrows a query to one hierarchy layer. Global overrides
// have no scope; every other variant matches on its scope ID.
func scopeQuery(tx *gorm.DB, variant commission.OverrideVariant, scopeID *uuid.UUID) *gorm.DB {
	q := tx.Where("variant = ?", variant)
	if scopeID != nil {
		return q.Where("scope_id = ?", *scopeID)
	}
	return q.Where("scope_id IS NULL")
}

var _ commission.OverrideRepository = (*GormOverrideRepository)(nil)
