package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/infrastructure/persistence/models"
)

// GormMembershipDiscountRepository implements MembershipDiscountRepository using GORM
type GormMembershipDiscountRepository struct {
	db *gorm.DB
}

// NewGormMembershipDiscountRepository creates a new GormMembershipDiscountRepository
func NewGormMembershipDiscountRepository(db *gorm.DB) *GormMembershipDiscountRepository {
	return &GormMembershipDiscountRepository{db: db}
}

// FindByTier finds the discount row for a tier
func (r *GormMembershipDiscountRepository) FindByTier(ctx context.Context, tier commission.MembershipTier) (*commission.MembershipDiscount, error) {
	var model models.MembershipDiscountModel
	if err := r.db.WithContext(ctx).Where("tier = ?", tier).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListAll returns every tier discount, sorted by tier name
func (r *GormMembershipDiscountRepository) ListAll(ctx context.Context) ([]*commission.MembershipDiscount, error) {
	var rows []*models.MembershipDiscountModel
	if err := r.db.WithContext(ctx).Order("tier ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	discounts := make([]*commission.MembershipDiscount, 0, len(rows))
	for _, row := range rows {
		discounts = append(discounts, row.ToDomain())
	}
	return discounts, nil
}

// Save writes a tier discount. An entity already persisted is updated in
// place; a new one is inserted, with the tier's unique index guarding
// against concurrent first writes for the same tier.
func (r *GormMembershipDiscountRepository) Save(ctx context.Context, discount *commission.MembershipDiscount) error {
	model := &models.MembershipDiscountModel{}
	model.FromDomain(discount)

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.MembershipDiscountModel{}).
		Where("id = ?", discount.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return r.db.WithContext(ctx).Save(model).Error
	}
	return r.db.WithContext(ctx).Create(model).Error
}

var _ commission.MembershipDiscountRepository = (*GormMembershipDiscountRepository)(nil)
