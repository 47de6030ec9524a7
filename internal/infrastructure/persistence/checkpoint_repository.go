package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/infrastructure/persistence/models"
)

// GormCheckpointRepository implements CheckpointRepository using GORM
type GormCheckpointRepository struct {
	db *gorm.DB
}

// NewGormCheckpointRepository creates a new GormCheckpointRepository
func NewGormCheckpointRepository(db *gorm.DB) *GormCheckpointRepository {
	return &GormCheckpointRepository{db: db}
}

// Save writes a batch checkpoint, updating the existing row for the batch
// when one exists
func (r *GormCheckpointRepository) Save(ctx context.Context, checkpoint *commission.BatchCheckpoint) error {
	model := &models.BatchCheckpointModel{}
	model.FromDomain(checkpoint)

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BatchCheckpointModel{}).
		Where("id = ?", checkpoint.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return r.db.WithContext(ctx).Save(model).Error
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByBatchID finds the checkpoint for a batch, or ErrNotFound on the
// first run
func (r *GormCheckpointRepository) FindByBatchID(ctx context.Context, batchID uuid.UUID) (*commission.BatchCheckpoint, error) {
	var model models.BatchCheckpointModel
	if err := r.db.WithContext(ctx).Where("batch_id = ?", batchID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

var _ commission.CheckpointRepository = (*GormCheckpointRepository)(nil)
