package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/tests/testutil"
)

// newMockCheckpointRepository creates a GormCheckpointRepository with a mocked SQL connection
func newMockCheckpointRepository(t *testing.T) (*GormCheckpointRepository, sqlmock.Sqlmock, *sql.DB) {
	m := testutil.NewMockDB(t)
	return NewGormCheckpointRepository(m.DB), m.Mock, m.SqlDB
}

var checkpointColumns = []string{"id", "created_at", "updated_at", "batch_id", "item_offset"}

func TestGormCheckpointRepository_Save(t *testing.T) {
	t.Run("inserts the first checkpoint of a batch", func(t *testing.T) {
		repo, mock, mockDB := newMockCheckpointRepository(t)
		defer mockDB.Close()

		checkpoint := commission.NewBatchCheckpoint(uuid.New())

		mock.ExpectQuery(`SELECT count\(\*\) FROM "batch_checkpoints" WHERE id = \$1`).
			WithArgs(checkpoint.ID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(`INSERT INTO "batch_checkpoints"`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Save(context.Background(), checkpoint)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("updates an advancing checkpoint in place", func(t *testing.T) {
		repo, mock, mockDB := newMockCheckpointRepository(t)
		defer mockDB.Close()

		checkpoint := commission.NewBatchCheckpoint(uuid.New())
		checkpoint.Offset = 250

		mock.ExpectQuery(`SELECT count\(\*\) FROM "batch_checkpoints" WHERE id = \$1`).
			WithArgs(checkpoint.ID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectExec(`UPDATE "batch_checkpoints" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Save(context.Background(), checkpoint)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormCheckpointRepository_FindByBatchID(t *testing.T) {
	t.Run("finds the checkpoint for a batch", func(t *testing.T) {
		repo, mock, mockDB := newMockCheckpointRepository(t)
		defer mockDB.Close()

		batchID := uuid.New()
		now := time.Now()

		rows := sqlmock.NewRows(checkpointColumns).
			AddRow(uuid.New(), now, now, batchID, int64(400))

		mock.ExpectQuery(`SELECT \* FROM "batch_checkpoints" WHERE batch_id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(batchID, 1).
			WillReturnRows(rows)

		checkpoint, err := repo.FindByBatchID(context.Background(), batchID)

		assert.NoError(t, err)
		require.NotNil(t, checkpoint)
		assert.Equal(t, batchID, checkpoint.BatchID)
		assert.Equal(t, int64(400), checkpoint.Offset)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound on the first run", func(t *testing.T) {
		repo, mock, mockDB := newMockCheckpointRepository(t)
		defer mockDB.Close()

		batchID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "batch_checkpoints" WHERE batch_id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(batchID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		checkpoint, err := repo.FindByBatchID(context.Background(), batchID)

		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Nil(t, checkpoint)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
