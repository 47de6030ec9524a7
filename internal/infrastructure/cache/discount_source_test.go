package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared"
)

// stubDiscountRepo counts reads and serves a fixed table
type stubDiscountRepo struct {
	mu    sync.Mutex
	rows  []*commission.MembershipDiscount
	err   error
	calls int
}

func (r *stubDiscountRepo) ListAll(ctx context.Context) ([]*commission.MembershipDiscount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.rows, nil
}

func (r *stubDiscountRepo) FindByTier(ctx context.Context, tier commission.MembershipTier) (*commission.MembershipDiscount, error) {
	return nil, shared.ErrNotFound
}

func (r *stubDiscountRepo) Save(ctx context.Context, discount *commission.MembershipDiscount) error {
	return nil
}

func (r *stubDiscountRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func goldDiscountRow(t *testing.T, discount float64) *commission.MembershipDiscount {
	t.Helper()
	row, err := commission.NewMembershipDiscount(commission.TierGold, decimal.NewFromFloat(discount))
	require.NoError(t, err)
	return row
}

func TestCachedDiscountSource_Resolver(t *testing.T) {
	t.Run("overlays stored rows on the default schedule", func(t *testing.T) {
		repo := &stubDiscountRepo{rows: []*commission.MembershipDiscount{goldDiscountRow(t, 4)}}
		source := NewCachedDiscountSource(repo, zap.NewNop())

		resolver, err := source.Resolver(context.Background())
		require.NoError(t, err)

		gold, known := resolver.DiscountFor(commission.TierGold)
		assert.True(t, known)
		assert.True(t, gold.Decimal().Equal(decimal.NewFromInt(4)))

		// silver has no stored row and keeps its default
		silver, known := resolver.DiscountFor(commission.TierSilver)
		assert.True(t, known)
		assert.True(t, silver.Decimal().Equal(decimal.NewFromFloat(1.5)))
	})

	t.Run("serves the cached table inside the TTL", func(t *testing.T) {
		repo := &stubDiscountRepo{}
		source := NewCachedDiscountSource(repo, zap.NewNop(), WithDiscountTTL(time.Minute))

		for i := 0; i < 5; i++ {
			_, err := source.Resolver(context.Background())
			require.NoError(t, err)
		}

		assert.Equal(t, 1, repo.callCount())
	})

	t.Run("reloads after the TTL expires", func(t *testing.T) {
		repo := &stubDiscountRepo{}
		source := NewCachedDiscountSource(repo, zap.NewNop(), WithDiscountTTL(10*time.Millisecond))

		_, err := source.Resolver(context.Background())
		require.NoError(t, err)

		time.Sleep(20 * time.Millisecond)

		_, err = source.Resolver(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, repo.callCount())
	})

	t.Run("invalidate forces the next call to reload", func(t *testing.T) {
		repo := &stubDiscountRepo{rows: []*commission.MembershipDiscount{goldDiscountRow(t, 3)}}
		source := NewCachedDiscountSource(repo, zap.NewNop(), WithDiscountTTL(time.Minute))

		_, err := source.Resolver(context.Background())
		require.NoError(t, err)

		repo.mu.Lock()
		repo.rows = []*commission.MembershipDiscount{goldDiscountRow(t, 5)}
		repo.mu.Unlock()
		source.Invalidate()

		resolver, err := source.Resolver(context.Background())
		require.NoError(t, err)

		gold, _ := resolver.DiscountFor(commission.TierGold)
		assert.True(t, gold.Decimal().Equal(decimal.NewFromInt(5)))
		assert.Equal(t, 2, repo.callCount())
	})

	t.Run("serves the previous table when a refresh fails", func(t *testing.T) {
		repo := &stubDiscountRepo{rows: []*commission.MembershipDiscount{goldDiscountRow(t, 4)}}
		source := NewCachedDiscountSource(repo, zap.NewNop(), WithDiscountTTL(time.Minute))

		_, err := source.Resolver(context.Background())
		require.NoError(t, err)

		repo.mu.Lock()
		repo.err = assert.AnError
		repo.mu.Unlock()
		source.Invalidate()

		resolver, err := source.Resolver(context.Background())
		require.NoError(t, err)

		gold, _ := resolver.DiscountFor(commission.TierGold)
		assert.True(t, gold.Decimal().Equal(decimal.NewFromInt(4)))
	})

	t.Run("fails when the first load fails", func(t *testing.T) {
		repo := &stubDiscountRepo{err: assert.AnError}
		source := NewCachedDiscountSource(repo, zap.NewNop())

		resolver, err := source.Resolver(context.Background())

		assert.Error(t, err)
		assert.Nil(t, resolver)
	})
}
