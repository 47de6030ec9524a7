package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared/valueobject"
)

// defaultDiscountTTL bounds how long a resolution can see a stale tier
// discount after an admin edit
const defaultDiscountTTL = 30 * time.Second

// CachedDiscountSource serves the tier discount table from storage behind
// a short TTL. The table changes rarely and is read on every resolution,
// so one query per TTL window replaces one query per line item. Tiers
// without a stored row keep their default schedule entry.
type CachedDiscountSource struct {
	discounts commission.MembershipDiscountRepository
	ttl       time.Duration
	logger    *zap.Logger

	mu        sync.Mutex
	resolver  commission.DiscountResolver
	expiresAt time.Time
}

// CachedDiscountSourceOption configures a CachedDiscountSource
type CachedDiscountSourceOption func(*CachedDiscountSource)

// WithDiscountTTL bounds the staleness window
func WithDiscountTTL(ttl time.Duration) CachedDiscountSourceOption {
	return func(s *CachedDiscountSource) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewCachedDiscountSource creates a discount source over the stored table
func NewCachedDiscountSource(discounts commission.MembershipDiscountRepository, logger *zap.Logger, opts ...CachedDiscountSourceOption) *CachedDiscountSource {
	source := &CachedDiscountSource{
		discounts: discounts,
		ttl:       defaultDiscountTTL,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(source)
	}
	return source
}

// Resolver returns the current tier discount resolver, reloading the
// stored table when the cached copy has expired. A failed reload serves
// the previous table and logs, so a storage blip never fails resolutions
// that only needed a discount lookup.
func (s *CachedDiscountSource) Resolver(ctx context.Context) (commission.DiscountResolver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolver != nil && time.Now().Before(s.expiresAt) {
		return s.resolver, nil
	}

	resolver, err := s.load(ctx)
	if err != nil {
		if s.resolver != nil {
			s.logger.Warn("Failed to refresh tier discount table, serving previous copy",
				zap.Error(err))
			return s.resolver, nil
		}
		return nil, err
	}

	s.resolver = resolver
	s.expiresAt = time.Now().Add(s.ttl)
	return s.resolver, nil
}

// Invalidate expires the cached table so the next resolution reloads it.
// Admin discount edits call this to shrink the staleness window to zero.
// The expired copy is kept as the fallback for a failed reload.
func (s *CachedDiscountSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresAt = time.Time{}
}

func (s *CachedDiscountSource) load(ctx context.Context) (commission.DiscountResolver, error) {
	stored, err := s.discounts.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	table := map[commission.MembershipTier]valueobject.Percent{}
	defaults := commission.DefaultDiscountResolver()
	for _, tier := range []commission.MembershipTier{
		commission.TierBronze, commission.TierSilver, commission.TierGold, commission.TierPlatinum,
	} {
		if discount, known := defaults.DiscountFor(tier); known {
			table[tier] = discount
		}
	}
	for _, row := range stored {
		table[row.Tier] = row.Discount
	}
	return commission.NewStaticDiscountResolver(table), nil
}
