package commission

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/domain/shared/valueobject"
)

// DiscountSource supplies the current tier discount table as a resolver.
// Implementations may cache the table, but only behind a short, explicitly
// bounded TTL.
type DiscountSource interface {
	Resolver(ctx context.Context) (commission.DiscountResolver, error)
}

// StaticDiscountSource adapts a fixed resolver into a DiscountSource
type StaticDiscountSource struct {
	resolver commission.DiscountResolver
}

// NewStaticDiscountSource wraps a resolver that never changes
func NewStaticDiscountSource(resolver commission.DiscountResolver) *StaticDiscountSource {
	return &StaticDiscountSource{resolver: resolver}
}

// Resolver implements DiscountSource
func (s *StaticDiscountSource) Resolver(context.Context) (commission.DiscountResolver, error) {
	return s.resolver, nil
}

// AuditedResolution bundles a resolution with its audit confirmation.
// The bundling is the contract: there is no way to obtain a resolution
// from the service without the audit record that proves it was written.
type AuditedResolution struct {
	Resolution *commission.CommissionResolution
	Record     *commission.CommissionAuditRecord
	// Replayed is true when the audit record already existed and the
	// stored resolution was returned instead of a fresh write
	Replayed bool
}

// ResolutionPolicy carries the externally configured policy constants
type ResolutionPolicy struct {
	DefaultRate valueobject.Percent
	RateFloor   valueobject.Percent
}

// ResolutionService evaluates line items against a point-in-time override
// snapshot and persists the audit record before returning. An audit write
// failure fails the resolution: an un-auditable commission decision is
// never handed to the caller as successful.
type ResolutionService struct {
	overrides commission.OverrideRepository
	audits    commission.AuditRepository
	discounts DiscountSource
	policy    ResolutionPolicy
	logger    *zap.Logger
}

// NewResolutionService creates a ResolutionService
func NewResolutionService(
	overrides commission.OverrideRepository,
	audits commission.AuditRepository,
	discounts DiscountSource,
	policy ResolutionPolicy,
	logger *zap.Logger,
) *ResolutionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolutionService{
		overrides: overrides,
		audits:    audits,
		discounts: discounts,
		policy:    policy,
		logger:    logger,
	}
}

// Resolve evaluates one line item and records the decision. Retries with
// the same (line item ref, evaluated at) pair are idempotent: the original
// audit record is returned rather than a duplicate written.
func (s *ResolutionService) Resolve(ctx context.Context, item commission.LineItem) (*AuditedResolution, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	snapshot, err := s.overrides.LoadSnapshot(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("loading override snapshot: %w", err)
	}

	discountResolver, err := s.discounts.Resolver(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading discount table: %w", err)
	}

	resolver := commission.NewResolver(discountResolver,
		commission.WithDefaultRate(s.policy.DefaultRate),
		commission.WithRateFloor(s.policy.RateFloor),
		commission.WithLogger(s.logger),
	)

	resolution, err := resolver.Resolve(item, snapshot)
	if err != nil {
		return nil, err
	}

	record := commission.NewCommissionAuditRecord(resolution)
	if err := s.audits.Record(ctx, record); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return s.replayExisting(ctx, item)
		}
		s.logger.Error("audit write failed; resolution withheld",
			zap.String("line_item_ref", item.LineItemRef),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %s", commission.ErrAuditWriteFailure, err.Error())
	}

	return &AuditedResolution{Resolution: resolution, Record: record}, nil
}

// replayExisting returns the audit record written by an earlier attempt
// for the same dedupe key
func (s *ResolutionService) replayExisting(ctx context.Context, item commission.LineItem) (*AuditedResolution, error) {
	record, err := s.audits.FindByDedupeKey(ctx, item.LineItemRef, item.At)
	if err != nil {
		return nil, fmt.Errorf("%w: duplicate detected but original record unreadable: %s",
			commission.ErrAuditWriteFailure, err.Error())
	}
	s.logger.Debug("replayed existing audit record",
		zap.String("line_item_ref", item.LineItemRef),
		zap.String("record_id", record.ID.String()),
	)
	return &AuditedResolution{
		Resolution: &record.Resolution,
		Record:     record,
		Replayed:   true,
	}, nil
}

// VerifyRecord recomputes a stored record's checksum
func (s *ResolutionService) VerifyRecord(record *commission.CommissionAuditRecord) bool {
	ok := record.Verify()
	if !ok {
		s.logger.Warn("audit record failed checksum verification",
			zap.String("record_id", record.ID.String()),
			zap.String("line_item_ref", record.Resolution.LineItemRef),
		)
	}
	return ok
}
