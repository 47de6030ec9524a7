package commission

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared"
)

// DiscountService manages the membership tier discount table
type DiscountService struct {
	discounts  commission.MembershipDiscountRepository
	ruleAudits commission.RuleChangeAuditRepository
	logger     *zap.Logger
}

// NewDiscountService creates a DiscountService
func NewDiscountService(
	discounts commission.MembershipDiscountRepository,
	ruleAudits commission.RuleChangeAuditRepository,
	logger *zap.Logger,
) *DiscountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscountService{
		discounts:  discounts,
		ruleAudits: ruleAudits,
		logger:     logger,
	}
}

// List returns the full tier discount table
func (s *DiscountService) List(ctx context.Context) ([]DiscountResponse, error) {
	discounts, err := s.discounts.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]DiscountResponse, 0, len(discounts))
	for _, d := range discounts {
		responses = append(responses, ToDiscountResponse(d))
	}
	return responses, nil
}

// Update sets the discount for a tier, creating the row if the tier has
// never been configured
func (s *DiscountService) Update(ctx context.Context, actorID uuid.UUID, tier commission.MembershipTier, req UpdateDiscountRequest) (*DiscountResponse, error) {
	value, err := decimal.NewFromString(req.Discount)
	if err != nil {
		return nil, commission.NewRateBoundsError("discount is not a valid decimal: " + req.Discount)
	}

	var oldValue map[string]any
	existing, err := s.discounts.FindByTier(ctx, tier)
	switch {
	case err == nil:
		oldValue = map[string]any{"discount": existing.Discount.Decimal().String()}
		updated, err := commission.NewMembershipDiscount(tier, value)
		if err != nil {
			return nil, err
		}
		existing.Discount = updated.Discount
		existing.Touch()
	case errors.Is(err, shared.ErrNotFound):
		existing, err = commission.NewMembershipDiscount(tier, value)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := s.discounts.Save(ctx, existing); err != nil {
		return nil, err
	}

	entry, auditErr := commission.NewRuleChangeAudit(
		commission.RuleActionDiscount, "", existing.ID, nil,
		oldValue, map[string]any{"tier": string(tier), "discount": value.String()}, actorID)
	if auditErr == nil {
		if err := s.ruleAudits.Record(ctx, entry); err != nil {
			s.logger.Error("failed to record discount change audit entry",
				zap.String("tier", string(tier)),
				zap.Error(err),
			)
		}
	}

	response := ToDiscountResponse(existing)
	return &response, nil
}
