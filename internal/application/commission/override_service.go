package commission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared"
)

// OverrideService handles the administrative override lifecycle. Every
// mutation writes a rule change audit entry: "who changed the rate" is a
// separate stream from "what rate a sale got".
type OverrideService struct {
	overrides  commission.OverrideRepository
	ruleAudits commission.RuleChangeAuditRepository
	logger     *zap.Logger
}

// NewOverrideService creates an OverrideService
func NewOverrideService(
	overrides commission.OverrideRepository,
	ruleAudits commission.RuleChangeAuditRepository,
	logger *zap.Logger,
) *OverrideService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverrideService{
		overrides:  overrides,
		ruleAudits: ruleAudits,
		logger:     logger,
	}
}

// Create validates and stores a new override. Overlapping windows are
// rejected by the store; the admin resolves the conflict explicitly.
func (s *OverrideService) Create(ctx context.Context, actorID uuid.UUID, req UpsertOverrideRequest) (*OverrideResponse, error) {
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		return nil, commission.NewRateBoundsError("rate is not a valid decimal: " + req.Rate)
	}
	window, err := commission.NewValidityWindow(req.ValidFrom, req.ValidTo)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_WINDOW", err.Error())
	}

	override, err := commission.NewCommissionOverride(
		commission.OverrideVariant(req.Variant),
		req.ScopeID,
		rate,
		window,
		req.Note,
		actorID,
	)
	if err != nil {
		return nil, err
	}

	if err := s.overrides.Upsert(ctx, override); err != nil {
		return nil, err
	}

	s.recordRuleChange(ctx, commission.RuleActionCreated, override, nil, actorID)

	s.logger.Info("commission override created",
		zap.String("override_id", override.ID.String()),
		zap.String("variant", string(override.Variant)),
		zap.String("rate", override.Rate.String()),
		zap.String("actor_id", actorID.String()),
	)

	response := ToOverrideResponse(override)
	return &response, nil
}

// Update modifies an existing override's rate, window, or note. The store
// re-checks window overlaps against all other overrides of the same scope.
func (s *OverrideService) Update(ctx context.Context, actorID, id uuid.UUID, req UpdateOverrideRequest) (*OverrideResponse, error) {
	override, err := s.overrides.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldValue := overridePayload(override)

	if req.Rate != nil {
		rate, err := decimal.NewFromString(*req.Rate)
		if err != nil {
			return nil, commission.NewRateBoundsError("rate is not a valid decimal: " + *req.Rate)
		}
		if err := override.UpdateRate(rate); err != nil {
			return nil, err
		}
	}
	if req.ValidFrom != nil || req.ValidTo != nil {
		from := override.Window.From
		to := override.Window.To
		if req.ValidFrom != nil {
			from = req.ValidFrom
		}
		if req.ValidTo != nil {
			to = req.ValidTo
		}
		window, err := commission.NewValidityWindow(from, to)
		if err != nil {
			return nil, shared.NewDomainError("INVALID_WINDOW", err.Error())
		}
		override.Window = window
		override.Touch()
	}
	if req.Note != nil {
		override.Note = *req.Note
		override.Touch()
	}

	if err := s.overrides.Upsert(ctx, override); err != nil {
		return nil, err
	}

	s.recordRuleChange(ctx, commission.RuleActionUpdated, override, oldValue, actorID)

	response := ToOverrideResponse(override)
	return &response, nil
}

// Expire closes an override's validity window at the current instant.
// Historical resolutions keep matching; future ones no longer do.
func (s *OverrideService) Expire(ctx context.Context, actorID, id uuid.UUID) (*OverrideResponse, error) {
	override, err := s.overrides.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldValue := overridePayload(override)

	expired, err := s.overrides.Expire(ctx, id, time.Now())
	if err != nil {
		return nil, err
	}

	s.recordRuleChange(ctx, commission.RuleActionExpired, expired, oldValue, actorID)

	s.logger.Info("commission override expired",
		zap.String("override_id", id.String()),
		zap.String("actor_id", actorID.String()),
	)

	response := ToOverrideResponse(expired)
	return &response, nil
}

// ListActive returns the overrides of a variant/scope active at the
// given instant
func (s *OverrideService) ListActive(ctx context.Context, variant commission.OverrideVariant, scopeID *uuid.UUID, at time.Time) ([]OverrideResponse, error) {
	if !variant.IsValid() {
		return nil, shared.NewDomainError("INVALID_VARIANT", "Unknown override variant: "+string(variant))
	}
	overrides, err := s.overrides.ListActive(ctx, variant, scopeID, at)
	if err != nil {
		return nil, err
	}
	responses := make([]OverrideResponse, 0, len(overrides))
	for _, o := range overrides {
		responses = append(responses, ToOverrideResponse(o))
	}
	return responses, nil
}

// recordRuleChange writes the administrative audit entry. Failures are
// logged loudly but do not roll back the rule change itself; the override
// table's own timestamps still witness the change.
func (s *OverrideService) recordRuleChange(
	ctx context.Context,
	action commission.RuleChangeAction,
	override *commission.CommissionOverride,
	oldValue map[string]any,
	actorID uuid.UUID,
) {
	entry, err := commission.NewRuleChangeAudit(action, override.Variant, override.ID, override.ScopeID,
		oldValue, overridePayload(override), actorID)
	if err != nil {
		s.logger.Error("failed to build rule change audit entry", zap.Error(err))
		return
	}
	if err := s.ruleAudits.Record(ctx, entry); err != nil {
		s.logger.Error("failed to record rule change audit entry",
			zap.String("override_id", override.ID.String()),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

func overridePayload(o *commission.CommissionOverride) map[string]any {
	payload := map[string]any{
		"rate": o.Rate.Decimal().String(),
		"note": o.Note,
	}
	if o.Window.From != nil {
		payload["valid_from"] = o.Window.From.UTC().Format(time.RFC3339Nano)
	}
	if o.Window.To != nil {
		payload["valid_to"] = o.Window.To.UTC().Format(time.RFC3339Nano)
	}
	return payload
}
