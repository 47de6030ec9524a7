package commission

import (
	"maps"

	"github.com/google/uuid"

	"github.com/marketplace/backend/internal/domain/shared"
)

// RuleChangeAction classifies an administrative change to commission rules
type RuleChangeAction string

const (
	RuleActionCreated  RuleChangeAction = "created"
	RuleActionUpdated  RuleChangeAction = "updated"
	RuleActionExpired  RuleChangeAction = "expired"
	RuleActionDiscount RuleChangeAction = "discount_changed"
)

// IsValid checks if the action is valid
func (a RuleChangeAction) IsValid() bool {
	switch a {
	case RuleActionCreated, RuleActionUpdated, RuleActionExpired, RuleActionDiscount:
		return true
	}
	return false
}

// RuleChangeAudit records who changed a commission rule and how. It is a
// separate stream from commission resolution audits: rule changes answer
// "who changed the rate", resolution records answer "what rate a sale got".
type RuleChangeAudit struct {
	shared.BaseEntity
	Action   RuleChangeAction `json:"action"`
	Variant  OverrideVariant  `json:"variant"`
	TargetID uuid.UUID        `json:"target_id"`
	ScopeID  *uuid.UUID       `json:"scope_id,omitempty"`
	OldValue map[string]any   `json:"old_value,omitempty"`
	NewValue map[string]any   `json:"new_value,omitempty"`
	ActorID  uuid.UUID        `json:"actor_id"`
}

// NewRuleChangeAudit creates a rule change audit entry
func NewRuleChangeAudit(
	action RuleChangeAction,
	variant OverrideVariant,
	targetID uuid.UUID,
	scopeID *uuid.UUID,
	oldValue, newValue map[string]any,
	actorID uuid.UUID,
) (*RuleChangeAudit, error) {
	if !action.IsValid() {
		return nil, shared.NewDomainError("INVALID_ACTION", "Invalid rule change action")
	}
	if targetID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TARGET", "Rule change audit requires a target ID")
	}
	if actorID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACTOR", "Rule change audit requires an actor ID")
	}

	return &RuleChangeAudit{
		BaseEntity: shared.NewBaseEntity(),
		Action:     action,
		Variant:    variant,
		TargetID:   targetID,
		ScopeID:    scopeID,
		OldValue:   oldValue,
		NewValue:   newValue,
		ActorID:    actorID,
	}, nil
}

// GetOldValue returns a copy of the old value payload
func (a *RuleChangeAudit) GetOldValue() map[string]any {
	result := make(map[string]any, len(a.OldValue))
	maps.Copy(result, a.OldValue)
	return result
}

// GetNewValue returns a copy of the new value payload
func (a *RuleChangeAudit) GetNewValue() map[string]any {
	result := make(map[string]any, len(a.NewValue))
	maps.Copy(result, a.NewValue)
	return result
}
