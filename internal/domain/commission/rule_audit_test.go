package commission

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRuleChangeAudit(t *testing.T) {
	actor := uuid.New()
	target := uuid.New()

	t.Run("creates valid entry", func(t *testing.T) {
		entry, err := NewRuleChangeAudit(RuleActionCreated, VariantVendor, target, nil,
			nil, map[string]any{"rate": "6"}, actor)

		require.NoError(t, err)
		assert.Equal(t, RuleActionCreated, entry.Action)
		assert.Equal(t, actor, entry.ActorID)
		assert.Equal(t, "6", entry.GetNewValue()["rate"])
	})

	t.Run("rejects invalid action", func(t *testing.T) {
		_, err := NewRuleChangeAudit(RuleChangeAction("deleted"), VariantVendor, target, nil, nil, nil, actor)
		assert.Error(t, err)
	})

	t.Run("rejects missing actor", func(t *testing.T) {
		_, err := NewRuleChangeAudit(RuleActionExpired, VariantVendor, target, nil, nil, nil, uuid.Nil)
		assert.Error(t, err)
	})

	t.Run("value accessors return copies", func(t *testing.T) {
		entry, err := NewRuleChangeAudit(RuleActionUpdated, VariantProduct, target, nil,
			map[string]any{"rate": "5"}, map[string]any{"rate": "6"}, actor)
		require.NoError(t, err)

		entry.GetOldValue()["rate"] = "99"
		assert.Equal(t, "5", entry.OldValue["rate"])
	})
}
