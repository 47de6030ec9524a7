package commission

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Snapshot is a point-in-time view of the override store covering the four
// layers relevant to one line item. It is built from a single read
// transaction before resolution runs, so the Product and Vendor probes can
// never see different "current times" due to interleaved admin writes.
type Snapshot struct {
	overrides map[OverrideVariant][]*CommissionOverride
}

// NewSnapshot builds a snapshot from pre-loaded overrides, keyed by variant.
// Each slice holds every override of that variant whose scope matches the
// line item (or all global overrides).
func NewSnapshot(overrides map[OverrideVariant][]*CommissionOverride) *Snapshot {
	views := make(map[OverrideVariant][]*CommissionOverride, len(overrides))
	for variant, list := range overrides {
		views[variant] = append([]*CommissionOverride(nil), list...)
	}
	return &Snapshot{overrides: views}
}

// EmptySnapshot returns a snapshot with no overrides on any layer
func EmptySnapshot() *Snapshot {
	return &Snapshot{overrides: map[OverrideVariant][]*CommissionOverride{}}
}

// ActiveAt returns every override of the variant active at the instant,
// newest creation first. A healthy store yields at most one element;
// more than one means overlapping windows slipped in and the caller
// breaks the tie deterministically.
func (s *Snapshot) ActiveAt(variant OverrideVariant, scopeID *uuid.UUID, at time.Time) []*CommissionOverride {
	var matches []*CommissionOverride
	for _, o := range s.overrides[variant] {
		if !o.ActiveAt(at) {
			continue
		}
		if variant.RequiresScope() && !sameScope(o.ScopeID, scopeID) {
			continue
		}
		matches = append(matches, o)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		// creation times can collide; fall back to ID for a total order
		return matches[i].ID.String() > matches[j].ID.String()
	})
	return matches
}
