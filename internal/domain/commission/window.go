package commission

import (
	"errors"
	"time"
)

// ValidityWindow is a half-open time interval [From, To). A nil bound is
// unbounded on that side; a window with both bounds nil is always active.
// ValidityWindow is immutable - all operations return new instances.
type ValidityWindow struct {
	From *time.Time `json:"valid_from,omitempty"`
	To   *time.Time `json:"valid_to,omitempty"`
}

// NewValidityWindow creates a window, rejecting From >= To
func NewValidityWindow(from, to *time.Time) (ValidityWindow, error) {
	if from != nil && to != nil && !from.Before(*to) {
		return ValidityWindow{}, errors.New("valid_from must be before valid_to")
	}
	return ValidityWindow{From: from, To: to}, nil
}

// AlwaysActive returns an unbounded window
func AlwaysActive() ValidityWindow {
	return ValidityWindow{}
}

// ActiveAt reports whether the instant t falls inside the window.
// The lower bound is inclusive, the upper bound exclusive.
func (w ValidityWindow) ActiveAt(t time.Time) bool {
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.To != nil && !t.Before(*w.To) {
		return false
	}
	return true
}

// Overlaps reports whether two half-open windows share any instant.
// Nil bounds are treated as unbounded, so two open-ended windows on the
// same side always overlap.
func (w ValidityWindow) Overlaps(other ValidityWindow) bool {
	// a starts before b ends, and b starts before a ends
	startsBefore := func(start *time.Time, end *time.Time) bool {
		if start == nil || end == nil {
			return true
		}
		return start.Before(*end)
	}
	return startsBefore(w.From, other.To) && startsBefore(other.From, w.To)
}

// TruncateAt returns a copy of the window closed at the given instant.
// Used to expire an override: anything at or after the instant no longer
// matches. If the window already ends earlier, it is returned unchanged.
func (w ValidityWindow) TruncateAt(at time.Time) ValidityWindow {
	if w.To != nil && w.To.Before(at) {
		return w
	}
	t := at
	return ValidityWindow{From: w.From, To: &t}
}

// String renders the window for admin-facing messages
func (w ValidityWindow) String() string {
	const layout = "2006-01-02T15:04:05Z07:00"
	from, to := "-inf", "+inf"
	if w.From != nil {
		from = w.From.Format(layout)
	}
	if w.To != nil {
		to = w.To.Format(layout)
	}
	return "[" + from + ", " + to + ")"
}
