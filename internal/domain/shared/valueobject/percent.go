package valueobject

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Percent is a value object representing a percentage in the range
// [0, 100]. The value 7.5 means 7.5%, not a 0.075 ratio.
// Percent is immutable - all operations return new instances.
type Percent struct {
	value decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// NewPercent creates a Percent, rejecting values outside [0, 100]
func NewPercent(value decimal.Decimal) (Percent, error) {
	if value.IsNegative() {
		return Percent{}, fmt.Errorf("percentage cannot be negative: %s", value)
	}
	if value.GreaterThan(hundred) {
		return Percent{}, fmt.Errorf("percentage cannot exceed 100: %s", value)
	}
	return Percent{value: value}, nil
}

// NewPercentFromFloat creates a Percent from a float64 value
func NewPercentFromFloat(value float64) (Percent, error) {
	return NewPercent(decimal.NewFromFloat(value))
}

// MustNewPercent creates a Percent, panicking on out-of-range values.
// Use only for static initialization with known-valid values.
func MustNewPercent(value decimal.Decimal) Percent {
	p, err := NewPercent(value)
	if err != nil {
		panic(fmt.Sprintf("invalid percent: %v", err))
	}
	return p
}

// ZeroPercent returns a 0% value
func ZeroPercent() Percent {
	return Percent{value: decimal.Zero}
}

// ClampPercent forces an arbitrary decimal into [0, 100] and reports
// whether clamping was necessary. Used at resolution time as a defensive
// fallback for legacy data; writes are validated with NewPercent instead.
func ClampPercent(value decimal.Decimal) (Percent, bool) {
	if value.IsNegative() {
		return Percent{value: decimal.Zero}, true
	}
	if value.GreaterThan(hundred) {
		return Percent{value: hundred}, true
	}
	return Percent{value: value}, false
}

// Value returns the underlying decimal (7.5 for 7.5%)
func (p Percent) Decimal() decimal.Decimal {
	return p.value
}

// Ratio returns the percentage as a ratio (0.075 for 7.5%)
func (p Percent) Ratio() decimal.Decimal {
	return p.value.Div(hundred)
}

// IsZero returns true if the percentage is zero
func (p Percent) IsZero() bool {
	return p.value.IsZero()
}

// Sub subtracts another percentage, flooring the result at the given
// floor percentage
func (p Percent) SubWithFloor(other, floor Percent) Percent {
	result := p.value.Sub(other.value)
	if result.LessThan(floor.value) {
		return floor
	}
	return Percent{value: result}
}

// Equals returns true if both percentages are numerically equal
func (p Percent) Equals(other Percent) bool {
	return p.value.Equal(other.value)
}

// LessThan returns true if this percentage is smaller than the other
func (p Percent) LessThan(other Percent) bool {
	return p.value.LessThan(other.value)
}

// String returns a human-readable representation, e.g. "7.5%"
func (p Percent) String() string {
	return p.value.String() + "%"
}

// MarshalJSON implements json.Marshaler, encoding as a bare number string
func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.value.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (p *Percent) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	value, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid percentage: %w", err)
	}
	parsed, err := NewPercent(value)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Value implements driver.Valuer for database storage
func (p Percent) Value() (driver.Value, error) {
	return p.value.String(), nil
}

// Scan implements sql.Scanner for database retrieval
func (p *Percent) Scan(value any) error {
	if value == nil {
		p.value = decimal.Zero
		return nil
	}

	var strVal string
	switch v := value.(type) {
	case string:
		strVal = v
	case []byte:
		strVal = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Percent", value)
	}

	parsed, err := decimal.NewFromString(strVal)
	if err != nil {
		return fmt.Errorf("invalid decimal value: %w", err)
	}
	p.value = parsed
	return nil
}
