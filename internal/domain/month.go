package domain

import (
	"fmt"
	"strings"
)

// Month is one of the twelve calendar-month labels used both as a dataset column
// and as the second half of a model key.
type Month uint8

const (
	January Month = iota + 1
	February
	March
	April
	May
	June
	July
	August
	September
	October
	November
	December
)

var monthLabels = [...]string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

// Months lists the twelve labels in calendar order.
var Months = []Month{January, February, March, April, May, June, July, August, September, October, November, December}

// Valid reports whether m is one of the twelve calendar months.
func (m Month) Valid() bool {
	return m >= January && m <= December
}

// Index returns the zero-based position of m, for use as an array index.
func (m Month) Index() int {
	return int(m) - 1
}

// String returns the canonical upper-case label, e.g. "JAN".
func (m Month) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Month(%d)", uint8(m))
	}
	return monthLabels[m.Index()]
}

// ParseMonth resolves a label to its Month. Matching ignores case and surrounding
// whitespace but accepts only the twelve three-letter labels.
func ParseMonth(label string) (Month, error) {
	label = strings.TrimSpace(label)
	for i, canonical := range monthLabels {
		if strings.EqualFold(label, canonical) {
			return Month(i + 1), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMonth, label)
}

// MonthFromNumber converts 1..12 to a Month.
func MonthFromNumber(n int) (Month, error) {
	if n < 1 || n > 12 {
		return 0, fmt.Errorf("%w: month number %d", ErrInvalidMonth, n)
	}
	return Month(n), nil
}

// MarshalText encodes the month as its canonical label.
func (m Month) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMonth, uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText decodes a canonical (or case-variant) month label.
func (m *Month) UnmarshalText(text []byte) error {
	parsed, err := ParseMonth(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
