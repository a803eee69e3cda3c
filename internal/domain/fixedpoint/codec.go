// Package fixedpoint converts between human decimal values and the scaled
// integers that weights and scores are stored and summed as.
package fixedpoint

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// WeightPrecision is the number of decimals kept for weights and scores.
const WeightPrecision int32 = 2

const maxPrecision int32 = 9

var (
	ErrPrecision  = errors.New("fixedpoint: precision must be between 0 and 9")
	ErrOutOfRange = errors.New("fixedpoint: value out of range")
	ErrSyntax     = errors.New("fixedpoint: invalid decimal")
)

var (
	maxInt = decimal.NewFromInt(math.MaxInt64)
	minInt = decimal.NewFromInt(math.MinInt64)
)

// ToScaledInt returns round(value * 10^precision), rounding half away from zero.
func ToScaledInt(value decimal.Decimal, precision int32) (int64, error) {
	if precision < 0 || precision > maxPrecision {
		return 0, ErrPrecision
	}
	scaled := value.Shift(precision).Round(0)
	if scaled.GreaterThan(maxInt) || scaled.LessThan(minInt) {
		return 0, ErrOutOfRange
	}
	return scaled.IntPart(), nil
}

// ToDecimal returns scaled / 10^precision.
func ToDecimal(scaled int64, precision int32) decimal.Decimal {
	if precision < 0 {
		precision = 0
	}
	return decimal.New(scaled, -precision)
}

// Parse reads a decimal string such as "12.5" or "-3" into its scaled form.
func Parse(raw string, precision int32) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty value", ErrSyntax)
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrSyntax, raw)
	}
	return ToScaledInt(value, precision)
}

// Format renders a scaled value with exactly precision decimals.
func Format(scaled int64, precision int32) string {
	return ToDecimal(scaled, precision).StringFixed(precision)
}
