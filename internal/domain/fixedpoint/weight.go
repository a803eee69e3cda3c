package fixedpoint

import (
	"bytes"
	"fmt"
	"math"
	"strings"
)

// Weight is a percentage allocation stored as hundredths (12.50 -> 1250).
type Weight int64

// MaxWeight is the largest weight a single item may carry (100.00).
const MaxWeight Weight = 10000

// InRange reports whether w lies in 0.00..100.00.
func (w Weight) InRange() bool {
	return w >= 0 && w <= MaxWeight
}

// ParseWeight parses a two-decimal weight such as "12.5".
func ParseWeight(raw string) (Weight, error) {
	scaled, err := Parse(raw, WeightPrecision)
	if err != nil {
		return 0, err
	}
	return Weight(scaled), nil
}

func (w Weight) Scaled() int64 {
	return int64(w)
}

func (w Weight) String() string {
	return Format(int64(w), WeightPrecision)
}

// MarshalJSON writes the weight as a JSON number with two decimals.
func (w Weight) MarshalJSON() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (w *Weight) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := strings.Trim(string(data), `"`)
	parsed, err := ParseWeight(raw)
	if err != nil {
		return fmt.Errorf("weight: %w", err)
	}
	*w = parsed
	return nil
}

// SumWeights adds weights on their scaled representation. It returns
// ErrOutOfRange instead of wrapping when the total leaves the int64 range.
func SumWeights(weights []Weight) (int64, error) {
	var total int64
	for _, w := range weights {
		v := int64(w)
		if (v > 0 && total > math.MaxInt64-v) || (v < 0 && total < math.MinInt64-v) {
			return 0, ErrOutOfRange
		}
		total += v
	}
	return total, nil
}
