package scoring

import (
	"errors"
	"fmt"

	"appraisal/internal/domain/fixedpoint"
)

var (
	ErrNegativeWeight  = errors.New("weight must not be negative")
	ErrWeightTooLarge  = errors.New("weight must not exceed 100.00")
	ErrTotalOverflow   = errors.New("total weight out of range")
	ErrUnknownRank     = errors.New("no weight cap configured for rank")
	ErrLevelOutOfRange = errors.New("level out of range")
	ErrInvalidTier     = errors.New("achievement tier must be one of 0, 70, 80, 90, 100")
)

// WeightExceedsCapError reports a Bonus document whose line-item weights add
// up to more than the preparer's rank allows.
type WeightExceedsCapError struct {
	Rank  string
	Total int64
	Cap   int64
}

func (e *WeightExceedsCapError) Error() string {
	return fmt.Sprintf("total weight %s exceeds cap %s for rank %q",
		fixedpoint.Format(e.Total, fixedpoint.WeightPrecision),
		fixedpoint.Format(e.Cap, fixedpoint.WeightPrecision),
		e.Rank)
}

// WeightTotalMismatchError reports a Merit document whose competency weights
// do not add up to the target exactly.
type WeightTotalMismatchError struct {
	Total  int64
	Target int64
}

func (e *WeightTotalMismatchError) Error() string {
	return fmt.Sprintf("total weight %s must equal %s",
		fixedpoint.Format(e.Total, fixedpoint.WeightPrecision),
		fixedpoint.Format(e.Target, fixedpoint.WeightPrecision))
}

type UnknownRankError struct {
	Rank string
}

func (e *UnknownRankError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownRank, e.Rank)
}

func (e *UnknownRankError) Unwrap() error { return ErrUnknownRank }

type NegativeWeightError struct {
	Index  int
	Weight int64
}

func (e *NegativeWeightError) Error() string {
	return fmt.Sprintf("item %d: %s (got %s)", e.Index+1, ErrNegativeWeight,
		fixedpoint.Format(e.Weight, fixedpoint.WeightPrecision))
}

func (e *NegativeWeightError) Unwrap() error { return ErrNegativeWeight }

type WeightTooLargeError struct {
	Index  int
	Weight int64
}

func (e *WeightTooLargeError) Error() string {
	return fmt.Sprintf("item %d: %s (got %s)", e.Index+1, ErrWeightTooLarge,
		fixedpoint.Format(e.Weight, fixedpoint.WeightPrecision))
}

func (e *WeightTooLargeError) Unwrap() error { return ErrWeightTooLarge }

type LevelError struct {
	Index int
	Role  string
	Level int
	Min   int
	Max   int
}

func (e *LevelError) Error() string {
	return fmt.Sprintf("item %d: %s level %d not in %d..%d", e.Index+1, e.Role, e.Level, e.Min, e.Max)
}

func (e *LevelError) Unwrap() error { return ErrLevelOutOfRange }

type TierError struct {
	Index int
	Role  string
	Tier  int
}

func (e *TierError) Error() string {
	return fmt.Sprintf("item %d: %s tier %d: %s", e.Index+1, e.Role, e.Tier, ErrInvalidTier)
}

func (e *TierError) Unwrap() error { return ErrInvalidTier }
