// Package scoring sums weights and role scores on their scaled integer form
// and checks them against the configured policy.
package scoring

import (
	"errors"

	"appraisal/internal/domain/fixedpoint"
)

const (
	RoleOwner    = "owner"
	RoleChecker  = "checker"
	RoleApprover = "approver"
)

// BonusCheck is the outcome of validating a Bonus document's line-item weights.
type BonusCheck struct {
	OK     bool              `json:"ok"`
	Rank   string            `json:"rank"`
	Total  fixedpoint.Weight `json:"total"`
	Cap    fixedpoint.Weight `json:"cap"`
	Issues []error           `json:"-"`
}

// Err joins every issue found, or returns nil when the check passed.
func (c BonusCheck) Err() error {
	return errors.Join(c.Issues...)
}

// MeritCheck is the outcome of validating a Merit document's competency weights.
type MeritCheck struct {
	OK     bool              `json:"ok"`
	Total  fixedpoint.Weight `json:"total"`
	Target fixedpoint.Weight `json:"target"`
	Issues []error           `json:"-"`
}

func (c MeritCheck) Err() error {
	return errors.Join(c.Issues...)
}

// ValidateBonusWeight accepts when sum(weights) <= cap for rank.
func (p Policy) ValidateBonusWeight(weights []fixedpoint.Weight, rank string) BonusCheck {
	check := BonusCheck{Rank: rank}
	check.Issues = append(check.Issues, weightIssues(weights)...)

	total, sumErr := fixedpoint.SumWeights(weights)
	if sumErr != nil {
		check.Issues = append(check.Issues, ErrTotalOverflow)
	}
	check.Total = fixedpoint.Weight(total)

	limit, ok := p.CapForRank(rank)
	if !ok {
		check.Issues = append(check.Issues, &UnknownRankError{Rank: rank})
	} else {
		check.Cap = fixedpoint.Weight(limit)
		if sumErr == nil && total > limit {
			check.Issues = append(check.Issues, &WeightExceedsCapError{Rank: rank, Total: total, Cap: limit})
		}
	}

	check.OK = len(check.Issues) == 0
	return check
}

// ValidateMeritWeight accepts only when sum(weights) equals the target exactly.
func (p Policy) ValidateMeritWeight(weights []fixedpoint.Weight) MeritCheck {
	check := MeritCheck{Target: fixedpoint.Weight(p.MeritTarget)}
	check.Issues = append(check.Issues, weightIssues(weights)...)

	total, sumErr := fixedpoint.SumWeights(weights)
	check.Total = fixedpoint.Weight(total)
	if sumErr != nil {
		check.Issues = append(check.Issues, ErrTotalOverflow)
	} else if total != p.MeritTarget {
		check.Issues = append(check.Issues, &WeightTotalMismatchError{Total: total, Target: p.MeritTarget})
	}

	check.OK = len(check.Issues) == 0
	return check
}

// weightIssues reports every item weight outside 0.00..100.00.
func weightIssues(weights []fixedpoint.Weight) []error {
	var issues []error
	for i, w := range weights {
		if err := weightIssue(i, w); err != nil {
			issues = append(issues, err)
		}
	}
	return issues
}

func weightIssue(index int, w fixedpoint.Weight) error {
	switch {
	case w < 0:
		return &NegativeWeightError{Index: index, Weight: int64(w)}
	case w > fixedpoint.MaxWeight:
		return &WeightTooLargeError{Index: index, Weight: int64(w)}
	}
	return nil
}

// RoleLevels carries one value per role. Zero means not yet recorded.
type RoleLevels struct {
	Owner    int `json:"owner"`
	Checker  int `json:"checker"`
	Approver int `json:"approver"`
}

type RoleScores struct {
	Owner    fixedpoint.Weight `json:"owner"`
	Checker  fixedpoint.Weight `json:"checker"`
	Approver fixedpoint.Weight `json:"approver"`
}

type CompetencyScore struct {
	Weight fixedpoint.Weight
	Levels RoleLevels
}

// MeritScores computes each role's partial score, sum((level/itemCount)*weight).
// The division happens once on the summed numerators so rounding is applied a
// single time per role.
func (p Policy) MeritScores(items []CompetencyScore) (RoleScores, error) {
	if len(items) == 0 {
		return RoleScores{}, nil
	}

	var issues []error
	var owner, checker, approver int64
	for i, item := range items {
		if err := weightIssue(i, item.Weight); err != nil {
			issues = append(issues, err)
			continue
		}
		for _, lv := range []struct {
			role  string
			level int
			acc   *int64
		}{
			{RoleOwner, item.Levels.Owner, &owner},
			{RoleChecker, item.Levels.Checker, &checker},
			{RoleApprover, item.Levels.Approver, &approver},
		} {
			if lv.level == 0 {
				continue
			}
			if lv.level < p.MinLevel || lv.level > p.MaxLevel {
				issues = append(issues, &LevelError{Index: i, Role: lv.role, Level: lv.level, Min: p.MinLevel, Max: p.MaxLevel})
				continue
			}
			*lv.acc += int64(lv.level) * int64(item.Weight)
		}
	}
	if len(issues) > 0 {
		return RoleScores{}, errors.Join(issues...)
	}

	n := int64(len(items))
	return RoleScores{
		Owner:    fixedpoint.Weight(divRound(owner, n)),
		Checker:  fixedpoint.Weight(divRound(checker, n)),
		Approver: fixedpoint.Weight(divRound(approver, n)),
	}, nil
}

type AchievementScore struct {
	Weight fixedpoint.Weight
	Tiers  RoleLevels
}

// BonusScores computes each role's KPI score, sum(weight * tier / 100).
func BonusScores(items []AchievementScore) (RoleScores, error) {
	var issues []error
	var owner, checker, approver int64
	for i, item := range items {
		if err := weightIssue(i, item.Weight); err != nil {
			issues = append(issues, err)
			continue
		}
		for _, tv := range []struct {
			role string
			tier int
			acc  *int64
		}{
			{RoleOwner, item.Tiers.Owner, &owner},
			{RoleChecker, item.Tiers.Checker, &checker},
			{RoleApprover, item.Tiers.Approver, &approver},
		} {
			if !ValidTier(tv.tier) {
				issues = append(issues, &TierError{Index: i, Role: tv.role, Tier: tv.tier})
				continue
			}
			*tv.acc += int64(tv.tier) * int64(item.Weight)
		}
	}
	if len(issues) > 0 {
		return RoleScores{}, errors.Join(issues...)
	}
	return RoleScores{
		Owner:    fixedpoint.Weight(divRound(owner, 100)),
		Checker:  fixedpoint.Weight(divRound(checker, 100)),
		Approver: fixedpoint.Weight(divRound(approver, 100)),
	}, nil
}

// ValidTier reports whether tier is one of the achievement tiers, or zero.
func ValidTier(tier int) bool {
	switch tier {
	case 0, 70, 80, 90, 100:
		return true
	}
	return false
}

// divRound divides rounding half away from zero. den must be positive.
func divRound(num, den int64) int64 {
	q, r := num/den, num%den
	if r < 0 {
		r = -r
	}
	if 2*r >= den {
		if num < 0 {
			q--
		} else {
			q++
		}
	}
	return q
}
