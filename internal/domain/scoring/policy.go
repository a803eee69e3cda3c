package scoring

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"appraisal/internal/domain/fixedpoint"
)

//go:embed default_policy.yaml
var defaultPolicyYAML []byte

// Policy holds the numeric rules weights are validated against. Amounts are
// scaled by fixedpoint.WeightPrecision.
type Policy struct {
	RankCaps    map[string]int64
	MeritTarget int64
	MinLevel    int
	MaxLevel    int
}

type policyFile struct {
	Version int `yaml:"version"`
	Bonus   struct {
		RankCaps map[string]string `yaml:"rank_caps"`
	} `yaml:"bonus"`
	Merit struct {
		TargetTotal string `yaml:"target_total"`
		MinLevel    int    `yaml:"min_level"`
		MaxLevel    int    `yaml:"max_level"`
	} `yaml:"merit"`
}

func ParsePolicyYAML(b []byte) (Policy, error) {
	var f policyFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Policy{}, fmt.Errorf("policy: %w", err)
	}
	if f.Version != 1 {
		return Policy{}, errors.New("policy: unsupported version")
	}
	if len(f.Bonus.RankCaps) == 0 {
		return Policy{}, errors.New("policy: bonus.rank_caps is empty")
	}

	p := Policy{
		RankCaps: make(map[string]int64, len(f.Bonus.RankCaps)),
		MinLevel: f.Merit.MinLevel,
		MaxLevel: f.Merit.MaxLevel,
	}
	for rank, raw := range f.Bonus.RankCaps {
		limit, err := fixedpoint.Parse(raw, fixedpoint.WeightPrecision)
		if err != nil {
			return Policy{}, fmt.Errorf("policy: rank %q: %w", rank, err)
		}
		if limit < 0 {
			return Policy{}, fmt.Errorf("policy: rank %q: cap must not be negative", rank)
		}
		p.RankCaps[normalizeRank(rank)] = limit
	}

	target, err := fixedpoint.Parse(f.Merit.TargetTotal, fixedpoint.WeightPrecision)
	if err != nil {
		return Policy{}, fmt.Errorf("policy: merit.target_total: %w", err)
	}
	p.MeritTarget = target

	if p.MinLevel < 1 || p.MaxLevel < p.MinLevel {
		return Policy{}, errors.New("policy: merit level bounds must satisfy 1 <= min_level <= max_level")
	}
	return p, nil
}

// LoadPolicy reads a policy file; an empty path yields the built-in policy.
func LoadPolicy(path string) (Policy, error) {
	if strings.TrimSpace(path) == "" {
		return ParsePolicyYAML(defaultPolicyYAML)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, err
	}
	return ParsePolicyYAML(b)
}

// DefaultPolicy returns the built-in policy. It panics only if the embedded
// file is broken.
func DefaultPolicy() Policy {
	p, err := ParsePolicyYAML(defaultPolicyYAML)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Policy) CapForRank(rank string) (int64, bool) {
	limit, ok := p.RankCaps[normalizeRank(rank)]
	return limit, ok
}

func normalizeRank(rank string) string {
	return strings.ToLower(strings.TrimSpace(rank))
}
