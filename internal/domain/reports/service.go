package reports

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"appraisal/internal/domain/fixedpoint"
	"appraisal/internal/domain/scoring"
	"appraisal/internal/domain/workflow"
)

const (
	kindBonus = "bonus"
	kindMerit = "merit"
)

type StoreAPI interface {
	StatusCounts(ctx context.Context, tenantID string, year int) ([]StatusCount, error)
	ApprovedItems(ctx context.Context, tenantID string, year int) ([]ApprovedItem, error)
	ListJobRuns(ctx context.Context, tenantID string, filter JobRunFilter, limit, offset int) ([]JobRun, error)
	CountJobRuns(ctx context.Context, tenantID string, filter JobRunFilter) (int, error)
}

type Service struct {
	Store  StoreAPI
	Policy scoring.Policy
}

func NewService(store StoreAPI, policy scoring.Policy) *Service {
	return &Service{Store: store, Policy: policy}
}

// YearlyRollup counts the year's documents by kind and current status and
// averages the owner and approver scores of approved ones. It reads without
// locks, so a rollup taken during a transition may be one step behind.
func (s *Service) YearlyRollup(ctx context.Context, tenantID string, year int) (YearlyRollup, error) {
	counts, err := s.Store.StatusCounts(ctx, tenantID, year)
	if err != nil {
		return YearlyRollup{}, err
	}
	items, err := s.Store.ApprovedItems(ctx, tenantID, year)
	if err != nil {
		return YearlyRollup{}, err
	}

	byKind := map[string]*KindRollup{}
	rollupFor := func(kind string) *KindRollup {
		k, ok := byKind[kind]
		if !ok {
			k = &KindRollup{Kind: kind, ByStatus: map[workflow.Status]int{}}
			byKind[kind] = k
		}
		return k
	}

	out := YearlyRollup{Year: year}
	for _, c := range counts {
		k := rollupFor(c.Kind)
		k.ByStatus[c.Status] += c.Count
		k.Total += c.Count
		out.Total += c.Count
		if c.Status == workflow.StatusApproved {
			k.Approved += c.Count
		}
	}

	scores, err := s.documentScores(items)
	if err != nil {
		return YearlyRollup{}, err
	}
	for kind, docs := range scores {
		k := rollupFor(kind)
		var owner, approver int64
		for _, sc := range docs {
			owner += int64(sc.Owner)
			approver += int64(sc.Approver)
		}
		k.AverageOwner = average(owner, len(docs))
		k.AverageApprover = average(approver, len(docs))
	}

	for _, k := range byKind {
		out.Kinds = append(out.Kinds, *k)
	}
	sort.Slice(out.Kinds, func(i, j int) bool { return out.Kinds[i].Kind < out.Kinds[j].Kind })
	return out, nil
}

// documentScores groups items per document and scores each with the rule of
// its kind.
func (s *Service) documentScores(items []ApprovedItem) (map[string][]scoring.RoleScores, error) {
	type docItems struct {
		kind  string
		items []ApprovedItem
	}
	var order []string
	docs := map[string]*docItems{}
	for _, item := range items {
		d, ok := docs[item.DocumentID]
		if !ok {
			d = &docItems{kind: item.Kind}
			docs[item.DocumentID] = d
			order = append(order, item.DocumentID)
		}
		d.items = append(d.items, item)
	}

	out := map[string][]scoring.RoleScores{}
	for _, id := range order {
		d := docs[id]
		var (
			sc  scoring.RoleScores
			err error
		)
		switch d.kind {
		case kindMerit:
			comps := make([]scoring.CompetencyScore, 0, len(d.items))
			for _, item := range d.items {
				comps = append(comps, scoring.CompetencyScore{Weight: item.Weight, Levels: scoring.RoleLevels{Owner: item.Owner, Approver: item.Approver}})
			}
			sc, err = s.Policy.MeritScores(comps)
		case kindBonus:
			kpis := make([]scoring.AchievementScore, 0, len(d.items))
			for _, item := range d.items {
				kpis = append(kpis, scoring.AchievementScore{Weight: item.Weight, Tiers: scoring.RoleLevels{Owner: item.Owner, Approver: item.Approver}})
			}
			sc, err = scoring.BonusScores(kpis)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		out[d.kind] = append(out[d.kind], sc)
	}
	return out, nil
}

func average(total int64, n int) fixedpoint.Weight {
	if n == 0 {
		return 0
	}
	avg := decimal.NewFromInt(total).Div(decimal.NewFromInt(int64(n))).Round(0)
	return fixedpoint.Weight(avg.IntPart())
}

func (s *Service) JobRuns(ctx context.Context, tenantID string, filter JobRunFilter, limit, offset int) ([]JobRun, int, error) {
	runs, err := s.Store.ListJobRuns(ctx, tenantID, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Store.CountJobRuns(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}
