package review

import (
	"context"
	"errors"
	"strings"

	"appraisal/internal/domain/access"
	"appraisal/internal/domain/audit"
	"appraisal/internal/domain/fixedpoint"
	"appraisal/internal/domain/scoring"
	"appraisal/internal/domain/workflow"
)

type Notifier interface {
	Create(ctx context.Context, tenantID, userID, ntype, title, body string) error
}

type Dispatcher interface {
	Enqueue(jobType, tenantID string, run func(context.Context) (any, error))
}

type HistoryReader interface {
	History(ctx context.Context, tenantID, entityType, entityID string) ([]audit.Event, error)
}

type TransitionRecorder interface {
	RecordTransition(action, outcome string)
}

type Service struct {
	store         StoreAPI
	policy        scoring.Policy
	Notify        Notifier
	Jobs          Dispatcher
	History       HistoryReader
	Metrics       TransitionRecorder
	MaxImportRows int
}

func NewService(store StoreAPI, policy scoring.Policy) *Service {
	return &Service{store: store, policy: policy}
}

func (s *Service) Policy() scoring.Policy {
	return s.policy
}

// current loads a document with its latest task and checks the caller may
// read it.
func (s *Service) current(ctx context.Context, actor Actor, documentID string) (Document, []Task, access.Role, error) {
	doc, err := s.store.GetDocument(ctx, actor.TenantID, documentID)
	if err != nil {
		return Document{}, nil, access.RoleNone, err
	}
	tasks, err := s.store.ListTasks(ctx, actor.TenantID, documentID)
	if err != nil {
		return Document{}, nil, access.RoleNone, err
	}
	if len(tasks) == 0 {
		return Document{}, nil, access.RoleNone, ErrNotFound
	}
	task := tasks[len(tasks)-1]
	role := access.ResolveRole(task.accessContext(actor.EmployeeID))
	if !actor.Admin && !access.CanPerform(role, access.ActionRead, task.Status) {
		return Document{}, nil, role, &PermissionDeniedError{Role: role, Action: access.ActionRead, Status: task.Status}
	}
	return doc, tasks, role, nil
}

func (s *Service) GetDocument(ctx context.Context, actor Actor, documentID string) (DocumentView, error) {
	doc, tasks, role, err := s.current(ctx, actor, documentID)
	if err != nil {
		return DocumentView{}, err
	}
	return DocumentView{Document: doc, Tasks: tasks, Role: role}, nil
}

// ListDocuments returns the documents the caller takes part in. Admins see
// the whole tenant.
func (s *Service) ListDocuments(ctx context.Context, actor Actor, filter DocumentFilter) ([]Document, error) {
	employeeID := actor.EmployeeID
	if actor.Admin {
		employeeID = ""
	} else if employeeID == "" {
		return []Document{}, nil
	}
	return s.store.ListDocuments(ctx, actor.TenantID, employeeID, filter)
}

var forwardActions = []access.Action{access.ActionSubmit, access.ActionWorkflow, access.ActionCheck, access.ActionApprove}

func (s *Service) Inbox(ctx context.Context, actor Actor, status workflow.Status) ([]InboxItem, error) {
	if actor.EmployeeID == "" {
		return []InboxItem{}, nil
	}
	items, err := s.store.ListInbox(ctx, actor.TenantID, actor.EmployeeID, status)
	if err != nil {
		return nil, err
	}
	for i := range items {
		role := access.ResolveRole(items[i].Task.accessContext(actor.EmployeeID))
		items[i].Role = role
		for _, allowed := range access.CanPerformMany(role, forwardActions, items[i].Task.Status) {
			if allowed {
				items[i].Actionable = true
				break
			}
		}
	}
	return items, nil
}

func (s *Service) TaskHistory(ctx context.Context, actor Actor, taskID string) ([]audit.Event, error) {
	task, err := s.store.GetTask(ctx, actor.TenantID, taskID)
	if err != nil {
		return nil, err
	}
	role := access.ResolveRole(task.accessContext(actor.EmployeeID))
	if !actor.Admin && !access.CanPerform(role, access.ActionRead, task.Status) {
		return nil, &PermissionDeniedError{Role: role, Action: access.ActionRead, Status: task.Status}
	}
	if s.History == nil {
		return []audit.Event{}, nil
	}
	return s.History.History(ctx, actor.TenantID, EntityTask, taskID)
}

var allActions = []access.Action{
	access.ActionRead, access.ActionWrite, access.ActionSubmit, access.ActionWorkflow,
	access.ActionCheck, access.ActionApprove, access.ActionReject,
}

// Permissions answers every requested action against the latest task in a
// single evaluation. No actions means all of them. Callers who may not read
// the document learn nothing about it.
func (s *Service) Permissions(ctx context.Context, actor Actor, documentID string, actions []access.Action) (PermissionSet, error) {
	_, tasks, role, err := s.current(ctx, actor, documentID)
	if err != nil {
		return PermissionSet{}, err
	}
	task := tasks[len(tasks)-1]
	if len(actions) == 0 {
		actions = allActions
	}
	return PermissionSet{
		TaskID:  task.ID,
		Status:  task.Status,
		Role:    role,
		Actions: access.CanPerformMany(role, actions, task.Status),
	}, nil
}

func (s *Service) WeightSummary(ctx context.Context, actor Actor, documentID string) (WeightSummary, error) {
	doc, _, _, err := s.current(ctx, actor, documentID)
	if err != nil {
		return WeightSummary{}, err
	}
	summary, _, err := s.evaluateWeights(ctx, s.store, doc)
	return summary, err
}

func (s *Service) Scores(ctx context.Context, actor Actor, documentID string) (ScoreSummary, error) {
	doc, tasks, _, err := s.current(ctx, actor, documentID)
	if err != nil {
		return ScoreSummary{}, err
	}
	scores, err := s.scoresFor(doc)
	if err != nil {
		return ScoreSummary{}, err
	}
	return ScoreSummary{Kind: doc.Kind, Status: tasks[len(tasks)-1].Status, Scores: scores}, nil
}

func (s *Service) scoresFor(doc Document) (scoring.RoleScores, error) {
	if doc.Kind == KindMerit {
		items := make([]scoring.CompetencyScore, 0, len(doc.Competencies))
		for _, c := range doc.Competencies {
			items = append(items, scoring.CompetencyScore{Weight: c.Weight, Levels: c.Levels})
		}
		return s.policy.MeritScores(items)
	}
	items := make([]scoring.AchievementScore, 0, len(doc.LineItems))
	for _, li := range doc.LineItems {
		items = append(items, scoring.AchievementScore{Weight: li.Weight, Tiers: li.Achievement})
	}
	return scoring.BonusScores(items)
}

type rankLookup interface {
	EmployeeRank(ctx context.Context, tenantID, employeeID string) (string, error)
}

// evaluateWeights applies the document's weight rule. The second return is
// the joined rule violations, nil when the weights are acceptable.
func (s *Service) evaluateWeights(ctx context.Context, ranks rankLookup, doc Document) (WeightSummary, error, error) {
	summary := WeightSummary{Kind: doc.Kind}
	var issues error

	switch doc.Kind {
	case KindMerit:
		weights := make([]fixedpoint.Weight, 0, len(doc.Competencies))
		for _, c := range doc.Competencies {
			weights = append(weights, c.Weight)
		}
		check := s.policy.ValidateMeritWeight(weights)
		summary.OK, summary.Total, summary.Limit = check.OK, check.Total, check.Target
		issues = check.Err()
	default:
		rank, err := ranks.EmployeeRank(ctx, doc.TenantID, doc.OwnerID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return WeightSummary{}, nil, err
		}
		weights := make([]fixedpoint.Weight, 0, len(doc.LineItems))
		for _, li := range doc.LineItems {
			weights = append(weights, li.Weight)
		}
		check := s.policy.ValidateBonusWeight(weights, rank)
		summary.OK, summary.Rank, summary.Total, summary.Limit = check.OK, rank, check.Total, check.Cap
		issues = check.Err()
	}

	if issues != nil {
		for _, line := range strings.Split(issues.Error(), "\n") {
			summary.Issues = append(summary.Issues, line)
		}
	}
	return summary, issues, nil
}
