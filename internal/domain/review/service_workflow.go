package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"appraisal/internal/domain/access"
	"appraisal/internal/domain/audit"
	"appraisal/internal/domain/notifications"
	"appraisal/internal/domain/workflow"
)

const (
	OutcomeApplied         = "applied"
	OutcomeDenied          = "denied"
	OutcomeInvalid         = "invalid"
	OutcomeRejectedWeights = "rejected_weights"
	OutcomeConflict        = "conflict"
	OutcomeNotFound        = "not_found"
	OutcomeError           = "error"
)

const (
	minYear = 2000
	maxYear = 2100
)

// Transition applies action to a task. The permission check, the status
// change, the weight rule and the audit row commit together or not at all.
func (s *Service) Transition(ctx context.Context, actor Actor, taskID string, action workflow.Action) (Task, error) {
	var updated Task
	err := s.store.WithTx(ctx, func(tx TxStore) error {
		task, err := tx.LockTask(ctx, actor.TenantID, taskID)
		if err != nil {
			return err
		}
		updated, err = s.apply(ctx, tx, actor, task, action)
		return err
	})
	s.recordOutcome(action, err)
	if err != nil {
		return Task{}, err
	}
	s.announce(actor.TenantID, updated)
	return updated, nil
}

func (s *Service) BeginStage(ctx context.Context, actor Actor, taskID string) (Task, error) {
	return s.Transition(ctx, actor, taskID, workflow.ActionCreate)
}

func (s *Service) StartWorkflow(ctx context.Context, actor Actor, taskID string) (Task, error) {
	return s.Transition(ctx, actor, taskID, workflow.ActionStartWorkflow)
}

// Confirm records the checker's or approver's decision on a pending task.
func (s *Service) Confirm(ctx context.Context, actor Actor, taskID string, approved bool) (Task, error) {
	return s.Transition(ctx, actor, taskID, workflow.ConfirmAction(approved))
}

func (s *Service) Revise(ctx context.Context, actor Actor, taskID string) (Task, error) {
	return s.Transition(ctx, actor, taskID, workflow.ActionRevise)
}

// apply is the single gate every status change passes through. task must be
// locked by tx.
func (s *Service) apply(ctx context.Context, tx TxStore, actor Actor, task Task, action workflow.Action) (Task, error) {
	role := access.ResolveRole(task.accessContext(actor.EmployeeID))
	capability, known := access.RequiredCapability(action, task.Status)
	if role == access.RoleNone {
		return Task{}, &PermissionDeniedError{Role: role, Action: capability, Status: task.Status}
	}
	if !known {
		return Task{}, &workflow.InvalidTransitionError{From: task.Status, Action: action}
	}
	if !access.CanPerform(role, capability, task.Status) {
		return Task{}, &PermissionDeniedError{Role: role, Action: capability, Status: task.Status}
	}

	next, err := workflow.NextStatus(task.Status, action, task.HasChecker())
	if err != nil {
		return Task{}, err
	}

	if workflow.NeedsWeightCheck(action, next) {
		doc, err := tx.GetDocument(ctx, actor.TenantID, task.DocumentID)
		if err != nil {
			return Task{}, err
		}
		summary, issues, err := s.evaluateWeights(ctx, tx, doc)
		if err != nil {
			return Task{}, err
		}
		if issues != nil {
			return Task{}, &WeightError{Kind: doc.Kind, Rank: summary.Rank, Total: summary.Total, Limit: summary.Limit, Err: issues}
		}
	}

	from := task.Status
	if err := tx.UpdateTaskStatus(ctx, actor.TenantID, task.ID, from, next); err != nil {
		return Task{}, err
	}
	if err := tx.RecordAudit(ctx, actor.TenantID, audit.Entry{
		ActorID:    actor.UserID,
		Action:     AuditTaskTransition,
		EntityType: EntityTask,
		EntityID:   task.ID,
		RequestID:  actor.RequestID,
		IP:         actor.IP,
		Before:     map[string]any{"status": from},
		After:      map[string]any{"status": next, "action": action, "role": role},
	}); err != nil {
		return Task{}, err
	}

	now := time.Now().UTC()
	task.Status = next
	task.UpdatedAt = now
	if next.Pending() && !from.Pending() {
		task.SubmittedAt = &now
	}
	if next == workflow.StatusApproved {
		task.CompletedAt = &now
	}
	return task, nil
}

// CreateDocument opens a document owned by the caller with its definition
// task already moved into draft.
func (s *Service) CreateDocument(ctx context.Context, actor Actor, in NewDocument) (DocumentView, error) {
	owner := strings.TrimSpace(actor.EmployeeID)
	if owner == "" {
		return DocumentView{}, &InputError{Field: "employee", Reason: "caller has no employee record"}
	}
	doc, err := newDocument(actor.TenantID, owner, in)
	if err != nil {
		return DocumentView{}, err
	}

	var view DocumentView
	err = s.store.WithTx(ctx, func(tx TxStore) error {
		id, err := tx.CreateDocument(ctx, doc)
		if err != nil {
			return err
		}
		doc.ID = id

		task := Task{
			TenantID:   actor.TenantID,
			DocumentID: id,
			Stage:      workflow.StageDefinition,
			Status:     workflow.StatusNotStarted,
			PreparedBy: doc.OwnerID,
			CheckedBy:  doc.CheckerID,
			ApprovedBy: doc.ApproverID,
		}
		task.ID, err = tx.CreateTask(ctx, task)
		if err != nil {
			return err
		}
		if err := tx.RecordAudit(ctx, actor.TenantID, audit.Entry{
			ActorID:    actor.UserID,
			Action:     AuditDocumentCreate,
			EntityType: EntityDocument,
			EntityID:   id,
			RequestID:  actor.RequestID,
			IP:         actor.IP,
			After:      doc,
		}); err != nil {
			return err
		}

		task, err = s.apply(ctx, tx, actor, task, workflow.ActionCreate)
		if err != nil {
			return err
		}
		view = DocumentView{Document: doc, Tasks: []Task{task}, Role: access.RolePreparer}
		return nil
	})
	s.recordOutcome(workflow.ActionCreate, err)
	if err != nil {
		return DocumentView{}, err
	}
	return view, nil
}

func newDocument(tenantID, ownerID string, in NewDocument) (Document, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(string(in.Kind))))
	if !kind.Valid() {
		return Document{}, &InputError{Field: "kind", Reason: "must be bonus or merit"}
	}
	if in.Year < minYear || in.Year > maxYear {
		return Document{}, &InputError{Field: "year", Reason: fmt.Sprintf("must be between %d and %d", minYear, maxYear)}
	}
	approver := strings.TrimSpace(in.ApproverID)
	checker := strings.TrimSpace(in.CheckerID)
	if approver == "" {
		return Document{}, &InputError{Field: "approverId", Reason: "required"}
	}
	if approver == ownerID {
		return Document{}, &InputError{Field: "approverId", Reason: "must differ from the document owner"}
	}
	if checker == ownerID {
		return Document{}, &InputError{Field: "checkerId", Reason: "must differ from the document owner"}
	}

	period := strings.TrimSpace(in.Period)
	if period == "" {
		period = DefaultPeriod
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = fmt.Sprintf("%s %d", kind, in.Year)
	}
	return Document{
		TenantID:   tenantID,
		Kind:       kind,
		OwnerID:    ownerID,
		CheckerID:  checker,
		ApproverID: approver,
		Year:       in.Year,
		Period:     period,
		Title:      title,
	}, nil
}

// OpenNextStage starts the following review stage once the current one is
// approved. The new task keeps the same participants and starts at
// NOT_STARTED.
func (s *Service) OpenNextStage(ctx context.Context, actor Actor, documentID string) (Task, error) {
	var opened Task
	err := s.store.WithTx(ctx, func(tx TxStore) error {
		current, err := tx.LockCurrentTask(ctx, actor.TenantID, documentID)
		if err != nil {
			return err
		}
		role := access.ResolveRole(current.accessContext(actor.EmployeeID))
		if !access.CanPerform(role, access.ActionRead, current.Status) {
			return &PermissionDeniedError{Role: role, Action: access.ActionRead, Status: current.Status}
		}
		if current.Status != workflow.StatusApproved {
			return ErrStageNotApproved
		}
		stage, ok := current.Stage.Next()
		if !ok {
			return ErrNoNextStage
		}

		opened = Task{
			TenantID:   actor.TenantID,
			DocumentID: documentID,
			Stage:      stage,
			Status:     workflow.StatusNotStarted,
			PreparedBy: current.PreparedBy,
			CheckedBy:  current.CheckedBy,
			ApprovedBy: current.ApprovedBy,
		}
		opened.ID, err = tx.CreateTask(ctx, opened)
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, actor.TenantID, audit.Entry{
			ActorID:    actor.UserID,
			Action:     AuditStageOpen,
			EntityType: EntityTask,
			EntityID:   opened.ID,
			RequestID:  actor.RequestID,
			IP:         actor.IP,
			Before:     map[string]any{"stage": current.Stage, "taskId": current.ID},
			After:      map[string]any{"stage": stage, "status": opened.Status},
		})
	})
	if err != nil {
		return Task{}, err
	}
	s.announce(actor.TenantID, opened)
	return opened, nil
}

// announce queues a notification for whoever has to act next. It runs after
// commit and never affects the transition.
func (s *Service) announce(tenantID string, task Task) {
	if s.Jobs == nil || s.Notify == nil {
		return
	}
	recipient, ntype, title := noticeFor(task)
	if recipient == "" {
		return
	}
	s.Jobs.Enqueue(JobTransitionNotice, tenantID, func(ctx context.Context) (any, error) {
		userID, err := s.store.EmployeeUserID(ctx, tenantID, recipient)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return map[string]any{"skipped": "no user account"}, nil
			}
			return nil, err
		}
		body := fmt.Sprintf("Review task %s (%s) is now %s.", task.ID, task.Stage, task.Status)
		if err := s.Notify.Create(ctx, tenantID, userID, ntype, title, body); err != nil {
			return nil, err
		}
		return map[string]any{"taskId": task.ID, "status": task.Status}, nil
	})
}

func noticeFor(task Task) (recipient, ntype, title string) {
	switch task.Status {
	case workflow.StatusPendingChecker:
		return task.CheckedBy, notifications.TypeReviewPending, "Review waiting for your check"
	case workflow.StatusPendingApprover:
		return task.ApprovedBy, notifications.TypeReviewPending, "Review waiting for your approval"
	case workflow.StatusRejectedByChecker, workflow.StatusRejectedByApprover:
		return task.PreparedBy, notifications.TypeReviewRejected, "Review returned for changes"
	case workflow.StatusApproved:
		return task.PreparedBy, notifications.TypeReviewApproved, "Review approved"
	case workflow.StatusNotStarted:
		if task.Stage != workflow.StageDefinition {
			return task.PreparedBy, notifications.TypeReviewStage, "Next review stage opened"
		}
	}
	return "", "", ""
}

func (s *Service) recordOutcome(action workflow.Action, err error) {
	outcome := Outcome(err)
	if outcome == OutcomeError {
		slog.Warn("review transition failed", "action", action, "err", err)
	}
	if s.Metrics != nil {
		s.Metrics.RecordTransition(string(action), outcome)
	}
}

// Outcome classifies the result of a transition attempt.
func Outcome(err error) string {
	var weightErr *WeightError
	switch {
	case err == nil:
		return OutcomeApplied
	case errors.Is(err, ErrPermissionDenied):
		return OutcomeDenied
	case errors.Is(err, workflow.ErrInvalidTransition):
		return OutcomeInvalid
	case errors.As(err, &weightErr):
		return OutcomeRejectedWeights
	case errors.Is(err, ErrConflict):
		return OutcomeConflict
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrDuplicateDocument):
		return OutcomeInvalid
	}
	return OutcomeError
}
