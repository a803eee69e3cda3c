// Package workflow holds the task status machine. Every status change goes
// through NextStatus; there is no other way to obtain a successor status.
package workflow

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusNotStarted         Status = "NOT_STARTED"
	StatusInDraft            Status = "IN_DRAFT"
	StatusPendingChecker     Status = "PENDING_CHECKER"
	StatusPendingApprover    Status = "PENDING_APPROVER"
	StatusRejectedByChecker  Status = "REJECTED_BY_CHECKER"
	StatusRejectedByApprover Status = "REJECTED_BY_APPROVER"
	StatusApproved           Status = "APPROVED"
	// StatusRevision is a recognised value with no transitions in or out.
	StatusRevision Status = "REVISION"
)

var allStatuses = []Status{
	StatusNotStarted,
	StatusInDraft,
	StatusPendingChecker,
	StatusPendingApprover,
	StatusRejectedByChecker,
	StatusRejectedByApprover,
	StatusApproved,
	StatusRevision,
}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s Status) Valid() bool {
	for _, candidate := range allStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

func (s Status) Rejected() bool {
	return s == StatusRejectedByChecker || s == StatusRejectedByApprover
}

func (s Status) Pending() bool {
	return s == StatusPendingChecker || s == StatusPendingApprover
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

type Action string

const (
	ActionCreate        Action = "create"
	ActionStartWorkflow Action = "start_workflow"
	ActionConfirm       Action = "confirm"
	ActionDecline       Action = "decline"
	ActionRevise        Action = "revise"
)

var allActions = []Action{ActionCreate, ActionStartWorkflow, ActionConfirm, ActionDecline, ActionRevise}

func Actions() []Action {
	out := make([]Action, len(allActions))
	copy(out, allActions)
	return out
}

func (a Action) Valid() bool {
	for _, candidate := range allActions {
		if a == candidate {
			return true
		}
	}
	return false
}

// ConfirmAction maps a confirm(approved) decision onto its action.
func ConfirmAction(approved bool) Action {
	if approved {
		return ActionConfirm
	}
	return ActionDecline
}

// Stage is the review period a task belongs to.
type Stage string

const (
	StageDefinition  Stage = "definition"
	StageEvaluation1 Stage = "evaluation_1"
	StageEvaluation2 Stage = "evaluation_2"
)

var stageOrder = []Stage{StageDefinition, StageEvaluation1, StageEvaluation2}

func (s Stage) Valid() bool {
	for _, candidate := range stageOrder {
		if s == candidate {
			return true
		}
	}
	return false
}

// Next returns the stage that follows s, or false for the last stage.
func (s Stage) Next() (Stage, bool) {
	for i, candidate := range stageOrder {
		if s == candidate && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return "", false
}

func ParseStage(raw string) (Stage, error) {
	s := Stage(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown stage %q", raw)
	}
	return s, nil
}
