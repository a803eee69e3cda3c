// Package access decides who a caller is relative to a review task and what
// that role may do at the task's current status.
package access

import (
	"strings"

	"appraisal/internal/domain/workflow"
)

type Role string

const (
	RolePreparer Role = "preparer"
	RoleChecker  Role = "checker"
	RoleApprover Role = "approver"
	RoleNone     Role = "none"
)

type Action string

const (
	ActionRead     Action = "read"
	ActionWrite    Action = "write"
	ActionSubmit   Action = "submit"
	ActionWorkflow Action = "workflow"
	ActionCheck    Action = "check"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
)

func ParseAction(raw string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	switch a {
	case ActionRead, ActionWrite, ActionSubmit, ActionWorkflow, ActionCheck, ActionApprove, ActionReject:
		return a, true
	}
	return "", false
}

// Context is built for a single request from the latest task row. It is
// never stored.
type Context struct {
	CurrentEmployeeID string
	DocumentOwnerID   string
	CheckerID         string
	ApproverID        string
	Status            workflow.Status
}

// ResolveRole matches the caller against owner, checker and approver in that
// order. Blank ids never match. When the checker and approver are the same
// person the approver role wins only while the task waits on the approver.
func ResolveRole(c Context) Role {
	current := strings.TrimSpace(c.CurrentEmployeeID)
	if current == "" {
		return RoleNone
	}
	if current == strings.TrimSpace(c.DocumentOwnerID) {
		return RolePreparer
	}

	isChecker := current == strings.TrimSpace(c.CheckerID)
	isApprover := current == strings.TrimSpace(c.ApproverID)
	switch {
	case isChecker && isApprover:
		if c.Status == workflow.StatusPendingApprover {
			return RoleApprover
		}
		return RoleChecker
	case isChecker:
		return RoleChecker
	case isApprover:
		return RoleApprover
	}
	return RoleNone
}

// RequiredCapability names the capability a caller must hold to apply a
// workflow action at status. ok is false when no capability can authorise
// the pair.
func RequiredCapability(action workflow.Action, status workflow.Status) (Action, bool) {
	switch action {
	case workflow.ActionCreate:
		return ActionSubmit, true
	case workflow.ActionStartWorkflow:
		return ActionWorkflow, true
	case workflow.ActionConfirm:
		switch status {
		case workflow.StatusPendingChecker:
			return ActionCheck, true
		case workflow.StatusPendingApprover:
			return ActionApprove, true
		}
	case workflow.ActionDecline:
		return ActionReject, true
	case workflow.ActionRevise:
		return ActionWrite, true
	}
	return "", false
}
