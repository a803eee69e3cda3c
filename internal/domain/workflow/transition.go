package workflow

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// InvalidTransitionError is returned for every (status, action) pair that
// has no entry in the transition table.
type InvalidTransitionError struct {
	From   Status
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: %s on %s", ErrInvalidTransition, e.Action, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// NextStatus returns the status reached by applying action to current.
// hasChecker only matters for start_workflow.
func NextStatus(current Status, action Action, hasChecker bool) (Status, error) {
	switch action {
	case ActionCreate:
		if current == StatusNotStarted {
			return StatusInDraft, nil
		}
	case ActionStartWorkflow:
		if current == StatusInDraft || current.Rejected() {
			if hasChecker {
				return StatusPendingChecker, nil
			}
			return StatusPendingApprover, nil
		}
	case ActionConfirm:
		switch current {
		case StatusPendingChecker:
			return StatusPendingApprover, nil
		case StatusPendingApprover:
			return StatusApproved, nil
		}
	case ActionDecline:
		switch current {
		case StatusPendingChecker:
			return StatusRejectedByChecker, nil
		case StatusPendingApprover:
			return StatusRejectedByApprover, nil
		}
	case ActionRevise:
		if current.Rejected() {
			return StatusInDraft, nil
		}
	}
	return current, &InvalidTransitionError{From: current, Action: action}
}

// NeedsWeightCheck reports whether entering to through action must first pass
// the document's numeric invariant.
func NeedsWeightCheck(action Action, to Status) bool {
	switch {
	case action == ActionStartWorkflow && to.Pending():
		return true
	case to == StatusApproved:
		return true
	}
	return false
}
