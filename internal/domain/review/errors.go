package review

import (
	"errors"
	"fmt"

	"appraisal/internal/domain/access"
	"appraisal/internal/domain/fixedpoint"
	"appraisal/internal/domain/workflow"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrConflict          = errors.New("task was modified concurrently")
	ErrDuplicateDocument = errors.New("a document already exists for this employee, kind, year and period")
	ErrInvalidInput      = errors.New("invalid input")
	ErrStageNotApproved  = errors.New("current stage is not approved")
	ErrNoNextStage       = errors.New("no further stage")
	ErrImportRejected    = errors.New("import rejected")
)

// PermissionDeniedError names the resolved role and the capability it lacked.
type PermissionDeniedError struct {
	Role   access.Role
	Action access.Action
	Status workflow.Status
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("%s: %s may not %s while %s", ErrPermissionDenied, e.Role, e.Action, e.Status)
}

func (e *PermissionDeniedError) Unwrap() error { return ErrPermissionDenied }

type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// WeightError blocks a transition whose document fails its weight rule.
// Err holds every individual issue.
type WeightError struct {
	Kind  Kind
	Rank  string
	Total fixedpoint.Weight
	Limit fixedpoint.Weight
	Err   error
}

func (e *WeightError) Error() string {
	return fmt.Sprintf("%s weights invalid: %v", e.Kind, e.Err)
}

func (e *WeightError) Unwrap() error { return e.Err }
