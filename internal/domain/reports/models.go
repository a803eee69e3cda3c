package reports

import (
	"time"

	"appraisal/internal/domain/fixedpoint"
	"appraisal/internal/domain/workflow"
)

// StatusCount is the number of documents of one kind whose latest task sits
// in status.
type StatusCount struct {
	Kind   string
	Status workflow.Status
	Count  int
}

// ApprovedItem is one weighted item of a document whose latest task is
// approved. Owner and Approver hold tiers for bonus items and levels for
// merit competencies.
type ApprovedItem struct {
	DocumentID string
	Kind       string
	Weight     fixedpoint.Weight
	Owner      int
	Approver   int
}

type KindRollup struct {
	Kind            string                  `json:"kind"`
	Total           int                     `json:"total"`
	ByStatus        map[workflow.Status]int `json:"byStatus"`
	Approved        int                     `json:"approved"`
	AverageOwner    fixedpoint.Weight       `json:"averageOwner"`
	AverageApprover fixedpoint.Weight       `json:"averageApprover"`
}

type YearlyRollup struct {
	Year  int          `json:"year"`
	Total int          `json:"total"`
	Kinds []KindRollup `json:"kinds"`
}

type JobRunFilter struct {
	JobType     string
	Status      string
	StartedFrom *time.Time
	StartedTo   *time.Time
}

type JobRun struct {
	ID          string         `json:"id"`
	JobType     string         `json:"jobType"`
	Status      string         `json:"status"`
	Details     map[string]any `json:"details"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}
