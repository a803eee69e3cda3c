package review

import (
	"time"

	"appraisal/internal/domain/access"
	"appraisal/internal/domain/fixedpoint"
	"appraisal/internal/domain/importer"
	"appraisal/internal/domain/scoring"
	"appraisal/internal/domain/workflow"
)

// Actor is the authenticated caller. EmployeeID is what roles are resolved
// against; Admin only widens read access.
type Actor struct {
	UserID     string
	TenantID   string
	EmployeeID string
	Admin      bool
	RequestID  string
	IP         string
}

type Employee struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Rank      string `json:"rank"`
	ManagerID string `json:"managerId,omitempty"`
	UserID    string `json:"userId,omitempty"`
}

type Document struct {
	ID           string           `json:"id"`
	TenantID     string           `json:"-"`
	Kind         Kind             `json:"kind"`
	OwnerID      string           `json:"ownerId"`
	CheckerID    string           `json:"checkerId,omitempty"`
	ApproverID   string           `json:"approverId"`
	Year         int              `json:"year"`
	Period       string           `json:"period"`
	Title        string           `json:"title"`
	LineItems    []LineItem       `json:"lineItems,omitempty"`
	Competencies []CompetencyItem `json:"competencies,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// LineItem is one KPI of a Bonus document. Achievement holds the tier each
// role awarded.
type LineItem struct {
	ID          string             `json:"id"`
	DocumentID  string             `json:"documentId"`
	Position    int                `json:"position"`
	Name        string             `json:"name"`
	Category    string             `json:"category"`
	Type        string             `json:"type"`
	Weight      fixedpoint.Weight  `json:"weight"`
	Target70    string             `json:"target70,omitempty"`
	Target80    string             `json:"target80,omitempty"`
	Target90    string             `json:"target90,omitempty"`
	Target100   string             `json:"target100,omitempty"`
	Achievement scoring.RoleLevels `json:"achievement"`
}

// CompetencyItem is one weighted competency of a Merit document.
type CompetencyItem struct {
	ID          string             `json:"id"`
	DocumentID  string             `json:"documentId"`
	Position    int                `json:"position"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Weight      fixedpoint.Weight  `json:"weight"`
	Levels      scoring.RoleLevels `json:"levels"`
}

type Task struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"-"`
	DocumentID  string          `json:"documentId"`
	Stage       workflow.Stage  `json:"stage"`
	Status      workflow.Status `json:"status"`
	PreparedBy  string          `json:"preparedBy"`
	CheckedBy   string          `json:"checkedBy,omitempty"`
	ApprovedBy  string          `json:"approvedBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	SubmittedAt *time.Time      `json:"submittedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

func (t Task) HasChecker() bool {
	return t.CheckedBy != ""
}

func (t Task) accessContext(employeeID string) access.Context {
	return access.Context{
		CurrentEmployeeID: employeeID,
		DocumentOwnerID:   t.PreparedBy,
		CheckerID:         t.CheckedBy,
		ApproverID:        t.ApprovedBy,
		Status:            t.Status,
	}
}

type DocumentFilter struct {
	Year int
	Kind Kind
}

type DocumentView struct {
	Document Document    `json:"document"`
	Tasks    []Task      `json:"tasks"`
	Role     access.Role `json:"role"`
}

// InboxItem is a task the caller takes part in, with the document summary.
type InboxItem struct {
	Task       Task        `json:"task"`
	Kind       Kind        `json:"kind"`
	Year       int         `json:"year"`
	Title      string      `json:"title"`
	Role       access.Role `json:"role"`
	Actionable bool        `json:"actionable"`
}

type NewDocument struct {
	Kind       Kind   `json:"kind"`
	Year       int    `json:"year"`
	Period     string `json:"period"`
	Title      string `json:"title"`
	CheckerID  string `json:"checkerId"`
	ApproverID string `json:"approverId"`
}

type PermissionSet struct {
	TaskID  string                 `json:"taskId"`
	Status  workflow.Status        `json:"status"`
	Role    access.Role            `json:"role"`
	Actions map[access.Action]bool `json:"actions"`
}

type WeightSummary struct {
	Kind   Kind              `json:"kind"`
	OK     bool              `json:"ok"`
	Rank   string            `json:"rank,omitempty"`
	Total  fixedpoint.Weight `json:"total"`
	Limit  fixedpoint.Weight `json:"limit"`
	Issues []string          `json:"issues,omitempty"`
}

type ScoreSummary struct {
	Kind   Kind               `json:"kind"`
	Status workflow.Status    `json:"status"`
	Scores scoring.RoleScores `json:"scores"`
}

type ImportReport struct {
	Validation importer.Result `json:"validation"`
	Documents  []string        `json:"documents,omitempty"`
}
