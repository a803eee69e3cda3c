package review

import (
	"context"

	"appraisal/internal/domain/audit"
	"appraisal/internal/domain/workflow"
)

// StoreAPI is the read side plus the entry point for transactional writes.
// Lookups return ErrNotFound for missing rows.
type StoreAPI interface {
	GetDocument(ctx context.Context, tenantID, documentID string) (Document, error)
	ListDocuments(ctx context.Context, tenantID, employeeID string, filter DocumentFilter) ([]Document, error)
	ListTasks(ctx context.Context, tenantID, documentID string) ([]Task, error)
	GetTask(ctx context.Context, tenantID, taskID string) (Task, error)
	CurrentTask(ctx context.Context, tenantID, documentID string) (Task, error)
	ListInbox(ctx context.Context, tenantID, employeeID string, status workflow.Status) ([]InboxItem, error)
	EmployeeRank(ctx context.Context, tenantID, employeeID string) (string, error)
	EmployeesByCode(ctx context.Context, tenantID string, codes []string) (map[string]Employee, error)
	EmployeeUserID(ctx context.Context, tenantID, employeeID string) (string, error)
	WithTx(ctx context.Context, fn func(tx TxStore) error) error
}

// TxStore runs inside one transaction. Lock* methods hold the task row until
// commit or rollback.
type TxStore interface {
	LockTask(ctx context.Context, tenantID, taskID string) (Task, error)
	LockCurrentTask(ctx context.Context, tenantID, documentID string) (Task, error)
	GetDocument(ctx context.Context, tenantID, documentID string) (Document, error)
	EmployeeRank(ctx context.Context, tenantID, employeeID string) (string, error)

	CreateDocument(ctx context.Context, doc Document) (string, error)
	CreateTask(ctx context.Context, task Task) (string, error)
	// UpdateTaskStatus moves the task from one status to another and returns
	// ErrConflict when the stored status is no longer from.
	UpdateTaskStatus(ctx context.Context, tenantID, taskID string, from, to workflow.Status) error

	InsertLineItem(ctx context.Context, tenantID string, item LineItem) (string, error)
	UpdateLineItem(ctx context.Context, tenantID string, item LineItem) error
	DeleteLineItem(ctx context.Context, tenantID, documentID, itemID string) error
	InsertCompetency(ctx context.Context, tenantID string, item CompetencyItem) (string, error)
	UpdateCompetency(ctx context.Context, tenantID string, item CompetencyItem) error
	DeleteCompetency(ctx context.Context, tenantID, documentID, itemID string) error

	RecordAudit(ctx context.Context, tenantID string, entry audit.Entry) error
}
