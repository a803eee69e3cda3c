package review

import (
	"context"

	"github.com/jackc/pgx/v5"

	"appraisal/internal/domain/audit"
	"appraisal/internal/domain/workflow"
)

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) LockTask(ctx context.Context, tenantID, taskID string) (Task, error) {
	return scanTask(t.tx.QueryRow(ctx, `
    SELECT `+taskColumns+`
    FROM review_tasks t
    WHERE t.tenant_id = $1 AND t.id = $2
    FOR UPDATE
  `, tenantID, taskID))
}

func (t *txStore) LockCurrentTask(ctx context.Context, tenantID, documentID string) (Task, error) {
	return currentTask(ctx, t.tx, tenantID, documentID, "FOR UPDATE")
}

func (t *txStore) GetDocument(ctx context.Context, tenantID, documentID string) (Document, error) {
	return getDocument(ctx, t.tx, tenantID, documentID)
}

func (t *txStore) EmployeeRank(ctx context.Context, tenantID, employeeID string) (string, error) {
	return employeeRank(ctx, t.tx, tenantID, employeeID)
}

func (t *txStore) CreateDocument(ctx context.Context, doc Document) (string, error) {
	var id string
	if err := t.tx.QueryRow(ctx, `
    INSERT INTO review_documents (tenant_id, kind, owner_id, checker_id, approver_id, year, period, title)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING id
  `, doc.TenantID, string(doc.Kind), doc.OwnerID, nullIfEmpty(doc.CheckerID), doc.ApproverID, doc.Year, doc.Period, doc.Title).Scan(&id); err != nil {
		return "", mapError(err)
	}
	return id, nil
}

func (t *txStore) CreateTask(ctx context.Context, task Task) (string, error) {
	var id string
	if err := t.tx.QueryRow(ctx, `
    INSERT INTO review_tasks (tenant_id, document_id, stage, status, prepared_by, checked_by, approved_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id
  `, task.TenantID, task.DocumentID, string(task.Stage), string(task.Status), task.PreparedBy, nullIfEmpty(task.CheckedBy), task.ApprovedBy).Scan(&id); err != nil {
		return "", mapError(err)
	}
	return id, nil
}

func (t *txStore) UpdateTaskStatus(ctx context.Context, tenantID, taskID string, from, to workflow.Status) error {
	tag, err := t.tx.Exec(ctx, `
    UPDATE review_tasks
    SET status = $4,
        updated_at = now(),
        submitted_at = CASE
          WHEN $4 IN ('PENDING_CHECKER', 'PENDING_APPROVER') AND status NOT IN ('PENDING_CHECKER', 'PENDING_APPROVER') THEN now()
          ELSE submitted_at
        END,
        completed_at = CASE WHEN $4 = 'APPROVED' THEN now() ELSE completed_at END
    WHERE tenant_id = $1 AND id = $2 AND status = $3
  `, tenantID, taskID, string(from), string(to))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (t *txStore) InsertLineItem(ctx context.Context, tenantID string, item LineItem) (string, error) {
	var id string
	if err := t.tx.QueryRow(ctx, `
    INSERT INTO kpi_line_items (tenant_id, document_id, position, name, category, type, weight,
                                target_70, target_80, target_90, target_100, owner_tier, checker_tier, approver_tier)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
    RETURNING id
  `, tenantID, item.DocumentID, item.Position, item.Name, item.Category, item.Type, item.Weight.Scaled(),
		item.Target70, item.Target80, item.Target90, item.Target100,
		item.Achievement.Owner, item.Achievement.Checker, item.Achievement.Approver).Scan(&id); err != nil {
		return "", mapError(err)
	}
	return id, nil
}

func (t *txStore) UpdateLineItem(ctx context.Context, tenantID string, item LineItem) error {
	tag, err := t.tx.Exec(ctx, `
    UPDATE kpi_line_items
    SET position = $4, name = $5, category = $6, type = $7, weight = $8,
        target_70 = $9, target_80 = $10, target_90 = $11, target_100 = $12,
        owner_tier = $13, checker_tier = $14, approver_tier = $15, updated_at = now()
    WHERE tenant_id = $1 AND document_id = $2 AND id = $3
  `, tenantID, item.DocumentID, item.ID, item.Position, item.Name, item.Category, item.Type, item.Weight.Scaled(),
		item.Target70, item.Target80, item.Target90, item.Target100,
		item.Achievement.Owner, item.Achievement.Checker, item.Achievement.Approver)
	return affectedOne(tag.RowsAffected(), err)
}

func (t *txStore) DeleteLineItem(ctx context.Context, tenantID, documentID, itemID string) error {
	tag, err := t.tx.Exec(ctx, `
    DELETE FROM kpi_line_items
    WHERE tenant_id = $1 AND document_id = $2 AND id = $3
  `, tenantID, documentID, itemID)
	return affectedOne(tag.RowsAffected(), err)
}

func (t *txStore) InsertCompetency(ctx context.Context, tenantID string, item CompetencyItem) (string, error) {
	var id string
	if err := t.tx.QueryRow(ctx, `
    INSERT INTO competency_items (tenant_id, document_id, position, name, description, weight, owner_level, checker_level, approver_level)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING id
  `, tenantID, item.DocumentID, item.Position, item.Name, item.Description, item.Weight.Scaled(),
		item.Levels.Owner, item.Levels.Checker, item.Levels.Approver).Scan(&id); err != nil {
		return "", mapError(err)
	}
	return id, nil
}

func (t *txStore) UpdateCompetency(ctx context.Context, tenantID string, item CompetencyItem) error {
	tag, err := t.tx.Exec(ctx, `
    UPDATE competency_items
    SET position = $4, name = $5, description = $6, weight = $7,
        owner_level = $8, checker_level = $9, approver_level = $10, updated_at = now()
    WHERE tenant_id = $1 AND document_id = $2 AND id = $3
  `, tenantID, item.DocumentID, item.ID, item.Position, item.Name, item.Description, item.Weight.Scaled(),
		item.Levels.Owner, item.Levels.Checker, item.Levels.Approver)
	return affectedOne(tag.RowsAffected(), err)
}

func (t *txStore) DeleteCompetency(ctx context.Context, tenantID, documentID, itemID string) error {
	tag, err := t.tx.Exec(ctx, `
    DELETE FROM competency_items
    WHERE tenant_id = $1 AND document_id = $2 AND id = $3
  `, tenantID, documentID, itemID)
	return affectedOne(tag.RowsAffected(), err)
}

func (t *txStore) RecordAudit(ctx context.Context, tenantID string, entry audit.Entry) error {
	return audit.Insert(ctx, t.tx, tenantID, entry)
}

func affectedOne(n int64, err error) error {
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
