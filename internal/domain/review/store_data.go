package review

import (
	"context"
	"fmt"

	"appraisal/internal/domain/fixedpoint"
	"appraisal/internal/domain/workflow"
	"appraisal/internal/platform/querier"
)

const taskColumns = `t.id, t.tenant_id, t.document_id, t.stage, t.status, t.prepared_by,
    COALESCE(t.checked_by::text, ''), t.approved_by, t.created_at, t.updated_at, t.submitted_at, t.completed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner, extra ...any) (Task, error) {
	var t Task
	var stage, status string
	dest := []any{&t.ID, &t.TenantID, &t.DocumentID, &stage, &status, &t.PreparedBy,
		&t.CheckedBy, &t.ApprovedBy, &t.CreatedAt, &t.UpdatedAt, &t.SubmittedAt, &t.CompletedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Task{}, mapError(err)
	}
	t.Stage = workflow.Stage(stage)
	t.Status = workflow.Status(status)
	return t, nil
}

func (s *Store) GetDocument(ctx context.Context, tenantID, documentID string) (Document, error) {
	return getDocument(ctx, s.DB, tenantID, documentID)
}

func (s *Store) ListDocuments(ctx context.Context, tenantID, employeeID string, filter DocumentFilter) ([]Document, error) {
	query := `
    SELECT id, tenant_id, kind, owner_id, COALESCE(checker_id::text, ''), approver_id, year, period, title, created_at, updated_at
    FROM review_documents
    WHERE tenant_id = $1`
	args := []any{tenantID}
	if employeeID != "" {
		query += fmt.Sprintf(" AND (owner_id = $%d OR checker_id = $%d OR approver_id = $%d)", len(args)+1, len(args)+1, len(args)+1)
		args = append(args, employeeID)
	}
	if filter.Year != 0 {
		query += fmt.Sprintf(" AND year = $%d", len(args)+1)
		args = append(args, filter.Year)
	}
	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", len(args)+1)
		args = append(args, string(filter.Kind))
	}
	query += " ORDER BY year DESC, created_at DESC"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *Store) ListTasks(ctx context.Context, tenantID, documentID string) ([]Task, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+taskColumns+`
    FROM review_tasks t
    WHERE t.tenant_id = $1 AND t.document_id = $2
    ORDER BY t.created_at, t.id
  `, tenantID, documentID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTask(ctx context.Context, tenantID, taskID string) (Task, error) {
	return scanTask(s.DB.QueryRow(ctx, `
    SELECT `+taskColumns+`
    FROM review_tasks t
    WHERE t.tenant_id = $1 AND t.id = $2
  `, tenantID, taskID))
}

func (s *Store) CurrentTask(ctx context.Context, tenantID, documentID string) (Task, error) {
	return currentTask(ctx, s.DB, tenantID, documentID, "")
}

// ListInbox returns the latest task of every document the employee takes
// part in, optionally narrowed to one status.
func (s *Store) ListInbox(ctx context.Context, tenantID, employeeID string, status workflow.Status) ([]InboxItem, error) {
	query := `
    SELECT ` + taskColumns + `, d.kind, d.year, d.title
    FROM review_tasks t
    JOIN review_documents d ON d.id = t.document_id
    WHERE t.tenant_id = $1
      AND (t.prepared_by = $2 OR t.checked_by = $2 OR t.approved_by = $2)
      AND NOT EXISTS (
        SELECT 1 FROM review_tasks n
        WHERE n.document_id = t.document_id AND (n.created_at, n.id) > (t.created_at, t.id)
      )`
	args := []any{tenantID, employeeID}
	if status != "" {
		query += " AND t.status = $3"
		args = append(args, string(status))
	}
	query += " ORDER BY t.updated_at DESC"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := []InboxItem{}
	for rows.Next() {
		var item InboxItem
		var kind string
		item.Task, err = scanTask(rows, &kind, &item.Year, &item.Title)
		if err != nil {
			return nil, err
		}
		item.Kind = Kind(kind)
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) EmployeeRank(ctx context.Context, tenantID, employeeID string) (string, error) {
	return employeeRank(ctx, s.DB, tenantID, employeeID)
}

func (s *Store) EmployeesByCode(ctx context.Context, tenantID string, codes []string) (map[string]Employee, error) {
	out := make(map[string]Employee, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT id, code, name, rank, COALESCE(manager_id::text, ''), COALESCE(user_id::text, '')
    FROM employees
    WHERE tenant_id = $1 AND code = ANY($2)
  `, tenantID, codes)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Code, &e.Name, &e.Rank, &e.ManagerID, &e.UserID); err != nil {
			return nil, err
		}
		out[e.Code] = e
	}
	return out, rows.Err()
}

func (s *Store) EmployeeUserID(ctx context.Context, tenantID, employeeID string) (string, error) {
	var userID string
	if err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(user_id::text, '')
    FROM employees
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, employeeID).Scan(&userID); err != nil {
		return "", mapError(err)
	}
	if userID == "" {
		return "", ErrNotFound
	}
	return userID, nil
}

func scanDocument(row scanner) (Document, error) {
	var doc Document
	var kind string
	if err := row.Scan(&doc.ID, &doc.TenantID, &kind, &doc.OwnerID, &doc.CheckerID, &doc.ApproverID,
		&doc.Year, &doc.Period, &doc.Title, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, mapError(err)
	}
	doc.Kind = Kind(kind)
	return doc, nil
}

// getDocument loads a document with its items. It runs on the pool or inside
// a transaction.
func getDocument(ctx context.Context, q querier.Querier, tenantID, documentID string) (Document, error) {
	doc, err := scanDocument(q.QueryRow(ctx, `
    SELECT id, tenant_id, kind, owner_id, COALESCE(checker_id::text, ''), approver_id, year, period, title, created_at, updated_at
    FROM review_documents
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, documentID))
	if err != nil {
		return Document{}, err
	}

	items, err := q.Query(ctx, `
    SELECT id, document_id, position, name, category, type, weight,
           target_70, target_80, target_90, target_100, owner_tier, checker_tier, approver_tier
    FROM kpi_line_items
    WHERE tenant_id = $1 AND document_id = $2
    ORDER BY position, id
  `, tenantID, documentID)
	if err != nil {
		return Document{}, err
	}
	for items.Next() {
		var li LineItem
		var weight int64
		if err := items.Scan(&li.ID, &li.DocumentID, &li.Position, &li.Name, &li.Category, &li.Type, &weight,
			&li.Target70, &li.Target80, &li.Target90, &li.Target100,
			&li.Achievement.Owner, &li.Achievement.Checker, &li.Achievement.Approver); err != nil {
			items.Close()
			return Document{}, err
		}
		li.Weight = fixedpoint.Weight(weight)
		doc.LineItems = append(doc.LineItems, li)
	}
	items.Close()
	if err := items.Err(); err != nil {
		return Document{}, err
	}

	comps, err := q.Query(ctx, `
    SELECT id, document_id, position, name, description, weight, owner_level, checker_level, approver_level
    FROM competency_items
    WHERE tenant_id = $1 AND document_id = $2
    ORDER BY position, id
  `, tenantID, documentID)
	if err != nil {
		return Document{}, err
	}
	defer comps.Close()
	for comps.Next() {
		var c CompetencyItem
		var weight int64
		if err := comps.Scan(&c.ID, &c.DocumentID, &c.Position, &c.Name, &c.Description, &weight,
			&c.Levels.Owner, &c.Levels.Checker, &c.Levels.Approver); err != nil {
			return Document{}, err
		}
		c.Weight = fixedpoint.Weight(weight)
		doc.Competencies = append(doc.Competencies, c)
	}
	return doc, comps.Err()
}

// currentTask returns the latest task of a document. lock is appended to the
// query, e.g. "FOR UPDATE".
func currentTask(ctx context.Context, q querier.Querier, tenantID, documentID, lock string) (Task, error) {
	return scanTask(q.QueryRow(ctx, `
    SELECT `+taskColumns+`
    FROM review_tasks t
    WHERE t.tenant_id = $1 AND t.document_id = $2
    ORDER BY t.created_at DESC, t.id DESC
    LIMIT 1 `+lock, tenantID, documentID))
}

func employeeRank(ctx context.Context, q querier.Querier, tenantID, employeeID string) (string, error) {
	var rank string
	if err := q.QueryRow(ctx, `
    SELECT rank
    FROM employees
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, employeeID).Scan(&rank); err != nil {
		return "", mapError(err)
	}
	return rank, nil
}
