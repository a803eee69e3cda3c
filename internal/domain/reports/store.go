package reports

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"appraisal/internal/domain/fixedpoint"
	"appraisal/internal/domain/workflow"
	"appraisal/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

// latestTask joins a document to the status of its most recent task.
const latestTask = `
    JOIN LATERAL (
      SELECT t.status
      FROM review_tasks t
      WHERE t.document_id = d.id
      ORDER BY t.created_at DESC, t.id DESC
      LIMIT 1
    ) lt ON true`

func (s *Store) StatusCounts(ctx context.Context, tenantID string, year int) ([]StatusCount, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT d.kind, lt.status, COUNT(1)
    FROM review_documents d`+latestTask+`
    WHERE d.tenant_id = $1 AND d.year = $2
    GROUP BY d.kind, lt.status
    ORDER BY d.kind, lt.status
  `, tenantID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var c StatusCount
		var status string
		if err := rows.Scan(&c.Kind, &status, &c.Count); err != nil {
			return nil, err
		}
		c.Status = workflow.Status(status)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ApprovedItems(ctx context.Context, tenantID string, year int) ([]ApprovedItem, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT d.id, d.kind, i.weight, i.owner_tier, i.approver_tier
    FROM review_documents d
    JOIN kpi_line_items i ON i.document_id = d.id`+latestTask+`
    WHERE d.tenant_id = $1 AND d.year = $2 AND lt.status = $3
    ORDER BY d.id, i.position
  `, tenantID, year, string(workflow.StatusApproved))
	if err != nil {
		return nil, err
	}
	out, err := scanApproved(rows, nil)
	if err != nil {
		return nil, err
	}

	rows, err = s.DB.Query(ctx, `
    SELECT d.id, d.kind, c.weight, c.owner_level, c.approver_level
    FROM review_documents d
    JOIN competency_items c ON c.document_id = d.id`+latestTask+`
    WHERE d.tenant_id = $1 AND d.year = $2 AND lt.status = $3
    ORDER BY d.id, c.position
  `, tenantID, year, string(workflow.StatusApproved))
	if err != nil {
		return nil, err
	}
	return scanApproved(rows, out)
}

func (s *Store) ListJobRuns(ctx context.Context, tenantID string, filter JobRunFilter, limit, offset int) ([]JobRun, error) {
	query, args := buildJobRunsBaseQuery(tenantID, filter)
	query += " ORDER BY started_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []JobRun{}
	for rows.Next() {
		var run JobRun
		var detailsRaw []byte
		if err := rows.Scan(&run.ID, &run.JobType, &run.Status, &detailsRaw, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, err
		}
		run.Details = decodeDetails(detailsRaw)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) CountJobRuns(ctx context.Context, tenantID string, filter JobRunFilter) (int, error) {
	query, args := buildJobRunsBaseQuery(tenantID, filter)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM ("+query+") job_runs", args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

func scanApproved(rows rowScanner, out []ApprovedItem) ([]ApprovedItem, error) {
	defer rows.Close()
	for rows.Next() {
		var item ApprovedItem
		var weight int64
		if err := rows.Scan(&item.DocumentID, &item.Kind, &weight, &item.Owner, &item.Approver); err != nil {
			return nil, err
		}
		item.Weight = fixedpoint.Weight(weight)
		out = append(out, item)
	}
	return out, rows.Err()
}

func buildJobRunsBaseQuery(tenantID string, filter JobRunFilter) (string, []any) {
	query := `
    SELECT id, job_type, status, COALESCE(details_json, '{}'::jsonb), started_at, completed_at
    FROM job_runs
    WHERE tenant_id = $1
  `
	args := []any{tenantID}

	if value := strings.TrimSpace(filter.JobType); value != "" {
		query += " AND job_type = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	if value := strings.TrimSpace(filter.Status); value != "" {
		query += " AND status = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	if filter.StartedFrom != nil && !filter.StartedFrom.IsZero() {
		query += " AND started_at >= $" + strconv.Itoa(len(args)+1)
		args = append(args, *filter.StartedFrom)
	}
	if filter.StartedTo != nil && !filter.StartedTo.IsZero() {
		query += " AND started_at <= $" + strconv.Itoa(len(args)+1)
		args = append(args, *filter.StartedTo)
	}

	return query, args
}

func decodeDetails(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	details := map[string]any{}
	if err := json.Unmarshal(raw, &details); err != nil {
		return map[string]any{
			"raw": string(raw),
		}
	}
	return details
}
