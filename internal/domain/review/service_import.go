package review

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"appraisal/internal/domain/audit"
	"appraisal/internal/domain/fixedpoint"
	"appraisal/internal/domain/importer"
	"appraisal/internal/domain/workflow"
)

type importGroup struct {
	owner    Employee
	year     int
	checker  string
	approver string
	firstRow int
	items    []LineItem
}

type importPlan struct {
	groups   []*importGroup
	errors   []importer.Issue
	warnings []importer.Issue
}

// Import reads a KPI sheet and creates one Bonus document per employee and
// year. Nothing is written unless every row is valid.
func (s *Service) Import(ctx context.Context, actor Actor, filename string, r io.Reader) (ImportReport, error) {
	if !actor.Admin {
		return ImportReport{}, fmt.Errorf("%w: imports require an administrator", ErrPermissionDenied)
	}
	rows, err := importer.ReadSheet(filename, r)
	if err != nil {
		return ImportReport{}, &InputError{Field: "file", Reason: err.Error()}
	}
	if s.MaxImportRows > 0 && len(rows) > s.MaxImportRows {
		return ImportReport{}, fmt.Errorf("%w: %d rows, limit %d", importer.ErrTooManyRows, len(rows), s.MaxImportRows)
	}

	result := importer.Validate(rows, importer.BonusContract())
	report := ImportReport{Validation: result}
	if hasSchemaIssue(result.Errors) {
		return report, fmt.Errorf("%w: %w", ErrImportRejected, result.Err())
	}

	// Employee codes and assignees are checked on every row, including rows
	// the contract already flagged, so the report lists every problem.
	flagged := make(map[int]bool, len(result.Errors))
	for _, issue := range result.Errors {
		flagged[issue.Row] = true
	}
	plan, err := s.planImport(ctx, actor.TenantID, rows, flagged)
	if err != nil {
		return report, err
	}
	report.Validation.Errors = append(report.Validation.Errors, plan.errors...)
	report.Validation.Warnings = append(report.Validation.Warnings, plan.warnings...)
	sort.SliceStable(report.Validation.Errors, func(i, j int) bool {
		return report.Validation.Errors[i].Row < report.Validation.Errors[j].Row
	})
	if len(report.Validation.Errors) > 0 {
		report.Validation.OK = false
		report.Validation.ValidRows = nil
		return report, fmt.Errorf("%w: %w", ErrImportRejected, report.Validation.Err())
	}

	err = s.store.WithTx(ctx, func(tx TxStore) error {
		for _, g := range plan.groups {
			id, err := s.importGroup(ctx, tx, actor, g)
			if err != nil {
				return fmt.Errorf("row %d: %w", g.firstRow, err)
			}
			report.Documents = append(report.Documents, id)
		}
		return nil
	})
	if err != nil {
		report.Documents = nil
		return report, err
	}
	return report, nil
}

func (s *Service) importGroup(ctx context.Context, tx TxStore, actor Actor, g *importGroup) (string, error) {
	doc := Document{
		TenantID:   actor.TenantID,
		Kind:       KindBonus,
		OwnerID:    g.owner.ID,
		CheckerID:  g.checker,
		ApproverID: g.approver,
		Year:       g.year,
		Period:     DefaultPeriod,
		Title:      fmt.Sprintf("%s %d", KindBonus, g.year),
	}
	id, err := tx.CreateDocument(ctx, doc)
	if err != nil {
		return "", err
	}
	if _, err := tx.CreateTask(ctx, Task{
		TenantID:   actor.TenantID,
		DocumentID: id,
		Stage:      workflow.StageDefinition,
		Status:     workflow.StatusNotStarted,
		PreparedBy: g.owner.ID,
		CheckedBy:  g.checker,
		ApprovedBy: g.approver,
	}); err != nil {
		return "", err
	}
	for _, item := range g.items {
		item.DocumentID = id
		if _, err := tx.InsertLineItem(ctx, actor.TenantID, item); err != nil {
			return "", err
		}
	}
	err = tx.RecordAudit(ctx, actor.TenantID, audit.Entry{
		ActorID:    actor.UserID,
		Action:     AuditDocumentImport,
		EntityType: EntityDocument,
		EntityID:   id,
		RequestID:  actor.RequestID,
		IP:         actor.IP,
		After:      map[string]any{"owner": g.owner.Code, "year": g.year, "lineItems": len(g.items)},
	})
	return id, err
}

// planImport resolves employee codes and groups rows into documents. Row
// problems are collected rather than returned. Rows in flagged already carry
// a contract issue; their values are still resolved but never grouped.
func (s *Service) planImport(ctx context.Context, tenantID string, rows []importer.Row, flagged map[int]bool) (importPlan, error) {
	var codes []string
	for _, row := range rows {
		for _, col := range []string{importer.ColEmployeeCode, importer.ColCheckerCode, importer.ColApproverCode} {
			if code := row.Get(col); code != "" {
				codes = append(codes, code)
			}
		}
	}
	employees, err := s.store.EmployeesByCode(ctx, tenantID, codes)
	if err != nil {
		return importPlan{}, err
	}

	var plan importPlan
	byKey := make(map[string]*importGroup)
	positions := make(map[string]int)
	for i, row := range rows {
		n := row.Number()
		if n == 0 {
			n = i + 1
		}
		clean := !flagged[n]
		rowIssue := func(code, column, value, msg string) {
			plan.errors = append(plan.errors, importer.Issue{Code: code, Row: n, Column: column, Value: value, Message: msg})
			clean = false
		}
		unknown := func(column string) {
			code := row.Get(column)
			rowIssue(CodeUnknownEmployee, column, code, fmt.Sprintf("unknown employee code %q", code))
		}

		// blank required values were reported by the contract
		ownerCode := row.Get(importer.ColEmployeeCode)
		owner, ownerOK := employees[ownerCode]
		if !ownerOK && ownerCode != "" {
			unknown(importer.ColEmployeeCode)
		}
		checker, checkerOK := resolveCode(employees, row.Get(importer.ColCheckerCode))
		if !checkerOK {
			unknown(importer.ColCheckerCode)
		}
		approver, approverOK := resolveCode(employees, row.Get(importer.ColApproverCode))
		if !approverOK {
			unknown(importer.ColApproverCode)
		}

		assigneesOK := ownerOK && checkerOK && approverOK
		if assigneesOK {
			if approver == "" {
				approver = owner.ManagerID
			}
			switch {
			case approver == "":
				rowIssue(CodeMissingApprover, importer.ColApproverCode, "", "no approver given and the employee has no manager")
				assigneesOK = false
			case approver == owner.ID || checker == owner.ID:
				rowIssue(CodeConflictingAssignees, importer.ColEmployeeCode, ownerCode, "checker and approver must differ from the employee")
				assigneesOK = false
			}
		}

		rawYear := row.Get(importer.ColYear)
		year, err := strconv.Atoi(rawYear)
		yearOK := err == nil && year >= minYear && year <= maxYear
		if err == nil && !yearOK {
			rowIssue(importer.CodeInvalidNumber, importer.ColYear, rawYear, fmt.Sprintf("year must be between %d and %d", minYear, maxYear))
		}

		weight, err := fixedpoint.ParseWeight(row.Get(importer.ColWeight))
		if err != nil || !weight.InRange() {
			// the contract reports malformed and out-of-range amounts
			clean = false
		}

		if !assigneesOK || !yearOK {
			continue
		}
		key := owner.ID + "/" + strconv.Itoa(year)
		g, exists := byKey[key]
		if !exists {
			g = &importGroup{owner: owner, year: year, checker: checker, approver: approver, firstRow: n}
			byKey[key] = g
			plan.groups = append(plan.groups, g)
		} else if g.checker != checker || g.approver != approver {
			rowIssue(CodeConflictingAssignees, importer.ColApproverCode, row.Get(importer.ColApproverCode),
				fmt.Sprintf("assignees differ from row %d for the same employee and year", g.firstRow))
		}
		if !clean {
			continue
		}
		positions[key]++
		g.items = append(g.items, LineItem{
			Position:  positions[key],
			Name:      row.Get(importer.ColName),
			Category:  strings.ToUpper(row.Get(importer.ColCategory)),
			Type:      strings.ToUpper(row.Get(importer.ColType)),
			Weight:    weight,
			Target70:  row.Get(importer.ColTarget70),
			Target80:  row.Get(importer.ColTarget80),
			Target90:  row.Get(importer.ColTarget90),
			Target100: row.Get(importer.ColTarget100),
		})
	}

	for _, g := range plan.groups {
		weights := make([]fixedpoint.Weight, 0, len(g.items))
		for _, item := range g.items {
			weights = append(weights, item.Weight)
		}
		check := s.policy.ValidateBonusWeight(weights, g.owner.Rank)
		if !check.OK {
			plan.warnings = append(plan.warnings, importer.Issue{
				Code:    CodeWeightOverCap,
				Row:     g.firstRow,
				Column:  importer.ColWeight,
				Value:   check.Total.String(),
				Message: fmt.Sprintf("%s %d: %v", g.owner.Code, g.year, check.Err()),
			})
		}
	}
	return plan, nil
}

func hasSchemaIssue(issues []importer.Issue) bool {
	for _, issue := range issues {
		if issue.Row == 0 {
			return true
		}
	}
	return false
}

// resolveCode maps an optional employee code to an id. A blank code is
// valid and resolves to "".
func resolveCode(employees map[string]Employee, code string) (string, bool) {
	if code == "" {
		return "", true
	}
	e, ok := employees[code]
	if !ok {
		return "", false
	}
	return e.ID, true
}
