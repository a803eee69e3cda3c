// Package importer validates spreadsheet rows against a column contract
// before anything is written.
package importer

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RowNumberColumn carries the 1-based data-row number of the source file.
// It is never treated as a header.
const RowNumberColumn = "__rowNum__"

const (
	CodeNoData        = "no_data"
	CodeMissingColumn = "missing_column"
	CodeUnknownColumn = "unknown_column"
	CodeMissingValue  = "missing_value"
	CodeInvalidEnum   = "invalid_enum"
	CodeInvalidNumber = "invalid_number"
)

var (
	ErrNoData      = errors.New("import contains no data rows")
	ErrSchema      = errors.New("import schema error")
	ErrRow         = errors.New("import row error")
	ErrTooManyRows = errors.New("import exceeds the row limit")
)

type Row map[string]string

// Number returns the row's source position, or 0 when unknown.
func (r Row) Number() int {
	n, err := strconv.Atoi(r[RowNumberColumn])
	if err != nil {
		return 0
	}
	return n
}

func (r Row) Get(column string) string {
	return strings.TrimSpace(r[column])
}

type Contract struct {
	Required []string
	Allowed  []string
	Enums    map[string][]string
	// Amounts must lie in 0..100 with at most two decimals.
	Amounts []string
	// Integers must parse as base-10 integers.
	Integers []string
}

type Issue struct {
	Code    string   `json:"code"`
	Row     int      `json:"row,omitempty"`
	Column  string   `json:"column,omitempty"`
	Value   string   `json:"value,omitempty"`
	Allowed []string `json:"allowed,omitempty"`
	Message string   `json:"message"`
}

type Result struct {
	OK        bool    `json:"ok"`
	Errors    []Issue `json:"errors"`
	Warnings  []Issue `json:"warnings"`
	ValidRows []Row   `json:"-"`
}

// SchemaError is a table-level problem: no data or a missing column.
type SchemaError struct {
	Issue Issue
}

func (e *SchemaError) Error() string { return e.Issue.Message }
func (e *SchemaError) Unwrap() error {
	if e.Issue.Code == CodeNoData {
		return ErrNoData
	}
	return ErrSchema
}

// RowError is a problem with one cell of one row.
type RowError struct {
	Issue Issue
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Issue.Row, e.Issue.Message)
}

func (e *RowError) Unwrap() error { return ErrRow }

// Err joins every error issue, or returns nil when the import is valid.
func (r Result) Err() error {
	var errs []error
	for _, issue := range r.Errors {
		if issue.Row == 0 {
			errs = append(errs, &SchemaError{Issue: issue})
			continue
		}
		errs = append(errs, &RowError{Issue: issue})
	}
	return errors.Join(errs...)
}

// Validate checks rows against contract without stopping at the first
// problem. ValidRows is set only when no error was found.
func Validate(rows []Row, contract Contract) Result {
	if len(rows) == 0 {
		return Result{Errors: []Issue{{Code: CodeNoData, Message: ErrNoData.Error()}}}
	}

	var res Result

	observed := observedColumns(rows)
	present := make(map[string]bool, len(observed))
	for _, col := range observed {
		present[col] = true
	}

	allowed := make(map[string]bool, len(contract.Allowed)+len(contract.Required))
	for _, col := range contract.Allowed {
		allowed[col] = true
	}
	for _, col := range contract.Required {
		allowed[col] = true
		if !present[col] {
			res.Errors = append(res.Errors, Issue{
				Code:    CodeMissingColumn,
				Column:  col,
				Message: fmt.Sprintf("required column %q is missing", col),
			})
		}
	}
	for _, col := range observed {
		if !allowed[col] {
			res.Warnings = append(res.Warnings, Issue{
				Code:    CodeUnknownColumn,
				Column:  col,
				Message: fmt.Sprintf("column %q is not recognised and will be ignored", col),
			})
		}
	}

	enumColumns := make([]string, 0, len(contract.Enums))
	for col := range contract.Enums {
		enumColumns = append(enumColumns, col)
	}
	sort.Strings(enumColumns)

	for i, row := range rows {
		num := row.Number()
		if num == 0 {
			num = i + 1
		}
		for _, col := range contract.Required {
			if present[col] && row.Get(col) == "" {
				res.Errors = append(res.Errors, Issue{
					Code:    CodeMissingValue,
					Row:     num,
					Column:  col,
					Message: fmt.Sprintf("%s is required", col),
				})
			}
		}
		for _, col := range enumColumns {
			value := row.Get(col)
			if value == "" || contains(contract.Enums[col], value) {
				continue
			}
			domain := append([]string(nil), contract.Enums[col]...)
			res.Errors = append(res.Errors, Issue{
				Code:    CodeInvalidEnum,
				Row:     num,
				Column:  col,
				Value:   value,
				Allowed: domain,
				Message: fmt.Sprintf("%s %q is not one of %s", col, value, strings.Join(domain, ", ")),
			})
		}
		for _, col := range contract.Amounts {
			value := row.Get(col)
			if value == "" || validAmount(value) {
				continue
			}
			res.Errors = append(res.Errors, Issue{
				Code:    CodeInvalidNumber,
				Row:     num,
				Column:  col,
				Value:   value,
				Message: fmt.Sprintf("%s %q must be an amount between 0 and 100 with at most two decimals", col, value),
			})
		}
		for _, col := range contract.Integers {
			value := row.Get(col)
			if value == "" {
				continue
			}
			if _, err := strconv.Atoi(value); err != nil {
				res.Errors = append(res.Errors, Issue{
					Code:    CodeInvalidNumber,
					Row:     num,
					Column:  col,
					Value:   value,
					Message: fmt.Sprintf("%s %q must be a whole number", col, value),
				})
			}
		}
	}

	res.OK = len(res.Errors) == 0
	if !res.OK {
		return res
	}

	res.ValidRows = make([]Row, 0, len(rows))
	for i, row := range rows {
		out := make(Row, len(row))
		for col, value := range row {
			if allowed[col] {
				out[col] = strings.TrimSpace(value)
			}
		}
		if num := row.Number(); num > 0 {
			out[RowNumberColumn] = strconv.Itoa(num)
		} else {
			out[RowNumberColumn] = strconv.Itoa(i + 1)
		}
		res.ValidRows = append(res.ValidRows, out)
	}
	return res
}

func observedColumns(rows []Row) []string {
	seen := map[string]bool{}
	var cols []string
	for _, row := range rows {
		for col := range row {
			if col == RowNumberColumn || seen[col] {
				continue
			}
			seen[col] = true
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)
	return cols
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

var maxAmount = decimal.NewFromInt(100)

func validAmount(raw string) bool {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return false
	}
	return !d.IsNegative() && !d.GreaterThan(maxAmount) && d.Equal(d.Round(2))
}
