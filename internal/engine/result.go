package engine

import (
	"database/sql"

	"taotie/internal/domain"
)

var _ domain.Table = (*Result)(nil)

// Result holds the materialized output of a SQL query.
type Result struct {
	Columns []string
	Types   []string
	Rows    [][]any
}

// Header returns the column names.
func (r *Result) Header() []string { return r.Columns }

// Values returns the row values.
func (r *Result) Values() [][]any { return r.Rows }

func (r *Result) index(column string) int {
	for i, c := range r.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

func scanRows(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	types := make([]string, len(colTypes))
	for i, ct := range colTypes {
		types[i] = ct.DatabaseTypeName()
	}

	resultRows := [][]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		resultRows = append(resultRows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Result{
		Columns: cols,
		Types:   types,
		Rows:    resultRows,
	}, nil
}
