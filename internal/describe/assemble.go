package describe

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"taotie/internal/domain"
)

// Placeholder fills cells of statistics that do not apply to a column.
const Placeholder = "null"

// LabelColumn is the name of the leading label column.
const LabelColumn = "describe"

// SummaryRow is one statistic across every column. Cells hold float64,
// int64 (list columns), string (restored temporal values or Placeholder),
// or nil when the aggregate itself was NULL.
type SummaryRow struct {
	Label string
	Cells []any
}

// SummaryTable is the result of describing a dataset.
type SummaryTable struct {
	Columns []domain.Column
	Rows    []SummaryRow
}

var _ domain.Table = (*SummaryTable)(nil)

// Header returns the label column followed by the dataset's column names.
func (t *SummaryTable) Header() []string {
	h := make([]string, 0, len(t.Columns)+1)
	h = append(h, LabelColumn)
	for _, c := range t.Columns {
		h = append(h, c.Name)
	}
	return h
}

// Values returns one row per statistic, label first.
func (t *SummaryTable) Values() [][]any {
	out := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]any, 0, len(r.Cells)+1)
		row = append(row, r.Label)
		out[i] = append(row, r.Cells...)
	}
	return out
}

// Cell returns the value of a statistic for a column.
func (t *SummaryTable) Cell(label, column string) (any, bool) {
	ci := slices.IndexFunc(t.Columns, func(c domain.Column) bool { return c.Name == column })
	if ci < 0 {
		return nil, false
	}
	for _, r := range t.Rows {
		if r.Label == label {
			return r.Cells[ci], true
		}
	}
	return nil, false
}

// Assemble builds the summary table from one partial result per statistic.
// Rows are labelled, filled with Placeholder where a statistic was not
// computed for a column, cast for display, and sorted by label.
func Assemble(cols []NormalizedColumn, stats []Statistic, partials []PartialResult) (*SummaryTable, error) {
	if len(partials) != len(stats) {
		return nil, fmt.Errorf("assemble: %d partial results for %d statistics", len(partials), len(stats))
	}

	rows := make([]SummaryRow, 0, len(stats))
	for i, stat := range stats {
		part := partials[i]
		if !part.NotApplicable && part.Values == nil {
			return nil, fmt.Errorf("assemble: missing result for %s", stat.Label)
		}

		cells := make([]any, len(cols))
		for j, col := range cols {
			v, ok := part.Values[col.Name]
			if part.NotApplicable || !ok {
				cells[j] = Placeholder
				continue
			}
			cells[j] = displayValue(col, stat, v)
		}
		rows = append(rows, SummaryRow{Label: stat.Label, Cells: cells})
	}
	if len(rows) != len(stats) {
		return nil, fmt.Errorf("assemble: built %d rows for %d statistics", len(rows), len(stats))
	}

	slices.SortStableFunc(rows, func(a, b SummaryRow) int {
		return strings.Compare(a.Label, b.Label)
	})

	table := &SummaryTable{
		Columns: make([]domain.Column, len(cols)),
		Rows:    rows,
	}
	for i, c := range cols {
		table.Columns[i] = domain.Column{Name: c.Name, Type: c.Declared}
	}
	return table, nil
}

// displayValue casts a normalized aggregate back toward the column's type:
// list columns become integers, and value-like statistics of temporal
// columns become temporal strings.
// List cells truncate toward zero, so a fractional percentile of 2.5 shows as 2.
func displayValue(col NormalizedColumn, stat Statistic, v any) any {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return v
	}
	switch col.Class {
	case ListLike:
		return int64(f)
	case Temporal:
		if stat.ValueLike {
			return restoreTemporal(temporalKindOf(col.Declared), f)
		}
	}
	return f
}

// restoreTemporal formats seconds produced by epoch() in the column's own
// temporal form, at microsecond precision.
func restoreTemporal(kind temporalKind, secs float64) any {
	micros := int64(math.Round(secs * 1e6))
	switch kind {
	case temporalDate:
		return time.UnixMicro(micros).UTC().Format(time.DateOnly)
	case temporalTime:
		return time.UnixMicro(micros).UTC().Format("15:04:05.999999")
	case temporalTimestamp:
		return time.UnixMicro(micros).UTC().Format("2006-01-02T15:04:05.999999")
	case temporalTimestampTZ:
		return time.UnixMicro(micros).UTC().Format(time.RFC3339Nano)
	case temporalInterval:
		return (time.Duration(micros) * time.Microsecond).String()
	default:
		return secs
	}
}
