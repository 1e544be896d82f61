package describe

import (
	"fmt"
	"strings"

	"taotie/internal/ddl"
	"taotie/internal/domain"
)

// NormalizedColumn is one dataset column rewritten into a uniformly
// aggregable numeric expression. It keeps the original name.
type NormalizedColumn struct {
	Name     string
	Declared string
	Class    ColumnType
	Expr     string // SQL over the source dataset, before aliasing
}

// Ref returns the quoted reference to the normalized column inside the
// normalized relation.
func (c NormalizedColumn) Ref() string {
	return ddl.QuoteIdentifier(c.Name)
}

// Normalize builds the normalized expression for one column:
//   - Temporal: seconds since the epoch (or since midnight for TIME, length for INTERVAL)
//   - Numeric: unchanged, except DECIMAL which is cast to DOUBLE
//   - ListLike: element count
//   - Textual: length of the value cast to text
//
// NULL inputs produce NULL outputs in every case.
func Normalize(col domain.Column) NormalizedColumn {
	ref := ddl.QuoteIdentifier(col.Name)
	class := Classify(col.Type)

	var expr string
	switch class {
	case Temporal:
		if baseType(col.Type) == "TIME WITH TIME ZONE" || baseType(col.Type) == "TIMETZ" {
			ref = "CAST(" + ref + " AS TIME)"
		}
		expr = "CAST(epoch(" + ref + ") AS DOUBLE)"
	case Numeric:
		expr = ref
		if isDecimal(col.Type) {
			// approx_quantile over DECIMAL returns whole numbers.
			expr = "CAST(" + ref + " AS DOUBLE)"
		}
	case ListLike:
		expr = "len(" + ref + ")"
	default:
		expr = "length(CAST(" + ref + " AS VARCHAR))"
	}

	return NormalizedColumn{
		Name:     col.Name,
		Declared: col.Type,
		Class:    class,
		Expr:     expr,
	}
}

// Relation is the normalized view of a dataset: a SELECT that exposes one
// normalized column per original column, in original order.
type Relation struct {
	Dataset string
	SQL     string
	Columns []NormalizedColumn
}

// NormalizeAll normalizes every column of a dataset.
func NormalizeAll(dataset string, cols []domain.Column) (Relation, error) {
	if len(cols) == 0 {
		return Relation{}, domain.ErrValidation("dataset %q has no columns", dataset)
	}

	norm := make([]NormalizedColumn, len(cols))
	selects := make([]string, len(cols))
	for i, col := range cols {
		norm[i] = Normalize(col)
		selects[i] = norm[i].Expr + " AS " + norm[i].Ref()
	}

	return Relation{
		Dataset: dataset,
		SQL:     fmt.Sprintf("SELECT %s FROM %s", strings.Join(selects, ", "), ddl.QuoteIdentifier(dataset)),
		Columns: norm,
	}, nil
}
