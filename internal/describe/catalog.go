package describe

import (
	"fmt"
	"slices"
)

// Kind identifies a statistic.
type Kind int

// Statistic kinds, in catalog order.
const (
	KindTotal Kind = iota
	KindNullTotal
	KindMean
	KindStddev
	KindMin
	KindMax
	KindMedian
	KindPercentile
)

// Statistic is one entry of the statistic catalog.
type Statistic struct {
	Kind    Kind
	Percent int // set for KindPercentile only
	Label   string

	// Applies selects the normalized columns the statistic is computed over.
	Applies func(NormalizedColumn) bool

	// Build returns the aggregate expression over a normalized column reference.
	// The result is always DOUBLE.
	Build func(ref string) string

	// ValueLike is set for statistics whose result is a point of the column's
	// own domain (min, max, quantiles) rather than a count or a spread.
	ValueLike bool
}

// Percentiles computed by the catalog.
var Percentiles = []int{50, 75, 90, 95, 99}

// percentScale turns a percentile into the fraction approx_quantile takes.
const percentScale = 100

func allColumns(NormalizedColumn) bool { return true }

func numericOnly(c NormalizedColumn) bool { return c.Class == Numeric }

func orderable(c NormalizedColumn) bool {
	return !IsBoolean(c.Declared) && !IsBinary(c.Declared)
}

func asDouble(format string) func(string) string {
	return func(ref string) string {
		return "CAST(" + fmt.Sprintf(format, ref) + " AS DOUBLE)"
	}
}

var catalog = buildCatalog()

func buildCatalog() []Statistic {
	stats := []Statistic{
		{Kind: KindTotal, Label: "total", Applies: allColumns, Build: asDouble("count(%s)")},
		{Kind: KindNullTotal, Label: "null_total", Applies: allColumns,
			Build: asDouble("coalesce(sum(CASE WHEN %s IS NULL THEN 1 ELSE 0 END), 0)")},
		{Kind: KindMean, Label: "mean", Applies: numericOnly, Build: asDouble("avg(%s)")},
		{Kind: KindStddev, Label: "stddev", Applies: numericOnly, Build: asDouble("stddev_samp(%s)")},
		{Kind: KindMin, Label: "min", Applies: orderable, Build: asDouble("min(%s)"), ValueLike: true},
		{Kind: KindMax, Label: "max", Applies: orderable, Build: asDouble("max(%s)"), ValueLike: true},
		{Kind: KindMedian, Label: "median", Applies: numericOnly, Build: asDouble("median(%s)"), ValueLike: true},
	}
	// approx_quantile is a t-digest with compression fixed by DuckDB at 100.
	for _, p := range Percentiles {
		stats = append(stats, Statistic{
			Kind:      KindPercentile,
			Percent:   p,
			Label:     fmt.Sprintf("percentile_%d", p),
			Applies:   allColumns,
			Build:     asDouble("approx_quantile(%s, " + fmt.Sprintf("%.2f", float64(p)/percentScale) + ")"),
			ValueLike: true,
		})
	}
	return stats
}

// Catalog returns the fixed, ordered statistic catalog.
func Catalog() []Statistic {
	return slices.Clone(catalog)
}

// Select returns the columns the statistic applies to, in column order.
func (s Statistic) Select(cols []NormalizedColumn) []NormalizedColumn {
	var out []NormalizedColumn
	for _, c := range cols {
		if s.Applies(c) {
			out = append(out, c)
		}
	}
	return out
}
