package describe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"taotie/internal/domain"
)

// PartialResult is the outcome of one statistic over a relation: either the
// single aggregate row keyed by column name, or NotApplicable when no column
// qualified.
type PartialResult struct {
	NotApplicable bool
	Values        map[string]any // float64 or nil per selected column
}

var notApplicable = PartialResult{NotApplicable: true}

// isEmptyAggregateError reports whether the engine rejected an aggregate
// request for having no aggregate expressions. This is the only place that
// inspects engine error text.
func isEmptyAggregateError(err error) bool {
	if errors.Is(err, domain.ErrEmptyAggregate) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "at least one aggregate expression")
}

// Compute evaluates one statistic over every applicable column of rel with a
// single aggregate query. An empty selection never reaches the engine.
func Compute(ctx context.Context, agg domain.Aggregator, rel Relation, stat Statistic) (PartialResult, error) {
	selected := stat.Select(rel.Columns)
	if len(selected) == 0 {
		return notApplicable, nil
	}

	exprs := make([]domain.AggregateExpr, len(selected))
	for i, col := range selected {
		exprs[i] = domain.AggregateExpr{Alias: col.Name, SQL: stat.Build(col.Ref())}
	}

	row, err := agg.Aggregate(ctx, rel.SQL, exprs)
	if err != nil {
		if isEmptyAggregateError(err) {
			return notApplicable, nil
		}
		return PartialResult{}, fmt.Errorf("compute %s: %w", stat.Label, err)
	}
	return PartialResult{Values: row}, nil
}

// ComputeAll evaluates every statistic concurrently, at most parallelism at
// a time, and returns the results in the order of stats. The first fatal
// error cancels the remaining queries and fails the whole call.
func ComputeAll(ctx context.Context, agg domain.Aggregator, rel Relation, stats []Statistic, parallelism int) ([]PartialResult, error) {
	if parallelism < 1 {
		parallelism = 1
	}

	results := make([]PartialResult, len(stats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, stat := range stats {
		g.Go(func() error {
			res, err := Compute(gctx, agg, rel, stat)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
