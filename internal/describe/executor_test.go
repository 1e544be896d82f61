package describe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taotie/internal/domain"
)

// fakeAggregator answers every expression with a fixed value unless an
// error is configured for the request's first alias.
type fakeAggregator struct {
	mu       sync.Mutex
	calls    int
	errFor   map[string]error // keyed by SQL expression substring
	value    float64
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeAggregator) Aggregate(_ context.Context, _ string, exprs []domain.AggregateExpr) (map[string]any, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	for _, e := range exprs {
		for key, err := range f.errFor {
			if strings.Contains(e.SQL, key) {
				return nil, err
			}
		}
	}
	if len(exprs) == 0 {
		return nil, domain.ErrEmptyAggregate
	}
	row := make(map[string]any, len(exprs))
	for _, e := range exprs {
		row[e.Alias] = f.value
	}
	return row, nil
}

func relationOf(t *testing.T, cols ...domain.Column) Relation {
	t.Helper()
	rel, err := NormalizeAll("ds", cols)
	require.NoError(t, err)
	return rel
}

func statByLabel(t *testing.T, label string) Statistic {
	t.Helper()
	for _, s := range Catalog() {
		if s.Label == label {
			return s
		}
	}
	t.Fatalf("no statistic %q", label)
	return Statistic{}
}

func TestCompute_EmptySelectionSkipsEngine(t *testing.T) {
	agg := &fakeAggregator{value: 1}
	rel := relationOf(t, domain.Column{Name: "flag", Type: "BOOLEAN"}, domain.Column{Name: "raw", Type: "BLOB"})

	for _, label := range []string{"min", "max", "mean", "stddev", "median"} {
		res, err := Compute(context.Background(), agg, rel, statByLabel(t, label))
		require.NoError(t, err)
		assert.True(t, res.NotApplicable, label)
	}
	assert.Zero(t, agg.calls)
}

func TestCompute_SelectsApplicableColumns(t *testing.T) {
	agg := &fakeAggregator{value: 2.5}
	rel := relationOf(t, domain.Column{Name: "n", Type: "INTEGER"}, domain.Column{Name: "s", Type: "VARCHAR"})

	res, err := Compute(context.Background(), agg, rel, statByLabel(t, "mean"))
	require.NoError(t, err)
	assert.False(t, res.NotApplicable)
	assert.Equal(t, map[string]any{"n": 2.5}, res.Values)
}

func TestCompute_ToleratesEmptyAggregateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"sentinel", domain.ErrEmptyAggregate},
		{"wrapped sentinel", fmt.Errorf("plan: %w", domain.ErrEmptyAggregate)},
		{"message only", errors.New("Error during planning: Aggregate requires at least one aggregate expression")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			agg := &fakeAggregator{errFor: map[string]error{"min(": tc.err}}
			rel := relationOf(t, domain.Column{Name: "n", Type: "INTEGER"})

			res, err := Compute(context.Background(), agg, rel, statByLabel(t, "min"))
			require.NoError(t, err)
			assert.True(t, res.NotApplicable)
		})
	}
}

func TestCompute_OtherErrorsAreFatal(t *testing.T) {
	boom := errors.New("IO Error: cannot open file")
	agg := &fakeAggregator{errFor: map[string]error{"avg(": boom}}
	rel := relationOf(t, domain.Column{Name: "n", Type: "INTEGER"})

	_, err := Compute(context.Background(), agg, rel, statByLabel(t, "mean"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "compute mean")
}

func TestComputeAll_OrderAndBarrier(t *testing.T) {
	agg := &fakeAggregator{value: 7}
	rel := relationOf(t, domain.Column{Name: "n", Type: "INTEGER"}, domain.Column{Name: "flag", Type: "BOOLEAN"})
	stats := Catalog()

	results, err := ComputeAll(context.Background(), agg, rel, stats, 3)
	require.NoError(t, err)
	require.Len(t, results, len(stats))
	for i, res := range results {
		assert.False(t, res.NotApplicable, stats[i].Label)
		assert.Contains(t, res.Values, "n", stats[i].Label)
	}
	assert.LessOrEqual(t, agg.peak.Load(), int32(3))
	assert.Equal(t, len(stats), agg.calls)
}

func TestComputeAll_FailsWhole(t *testing.T) {
	agg := &fakeAggregator{value: 1, errFor: map[string]error{"stddev_samp(": errors.New("Conversion Error")}}
	rel := relationOf(t, domain.Column{Name: "n", Type: "INTEGER"})

	results, err := ComputeAll(context.Background(), agg, rel, Catalog(), 4)
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Contains(t, err.Error(), "compute stddev")
}
