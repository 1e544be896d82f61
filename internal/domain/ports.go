package domain

import "context"

// Table is a materialized, renderable tabular result.
type Table interface {
	Header() []string
	Values() [][]any
}

// Backend is the capability set a single session drives. Implementations own
// one execution-engine session and are not safe for concurrent use; callers
// serialize access through the session worker.
type Backend interface {
	Connect(ctx context.Context, opts ConnectOpts) error
	List(ctx context.Context) (Table, error)
	Schema(ctx context.Context, name string) (Table, error)
	Head(ctx context.Context, name string, n int) (Table, error)
	SQL(ctx context.Context, query string) (Table, error)
	Describe(ctx context.Context, name string) (Table, error)
}

// DatasetRepository persists dataset registrations across sessions.
type DatasetRepository interface {
	Upsert(ctx context.Context, ds *Dataset) (*Dataset, error)
	Get(ctx context.Context, name string) (*Dataset, error)
	List(ctx context.Context) ([]Dataset, error)
	Delete(ctx context.Context, name string) error
}

// AggregateExpr is one aliased aggregate expression of a single-row,
// ungrouped aggregate query.
type AggregateExpr struct {
	Alias string
	SQL   string
}

// Aggregator runs ungrouped aggregate queries over a relation and returns
// the single result row keyed by alias. Requests with no expressions fail
// with ErrEmptyAggregate.
type Aggregator interface {
	Aggregate(ctx context.Context, relation string, exprs []AggregateExpr) (map[string]any, error)
}

// SchemaSource resolves the ordered column list of a registered dataset.
type SchemaSource interface {
	Columns(ctx context.Context, name string) ([]Column, error)
}
