// Package engine adapts an embedded DuckDB session to the dataset shell.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver

	"taotie/internal/ddl"
	"taotie/internal/domain"
)

// Compile-time checks.
var (
	_ domain.Aggregator   = (*Engine)(nil)
	_ domain.SchemaSource = (*Engine)(nil)
)

// Open opens a DuckDB database. An empty path opens an in-memory database.
// Every pooled connection shares the same database instance, so views,
// secrets, and attached catalogs are visible to concurrent statements.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

// Engine wraps a DuckDB connection and serves queries, schema lookups,
// and ungrouped aggregates.
type Engine struct {
	db *sql.DB

	extMu     sync.Mutex
	extLoaded map[string]bool
}

// New creates an Engine over an open DuckDB connection.
func New(db *sql.DB) *Engine {
	return &Engine{db: db, extLoaded: make(map[string]bool)}
}

// DB returns the underlying connection.
func (e *Engine) DB() *sql.DB { return e.db }

// Exec runs a statement that produces no rows.
func (e *Engine) Exec(ctx context.Context, stmt string) error {
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("execute statement: %w", err)
	}
	return nil
}

// EnsureExtension installs and loads a DuckDB extension once per engine.
// A failed attempt leaves the extension unmarked so the next call retries.
func (e *Engine) EnsureExtension(ctx context.Context, name string) error {
	e.extMu.Lock()
	defer e.extMu.Unlock()

	if e.extLoaded[name] {
		return nil
	}
	stmt, err := ddl.LoadExtension(name)
	if err != nil {
		return err
	}
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("extension setup (%s): %w", name, err)
	}
	e.extLoaded[name] = true
	return nil
}

// InstallExtensions loads each extension, stopping at the first failure.
func (e *Engine) InstallExtensions(ctx context.Context, names ...string) error {
	for _, name := range names {
		if err := e.EnsureExtension(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Query executes a SQL query and materializes every row.
func (e *Engine) Query(ctx context.Context, query string) (*Result, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	return scanRows(rows)
}

// List returns the datasets visible in the session's main schema.
func (e *Engine) List(ctx context.Context) (*Result, error) {
	return e.Query(ctx, `SELECT table_name, table_type FROM information_schema.tables
WHERE table_schema = 'main' AND table_catalog = current_database()
ORDER BY table_name`)
}

// Exists reports whether a table or view with the given name is registered.
func (e *Engine) Exists(ctx context.Context, name string) (bool, error) {
	var n int
	err := e.db.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables
WHERE table_schema = 'main' AND table_catalog = current_database() AND table_name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup dataset %q: %w", name, err)
	}
	return n > 0, nil
}

// Describe returns the DESCRIBE output of a dataset.
func (e *Engine) Describe(ctx context.Context, name string) (*Result, error) {
	ok, err := e.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound("dataset %q not found", name)
	}
	return e.Query(ctx, ddl.DescribeRelation(name))
}

// Columns returns the ordered column list of a dataset.
func (e *Engine) Columns(ctx context.Context, name string) ([]domain.Column, error) {
	res, err := e.Describe(ctx, name)
	if err != nil {
		return nil, err
	}
	nameIdx, typeIdx, nullIdx := res.index("column_name"), res.index("column_type"), res.index("null")
	if nameIdx < 0 || typeIdx < 0 {
		return nil, fmt.Errorf("describe %q: unexpected columns %v", name, res.Columns)
	}

	cols := make([]domain.Column, 0, len(res.Rows))
	for _, row := range res.Rows {
		col := domain.Column{
			Name: fmt.Sprint(row[nameIdx]),
			Type: fmt.Sprint(row[typeIdx]),
		}
		if nullIdx >= 0 {
			col.Nullable = strings.EqualFold(fmt.Sprint(row[nullIdx]), "YES")
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// Aggregate evaluates exprs as one ungrouped aggregate over relation, a
// SELECT statement, and returns the single result row keyed by alias.
func (e *Engine) Aggregate(ctx context.Context, relation string, exprs []domain.AggregateExpr) (map[string]any, error) {
	if len(exprs) == 0 {
		return nil, domain.ErrEmptyAggregate
	}

	selects := make([]string, len(exprs))
	for i, expr := range exprs {
		selects[i] = expr.SQL + " AS " + ddl.QuoteIdentifier(expr.Alias)
	}
	query := fmt.Sprintf("SELECT %s FROM (%s) AS __describe", strings.Join(selects, ", "), relation)

	res, err := e.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) != 1 {
		return nil, fmt.Errorf("aggregate returned %d rows, want 1", len(res.Rows))
	}

	out := make(map[string]any, len(exprs))
	for i, expr := range exprs {
		out[expr.Alias] = res.Rows[0][i]
	}
	return out, nil
}
