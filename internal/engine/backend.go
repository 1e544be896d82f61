package engine

import (
	"context"
	"strings"

	"taotie/internal/ddl"
	"taotie/internal/describe"
	"taotie/internal/domain"
)

var _ domain.Backend = (*Backend)(nil)

// Connector registers datasets with the engine.
type Connector interface {
	Connect(ctx context.Context, opts domain.ConnectOpts) error
}

// Describer computes summary tables.
type Describer interface {
	Describe(ctx context.Context, dataset string) (*describe.SummaryTable, error)
}

// Backend serves the shell's commands from one DuckDB session.
type Backend struct {
	engine    *Engine
	connector Connector
	describer Describer
}

// NewBackend creates a Backend.
func NewBackend(eng *Engine, connector Connector, describer Describer) *Backend {
	return &Backend{engine: eng, connector: connector, describer: describer}
}

// Connect registers a dataset.
func (b *Backend) Connect(ctx context.Context, opts domain.ConnectOpts) error {
	return b.connector.Connect(ctx, opts)
}

// List returns the registered datasets.
func (b *Backend) List(ctx context.Context) (domain.Table, error) {
	return b.engine.List(ctx)
}

// Schema returns the column names and types of a dataset.
func (b *Backend) Schema(ctx context.Context, name string) (domain.Table, error) {
	return b.engine.Describe(ctx, name)
}

// Head returns the first n rows of a dataset.
func (b *Backend) Head(ctx context.Context, name string, n int) (domain.Table, error) {
	ok, err := b.engine.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound("dataset %q not found", name)
	}
	query, err := ddl.SelectHead(name, n)
	if err != nil {
		return nil, domain.ErrValidation("%s", err.Error())
	}
	return b.engine.Query(ctx, query)
}

// SQL runs an arbitrary query.
func (b *Backend) SQL(ctx context.Context, query string) (domain.Table, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrValidation("query is required")
	}
	return b.engine.Query(ctx, query)
}

// Describe computes the statistical summary of a dataset.
func (b *Backend) Describe(ctx context.Context, name string) (domain.Table, error) {
	table, err := b.describer.Describe(ctx, name)
	if err != nil {
		return nil, err
	}
	return table, nil
}
