package session

import (
	"context"
	"fmt"

	"taotie/internal/domain"
)

// Reply is the outcome of a command: a table, a message, or both.
type Reply struct {
	Message string
	Table   domain.Table
}

// Command is one unit of work executed by the worker against the backend.
type Command interface {
	Name() string
	Execute(ctx context.Context, b domain.Backend) (Reply, error)
}

// ConnectCmd registers a dataset.
type ConnectCmd struct {
	Opts domain.ConnectOpts
}

func (ConnectCmd) Name() string { return "connect" }

func (c ConnectCmd) Execute(ctx context.Context, b domain.Backend) (Reply, error) {
	if err := b.Connect(ctx, c.Opts); err != nil {
		return Reply{}, err
	}
	return Reply{Message: fmt.Sprintf("Connected to dataset %s", c.Opts.Name)}, nil
}

// ListCmd lists registered datasets.
type ListCmd struct{}

func (ListCmd) Name() string { return "list" }

func (ListCmd) Execute(ctx context.Context, b domain.Backend) (Reply, error) {
	return tableReply(b.List(ctx))
}

// SchemaCmd shows the columns of a dataset.
type SchemaCmd struct {
	Dataset string
}

func (SchemaCmd) Name() string { return "schema" }

func (c SchemaCmd) Execute(ctx context.Context, b domain.Backend) (Reply, error) {
	return tableReply(b.Schema(ctx, c.Dataset))
}

// HeadCmd shows the first Size rows of a dataset.
type HeadCmd struct {
	Dataset string
	Size    int
}

func (HeadCmd) Name() string { return "head" }

func (c HeadCmd) Execute(ctx context.Context, b domain.Backend) (Reply, error) {
	return tableReply(b.Head(ctx, c.Dataset, c.Size))
}

// SQLCmd runs a query.
type SQLCmd struct {
	Query string
}

func (SQLCmd) Name() string { return "sql" }

func (c SQLCmd) Execute(ctx context.Context, b domain.Backend) (Reply, error) {
	return tableReply(b.SQL(ctx, c.Query))
}

// DescribeCmd summarizes a dataset.
type DescribeCmd struct {
	Dataset string
}

func (DescribeCmd) Name() string { return "describe" }

func (c DescribeCmd) Execute(ctx context.Context, b domain.Backend) (Reply, error) {
	return tableReply(b.Describe(ctx, c.Dataset))
}

func tableReply(t domain.Table, err error) (Reply, error) {
	if err != nil {
		return Reply{}, err
	}
	return Reply{Table: t}, nil
}
