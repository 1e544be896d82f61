// Package describe computes statistical summaries of datasets.
//
// A dataset's columns are classified and normalized into numeric
// expressions, each statistic of a fixed catalog runs as one aggregate query
// over the applicable columns, and the partial rows are assembled into a
// summary table sorted by statistic label.
package describe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"taotie/internal/domain"
)

// Describer computes summary tables for registered datasets.
type Describer struct {
	schema      domain.SchemaSource
	agg         domain.Aggregator
	parallelism int
	logger      *slog.Logger
}

// New creates a Describer. parallelism bounds the number of statistic
// queries in flight for a single dataset.
func New(schema domain.SchemaSource, agg domain.Aggregator, parallelism int, logger *slog.Logger) *Describer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Describer{schema: schema, agg: agg, parallelism: parallelism, logger: logger}
}

// Describe summarizes a dataset. It returns either a complete table with one
// row per catalog statistic or an error, never a partial table.
func (d *Describer) Describe(ctx context.Context, dataset string) (*SummaryTable, error) {
	start := time.Now()

	cols, err := d.schema.Columns(ctx, dataset)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", dataset, err)
	}
	rel, err := NormalizeAll(dataset, cols)
	if err != nil {
		return nil, err
	}

	stats := Catalog()
	partials, err := ComputeAll(ctx, d.agg, rel, stats, d.parallelism)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", dataset, err)
	}

	table, err := Assemble(rel.Columns, stats, partials)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("described dataset",
		"dataset", dataset,
		"columns", len(cols),
		"duration", time.Since(start))
	return table, nil
}
