package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq" // registers the "postgres" driver used for reachability checks

	"taotie/internal/ddl"
	"taotie/internal/domain"
)

// Executor runs DDL against the engine.
type Executor interface {
	Exec(ctx context.Context, stmt string) error
	EnsureExtension(ctx context.Context, name string) error
}

// Prober checks that a remote object exists.
type Prober interface {
	Probe(ctx context.Context, path string) error
}

// Registrar registers datasets with the engine and records them in the
// dataset registry.
type Registrar struct {
	exec   Executor
	probes Prober
	repo   domain.DatasetRepository // nil disables persistence
	logger *slog.Logger

	ping func(ctx context.Context, dsn string) error
}

// NewRegistrar creates a Registrar. probes and repo may be nil.
func NewRegistrar(exec Executor, probes Prober, repo domain.DatasetRepository, logger *slog.Logger) *Registrar {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registrar{
		exec:   exec,
		probes: probes,
		repo:   repo,
		logger: logger,
		ping:   pingPostgres,
	}
}

// Connect registers a dataset under opts.Name, replacing any dataset of the
// same name, and records the registration.
func (r *Registrar) Connect(ctx context.Context, opts domain.ConnectOpts) error {
	if err := r.register(ctx, opts); err != nil {
		return err
	}
	if r.repo == nil {
		return nil
	}

	conn := opts.Conn
	if _, err := r.repo.Upsert(ctx, &domain.Dataset{
		Name:        opts.Name,
		Kind:        conn.Kind,
		Source:      conn.Source,
		Extension:   conn.Extension,
		Compression: conn.Compression,
		Table:       opts.Table,
	}); err != nil {
		r.logger.Warn("dataset registered but not persisted", "dataset", opts.Name, "error", err)
	}
	return nil
}

// Restore re-registers every persisted dataset. Datasets that fail to
// register are logged and skipped. It returns the number restored.
func (r *Registrar) Restore(ctx context.Context) (int, error) {
	if r.repo == nil {
		return 0, nil
	}
	datasets, err := r.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list persisted datasets: %w", err)
	}

	restored := 0
	for _, ds := range datasets {
		opts := domain.ConnectOpts{Conn: ds.Conn(), Name: ds.Name, Table: ds.Table}
		if err := r.register(ctx, opts); err != nil {
			r.logger.Warn("could not restore dataset", "dataset", ds.Name, "source", ds.Source, "error", err)
			continue
		}
		restored++
	}
	r.logger.Info("restored datasets", "restored", restored, "total", len(datasets))
	return restored, nil
}

func (r *Registrar) register(ctx context.Context, opts domain.ConnectOpts) error {
	if err := ddl.ValidateIdentifier(opts.Name); err != nil {
		return domain.ErrValidation("invalid dataset name %q: %v", opts.Name, err)
	}

	start := time.Now()
	var err error
	if opts.Conn.Kind == domain.ConnPostgres {
		err = r.registerPostgres(ctx, opts)
	} else {
		err = r.registerFile(ctx, opts)
	}
	if err != nil {
		return err
	}

	r.logger.Debug("registered dataset",
		"dataset", opts.Name,
		"kind", opts.Conn.Kind,
		"source", redact(opts.Conn),
		"duration", time.Since(start))
	return nil
}

func (r *Registrar) registerFile(ctx context.Context, opts domain.ConnectOpts) error {
	conn := opts.Conn
	switch conn.Compression {
	case domain.CompressionBzip2, domain.CompressionXZ:
		return domain.ErrValidation("compression %q is not supported by the engine; decompress %s first", conn.Compression, conn.Source)
	}

	if scheme := domain.RemoteScheme(conn.Source); scheme != "" {
		ext := "httpfs"
		if scheme == "az" || scheme == "abfss" {
			ext = "azure"
		}
		if err := r.exec.EnsureExtension(ctx, ext); err != nil {
			return err
		}
		if r.probes != nil {
			if err := r.probes.Probe(ctx, conn.Source); err != nil {
				return err
			}
		}
	} else if !strings.ContainsAny(conn.Source, "*?[") {
		if _, err := os.Stat(conn.Source); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return domain.ErrNotFound("file %q not found", conn.Source)
			}
			return fmt.Errorf("stat %s: %w", conn.Source, err)
		}
	}

	stmt, err := ddl.CreateDatasetView(opts.Name, conn)
	if err != nil {
		return domain.ErrValidation("%s", err.Error())
	}
	if err := r.exec.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("connect %s: %w", opts.Name, err)
	}
	return nil
}

func (r *Registrar) registerPostgres(ctx context.Context, opts domain.ConnectOpts) error {
	if strings.TrimSpace(opts.Table) == "" {
		return domain.ErrValidation("a source table (-t/--table) is required for postgres datasets")
	}
	if err := r.ping(ctx, opts.Conn.Source); err != nil {
		return fmt.Errorf("connect %s: postgres unreachable: %w", opts.Name, err)
	}
	if err := r.exec.EnsureExtension(ctx, "postgres"); err != nil {
		return err
	}

	catalog := "pg_" + opts.Name
	detach, err := ddl.DetachCatalog(catalog)
	if err != nil {
		return domain.ErrValidation("%s", err.Error())
	}
	attach, err := ddl.AttachPostgres(catalog, opts.Conn.Source)
	if err != nil {
		return domain.ErrValidation("%s", err.Error())
	}
	view, err := ddl.CreateAliasView(opts.Name, catalog, opts.Table)
	if err != nil {
		return domain.ErrValidation("%s", err.Error())
	}

	for _, stmt := range []string{detach, attach, view} {
		if err := r.exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("connect %s: %w", opts.Name, err)
		}
	}
	return nil
}

// pingPostgres opens a short-lived connection to check the DSN before
// DuckDB attaches it.
func pingPostgres(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// redact hides the password of a postgres DSN for logging.
func redact(conn domain.DatasetConn) string {
	if conn.Kind != domain.ConnPostgres {
		return conn.Source
	}
	scheme, rest, ok := strings.Cut(conn.Source, "://")
	if !ok {
		return conn.Source
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return conn.Source
	}
	user, _, _ := strings.Cut(userinfo, ":")
	return scheme + "://" + user + ":***@" + host
}
