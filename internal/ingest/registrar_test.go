package ingest

import (
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taotie/internal/domain"
	"taotie/internal/engine"
)

var ctx = context.Background()

// memRepo is an in-memory DatasetRepository.
type memRepo struct {
	mu   sync.Mutex
	rows map[string]domain.Dataset
	err  error
}

func newMemRepo() *memRepo { return &memRepo{rows: map[string]domain.Dataset{}} }

func (m *memRepo) Upsert(_ context.Context, ds *domain.Dataset) (*domain.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.rows[ds.Name] = *ds
	return ds, nil
}

func (m *memRepo) Get(_ context.Context, name string) (*domain.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.rows[name]
	if !ok {
		return nil, domain.ErrNotFound("dataset %q not found", name)
	}
	return &ds, nil
}

func (m *memRepo) List(_ context.Context) ([]domain.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Dataset, 0, len(m.rows))
	for _, ds := range m.rows {
		out = append(out, ds)
	}
	return out, nil
}

func (m *memRepo) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, name)
	return nil
}

func setup(t *testing.T, repo domain.DatasetRepository) (*engine.Engine, *Registrar) {
	t.Helper()
	db, err := engine.Open(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	eng := engine.New(db)
	return eng, NewRegistrar(eng, nil, repo, nil)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func connectOpts(t *testing.T, source, name string) domain.ConnectOpts {
	t.Helper()
	conn, err := ParseConn(source)
	require.NoError(t, err)
	return domain.ConnectOpts{Conn: conn, Name: name}
}

func TestConnect_CSV(t *testing.T) {
	repo := newMemRepo()
	eng, reg := setup(t, repo)
	src := writeFile(t, "users.csv", "id,name\n1,ann\n2,bob\n")

	require.NoError(t, reg.Connect(ctx, connectOpts(t, src, "users")))

	res, err := eng.Query(ctx, `SELECT count(*) FROM users`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Rows[0][0])

	ds, err := repo.Get(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, domain.ConnCSV, ds.Kind)
	assert.Equal(t, src, ds.Source)
}

func TestConnect_GzipCSV(t *testing.T) {
	_, reg := setup(t, nil)
	p := filepath.Join(t.TempDir(), "nums.csv.gz")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte("x\n1\n2\n3\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	require.NoError(t, reg.Connect(ctx, connectOpts(t, p, "nums")))
}

func TestConnect_NDJSON(t *testing.T) {
	eng, reg := setup(t, nil)
	src := writeFile(t, "events.ndjson", `{"a": 1, "b": "x"}`+"\n"+`{"a": 2, "b": "y"}`+"\n")

	require.NoError(t, reg.Connect(ctx, connectOpts(t, src, "events")))

	cols, err := eng.Columns(ctx, "events")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "a", cols[0].Name)
}

func TestConnect_Replaces(t *testing.T) {
	eng, reg := setup(t, nil)
	first := writeFile(t, "a.csv", "x\n1\n")
	second := writeFile(t, "b.csv", "x\n1\n2\n")

	require.NoError(t, reg.Connect(ctx, connectOpts(t, first, "d")))
	require.NoError(t, reg.Connect(ctx, connectOpts(t, second, "d")))

	res, err := eng.Query(ctx, `SELECT count(*) FROM d`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Rows[0][0])
}

func TestConnect_Errors(t *testing.T) {
	_, reg := setup(t, nil)
	src := writeFile(t, "a.csv", "x\n1\n")

	var ve *domain.ValidationError
	err := reg.Connect(ctx, connectOpts(t, src, "bad-name"))
	require.ErrorAs(t, err, &ve)

	var nf *domain.NotFoundError
	err = reg.Connect(ctx, connectOpts(t, filepath.Join(t.TempDir(), "missing.csv"), "m"))
	require.ErrorAs(t, err, &nf)

	err = reg.Connect(ctx, connectOpts(t, "data.csv.xz", "x"))
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "not supported by the engine")

	err = reg.Connect(ctx, domain.ConnectOpts{
		Conn: domain.DatasetConn{Kind: domain.ConnPostgres, Source: "postgres://localhost/db"},
		Name: "pg",
	})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "--table")
}

func TestConnect_PostgresUnreachable(t *testing.T) {
	_, reg := setup(t, nil)
	reg.ping = func(context.Context, string) error { return errors.New("connection refused") }

	err := reg.Connect(ctx, domain.ConnectOpts{
		Conn:  domain.DatasetConn{Kind: domain.ConnPostgres, Source: "postgres://localhost:1/db"},
		Name:  "orders",
		Table: "orders",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres unreachable")
}

type failingProber struct{ err error }

func (f failingProber) Probe(context.Context, string) error { return f.err }

type recordingExec struct {
	stmts []string
	exts  []string
}

func (r *recordingExec) Exec(_ context.Context, stmt string) error {
	r.stmts = append(r.stmts, stmt)
	return nil
}

func (r *recordingExec) EnsureExtension(_ context.Context, name string) error {
	r.exts = append(r.exts, name)
	return nil
}

func TestConnect_RemoteProbed(t *testing.T) {
	exec := &recordingExec{}
	reg := NewRegistrar(exec, failingProber{err: domain.ErrNotFound("object missing")}, nil, nil)

	err := reg.Connect(ctx, connectOpts(t, "s3://lake/missing.parquet", "remote"))
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, []string{"httpfs"}, exec.exts)
	assert.Empty(t, exec.stmts)

	reg = NewRegistrar(exec, failingProber{}, nil, nil)
	require.NoError(t, reg.Connect(ctx, connectOpts(t, "az://raw/e.csv", "azure_data")))
	assert.Equal(t, "azure", exec.exts[len(exec.exts)-1])
	assert.Contains(t, exec.stmts[0], "read_csv('az://raw/e.csv')")
}

func TestConnect_PostgresStatements(t *testing.T) {
	exec := &recordingExec{}
	reg := NewRegistrar(exec, nil, nil, nil)
	reg.ping = func(context.Context, string) error { return nil }

	err := reg.Connect(ctx, domain.ConnectOpts{
		Conn:  domain.DatasetConn{Kind: domain.ConnPostgres, Source: "postgres://localhost/shop"},
		Name:  "orders",
		Table: "sales.orders",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"postgres"}, exec.exts)
	require.Len(t, exec.stmts, 3)
	assert.Equal(t, `DETACH IF EXISTS "pg_orders"`, exec.stmts[0])
	assert.Contains(t, exec.stmts[1], "TYPE postgres, READ_ONLY")
	assert.Equal(t, `CREATE OR REPLACE VIEW "orders" AS SELECT * FROM "pg_orders"."sales"."orders"`, exec.stmts[2])
}

func TestConnect_PersistFailureIsNotFatal(t *testing.T) {
	repo := newMemRepo()
	repo.err = errors.New("disk full")
	_, reg := setup(t, repo)
	src := writeFile(t, "a.csv", "x\n1\n")

	require.NoError(t, reg.Connect(ctx, connectOpts(t, src, "a")))
}

func TestRestore(t *testing.T) {
	repo := newMemRepo()
	good := writeFile(t, "good.csv", "x\n1\n")
	_, _ = repo.Upsert(ctx, &domain.Dataset{Name: "good", Kind: domain.ConnCSV, Source: good, Extension: "csv"})
	_, _ = repo.Upsert(ctx, &domain.Dataset{Name: "gone", Kind: domain.ConnCSV, Source: filepath.Join(t.TempDir(), "gone.csv"), Extension: "csv"})

	eng, reg := setup(t, repo)
	n, err := reg.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := eng.Exists(ctx, "good")
	require.NoError(t, err)
	assert.True(t, ok)

	_, reg = setup(t, nil)
	n, err = reg.Restore(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
