package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taotie/internal/domain"
	"taotie/internal/middleware"
	tables "taotie/internal/render"
	"taotie/internal/session"
)

type table struct {
	header []string
	rows   [][]any
}

func (t table) Header() []string { return t.header }
func (t table) Values() [][]any  { return t.rows }

// fakeBackend serves canned tables and records connects.
type fakeBackend struct {
	mu        sync.Mutex
	connected []domain.ConnectOpts
	lastHead  int
	err       error
}

func (b *fakeBackend) Connect(_ context.Context, opts domain.ConnectOpts) error {
	if b.err != nil {
		return b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = append(b.connected, opts)
	return nil
}

func (b *fakeBackend) List(context.Context) (domain.Table, error) {
	return table{header: []string{"table_name", "table_type"}, rows: [][]any{{"trips", "VIEW"}}}, b.err
}

func (b *fakeBackend) Schema(_ context.Context, name string) (domain.Table, error) {
	if name != "trips" {
		return nil, domain.ErrNotFound("dataset %q not found", name)
	}
	return table{header: []string{"column_name", "column_type"}, rows: [][]any{{"id", "INTEGER"}}}, nil
}

func (b *fakeBackend) Head(_ context.Context, _ string, n int) (domain.Table, error) {
	b.mu.Lock()
	b.lastHead = n
	b.mu.Unlock()
	return table{header: []string{"id"}, rows: [][]any{{int32(1)}}}, nil
}

func (b *fakeBackend) SQL(_ context.Context, q string) (domain.Table, error) {
	if strings.TrimSpace(q) == "" {
		return nil, domain.ErrValidation("query is required")
	}
	return table{header: []string{"x"}, rows: [][]any{{2.0}}}, nil
}

func (b *fakeBackend) Describe(_ context.Context, name string) (domain.Table, error) {
	if name != "trips" {
		return nil, domain.ErrNotFound("dataset %q not found", name)
	}
	return table{
		header: []string{"describe", "id"},
		rows:   [][]any{{"max", 5.0}, {"min", 1.0}, {"stddev", nil}},
	}, nil
}

func setupServer(t *testing.T, b *fakeBackend) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	w := session.NewWorker(b, session.Options{})
	t.Cleanup(w.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := prometheus.NewRegistry()
	srv := httptest.NewServer(NewRouter(ctx, RouterConfig{
		Handler:            NewHandler(w, nil),
		CORSAllowedOrigins: []string{"*"},
		RateLimit:          middleware.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		Registry:           reg,
	}))
	t.Cleanup(srv.Close)
	return srv, reg
}

func do(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = strings.NewReader(b)
		default:
			buf, err := json.Marshal(b)
			require.NoError(t, err)
			rd = bytes.NewReader(buf)
		}
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t, &fakeBackend{})

	resp, body := do(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestListDatasets(t *testing.T) {
	srv, _ := setupServer(t, &fakeBackend{})

	resp, body := do(t, http.MethodGet, srv.URL+"/datasets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var p tables.Payload
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, []string{"table_name", "table_type"}, p.Columns)
	assert.Equal(t, [][]any{{"trips", "VIEW"}}, p.Rows)
}

func TestConnectDataset(t *testing.T) {
	b := &fakeBackend{}
	srv, _ := setupServer(t, b)

	resp, body := do(t, http.MethodPost, srv.URL+"/datasets", ConnectRequest{Conn: "/data/trips.csv.gz", Name: "trips"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"message":"Connected to dataset trips"}`, string(body))

	require.Len(t, b.connected, 1)
	assert.Equal(t, "trips", b.connected[0].Name)
	assert.Equal(t, domain.ConnCSV, b.connected[0].Conn.Kind)
	assert.Equal(t, domain.CompressionGzip, b.connected[0].Conn.Compression)
}

func TestConnectDataset_Invalid(t *testing.T) {
	srv, _ := setupServer(t, &fakeBackend{})

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", "{"},
		{"missing name", ConnectRequest{Conn: "a.csv"}},
		{"bad conn", ConnectRequest{Conn: "data.xlsx", Name: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, srv.URL+"/datasets", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var e ErrorResponse
			require.NoError(t, json.Unmarshal(body, &e))
			assert.Equal(t, http.StatusBadRequest, e.Code)
			assert.NotEmpty(t, e.Message)
		})
	}
}

func TestSchema_NotFound(t *testing.T) {
	srv, _ := setupServer(t, &fakeBackend{})

	resp, body := do(t, http.MethodGet, srv.URL+"/datasets/nope/schema", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), `dataset \"nope\" not found`)
}

func TestHead(t *testing.T) {
	b := &fakeBackend{}
	srv, _ := setupServer(t, b)

	resp, _ := do(t, http.MethodGet, srv.URL+"/datasets/trips/head", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, DefaultHeadSize, b.lastHead)

	resp, _ = do(t, http.MethodGet, srv.URL+"/datasets/trips/head?n=12", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 12, b.lastHead)

	resp, _ = do(t, http.MethodGet, srv.URL+"/datasets/trips/head?n=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDescribe_TextFormat(t *testing.T) {
	srv, _ := setupServer(t, &fakeBackend{})

	resp, body := do(t, http.MethodGet, srv.URL+"/datasets/trips/describe?format=text", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	want := "" +
		"+----------+------+\n" +
		"| describe | id   |\n" +
		"+----------+------+\n" +
		"| max      | 5.0  |\n" +
		"| min      | 1.0  |\n" +
		"| stddev   | NULL |\n" +
		"+----------+------+\n"
	assert.Equal(t, want, string(body))
}

func TestDescribe_JSON(t *testing.T) {
	srv, _ := setupServer(t, &fakeBackend{})

	resp, body := do(t, http.MethodGet, srv.URL+"/datasets/trips/describe", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"columns":["describe","id"],"rows":[["max",5],["min",1],["stddev",null]]}`, string(body))
}

func TestSQL(t *testing.T) {
	srv, _ := setupServer(t, &fakeBackend{})

	resp, body := do(t, http.MethodPost, srv.URL+"/sql", SQLRequest{Query: "SELECT 2.0 AS x"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"columns":["x"],"rows":[[2]]}`, string(body))

	resp, _ = do(t, http.MethodPost, srv.URL+"/sql", SQLRequest{Query: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := setupServer(t, &fakeBackend{})

	do(t, http.MethodGet, srv.URL+"/datasets/trips/schema", nil)
	resp, body := do(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `taotie_http_requests_total{code="200",method="GET",route="/datasets/{name}/schema"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := setupServer(t, &fakeBackend{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/sql", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound("x"), http.StatusNotFound},
		{domain.ErrValidation("x"), http.StatusBadRequest},
		{domain.ErrConflict("x"), http.StatusConflict},
		{domain.ErrNotImplemented("x"), http.StatusNotImplemented},
		{session.ErrWorkerClosed, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("engine exploded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, httpStatusFromError(tt.err))
		})
	}
}

func TestWorkerClosed(t *testing.T) {
	w := session.NewWorker(&fakeBackend{}, session.Options{})
	w.Close()

	h := NewHandler(w, nil)
	rec := httptest.NewRecorder()
	h.ListDatasets(rec, httptest.NewRequest(http.MethodGet, "/datasets", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
