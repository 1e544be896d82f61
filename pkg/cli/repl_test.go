package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taotie/internal/domain"
	"taotie/internal/session"
)

type table struct {
	header []string
	rows   [][]any
}

func (t table) Header() []string { return t.header }
func (t table) Values() [][]any  { return t.rows }

// fakeSubmitter records commands and replies with canned results.
type fakeSubmitter struct {
	cmds  []session.Command
	reply session.Reply
	err   error
}

func (f *fakeSubmitter) Submit(_ context.Context, cmd session.Command) (session.Reply, error) {
	f.cmds = append(f.cmds, cmd)
	if f.err != nil {
		return session.Reply{}, f.err
	}
	return f.reply, nil
}

func newTestREPL(sub Submitter, format outputFormat) (*REPL, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewREPL(sub, &out, &errOut, format, 0), &out, &errOut
}

func TestREPL_ExecBuildsCommands(t *testing.T) {
	tests := []struct {
		line string
		want session.Command
	}{
		{"list", session.ListCmd{}},
		{"schema -n trips", session.SchemaCmd{Dataset: "trips"}},
		{"schema trips", session.SchemaCmd{Dataset: "trips"}},
		{"head -n trips", session.HeadCmd{Dataset: "trips", Size: defaultHeadSize}},
		{"head --name trips -s 20", session.HeadCmd{Dataset: "trips", Size: 20}},
		{"describe -n trips", session.DescribeCmd{Dataset: "trips"}},
		{`sql -q "SELECT count(*) FROM trips"`, session.SQLCmd{Query: "SELECT count(*) FROM trips"}},
		{"sql SELECT 42", session.SQLCmd{Query: "SELECT 42"}},
		{
			"connect data/trips.csv.gz -n trips",
			session.ConnectCmd{Opts: domain.ConnectOpts{
				Name: "trips",
				Conn: domain.DatasetConn{
					Kind: domain.ConnCSV, Source: "data/trips.csv.gz",
					Extension: "csv", Compression: domain.CompressionGzip,
				},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			sub := &fakeSubmitter{}
			r, _, _ := newTestREPL(sub, formatTable)
			require.NoError(t, r.Exec(context.Background(), tt.line))
			require.Len(t, sub.cmds, 1)
			assert.Equal(t, tt.want, sub.cmds[0])
		})
	}
}

func TestREPL_ExecErrors(t *testing.T) {
	tests := []struct {
		line    string
		wantErr string
	}{
		{"connect data/trips.csv", `required flag(s) "name" not set`},
		{"connect data.xlsx -n x", "unsupported dataset connection"},
		{"describe", "dataset name is required"},
		{"describe a -n b", "give the dataset name once"},
		{"head -n trips -s -1", "size must not be negative"},
		{"sql", "query is required"},
		{"frobnicate", "unknown command"},
		{`sql -q "unterminated`, "invalid command line string"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			sub := &fakeSubmitter{}
			r, _, _ := newTestREPL(sub, formatTable)
			err := r.Exec(context.Background(), tt.line)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, sub.cmds)
		})
	}
}

func TestREPL_FlagsDoNotLeakBetweenLines(t *testing.T) {
	sub := &fakeSubmitter{}
	r, _, _ := newTestREPL(sub, formatTable)
	require.NoError(t, r.Exec(context.Background(), "head -n trips -s 50"))
	require.NoError(t, r.Exec(context.Background(), "head -n trips"))
	require.Len(t, sub.cmds, 2)
	assert.Equal(t, defaultHeadSize, sub.cmds[1].(session.HeadCmd).Size)
}

func TestREPL_Run(t *testing.T) {
	sub := &fakeSubmitter{reply: session.Reply{Table: table{
		header: []string{"table_name", "table_type"},
		rows:   [][]any{{"trips", "VIEW"}},
	}}}
	r, out, errOut := newTestREPL(sub, formatTable)

	input := "list\n\nbogus\nexit\nlist\n"
	require.NoError(t, r.Run(context.Background(), newScanReader(strings.NewReader(input))))

	assert.Equal(t, banner+"\n"+
		"+------------+------------+\n"+
		"| table_name | table_type |\n"+
		"+------------+------------+\n"+
		"| trips      | VIEW       |\n"+
		"+------------+------------+\n", out.String())
	assert.Contains(t, errOut.String(), `Error: unknown command "bogus"`)
	assert.Len(t, sub.cmds, 1, "lines after exit are not run")
}

func TestREPL_RunPrintsCommandErrors(t *testing.T) {
	sub := &fakeSubmitter{err: domain.ErrNotFound("dataset %q is not registered", "nope")}
	r, _, errOut := newTestREPL(sub, formatTable)

	require.NoError(t, r.Run(context.Background(), newScanReader(strings.NewReader("describe -n nope\nquit\n"))))
	assert.Equal(t, "Error: dataset \"nope\" is not registered\n", errOut.String())
}

func TestREPL_RunStopsOnClosedWorker(t *testing.T) {
	sub := &fakeSubmitter{err: session.ErrWorkerClosed}
	r, _, _ := newTestREPL(sub, formatTable)

	err := r.Run(context.Background(), newScanReader(strings.NewReader("list\nlist\n")))
	require.ErrorIs(t, err, session.ErrWorkerClosed)
	assert.Len(t, sub.cmds, 1)
}

func TestREPL_JSONOutput(t *testing.T) {
	sub := &fakeSubmitter{reply: session.Reply{Message: "Connected to dataset trips"}}
	r, out, _ := newTestREPL(sub, formatJSON)

	require.NoError(t, r.Exec(context.Background(), "connect data/trips.csv -n trips"))
	assert.JSONEq(t, `{"message":"Connected to dataset trips"}`, out.String())
}
