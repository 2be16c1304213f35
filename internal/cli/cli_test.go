package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurodoc/internal/service"
)

type fakeOps struct {
	calls  []string
	result service.Result
}

func (f *fakeOps) Store(_ context.Context, userID, text string) service.Result {
	f.calls = append(f.calls, "store:"+userID+":"+text)
	return f.result
}

func (f *fakeOps) Search(_ context.Context, userID, query string) service.Result {
	f.calls = append(f.calls, "search:"+userID+":"+query)
	return f.result
}

func (f *fakeOps) Summarize(_ context.Context, userID, keyword string) service.Result {
	f.calls = append(f.calls, "summary:"+userID+":"+keyword)
	return f.result
}

func (f *fakeOps) ExtractTitle(_ context.Context, text string) service.Result {
	f.calls = append(f.calls, "title:"+text)
	return f.result
}

type harness struct {
	ops    *fakeOps
	opts   []BuildOptions
	closed int
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newHarness(result service.Result) *harness {
	return &harness{ops: &fakeOps{result: result}, out: new(bytes.Buffer), errOut: new(bytes.Buffer)}
}

func (h *harness) execute(stdin string, args ...string) error {
	root := NewRootCmd(func(_ context.Context, opts BuildOptions) (*Runtime, error) {
		h.opts = append(h.opts, opts)
		return &Runtime{Ops: h.ops, Close: func() error { h.closed++; return nil }}, nil
	})
	root.SetOut(h.out)
	root.SetErr(h.errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func TestStoreCmd(t *testing.T) {
	h := newHarness(service.Result{OK: true, Text: "doc-1", DocID: "doc-1"})

	err := h.execute("", "store", "--user", "alice", "The sky is blue.")
	require.NoError(t, err)
	assert.Equal(t, []string{"store:alice:The sky is blue."}, h.ops.calls)
	assert.Equal(t, "Document stored successfully! (ID: doc-1)\n", h.out.String())
	assert.Equal(t, 1, h.closed)
}

func TestStoreCmd_Stdin(t *testing.T) {
	h := newHarness(service.Result{OK: true, DocID: "doc-1"})

	require.NoError(t, h.execute("from stdin\n", "store", "-u", "alice"))
	assert.Equal(t, []string{"store:alice:from stdin\n"}, h.ops.calls)
}

func TestStoreCmd_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("file body"), 0o644))
	h := newHarness(service.Result{OK: true, DocID: "doc-1"})

	require.NoError(t, h.execute("", "store", "-u", "alice", "--file", path))
	assert.Equal(t, []string{"store:alice:file body"}, h.ops.calls)
}

func TestSearchCmd(t *testing.T) {
	h := newHarness(service.Result{OK: true, Text: "It is blue."})

	require.NoError(t, h.execute("", "--verbose", "--config", "x.yaml", "search", "-u", "alice", "what colour?"))
	assert.Equal(t, []string{"search:alice:what colour?"}, h.ops.calls)
	assert.Equal(t, "It is blue.\n", h.out.String())
	require.Len(t, h.opts, 1)
	assert.Equal(t, BuildOptions{ConfigPath: "x.yaml", Verbose: true}, h.opts[0])
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	h := newHarness(service.Result{})
	err := h.execute("", "search", "-u", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
	assert.Empty(t, h.opts)
}

func TestSummarizeCmd_Failure(t *testing.T) {
	h := newHarness(service.Result{Text: "Error generating summary: quota exceeded", Kind: "generation"})

	err := h.execute("", "summarize", "-u", "alice", "climate")
	assert.ErrorIs(t, err, errReported)
	assert.Equal(t, []string{"summary:alice:climate"}, h.ops.calls)
	assert.Equal(t, "Error generating summary: quota exceeded\n", h.errOut.String())
	assert.Empty(t, h.out.String())
}

func TestSummarizeCmd_JSON(t *testing.T) {
	h := newHarness(service.Result{OK: true, Text: service.NoMatchSummary})

	require.NoError(t, h.execute("", "summary", "-u", "alice", "--json", "climate"))
	var res service.Result
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &res))
	assert.Equal(t, service.Result{OK: true, Text: service.NoMatchSummary}, res)
}

func TestTitleCmd(t *testing.T) {
	h := newHarness(service.Result{OK: true, Text: "Climate Report"})

	require.NoError(t, h.execute("Global temperatures rose.", "title", "-"))
	assert.Equal(t, []string{"title:Global temperatures rose."}, h.ops.calls)
	assert.Equal(t, "Suggested Title: Climate Report\n", h.out.String())
}

func TestBuilderError(t *testing.T) {
	root := NewRootCmd(func(context.Context, BuildOptions) (*Runtime, error) {
		return nil, errors.New("configuration error: PINECONE_API_KEY is not set")
	})
	root.SetOut(new(bytes.Buffer))
	root.SetArgs([]string{"search", "-u", "alice", "q"})

	err := root.ExecuteContext(context.Background())
	assert.EqualError(t, err, "configuration error: PINECONE_API_KEY is not set")
}

func TestCommandsRegistered(t *testing.T) {
	root := NewRootCmd(nil)
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "tui", "store", "search", "summarize", "title"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
}
