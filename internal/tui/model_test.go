package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
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

func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

// run executes an operation command and feeds its result back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	_, ok := msg.(resultMsg)
	require.True(t, ok)
	m, _ = send(t, m, msg)
	return m
}

func newModel(ops *fakeOps) Model {
	m := New(ops, time.Second)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func TestStoreDocument(t *testing.T) {
	ops := &fakeOps{result: service.Result{OK: true, Text: "doc-1", DocID: "doc-1"}}
	m := newModel(ops)

	m = typeText(t, m, "alice")
	m, _ = send(t, m, key(tea.KeyTab))
	m = typeText(t, m, "line one")
	m, _ = send(t, m, key(tea.KeyEnter))
	m = typeText(t, m, "line two")
	m, cmd := send(t, m, key(tea.KeyCtrlS))
	assert.True(t, m.busy)

	m = run(t, m, cmd)
	assert.False(t, m.busy)
	assert.Equal(t, []string{"store:alice:line one\nline two"}, ops.calls)
	assert.Equal(t, "Document stored successfully! (ID: doc-1)", m.output)
	assert.Equal(t, outcomeSuccess, m.outcome)
	assert.Contains(t, m.View(), "Store a Document")
}

func TestStoreDocument_MissingInput(t *testing.T) {
	ops := &fakeOps{}
	m := newModel(ops)

	m = typeText(t, m, "alice")
	m, cmd := send(t, m, key(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Empty(t, ops.calls)
	assert.Equal(t, service.MsgStoreInputs, m.output)
	assert.Equal(t, outcomeError, m.outcome)
}

func TestSearch_PassesQueryUntrimmed(t *testing.T) {
	ops := &fakeOps{result: service.Result{OK: true, Text: "No matching document found"}}
	m := newModel(ops)
	m, _ = send(t, m, key(tea.KeyCtrlN))

	m = typeText(t, m, "alice")
	m, _ = send(t, m, key(tea.KeyTab))
	m = typeText(t, m, "   ")
	m, cmd := send(t, m, key(tea.KeyEnter))
	run(t, m, cmd)
	assert.Equal(t, []string{"search:alice:   "}, ops.calls)
}

func TestSwitchScreens(t *testing.T) {
	m := newModel(&fakeOps{})
	assert.Equal(t, screenStore, m.screen)

	m, _ = send(t, m, key(tea.KeyCtrlN))
	assert.Equal(t, screenSearch, m.screen)
	assert.Contains(t, m.View(), "Search Documents")

	m, _ = send(t, m, key(tea.KeyCtrlP))
	m, _ = send(t, m, key(tea.KeyCtrlP))
	assert.Equal(t, screenTitle, m.screen)
	assert.Equal(t, fieldTitleText, m.focused())
}

func TestSearch(t *testing.T) {
	ops := &fakeOps{result: service.Result{OK: true, Text: "The sky is blue. Grass is green."}}
	m := newModel(ops)
	m, _ = send(t, m, key(tea.KeyCtrlN))

	m = typeText(t, m, "alice")
	m, _ = send(t, m, key(tea.KeyTab))
	m = typeText(t, m, "what colour is the sky")
	m, cmd := send(t, m, key(tea.KeyEnter))
	m = run(t, m, cmd)

	assert.Equal(t, []string{"search:alice:what colour is the sky"}, ops.calls)
	assert.Equal(t, outcomeInfo, m.outcome)
	assert.Equal(t, "The sky is blue. Grass is green.", m.output)
}

func TestSummaryFailure(t *testing.T) {
	ops := &fakeOps{result: service.Result{Text: "Error generating summary: quota exceeded", Kind: "generation"}}
	m := newModel(ops)
	m, _ = send(t, m, key(tea.KeyCtrlN))
	m, _ = send(t, m, key(tea.KeyCtrlN))

	m = typeText(t, m, "alice")
	m, _ = send(t, m, key(tea.KeyTab))
	m = typeText(t, m, "climate")
	m, cmd := send(t, m, key(tea.KeyEnter))
	m = run(t, m, cmd)

	assert.Equal(t, []string{"summary:alice:climate"}, ops.calls)
	assert.Equal(t, outcomeError, m.outcome)
	assert.Equal(t, "Error generating summary: quota exceeded", m.output)
}

func TestExtractTitle(t *testing.T) {
	ops := &fakeOps{result: service.Result{OK: true, Text: "Climate Report"}}
	m := newModel(ops)
	m, _ = send(t, m, key(tea.KeyCtrlP))

	m = typeText(t, m, "Global temperatures rose.")
	m, cmd := send(t, m, key(tea.KeyCtrlS))
	m = run(t, m, cmd)

	assert.Equal(t, []string{"title:Global temperatures rose."}, ops.calls)
	assert.Equal(t, "Suggested Title: Climate Report", m.output)
}

func TestQuit(t *testing.T) {
	m := newModel(&fakeOps{})
	_, cmd := send(t, m, key(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"One.", " Two!", "three"}, splitSentences("One. Two! three"))
	assert.Equal(t, []string{"no punctuation"}, splitSentences("no punctuation"))
}

func TestHighlightBestSentence_KeepsAllText(t *testing.T) {
	out := highlightBestSentence("The sky is blue. Grass is green", "grass")
	assert.True(t, strings.Contains(out, "The sky is blue."))
	assert.True(t, strings.Contains(out, "Grass is green"))
}
