package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"neurodoc/internal/service"
)

type screen int

const (
	screenStore screen = iota
	screenSearch
	screenSummary
	screenTitle
	screenCount
)

var screenTabs = [screenCount]string{"Store Document", "Search", "Summary", "Extract Title"}

var screenHeaders = [screenCount]string{"Store a Document", "Search Documents", "Generate Summary", "Extract Title"}

type field int

const (
	fieldUser field = iota
	fieldDocument
	fieldQuery
	fieldKeyword
	fieldTitleText
)

var screenFields = [screenCount][]field{
	screenStore:   {fieldUser, fieldDocument},
	screenSearch:  {fieldUser, fieldQuery},
	screenSummary: {fieldUser, fieldKeyword},
	screenTitle:   {fieldTitleText},
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeSuccess
	outcomeInfo
	outcomeError
)

// resultMsg carries the result of an operation started from a screen.
type resultMsg struct {
	screen screen
	query  string
	res    service.Result
}

// Model is the Bubble Tea model for the terminal front end.
type Model struct {
	ops     service.Operations
	timeout time.Duration

	screen screen
	focus  int

	user     textinput.Model
	query    textinput.Model
	keyword  textinput.Model
	document textarea.Model
	text     textarea.Model
	viewport viewport.Model

	output  string
	outcome outcome
	busy    bool
	ready   bool
}

// New creates a new TUI model instance. A zero timeout leaves operations unbounded.
func New(ops service.Operations, timeout time.Duration) Model {
	m := Model{
		ops:      ops,
		timeout:  timeout,
		user:     newInput("Enter your User ID"),
		query:    newInput("Enter your query"),
		keyword:  newInput("Enter a keyword/topic"),
		document: newArea("Paste your document here"),
		text:     newArea("Paste text here"),
		viewport: viewport.New(80, 6),
	}
	m.applyFocus()
	return m
}

func newInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = placeholder
	ti.CharLimit = 0
	return ti
}

func newArea(placeholder string) textarea.Model {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(6)
	return ta
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		w := max(20, msg.Width-4)
		m.user.Width = w
		m.query.Width = w
		m.keyword.Width = w
		m.document.SetWidth(w)
		m.text.SetWidth(w)
		_, rh := resultBoxStyle.GetFrameSize()
		m.viewport.Width = w
		m.viewport.Height = max(3, msg.Height-reservedLines-m.document.Height()-rh)
		m.viewport.SetContent(m.renderOutput())
		return m, nil
	case resultMsg:
		m.busy = false
		m.show(msg)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+n":
			m.switchScreen((m.screen + 1) % screenCount)
			return m, nil
		case "ctrl+p":
			m.switchScreen((m.screen + screenCount - 1) % screenCount)
			return m, nil
		case "tab":
			m.focus = (m.focus + 1) % len(screenFields[m.screen])
			m.applyFocus()
			return m, nil
		case "shift+tab":
			n := len(screenFields[m.screen])
			m.focus = (m.focus + n - 1) % n
			m.applyFocus()
			return m, nil
		case "ctrl+s":
			return m.submit()
		case "enter":
			if f := m.focused(); f != fieldDocument && f != fieldTitleText {
				return m.submit()
			}
		}
	}
	return m.updateFocused(msg)
}

func (m *Model) switchScreen(s screen) {
	m.screen = s
	m.focus = 0
	m.output = ""
	m.outcome = outcomeNone
	m.applyFocus()
	m.viewport.SetContent(m.renderOutput())
}

func (m Model) focused() field { return screenFields[m.screen][m.focus] }

func (m *Model) applyFocus() {
	m.user.Blur()
	m.query.Blur()
	m.keyword.Blur()
	m.document.Blur()
	m.text.Blur()
	switch m.focused() {
	case fieldUser:
		m.user.Focus()
	case fieldDocument:
		m.document.Focus()
	case fieldQuery:
		m.query.Focus()
	case fieldKeyword:
		m.keyword.Focus()
	case fieldTitleText:
		m.text.Focus()
	}
}

func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focused() {
	case fieldUser:
		m.user, cmd = m.user.Update(msg)
	case fieldDocument:
		m.document, cmd = m.document.Update(msg)
	case fieldQuery:
		m.query, cmd = m.query.Update(msg)
	case fieldKeyword:
		m.keyword, cmd = m.keyword.Update(msg)
	case fieldTitleText:
		m.text, cmd = m.text.Update(msg)
	}
	return m, cmd
}

// submit validates the current screen and starts its operation.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	user := m.user.Value()
	ops := m.ops
	var (
		err   error
		query string
		run   func(ctx context.Context) service.Result
	)
	switch m.screen {
	case screenStore:
		doc := m.document.Value()
		err = service.RequireInputs(service.MsgStoreInputs, user, doc)
		run = func(ctx context.Context) service.Result { return ops.Store(ctx, user, doc) }
	case screenSearch:
		query = m.query.Value()
		err = service.RequireInputs(service.MsgSearchInputs, user, query)
		run = func(ctx context.Context) service.Result { return ops.Search(ctx, user, query) }
	case screenSummary:
		kw := m.keyword.Value()
		err = service.RequireInputs(service.MsgSummaryInputs, user, kw)
		run = func(ctx context.Context) service.Result { return ops.Summarize(ctx, user, kw) }
	case screenTitle:
		text := m.text.Value()
		err = service.RequireInputs(service.MsgTitleInputs, text)
		run = func(ctx context.Context) service.Result { return ops.ExtractTitle(ctx, text) }
	}
	if err != nil {
		m.output = err.Error()
		m.outcome = outcomeError
		m.viewport.SetContent(m.renderOutput())
		return m, nil
	}

	m.busy = true
	m.output = "Working..."
	m.outcome = outcomeNone
	m.viewport.SetContent(m.renderOutput())

	s, timeout := m.screen, m.timeout
	return m, func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return resultMsg{screen: s, query: query, res: run(ctx)}
	}
}

func (m *Model) show(msg resultMsg) {
	switch {
	case !msg.res.OK:
		m.output = msg.res.Text
		m.outcome = outcomeError
	case msg.screen == screenStore:
		m.output = fmt.Sprintf("Document stored successfully! (ID: %s)", msg.res.DocID)
		m.outcome = outcomeSuccess
	case msg.screen == screenSearch:
		m.output = msg.res.Text
		m.outcome = outcomeInfo
		m.viewport.SetContent(highlightBestSentence(msg.res.Text, msg.query))
		return
	case msg.screen == screenSummary:
		m.output = msg.res.Text
		m.outcome = outcomeSuccess
	case msg.screen == screenTitle:
		m.output = "Suggested Title: " + msg.res.Text
		m.outcome = outcomeSuccess
	}
	m.viewport.SetContent(m.renderOutput())
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("NeuroDoc AI"))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")
	b.WriteString(headerStyle.Render(screenHeaders[m.screen]))
	b.WriteString("\n")
	for _, f := range screenFields[m.screen] {
		switch f {
		case fieldUser:
			b.WriteString(labelStyle.Render("User ID:") + "\n" + m.user.View())
		case fieldDocument:
			b.WriteString(labelStyle.Render("Document:") + "\n" + m.document.View())
		case fieldQuery:
			b.WriteString(labelStyle.Render("Query:") + "\n" + m.query.View())
		case fieldKeyword:
			b.WriteString(labelStyle.Render("Keyword/topic:") + "\n" + m.keyword.View())
		case fieldTitleText:
			b.WriteString(labelStyle.Render("Text:") + "\n" + m.text.View())
		}
		b.WriteString("\n")
	}
	b.WriteString(resultBoxStyle.Render(m.viewport.View()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("ctrl+n/ctrl+p screen • tab field • enter/ctrl+s submit • esc quit"))
	return b.String()
}

func (m Model) renderTabs() string {
	tabs := make([]string, len(screenTabs))
	for i, name := range screenTabs {
		if screen(i) == m.screen {
			tabs[i] = activeTabStyle.Render(name)
		} else {
			tabs[i] = tabStyle.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderOutput() string {
	switch m.outcome {
	case outcomeSuccess:
		return successStyle.Render(m.output)
	case outcomeInfo:
		return infoStyle.Render(m.output)
	case outcomeError:
		return errorStyle.Render(m.output)
	}
	return m.output
}

// header, tabs, section header, labels, help and spacing
const reservedLines = 14

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	headerStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("8"))
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("12")).Underline(true)
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	infoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence emphasizes the sentence of text sharing the most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := splitSentences(text)
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return infoStyle.Render(text)
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = infoStyle.Render(sent)
		}
	}
	return strings.Join(sentences, " ")
}

// splitSentences splits text after sentence punctuation, keeping any unterminated tail.
func splitSentences(text string) []string {
	var out []string
	end := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		out = append(out, text[loc[0]:loc[1]])
		end = loc[1]
	}
	if tail := strings.TrimSpace(text[end:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
