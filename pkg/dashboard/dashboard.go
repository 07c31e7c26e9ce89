// Package dashboard is the interactive terminal front-end: an editor with a
// language selector, the report view with overview and code tabs, a history
// sidebar, and the About and Docs pages. All state changes go through the
// session; the model only keeps widget state.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/greg-hellings/greencode/pkg/analysis"
	"github.com/greg-hellings/greencode/pkg/export"
	"github.com/greg-hellings/greencode/pkg/language"
	"github.com/greg-hellings/greencode/pkg/session"
)

const (
	defaultWidth  = 100
	defaultHeight = 30
	sidebarWidth  = 32
)

// Options configures the dashboard.
type Options struct {
	// Theme is the glamour style: auto, dark, light or notty.
	Theme string
	// Timeout bounds each analysis. Zero means no limit.
	Timeout time.Duration
	// ExportDir receives exported reports. Empty means the working directory.
	ExportDir string
	// OnChange runs after analyses, history loads and history clears, for
	// example to persist the session.
	OnChange func(*session.Session)
	// Now is the export clock. Defaults to time.Now.
	Now func() time.Time
}

// writeClipboard copies text to the system clipboard.
var writeClipboard = clipboard.WriteAll

type reportTab int

const (
	tabOverview reportTab = iota
	tabCode
)

type analysisDoneMsg struct{ err error }

type exportDoneMsg struct {
	path string
	err  error
}

// Model is the bubbletea model for the dashboard.
type Model struct {
	sess *session.Session
	opts Options

	editor   textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap
	styles   styles

	width, height  int
	tab            reportTab
	historyFocused bool
	cursor         int
	submitting     bool
	// retryable marks the last failure as worth resubmitting.
	retryable     bool
	status        string
	statusIsError bool
}

// New builds a dashboard over sess.
func New(sess *session.Session, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ta := textarea.New()
	ta.Placeholder = "Paste your code here..."
	ta.ShowLineNumbers = true
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.SetValue(sess.Code())
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		sess:     sess,
		opts:     opts,
		editor:   ta,
		viewport: viewport.New(defaultWidth, defaultHeight),
		spinner:  sp,
		help:     help.New(),
		keys:     defaultKeyMap(),
		styles:   defaultStyles(),
		width:    defaultWidth,
		height:   defaultHeight,
	}
	m.spinner.Style = m.styles.Spinner
	m.resize()
	m.refresh()
	return m
}

// Run starts the dashboard and blocks until the user quits or ctx ends.
func Run(ctx context.Context, sess *session.Session, opts Options) error {
	p := tea.NewProgram(New(sess, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.pending() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case analysisDoneMsg:
		m.submitting = false
		m.retryable = false
		switch {
		case errors.Is(msg.err, session.ErrSubmitInFlight):
		case msg.err != nil:
			m.retryable = analysis.Retryable(msg.err)
			m.setStatus("", false)
		default:
			m.tab = tabOverview
			m.historyFocused = false
			m.cursor = 0
			m.setStatus("Analysis complete", false)
			m.notify()
		}
		m.refresh()
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.setStatus("Export failed: "+msg.err.Error(), true)
		} else {
			m.setStatus("Report exported to "+msg.path, false)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.sess.View() == session.ViewEditing && !m.historyFocused {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.About):
		return m.navigate(session.ViewAbout)
	case key.Matches(msg, m.keys.Docs):
		return m.navigate(session.ViewDocs)
	case key.Matches(msg, m.keys.Editor):
		return m.navigate(session.ViewEditing)
	}

	if m.historyFocused {
		return m.handleHistoryKey(msg)
	}

	switch m.sess.View() {
	case session.ViewEditing:
		return m.handleEditorKey(msg)
	case session.ViewReport:
		return m.handleReportKey(msg)
	default:
		if key.Matches(msg, m.keys.Back) {
			return m.back()
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
}

func (m Model) handleEditorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Analyze):
		return m.analyze()
	case key.Matches(msg, m.keys.Language):
		next := nextLanguage(m.sess.Language())
		if err := m.sess.SetLanguage(next); err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.editor.SetValue(m.sess.Code())
		m.setStatus("Language: "+next.String(), false)
		return m, nil
	case key.Matches(msg, m.keys.History):
		return m.focusHistory(), nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	if m.editor.Value() != m.sess.Code() {
		m.sess.SetCode(m.editor.Value())
	}
	return m, cmd
}

func (m Model) handleReportKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Tab):
		if m.tab == tabOverview {
			m.tab = tabCode
		} else {
			m.tab = tabOverview
		}
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.Export):
		return m, m.exportCmd()
	case key.Matches(msg, m.keys.Copy):
		m.copyOptimized()
		return m, nil
	case key.Matches(msg, m.keys.History):
		return m.focusHistory(), nil
	case key.Matches(msg, m.keys.Edit), key.Matches(msg, m.keys.Back):
		return m.back()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := m.sess.History()
	switch {
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.History):
		m.historyFocused = false
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(entries)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Open):
		if m.cursor >= len(entries) {
			return m, nil
		}
		if err := m.sess.LoadEntry(entries[m.cursor]); err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.editor.SetValue(m.sess.Code())
		m.historyFocused = false
		m.tab = tabOverview
		m.setStatus("", false)
		m.notify()
		m.refresh()
	case key.Matches(msg, m.keys.Clear):
		m.sess.ClearHistory()
		m.cursor = 0
		m.historyFocused = false
		m.setStatus("History cleared", false)
		m.notify()
	}
	return m, nil
}

func (m Model) navigate(target session.View) (tea.Model, tea.Cmd) {
	if err := m.sess.Navigate(target); err != nil {
		m.setStatus(err.Error(), true)
		return m, nil
	}
	m.historyFocused = false
	m.setStatus("", false)
	m.syncEditor()
	m.refresh()
	return m, nil
}

func (m Model) back() (tea.Model, tea.Cmd) {
	if err := m.sess.Back(); err != nil {
		return m, nil
	}
	m.historyFocused = false
	m.setStatus("", false)
	m.syncEditor()
	m.refresh()
	return m, nil
}

func (m Model) focusHistory() Model {
	if len(m.sess.History()) == 0 {
		m.setStatus("No history yet", false)
		return m
	}
	m.historyFocused = true
	m.cursor = 0
	return m
}

func (m Model) analyze() (tea.Model, tea.Cmd) {
	if m.pending() {
		return m, nil
	}
	m.submitting = true
	m.setStatus("", false)
	return m, tea.Batch(m.spinner.Tick, m.analyzeCmd())
}

// analyzeCmd submits the session in the background. The session stays
// usable while the call is in flight.
func (m Model) analyzeCmd() tea.Cmd {
	sess, timeout := m.sess, m.opts.Timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		_, err := sess.Submit(ctx)
		return analysisDoneMsg{err: err}
	}
}

func (m Model) exportCmd() tea.Cmd {
	sess, dir, at := m.sess, m.opts.ExportDir, m.opts.Now()
	return func() tea.Msg {
		doc, err := sess.Export(at)
		if err != nil {
			return exportDoneMsg{err: err}
		}
		if dir == "" {
			dir = "."
		}
		path, err := export.WriteFile(dir, doc)
		return exportDoneMsg{path: path, err: err}
	}
}

func (m *Model) copyOptimized() {
	r := m.sess.ActiveReport()
	if r == nil {
		m.setStatus("No report to copy", true)
		return
	}
	if err := writeClipboard(r.OptimizedCode); err != nil {
		m.setStatus("Copy failed: "+err.Error(), true)
		return
	}
	m.setStatus("Copied optimized code", false)
}

func (m *Model) notify() {
	if m.opts.OnChange != nil {
		m.opts.OnChange(m.sess)
	}
}

func (m Model) pending() bool {
	return m.submitting || m.sess.Pending()
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status, m.statusIsError = s, isErr
}

// syncEditor reloads the editor after the session changed the code.
func (m *Model) syncEditor() {
	if code := m.sess.Code(); m.editor.Value() != code {
		m.editor.SetValue(code)
	}
}

func (m *Model) mainWidth() int {
	if m.width >= 90 {
		return m.width - sidebarWidth - 1
	}
	return m.width
}

func (m *Model) bodyHeight() int {
	// header, tabs line, status line, help line
	h := m.height - 5
	if h < 5 {
		h = 5
	}
	return h
}

func (m *Model) resize() {
	if m.width <= 0 {
		m.width = defaultWidth
	}
	if m.height <= 0 {
		m.height = defaultHeight
	}
	w, h := m.mainWidth(), m.bodyHeight()
	m.editor.SetWidth(w)
	m.editor.SetHeight(h - 2)
	m.viewport.Width = w
	m.viewport.Height = h
	m.help.Width = m.width
}

// refresh regenerates the viewport content for the current view.
func (m *Model) refresh() {
	width := m.mainWidth()
	switch m.sess.View() {
	case session.ViewAbout:
		m.viewport.SetContent(RenderMarkdown(About(), m.opts.Theme, width-2))
	case session.ViewDocs:
		m.viewport.SetContent(RenderMarkdown(Docs(), m.opts.Theme, width-2))
	case session.ViewReport:
		snap := m.sess.Snapshot()
		if snap.ActiveReport == nil {
			m.viewport.SetContent("")
			return
		}
		if m.tab == tabCode {
			m.viewport.SetContent(m.codeView(snap.ActiveSource, snap.ActiveReport.OptimizedCode, width))
		} else {
			gauge := m.styles.scoreBar(snap.ActiveReport.CarbonScore, width-4)
			m.viewport.SetContent("  " + gauge + "\n" + RenderMarkdown(reportMarkdown(snap.ActiveReport), m.opts.Theme, width-2))
		}
	default:
		return
	}
	m.viewport.GotoTop()
}

func (m Model) codeView(original, optimized string, width int) string {
	paneWidth := (width - 4) / 2
	if paneWidth < 20 {
		paneWidth = 20
	}
	pane := func(title, body string) string {
		return m.styles.Pane.Width(paneWidth).Render(m.styles.PaneTitle.Render(title) + "\n" + strings.TrimRight(body, "\n"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, pane("Original", original), " ", pane("Optimized", optimized))
}

// View implements tea.Model.
func (m Model) View() string {
	snap := m.sess.Snapshot()

	var body string
	switch snap.View {
	case session.ViewEditing:
		body = m.editorView(snap)
	case session.ViewReport:
		body = m.reportView()
	default:
		body = m.viewport.View()
	}

	if m.width >= 90 && (snap.View == session.ViewEditing || snap.View == session.ViewReport) {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, " ", m.sidebarView())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(snap.View),
		body,
		m.statusView(snap),
		m.help.ShortHelpView(m.keys.bindings(snap.View, m.historyFocused)),
	)
}

func (m Model) headerView(current session.View) string {
	items := []string{m.styles.Title.Render("GreenCode AI")}
	for _, v := range session.Views() {
		style := m.styles.NavItem
		if v == current {
			style = m.styles.NavActive
		}
		items = append(items, style.Render(v.Title()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, items...)
}

func (m Model) editorView(snap session.State) string {
	lang := m.styles.Muted.Render("Language: ") + m.styles.Selected.Render(snap.Language.String())
	return lipgloss.JoinVertical(lipgloss.Left, lang, m.editor.View())
}

func (m Model) reportView() string {
	overview, code := m.styles.TabItem, m.styles.TabItem
	if m.tab == tabOverview {
		overview = m.styles.TabActive
	} else {
		code = m.styles.TabActive
	}
	tabs := lipgloss.JoinHorizontal(lipgloss.Top, overview.Render("Overview"), code.Render("Code"))
	return lipgloss.JoinVertical(lipgloss.Left, tabs, m.viewport.View())
}

func (m Model) sidebarView() string {
	entries := m.sess.History()
	lines := []string{m.styles.PaneTitle.Render(fmt.Sprintf("History (%d)", len(entries)))}
	if len(entries) == 0 {
		lines = append(lines, m.styles.Muted.Render("No scans yet"))
	}
	for i, e := range entries {
		line := fmt.Sprintf("%-10s %3d  %s", e.Language, e.Report.CarbonScore, e.CreatedAt.Local().Format("15:04"))
		if m.historyFocused && i == m.cursor {
			line = m.styles.Selected.Render("> " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return m.styles.Sidebar.Width(sidebarWidth - 4).Height(m.bodyHeight() - 2).Render(strings.Join(lines, "\n"))
}

func (m Model) statusView(snap session.State) string {
	switch {
	case m.pending():
		return m.spinner.View() + " Analyzing " + snap.Language.String() + " code..."
	case snap.LastError != "" && m.retryable && snap.View == session.ViewEditing:
		return m.styles.Error.Render(snap.LastError + " (" + m.keys.Analyze.Help().Key + " to retry)")
	case snap.LastError != "":
		return m.styles.Error.Render(snap.LastError)
	case m.status != "" && m.statusIsError:
		return m.styles.Error.Render(m.status)
	case m.status != "":
		return m.styles.Status.Render(m.status)
	}
	return ""
}

func nextLanguage(current language.Language) language.Language {
	all := language.All()
	for i, l := range all {
		if l == current {
			return all[(i+1)%len(all)]
		}
	}
	return language.Default
}
