// Package chat provides the interactive chat panel: a scrolling message list,
// an optional results table and a single-line input whose send action posts
// the draft to the SQL-agent service.
package chat

import (
	"context"
	"strings"

	"chatpanel/cmd/chatpanel/ui"
	"chatpanel/internal/chatapi"
	"chatpanel/internal/logging"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

const markdownCacheSize = 256

// New creates the panel. The model is not ready to draw until it receives
// its first WindowSizeMsg.
func New(cfg Config) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about your data..."
	ti.Prompt = "> "
	ti.PromptStyle = cfg.Styles.Prompt
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cfg.Styles.Spinner

	tableHeight := cfg.TableHeight
	if tableHeight <= 0 {
		tableHeight = 10
	}

	return Model{
		sender:      cfg.Sender,
		opts:        cfg.Options,
		styles:      cfg.Styles,
		tableHeight: tableHeight,
		updates:     cfg.ConfigUpdates,
		input:       ti,
		viewport:    viewport.New(0, 0),
		spinner:     sp,
		table:       table.New(),
		help:        help.New(),
		keys:        defaultKeyMap(),
		mdCache:     ui.NewRenderCache(markdownCacheSize),
	}
}

// Init starts the cursor blink and, when configured, the reload listener.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.updates != nil {
		cmds = append(cmds, waitForConfig(m.updates))
	}
	return tea.Batch(cmds...)
}

// Messages returns a copy of the conversation.
func (m Model) Messages() []ChatMessage {
	return append([]ChatMessage(nil), m.messages...)
}

// TableData returns the rows currently shown in the results table.
func (m Model) TableData() []chatapi.ResultRow {
	return m.tableData
}

// Draft returns the text in the input box.
func (m Model) Draft() string {
	return m.input.Value()
}

// Pending reports whether a reply is awaited.
func (m Model) Pending() bool {
	return m.pending != 0
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		if !m.ready {
			m.ready = true
		}
		return m, nil

	case spinner.TickMsg:
		if m.pending == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case replyMsg:
		return m.handleReply(msg)

	case configReloadedMsg:
		return m.handleConfigReload(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.shutdown()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		return m.handleSubmit()

	case key.Matches(msg, m.keys.FocusTable):
		m.toggleFocus()
		return m, nil

	case key.Matches(msg, m.keys.ClearTable):
		m.setTable(nil, "")
		m.resize()
		return m, nil

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.focus == focusTable {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.HistoryPrev):
		m.historyBack()
		return m, nil
	case key.Matches(msg, m.keys.HistoryNext):
		m.historyForward()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSubmit is the send action. A blank draft changes nothing. Otherwise
// the draft is appended as a user message, the input and table are cleared
// and one request is issued; any request still in flight is cancelled.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	draft := m.input.Value()
	if strings.TrimSpace(draft) == "" {
		return m, nil
	}

	m.messages = append(m.messages, ChatMessage{Text: draft, Sender: SenderUser})
	m.input.Reset()
	m.pushHistory(draft)
	m.setTable(nil, "")

	if m.cancel != nil {
		logging.Get(logging.CategorySession).Debug("superseding in-flight request", zap.Uint64("seq", m.pending))
		m.cancel()
	}
	m.seq++
	m.pending = m.seq
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	logging.Get(logging.CategorySession).Info("send",
		zap.Uint64("seq", m.seq),
		zap.Int("query_len", len(draft)))

	m.status, m.statusErr = "", false
	m.resize()

	return m, tea.Batch(m.spinner.Tick, sendCmd(ctx, m.sender, m.seq, draft))
}

// sendCmd performs the request off the update loop.
func sendCmd(ctx context.Context, sender chatapi.Sender, seq uint64, query string) tea.Cmd {
	return func() tea.Msg {
		if sender == nil {
			return replyMsg{seq: seq, err: chatapi.ErrRequestFailed}
		}
		reply, err := sender.Send(ctx, query)
		return replyMsg{seq: seq, reply: reply, err: err}
	}
}

// handleReply applies the reply of the latest send. Replies to superseded
// sends are dropped.
func (m Model) handleReply(msg replyMsg) (tea.Model, tea.Cmd) {
	log := logging.Get(logging.CategorySession)
	if msg.seq != m.seq {
		log.Debug("discarding stale reply", zap.Uint64("seq", msg.seq), zap.Uint64("latest", m.seq))
		return m, nil
	}

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.pending = 0

	out := chatapi.Resolve(msg.reply, msg.err)
	if out.IsTable() {
		m.setTable(out.Rows, out.Query)
		log.Info("reply", zap.Uint64("seq", msg.seq), zap.Int("rows", len(out.Rows)))
	} else {
		m.messages = append(m.messages, ChatMessage{Text: out.BotText, Sender: SenderBot})
		fields := []zap.Field{zap.Uint64("seq", msg.seq)}
		if msg.err != nil {
			fields = append(fields, zap.Error(msg.err))
		}
		log.Info("reply text", fields...)
	}

	m.resize()
	return m, nil
}

// setTable replaces the result rows wholesale. The widget is rebuilt for
// the new rows on the next resize.
func (m *Model) setTable(rows []chatapi.ResultRow, query string) {
	m.tableData = rows
	m.tableQuery = query
	m.table = table.New()
	visible := len(rows) > 0
	m.keys.FocusTable.SetEnabled(visible)
	m.keys.ClearTable.SetEnabled(visible)
	if !visible && m.focus == focusTable {
		m.focusOn(focusInput)
	}
}

func (m *Model) toggleFocus() {
	if m.focus == focusInput && len(m.tableData) > 0 {
		m.focusOn(focusTable)
		return
	}
	m.focusOn(focusInput)
}

func (m *Model) focusOn(f focusArea) {
	m.focus = f
	if f == focusTable {
		m.input.Blur()
		m.table.Focus()
		m.keys.FocusTable.SetHelp("tab", "focus input")
		return
	}
	m.table.Blur()
	m.input.Focus()
	m.keys.FocusTable.SetHelp("tab", "focus table")
}

func (m *Model) pushHistory(entry string) {
	if n := len(m.history); n == 0 || m.history[n-1] != entry {
		m.history = append(m.history, entry)
	}
	m.historyIdx = len(m.history)
	m.savedDraft = ""
}

func (m *Model) historyBack() {
	if m.historyIdx == 0 {
		return
	}
	if m.historyIdx == len(m.history) {
		m.savedDraft = m.input.Value()
	}
	m.historyIdx--
	m.input.SetValue(m.history[m.historyIdx])
	m.input.CursorEnd()
}

func (m *Model) historyForward() {
	if m.historyIdx >= len(m.history) {
		return
	}
	m.historyIdx++
	if m.historyIdx == len(m.history) {
		m.input.SetValue(m.savedDraft)
	} else {
		m.input.SetValue(m.history[m.historyIdx])
	}
	m.input.CursorEnd()
}

// shutdown cancels the in-flight request, if any.
func (m *Model) shutdown() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	fields := []zap.Field{
		zap.Int("messages", len(m.messages)),
		zap.Uint64("sends", m.seq),
	}
	if m.mdCache != nil {
		hits, misses := m.mdCache.Stats()
		fields = append(fields,
			zap.Int("markdown_cached", m.mdCache.Len()),
			zap.Int("markdown_hits", hits),
			zap.Int("markdown_misses", misses))
	}
	logging.Get(logging.CategorySession).Info("panel closed", fields...)
}
