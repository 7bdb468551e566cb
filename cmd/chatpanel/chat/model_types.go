package chat

import (
	"context"

	"chatpanel/cmd/chatpanel/ui"
	"chatpanel/internal/chatapi"
	"chatpanel/internal/config"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds what the panel needs to start.
type Config struct {
	// Sender performs the POST for each send action.
	Sender chatapi.Sender
	// Options is shown in the header and swapped on config reload.
	Options chatapi.Options
	Styles  ui.Styles
	// TableHeight caps the visible result rows.
	TableHeight int
	// ConfigUpdates, when set, delivers reloaded configuration.
	ConfigUpdates <-chan *config.Config
}

// reconfigurer is implemented by senders that accept new settings at runtime.
type reconfigurer interface {
	Reconfigure(chatapi.Options) error
}

// =============================================================================
// MESSAGES
// =============================================================================

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage is one entry in the conversation list.
type ChatMessage struct {
	Text   string
	Sender Sender
}

// replyMsg carries a finished request back into the update loop.
type replyMsg struct {
	seq   uint64
	reply chatapi.Reply
	err   error
}

// configReloadedMsg carries a configuration published by the watcher.
type configReloadedMsg struct {
	cfg *config.Config
}

// focusArea is the widget receiving navigation keys.
type focusArea int

const (
	focusInput focusArea = iota
	focusTable
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the chat panel state. It is a value type; Update returns the next
// state.
type Model struct {
	sender      chatapi.Sender
	opts        chatapi.Options
	styles      ui.Styles
	tableHeight int
	updates     <-chan *config.Config

	// Widgets
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	table    table.Model
	help     help.Model
	keys     keyMap
	renderer *glamour.TermRenderer
	// renderer word-wrap width; a change forces a new renderer
	rendererWidth int
	mdCache       *ui.RenderCache

	// Conversation state
	messages   []ChatMessage
	tableData  []chatapi.ResultRow
	tableQuery string

	// seq numbers every send; pending is the seq awaited (0 when idle).
	seq     uint64
	pending uint64
	cancel  context.CancelFunc

	// Input history, oldest first. historyIdx == len(history) means the
	// draft is not from history.
	history    []string
	historyIdx int
	savedDraft string

	focus     focusArea
	layout    ui.PanelLayout
	status    string
	statusErr bool
	width     int
	height    int
	ready     bool
}
