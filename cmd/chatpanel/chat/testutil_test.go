// This file contains fakes and helpers for testing the chat package.
package chat

import (
	"context"
	"sync"
	"testing"

	"chatpanel/cmd/chatpanel/ui"
	"chatpanel/internal/chatapi"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// FAKE SENDER
// =============================================================================

// fakeSender answers every send with a canned reply. When the request's
// context is already cancelled it returns the context error instead.
type fakeSender struct {
	mu       sync.Mutex
	reply    chatapi.Reply
	err      error
	queries  []string
	ctxErrs  []error
	reconfig []chatapi.Options
	// reconfigErr, when set, is returned by Reconfigure.
	reconfigErr error
}

func newFakeSender(body string) *fakeSender {
	return &fakeSender{reply: chatapi.Decode([]byte(body))}
}

func (f *fakeSender) Send(ctx context.Context, query string) (chatapi.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.reply, f.err
}

func (f *fakeSender) Reconfigure(opts chatapi.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reconfigErr != nil {
		return f.reconfigErr
	}
	f.reconfig = append(f.reconfig, opts)
	return nil
}

func (f *fakeSender) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// =============================================================================
// MODEL HELPERS
// =============================================================================

func testOptions() chatapi.Options {
	return chatapi.Options{
		Endpoint:     "http://127.0.0.1:8000/chat",
		ModelName:    "llama3-70b-8192",
		SystemPrompt: "Your expert SQL agent",
	}
}

// NewTestModel returns a ready model sized 100x40.
func NewTestModel(sender chatapi.Sender) Model {
	m := New(Config{
		Sender:      sender,
		Options:     testOptions(),
		Styles:      ui.NewStyles(ui.LightTheme()),
		TableHeight: 5,
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func press(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(k)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func enter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }

// collectMsgs runs cmd, expanding batches, and returns every message produced.
func collectMsgs(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collectMsgs(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// replyFrom runs the send command and returns its reply message.
func replyFrom(t *testing.T, cmd tea.Cmd) replyMsg {
	t.Helper()
	for _, msg := range collectMsgs(cmd) {
		if r, ok := msg.(replyMsg); ok {
			return r
		}
	}
	t.Fatalf("command produced no reply")
	return replyMsg{}
}

// send types text, presses Enter and applies the reply.
func send(t *testing.T, m Model, text string) Model {
	t.Helper()
	m = typeText(t, m, text)
	m, cmd := press(t, m, enter())
	next, _ := m.Update(replyFrom(t, cmd))
	return next.(Model)
}
