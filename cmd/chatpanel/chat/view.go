package chat

import (
	"fmt"
	"strings"

	"chatpanel/cmd/chatpanel/ui"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// LAYOUT
// =============================================================================

// resize recomputes every region for the current terminal size and table
// contents, then redraws the message list.
func (m *Model) resize() {
	visible := len(m.tableData) > 0
	m.layout = ui.ComputeLayout(m.width, m.height, len(m.tableData), m.tableHeight, visible)

	m.viewport.Width = m.layout.Width - 2
	m.viewport.Height = m.layout.ViewportHeight
	m.input.Width = max(m.layout.ContentWidth-3, 1)
	m.help.Width = m.layout.Width

	m.rebuildTable()
	m.ensureRenderer()
	m.refreshViewport()
}

func (m *Model) rebuildTable() {
	if len(m.tableData) == 0 {
		return
	}
	cursor := m.table.Cursor()
	m.table = ui.ResultsTable(m.tableData, m.layout.ContentWidth, m.layout.TableHeight, m.styles)
	if cursor > 0 && cursor < len(m.tableData) {
		m.table.SetCursor(cursor)
	}
	if m.focus == focusTable {
		m.table.Focus()
	}
}

// ensureRenderer builds a markdown renderer for the current bubble width.
// On failure bot messages fall back to plain text.
func (m *Model) ensureRenderer() {
	wrap := max(m.layout.BubbleWidth-2, 10)
	if m.renderer != nil && m.rendererWidth == wrap {
		return
	}
	style := "light"
	if m.styles.Theme.IsDark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		m.renderer = nil
		return
	}
	m.renderer = r
	m.rendererWidth = wrap
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

// =============================================================================
// VIEW RENDERING
// =============================================================================

// renderMessages draws the conversation: user messages right-aligned in the
// primary color, bot messages left-aligned on the card color.
func (m Model) renderMessages() string {
	width := max(m.viewport.Width, 1)
	var sb strings.Builder

	for _, msg := range m.messages {
		switch msg.Sender {
		case SenderUser:
			bubble := m.styles.UserBubble
			if lipgloss.Width(msg.Text)+2 > m.layout.BubbleWidth {
				bubble = bubble.Width(m.layout.BubbleWidth)
			}
			sb.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Right, m.styles.UserLabel.Render("You")))
			sb.WriteString("\n")
			sb.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Right, bubble.Render(msg.Text)))
			sb.WriteString("\n\n")

		default:
			sb.WriteString(m.styles.BotLabel.Render("Agent"))
			sb.WriteString("\n")
			sb.WriteString(m.styles.BotBubble.Render(m.renderMarkdown(msg.Text)))
			sb.WriteString("\n\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// renderMarkdown renders bot text through the cache.
func (m Model) renderMarkdown(content string) string {
	if m.mdCache == nil {
		return m.safeRenderMarkdown(content)
	}
	key := ui.ComputeKey(content, m.rendererWidth, m.styles.Theme.IsDark)
	return m.mdCache.GetOrCompute(key, func() string {
		return m.safeRenderMarkdown(content)
	})
}

// safeRenderMarkdown renders markdown with panic recovery
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			// If glamour panics, return plain text
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return strings.Trim(rendered, "\n")
		}
	}
	return content
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	sections := []string{
		m.renderHeader(),
		m.styles.Content.Render(m.viewport.View()),
	}
	if len(m.tableData) > 0 {
		sections = append(sections, m.renderTable())
	}
	sections = append(sections, m.renderInput(), m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render("ChatPanel")

	var state string
	switch {
	case m.pending != 0:
		state = m.spinner.View() + " " + m.styles.Muted.Render("Waiting for reply...")
	case m.status != "" && m.statusErr:
		state = m.styles.Error.Render(m.status)
	case m.status != "":
		state = m.styles.Info.Render(m.status)
	default:
		state = m.styles.Success.Render("Ready")
	}

	info := m.styles.Subtitle.Render(fmt.Sprintf(" %s @ %s ", m.opts.ModelName, m.opts.Endpoint))
	line := title + info + state
	return lipgloss.NewStyle().MaxWidth(m.layout.Width).Render(line)
}

func (m Model) renderTable() string {
	caption := fmt.Sprintf("%d rows", len(m.tableData))
	if len(m.tableData) == 1 {
		caption = "1 row"
	}
	caption = m.styles.Badge.Render(caption)
	if m.tableQuery != "" {
		caption += " " + m.styles.Caption.Render(strings.Join(strings.Fields(m.tableQuery), " "))
	}
	caption = lipgloss.NewStyle().MaxWidth(m.layout.Width).Render(caption)

	box := m.styles.TableBox
	if m.focus == focusTable {
		box = m.styles.TableBoxFocused
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		caption,
		box.Width(m.layout.Width-2).Render(m.table.View()),
	)
}

func (m Model) renderInput() string {
	box := m.styles.InputBox
	if m.focus == focusInput {
		box = m.styles.InputBoxFocused
	}
	return box.Width(m.layout.Width - 2).Render(m.input.View())
}

func (m Model) renderFooter() string {
	return m.styles.Footer.Render(m.help.View(m.keys))
}
