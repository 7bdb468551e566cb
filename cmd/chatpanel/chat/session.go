package chat

import (
	"fmt"

	"chatpanel/cmd/chatpanel/ui"
	"chatpanel/internal/chatapi"
	"chatpanel/internal/config"
	"chatpanel/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// ClientOptions maps the service section of a configuration onto client
// options.
func ClientOptions(cfg *config.Config) chatapi.Options {
	return chatapi.Options{
		Endpoint:     cfg.Service.Endpoint,
		ModelName:    cfg.Service.ModelName,
		SystemPrompt: cfg.Service.SystemPrompt,
		Timeout:      cfg.GetTimeout(),
	}
}

// waitForConfig blocks on the watcher channel and turns the next
// configuration into a message.
func waitForConfig(ch <-chan *config.Config) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		cfg, ok := <-ch
		if !ok || cfg == nil {
			return nil
		}
		return configReloadedMsg{cfg: cfg}
	}
}

// handleConfigReload swaps service settings for later sends. A request in
// flight keeps the settings it started with. The conversation is untouched.
func (m Model) handleConfigReload(msg configReloadedMsg) (tea.Model, tea.Cmd) {
	log := logging.Get(logging.CategoryConfig)
	opts := ClientOptions(msg.cfg)

	if r, ok := m.sender.(reconfigurer); ok {
		if err := r.Reconfigure(opts); err != nil {
			log.Warn("config reload rejected", zap.Error(err))
			m.status, m.statusErr = "Config reload rejected", true
			return m, waitForConfig(m.updates)
		}
	}

	m.opts = opts
	m.tableHeight = msg.cfg.GetTableHeight()
	if theme := ui.ThemeFor(msg.cfg.UI.Theme); theme != m.styles.Theme {
		m.styles = ui.NewStyles(theme)
		m.input.PromptStyle = m.styles.Prompt
		m.spinner.Style = m.styles.Spinner
		m.renderer = nil
		if m.mdCache != nil {
			m.mdCache.Clear()
		}
	}
	m.status, m.statusErr = "Config reloaded", false

	log.Info("config applied",
		zap.String("endpoint", opts.Endpoint),
		zap.String("model", opts.ModelName),
		zap.Duration("timeout", opts.Timeout))

	m.resize()
	return m, waitForConfig(m.updates)
}

// RunInteractiveChat starts the panel on the alternate screen and blocks
// until the user quits.
func RunInteractiveChat(cfg Config) error {
	logging.Get(logging.CategoryUI).Info("starting interactive panel",
		zap.String("endpoint", cfg.Options.Endpoint),
		zap.String("model", cfg.Options.ModelName))

	p := tea.NewProgram(New(cfg), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat panel: %w", err)
	}
	return nil
}
