package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"chatpanel/cmd/chatpanel/chat"
	"chatpanel/cmd/chatpanel/ui"
	"chatpanel/internal/chatapi"
	"chatpanel/internal/config"
	"chatpanel/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string
	endpoint   string
	modelName  string
	watch      bool

	// Resolved at startup
	cfg          *config.Config
	resolvedPath string
	logger       = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "chatpanel",
	Short: "chatpanel - terminal chat front end for a SQL agent service",
	Long: `chatpanel sends natural-language questions to a SQL agent service and shows
the answers: query results as a table, everything else as a chat message.

Run without arguments to start the interactive panel.

Configuration is read from .chatpanel/config.yaml (or --config), then
overridden by CHATPANEL_* environment variables (a .env file is loaded
first), then by flags.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
		logging.CloseAll()
	},
	RunE: runInteractive,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging to the logs directory")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: .chatpanel/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "Chat service URL (or set CHATPANEL_ENDPOINT)")
	rootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "", "Model name sent with every request (or set CHATPANEL_MODEL)")
	rootCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload the config file when it changes")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup resolves configuration from file, environment and flags, then
// initializes logging.
func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}

	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	applyFlags(c)

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logDir := c.Logging.Dir
	if logDir == "" {
		logDir = filepath.Join(filepath.Dir(path), "logs")
	}
	if err := logging.Initialize(logDir, c.Logging.Options()); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger = logging.Get(logging.CategoryBoot)
	logger.Info("configuration resolved",
		zap.String("path", path),
		zap.String("endpoint", c.Service.Endpoint),
		zap.String("model", c.Service.ModelName),
		zap.Duration("timeout", c.GetTimeout()))

	styles := ui.NewStyles(ui.ThemeFor(c.UI.Theme))
	for _, w := range c.Warnings() {
		logger.Warn("config warning", zap.String("warning", w))
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", styles.Warning.Render("warning:"), w)
	}

	cfg = c
	resolvedPath = path
	return nil
}

// applyFlags layers command-line overrides on top of file and environment.
func applyFlags(c *config.Config) {
	if endpoint != "" {
		c.Service.Endpoint = endpoint
	}
	if modelName != "" {
		c.Service.ModelName = modelName
	}
	if verbose {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// newConfigWatcher watches the config file and re-applies command-line
// overrides to every reload, so flags keep winning over the file.
func newConfigWatcher(path string) (*config.Watcher, error) {
	return config.NewWatcher(path, config.WithTransform(applyFlags))
}

// runInteractive launches the chat panel.
func runInteractive(cmd *cobra.Command, args []string) error {
	opts := chat.ClientOptions(cfg)
	client, err := chatapi.NewClient(opts)
	if err != nil {
		return err
	}

	var updates <-chan *config.Config
	if watch {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		w, err := newConfigWatcher(resolvedPath)
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to watch %s: %w", resolvedPath, err)
		}
		defer w.Stop()
		updates = w.Updates()
	}

	return chat.RunInteractiveChat(chat.Config{
		Sender:        client,
		Options:       opts,
		Styles:        ui.NewStyles(ui.ThemeFor(cfg.UI.Theme)),
		TableHeight:   cfg.GetTableHeight(),
		ConfigUpdates: updates,
	})
}
