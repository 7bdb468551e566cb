package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chatpanel/cmd/chatpanel/chat"
	"chatpanel/cmd/chatpanel/ui"
	"chatpanel/internal/chatapi"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// askCmd sends one query and prints the reply
var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Send one query and print the reply",
	Long: `Sends a single query to the chat service, exactly like pressing Enter in the
panel, and prints the result: a table when the service returns rows,
otherwise the bot message.

A failed exchange prints "Sorry, something went wrong." and still exits 0.
A blank query sends nothing and prints nothing. Only configuration problems
are errors.

Example:
  chatpanel ask "top 5 products by revenue"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	query := joinArgs(args)
	if strings.TrimSpace(query) == "" {
		logger.Debug("blank query, nothing sent")
		return nil
	}

	client, err := chatapi.NewClient(chat.ClientOptions(cfg))
	if err != nil {
		return err
	}

	reply, err := client.Send(ctx, query)
	if err != nil {
		logger.Warn("ask failed", zap.Error(err))
	}
	printOutcome(cmd.OutOrStdout(), chatapi.Resolve(reply, err), ui.NewStyles(ui.ThemeFor(cfg.UI.Theme)))
	return nil
}

// printOutcome writes a table for rows, otherwise the bot text.
func printOutcome(w io.Writer, out chatapi.Outcome, styles ui.Styles) {
	if !out.IsTable() {
		fmt.Fprintln(w, out.BotText)
		return
	}
	if out.Query != "" {
		fmt.Fprintln(w, styles.Caption.Render(out.Query))
	}
	fmt.Fprint(w, ui.SimpleTableFromRows("", out.Rows).View(styles))
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
