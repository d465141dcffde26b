package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/teemow/mailbuddy/internal/api"
	"github.com/teemow/mailbuddy/internal/dashboard"
	"github.com/teemow/mailbuddy/internal/logging"
)

const summaryWidth = 60

func newInboxCmd() *cobra.Command {
	var (
		tabName    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Fetch, classify and print one view of the inbox",
		Long: `Fetch the newest messages once, wait until every message has been
classified and print the selected view.

Views: inbox, spam, verified, job_update, job_ads, work, promotions, social, updates.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tab, err := dashboard.ParseTab(tabName)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := logging.New(cmd.ErrOrStderr(), cfg.Debug)

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(cmd.Context()) }()

			ctrl, err := a.controller(ctx)
			if err != nil {
				return err
			}
			if err := ctrl.Refresh(ctx); err != nil {
				return err
			}
			if err := ctrl.Drain(ctx); err != nil {
				return err
			}

			msgs := ctrl.View(tab)
			if jsonOutput {
				return writeMessagesJSON(cmd.OutOrStdout(), msgs)
			}
			return writeMessagesTable(cmd.OutOrStdout(), tab, msgs)
		},
	}

	cmd.Flags().StringVar(&tabName, "tab", string(dashboard.TabInbox), "View to print")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print messages as JSON")
	return cmd
}

func writeMessagesJSON(w io.Writer, msgs []api.Message) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(msgs)
}

func writeMessagesTable(w io.Writer, tab dashboard.Tab, msgs []api.Message) error {
	if len(msgs) == 0 {
		_, err := fmt.Fprintf(w, "No messages in %s.\n", tab.Label())
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("CATEGORY", "FROM", "SUBJECT", "SUMMARY")
	for _, m := range msgs {
		category := m.Category
		if m.IsFake {
			category += " (fraud)"
		}
		t.Row(category, m.Sender, m.Subject, shorten(m.Summary, summaryWidth))
	}

	_, err := fmt.Fprintf(w, "%s (%d)\n%s\n", tab.Label(), len(msgs), t.Render())
	return err
}

// shorten truncates s to n runes, marking the cut with an ellipsis.
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
