package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/mailbuddy/internal/config"
	"github.com/teemow/mailbuddy/internal/dashboard"
	"github.com/teemow/mailbuddy/internal/logging"
	"github.com/teemow/mailbuddy/internal/tui"
)

func newDashboardCmd() *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the categorized inbox",
		Long: `Show the inbox in the terminal. New messages are fetched every
poll interval and classified in the background.

Keys: 1-9 or tab switch views, enter opens a message, g drafts a reply,
ctrl+s sends it, r refreshes, esc goes back and q quits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// The dashboard owns the terminal, so logs go to a file.
			logger, closer, err := logging.NewFile(logFile, cfg.Debug)
			if err != nil {
				return err
			}
			defer closer.Close()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()

			notifier := &tui.Notifier{}
			ctrl, err := a.controller(ctx, dashboard.WithOnChange(notifier.Changed))
			if err != nil {
				return err
			}

			err = tui.Run(ctx, ctrl, notifier)
			if errors.Is(err, dashboard.ErrSignedOut) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Your session has expired. Run `mailbuddy login` to sign in again.")
			}
			return err
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", config.DefaultLogPath(), "File the dashboard writes its log to")
	return cmd
}
