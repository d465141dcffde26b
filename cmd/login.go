package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/mailbuddy/internal/auth"
	"github.com/teemow/mailbuddy/internal/logging"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google",
		Long: `Open the Google consent page and save the resulting session.

A temporary listener on 127.0.0.1 receives the redirect. If the browser runs
on another machine, paste the code or the full redirect URL when asked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			defer func() { _ = a.Close(context.Background()) }()

			loopback := &auth.Loopback{
				Gateway: a.gateway,
				Out:     cmd.OutOrStdout(),
				In:      cmd.InOrStdin(),
			}
			session, err := loopback.SignIn(ctx)
			if err != nil {
				return fmt.Errorf("sign-in failed: %w", err)
			}

			if tok := session.Token(ctx); tok.Email != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", tok.Email)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Signed in.")
			}
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := logging.New(cmd.ErrOrStderr(), cfg.Debug)

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()

			if err := a.gateway.SignOut(ctx); err != nil {
				return fmt.Errorf("failed to sign out: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}
