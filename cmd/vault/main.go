// Command vault is the qrvault entry point: a cobra command tree over
// the interactive shell, plus one-shot status and unenroll commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/qrvault/internal/cli"
	"github.com/dmitrijs2005/qrvault/internal/config"
	"github.com/dmitrijs2005/qrvault/internal/logging"
)

var version = "dev" // set by the linker

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// The error is already printed by cobra on failure.
		os.Exit(1)
	}
}

func newLogger() logging.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return logging.NewSlogLogger(slog.New(handler))
}

func newApp(ctx context.Context) (*cli.App, error) {
	return cli.NewApp(ctx, config.LoadConfig(), newLogger())
}

// newRootCmd creates and configures a new root cobra command. The
// configuration layer owns flag parsing (it filters os.Args for the
// flags it knows), so every command here disables cobra's own parsing.
// Knob flags go after the subcommand, or anywhere in -flag=value form.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vault",
		Short: "qrvault is a locally gated data vault",
		Long: `qrvault keeps a small encrypted store behind two local factors:
the device biometric and a time-limited QR credential. Running without
a subcommand starts the interactive shell.

Configuration flags (-ttl, -warn, -attempts, -inactivity, -driver,
-path, -biometric-only, -allow-unencrypted, -lock-on-background) and
the -c/-config JSON override are handled by the configuration layer.`,
		Args:               cobra.ArbitraryArgs,
		SilenceUsage:       true,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wantsHelp(args) {
				return cmd.Help()
			}
			if wantsVersion(args) {
				fmt.Fprintln(cmd.OutOrStdout(), "qrvault", version)
				return nil
			}

			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Run(cmd.Context())
		},
	}

	root.AddCommand(newStatusCmd(), newUnenrollCmd())
	return root
}

// newStatusCmd prints the gate state without entering the shell.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "status",
		Short:              "Print the gate state and exit",
		SilenceUsage:       true,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wantsHelp(args) {
				return cmd.Help()
			}

			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if res := app.Machine().Initialize(ctx); !res.Success {
				return errors.New(res.Err.Message)
			}
			return app.Status(ctx)
		},
	}
}

// newUnenrollCmd removes the enrollment after the usual confirmation
// prompt.
func newUnenrollCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "unenroll",
		Short:              "Remove the enrollment; stored data becomes permanently unreadable",
		SilenceUsage:       true,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wantsHelp(args) {
				return cmd.Help()
			}

			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if res := app.Machine().Initialize(ctx); !res.Success {
				return errors.New(res.Err.Message)
			}
			return app.Unenroll(ctx)
		},
	}
}

func wantsHelp(args []string) bool {
	for _, a := range args {
		if a == "-h" || a == "--help" || a == "help" {
			return true
		}
	}
	return false
}

func wantsVersion(args []string) bool {
	for _, a := range args {
		if a == "--version" || a == "version" {
			return true
		}
	}
	return false
}
