package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/qrvault/internal/auth"
	"github.com/dmitrijs2005/qrvault/internal/biometric"
	"github.com/dmitrijs2005/qrvault/internal/clock"
	"github.com/dmitrijs2005/qrvault/internal/config"
	"github.com/dmitrijs2005/qrvault/internal/logging"
	"github.com/dmitrijs2005/qrvault/internal/repositories/metadata"
	"github.com/dmitrijs2005/qrvault/internal/session"
)

// App glues the metadata store, the biometric backend and the auth
// machine to an interactive terminal.
type App struct {
	cfg     *config.Config
	store   *metadata.Store
	repo    metadata.Repository
	machine *auth.Machine
	reader  *bufio.Reader
	out     io.Writer
}

// NewApp opens the configured metadata store, picks a biometric
// backend and wires the auth machine. The caller owns the returned
// app and must Close it.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	store, err := metadata.Open(ctx, cfg.StorageDriver, cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	clk := clock.Real()
	authenticator := biometric.Detect(ctx, store.Metadata, log, clk)
	sessions := session.NewManager(store.Metadata, cfg, log)

	machine, err := auth.NewMachine(cfg, store.Metadata, authenticator, sessions, clk, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &App{
		cfg:     cfg,
		store:   store,
		repo:    store.Metadata,
		machine: machine,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

// Machine exposes the gate for one-shot subcommands that bypass the
// REPL (status, unenroll).
func (a *App) Machine() *auth.Machine { return a.machine }

// Run initializes the gate and hands control to the REPL until the
// user exits or stdin closes.
func (a *App) Run(ctx context.Context) error {
	res := a.machine.Initialize(ctx)
	if !res.Success {
		return errors.New(res.Err.Message)
	}

	printlnFn("qrvault (type 'help' for commands)")
	if res.State == auth.StateEnrolling {
		printlnFn("No enrollment found. Run 'enroll' to set this device up.")
	}

	runREPL(ctx, a, a.promptStatus, bufio.NewScanner(os.Stdin))
	return nil
}

// Close tears down the machine and the store. Safe to call twice.
func (a *App) Close() {
	a.machine.Close()
	if a.store != nil {
		_ = a.store.Close()
	}
}

func (a *App) isUnlocked() bool {
	return a.machine.State() == auth.StateUnlocked
}

func (a *App) promptStatus() string {
	return string(a.machine.State())
}

// printOutcome renders a machine result: state on success, the error
// with its details otherwise.
func (a *App) printOutcome(res auth.Result) {
	if res.Success {
		fmt.Fprintf(a.out, "ok (%s)\n", res.State)
		return
	}
	a.printAuthError(res.Err)
}

func (a *App) printAuthError(authErr *auth.AuthError) {
	if authErr == nil {
		return
	}
	fmt.Fprintf(a.out, "error [%s]: %s\n", authErr.Code, authErr.Message)
	for _, d := range authErr.Details {
		fmt.Fprintf(a.out, "  - %s\n", d)
	}
}
