// Package cli implements posctl, the operator command line for the terminal
// core. It talks to the backend through the same service, reconstructor and
// recovery monitor as the daemon.
package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kiwari-pos/terminal/internal/app"
	"github.com/kiwari-pos/terminal/internal/auth"
	"github.com/kiwari-pos/terminal/internal/config"
	"github.com/kiwari-pos/terminal/internal/session"
	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The backend rejected the command or the order is missing
	ExitCommandError = 2 // Bad config, unreachable store, invalid arguments
)

// ExitError carries the process exit code for an error.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags and the core factory shared by subcommands.
type RootOptions struct {
	Format string
	Token  string

	// Build assembles the core. Tests replace it.
	Build func(ctx context.Context) (*app.Components, error)
}

// NewRootCommand creates the posctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Build: buildFromEnv}
	return newRootCommand(opts)
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posctl",
		Short: "Operate a POS terminal from the command line",
		Long: `posctl inspects and drives orders through the terminal core.

Configuration is read from the same environment as the terminal daemon
(BACKEND_URL, MARKER_DB_PATH, JWT_SECRET, ...).`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "operator token (defaults to TERMINAL_TOKEN)")

	cmd.AddCommand(newOrderCommand(opts))
	cmd.AddCommand(newMarkerCommand(opts))
	cmd.AddCommand(newRecoverCommand(opts))

	return cmd
}

func buildFromEnv(ctx context.Context) (*app.Components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, app.Options{RetryCommands: true})
}

// open builds the core and returns a context carrying the acting session.
// An explicit --token must validate; otherwise the terminal token is used.
func (o *RootOptions) open(ctx context.Context) (*app.Components, context.Context, error) {
	core, err := o.Build(ctx)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to initialise terminal core", err)
	}

	if o.Token == "" {
		return core, core.TerminalContext(ctx), nil
	}
	claims, err := auth.ValidateToken(core.Config.JWTSecret, o.Token)
	if err != nil {
		core.Close()
		return nil, nil, WrapExitError(ExitCommandError, "invalid operator token", err)
	}
	return core, session.NewContext(ctx, session.FromClaims(claims, o.Token)), nil
}
