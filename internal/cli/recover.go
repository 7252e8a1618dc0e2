package cli

import (
	"fmt"

	"github.com/kiwari-pos/terminal/internal/recovery"
	"github.com/spf13/cobra"
)

func newRecoverCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Resolve the pending retail order marker",
		Long: `Run the recovery check the daemon performs at startup.

If a pending retail order marker exists, the order is polled until it is
found. An active retail order is reported as resumable and the marker is
kept; any other outcome clears the marker. Interrupting the command leaves
the marker in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			core, ctx, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Close()

			res, err := core.NewMonitor(nil).Run(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "recovery failed", err)
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}

			out := cmd.OutOrStdout()
			switch res.State {
			case recovery.StateIdle:
				fmt.Fprintln(out, "No pending retail order")
			case recovery.StateResolvedActive:
				fmt.Fprintf(out, "Order %s is still active; resume checkout on the terminal\n", res.OrderID)
			case recovery.StateResolvedTerminal:
				status := "no longer active"
				if res.Order != nil {
					status = res.Order.Status
				}
				fmt.Fprintf(out, "Order %s is %s; marker cleared\n", res.OrderID, status)
			case recovery.StateTimedOut:
				fmt.Fprintf(out, "Order %s not found after %d attempts; marker cleared\n", res.OrderID, res.Attempts)
			default:
				fmt.Fprintf(out, "Recovery ended in %s\n", res.State)
			}
			return nil
		},
	}
}
