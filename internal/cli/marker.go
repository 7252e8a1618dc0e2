package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/kiwari-pos/terminal/internal/marker"
	"github.com/spf13/cobra"
)

func newMarkerCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marker",
		Short: "Inspect the pending retail order marker",
		Long: `The pending retail order marker names a retail order that was opened on
this terminal but whose completion has not been confirmed yet.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the pending retail order marker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			core, ctx, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Close()

			m, err := core.Markers.Get(ctx)
			if errors.Is(err, marker.ErrNoMarker) {
				if opts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"marker": nil})
				}
				fmt.Fprintln(cmd.OutOrStdout(), "No pending retail order")
				return nil
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read marker", err)
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"marker": m})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pending retail order %s (since %s)\n", m.OrderID, m.CreatedAt.Format(time.DateTime))
			return nil
		},
	})

	cmd.AddCommand(newMarkerClearCommand(opts))

	return cmd
}

func newMarkerClearCommand(opts *RootOptions) *cobra.Command {
	var orderID string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the pending retail order marker",
		Long: `Remove the pending retail order marker.

With --order the marker is only removed when it names that order.

Examples:
  posctl marker clear
  posctl marker clear --order 6f1c2a`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			core, ctx, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Close()

			cleared := true
			if orderID != "" {
				cleared, err = marker.ClearIf(ctx, core.Markers, orderID)
			} else {
				err = core.Markers.Clear(ctx)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to clear marker", err)
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]bool{"cleared": cleared})
			}
			if cleared {
				fmt.Fprintln(cmd.OutOrStdout(), "Marker cleared")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Marker does not name order %s; left in place\n", orderID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&orderID, "order", "", "only clear a marker naming this order")
	return cmd
}
