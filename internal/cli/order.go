package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/kiwari-pos/terminal/internal/command"
	"github.com/kiwari-pos/terminal/internal/money"
	"github.com/kiwari-pos/terminal/internal/snapshot"
	"github.com/spf13/cobra"
)

// VoidOptions holds flags for order void.
type VoidOptions struct {
	*RootOptions
	Type       string
	Reason     string
	LossAmount string
	Note       string
}

func newOrderCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Inspect and void orders",
	}
	cmd.AddCommand(newOrderShowCommand(rootOpts))
	cmd.AddCommand(newOrderVoidCommand(rootOpts))
	return cmd
}

func newOrderShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <order-id>",
		Short: "Show the reconstructed snapshot of an order",
		Long: `Show the current view of an order.

The archive is consulted first; if the order is not archived yet the live
event tail is used instead. The "source" field says which one answered.

Examples:
  posctl order show 6f1c2a
  posctl order show 6f1c2a --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, ctx, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Close()

			snap, err := core.Snapshots.Fetch(ctx, args[0])
			if err != nil {
				if errors.Is(err, snapshot.ErrNotFound) {
					return WrapExitError(ExitFailure, "order not found", err)
				}
				return WrapExitError(ExitFailure, "failed to fetch order", err)
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), snap)
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func newOrderVoidCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VoidOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "void <order-id>",
		Short: "Void an active order",
		Long: `Void an active order on the backend.

Examples:
  posctl order void 6f1c2a --reason "customer left"
  posctl order void 6f1c2a --type LOSS_SETTLED --reason breakage --loss-amount 12.50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVoid(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", command.VoidTypeCancelled, "void type (CANCELLED|LOSS_SETTLED)")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "reason recorded with the void (required)")
	_ = cmd.MarkFlagRequired("reason")
	cmd.Flags().StringVar(&opts.LossAmount, "loss-amount", "", "amount written off for LOSS_SETTLED")
	cmd.Flags().StringVar(&opts.Note, "note", "", "free-text note")

	return cmd
}

func runVoid(opts *VoidOptions, cmd *cobra.Command, orderID string) error {
	if opts.Type != command.VoidTypeCancelled && opts.Type != command.VoidTypeLossSettled {
		return WrapExitError(ExitCommandError, "invalid void type", fmt.Errorf("%q", opts.Type))
	}

	req := command.VoidOrder{OrderID: orderID, VoidType: opts.Type, LossReason: &opts.Reason}
	if opts.LossAmount != "" {
		amount, err := money.Parse(opts.LossAmount)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid loss amount", err)
		}
		req.LossAmount = &amount
	}
	if opts.Note != "" {
		req.Note = &opts.Note
	}

	core, ctx, err := opts.open(cmd.Context())
	if err != nil {
		return err
	}
	defer core.Close()

	if err := core.Orders.VoidOrder(ctx, req); err != nil {
		return WrapExitError(ExitFailure, "void rejected", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]string{"order_id": orderID, "status": "VOIDED"})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Order %s voided\n", orderID)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSnapshot(w io.Writer, s *snapshot.Snapshot) {
	fmt.Fprintf(w, "Order %s (%s, from %s)\n", s.OrderID, s.Status, s.Source)
	if s.ReceiptNumber != "" {
		fmt.Fprintf(w, "Receipt: %s\n", s.ReceiptNumber)
	}
	if s.TableName != "" {
		fmt.Fprintf(w, "Table: %s\n", s.TableName)
	} else if s.IsRetail {
		fmt.Fprintln(w, "Retail")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nQTY\tITEM\tUNIT\tTOTAL")
	for _, it := range s.Items {
		name := it.Name
		switch {
		case it.IsRemoved:
			name += " (removed)"
		case it.IsComped:
			name += " (comped)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", it.Quantity, name, money.Format(it.UnitPrice), money.Format(it.LineTotal))
	}
	tw.Flush()

	t := s.Totals
	fmt.Fprintf(w, "\nSubtotal %s  Discount %s  Surcharge %s  Tax %s\n",
		money.Format(t.Subtotal), money.Format(t.Discount), money.Format(t.Surcharge), money.Format(t.Tax))
	fmt.Fprintf(w, "Total %s  Paid %s  Remaining %s\n", money.Format(t.Total), money.Format(t.Paid), money.Format(t.Remaining))

	if len(s.Timeline) > 0 {
		fmt.Fprintln(w, "\nTimeline:")
		for _, e := range s.Timeline {
			fmt.Fprintf(w, "  %3d  %s  %s  %s\n", e.Sequence, e.At.Format(time.DateTime), e.Summary, e.OperatorName)
		}
	}
}
