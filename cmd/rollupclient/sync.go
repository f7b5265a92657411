package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync_state round against the node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := rollup.SyncState(context.Background())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "synced to block %d\n", summary.BlockNum)
			fmt.Fprintf(out, "  new public notes:         %d\n", summary.NewPublicNotes)
			fmt.Fprintf(out, "  committed notes:          %d\n", summary.CommittedNotes)
			fmt.Fprintf(out, "  consumed notes:           %d\n", summary.ConsumedNotes)
			fmt.Fprintf(out, "  updated accounts:         %d\n", summary.UpdatedAccounts)
			fmt.Fprintf(out, "  locked accounts:          %d\n", summary.LockedAccounts)
			fmt.Fprintf(out, "  committed transactions:   %d\n", summary.CommittedTransactions)
			return nil
		},
	}
	return cmd
}
