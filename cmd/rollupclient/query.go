package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"rollupclient/digest"
	"rollupclient/store"
)

func queryCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "query",
		Short: "Inspect tracked notes and transactions",
	}
	root.AddCommand(queryInputNotesCmd())
	root.AddCommand(queryOutputNotesCmd())
	root.AddCommand(queryTransactionsCmd())
	root.AddCommand(querySyncHeightCmd())
	root.AddCommand(queryVerifyNullifierCmd())
	return root
}

func queryInputNotesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "input-notes",
		Short: "List tracked input notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, err := rollup.InputNotes(store.NoteFilter{Kind: store.NoteFilterAll})
			if err != nil {
				return err
			}
			for _, n := range notes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  state=%s\n", n.NoteID.Hex(), n.State)
			}
			return nil
		},
	}
	return cmd
}

func queryOutputNotesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "output-notes",
		Short: "List tracked output notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, err := rollup.OutputNotes(store.NoteFilter{Kind: store.NoteFilterAll})
			if err != nil {
				return err
			}
			for _, n := range notes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  state=%s\n", n.NoteID.Hex(), n.State)
			}
			return nil
		},
	}
	return cmd
}

func queryTransactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List tracked transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := rollup.Transactions(store.TransactionFilter{Kind: store.TransactionFilterAll})
			if err != nil {
				return err
			}
			for _, tx := range txs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  account=%x:%x  status=%d  cause=%s\n",
					tx.ID, tx.AccountID.Prefix, tx.AccountID.Suffix, tx.Status.Kind, tx.Status.Cause)
			}
			return nil
		},
	}
	return cmd
}

func queryVerifyNullifierCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-nullifier <nullifier>",
		Short: "Ask the node for a definitive (non-probabilistic) spent check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := digest.ParseHash(args[0])
			if err != nil {
				return fmt.Errorf("invalid nullifier %q: %w", args[0], err)
			}
			spent, err := rollup.VerifyNullifier(context.Background(), n)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), spent)
			return nil
		},
	}
	return cmd
}

func querySyncHeightCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-height",
		Short: "Print the store's current sync height",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			height, err := rollup.SyncHeight()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), height)
			return nil
		},
	}
	return cmd
}
