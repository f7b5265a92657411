package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"rollupclient/client"
	"rollupclient/coretypes"
	"rollupclient/digest"
)

func noteCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "note",
		Short: "Import notes and manage note tag subscriptions",
	}
	root.AddCommand(noteImportCmd())
	root.AddCommand(noteTagCmd())
	return root
}

func noteImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <note-id>",
		Short: "Import a note by id, fetching its details from the node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := digest.ParseHash(args[0])
			if err != nil {
				return fmt.Errorf("invalid note id %q: %w", args[0], err)
			}
			imp := client.NoteImport{Kind: client.ImportByID, ID: id}
			if err := rollup.ImportNote(context.Background(), imp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "imported", id.Hex())
			return nil
		},
	}
	return cmd
}

func noteTagCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tag",
		Short: "Subscribe or unsubscribe from a note tag",
	}
	root.AddCommand(noteTagAddCmd())
	root.AddCommand(noteTagRemoveCmd())
	return root
}

func parseTagSource(kind, value string) (coretypes.TagSource, error) {
	switch kind {
	case "user":
		return coretypes.UserTagSource(), nil
	case "note":
		h, err := digest.ParseHash(value)
		if err != nil {
			return coretypes.TagSource{}, fmt.Errorf("invalid note id %q: %w", value, err)
		}
		return coretypes.NoteTagSource(h.Bytes()), nil
	case "account":
		id, err := parseAccountID(value)
		if err != nil {
			return coretypes.TagSource{}, err
		}
		return coretypes.AccountTagSource(id), nil
	default:
		return coretypes.TagSource{}, fmt.Errorf("unknown tag source kind %q (want user|note|account)", kind)
	}
}

func noteTagAddCmd() *cobra.Command {
	var sourceKind, sourceValue string
	cmd := &cobra.Command{
		Use:   "add <tag>",
		Short: "Subscribe to a note tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid tag %q: %w", args[0], err)
			}
			src, err := parseTagSource(sourceKind, sourceValue)
			if err != nil {
				return err
			}
			return rollup.AddNoteTag(coretypes.NoteTag(n), src)
		},
	}
	cmd.Flags().StringVar(&sourceKind, "source", "user", "tag source kind: user|note|account")
	cmd.Flags().StringVar(&sourceValue, "source-value", "", "note id or account id backing --source=note|account")
	return cmd
}

func noteTagRemoveCmd() *cobra.Command {
	var sourceKind, sourceValue string
	cmd := &cobra.Command{
		Use:   "remove <tag>",
		Short: "Unsubscribe from a note tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid tag %q: %w", args[0], err)
			}
			src, err := parseTagSource(sourceKind, sourceValue)
			if err != nil {
				return err
			}
			return rollup.RemoveNoteTag(coretypes.NoteTag(n), src)
		},
	}
	cmd.Flags().StringVar(&sourceKind, "source", "user", "tag source kind: user|note|account")
	cmd.Flags().StringVar(&sourceValue, "source-value", "", "note id or account id backing --source=note|account")
	return cmd
}
