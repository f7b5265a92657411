package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rollupclient/account"
)

func accountCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "account",
		Short: "Track and inspect accounts",
	}
	root.AddCommand(accountImportCmd())
	root.AddCommand(accountNewCmd())
	root.AddCommand(accountListCmd())
	return root
}

func accountNewCmd() *cobra.Command {
	var accountStr string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Track a fresh, empty account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAccountID(accountStr)
			if err != nil {
				return err
			}
			acc := account.NewAccount(id, account.Code{})
			if err := rollup.ImportAccount(acc, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tracking account %s\n", accountStr)
			return nil
		},
	}
	cmd.Flags().StringVar(&accountStr, "account", "", "account id (<prefix-hex>:<suffix-hex>)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func accountImportCmd() *cobra.Command {
	var accountStr string
	var seedHex string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a full account snapshot, unlocking any existing record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAccountID(accountStr)
			if err != nil {
				return err
			}
			acc := account.NewAccount(id, account.Code{})
			if err := rollup.ImportAccount(acc, []byte(seedHex)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported account %s\n", accountStr)
			return nil
		},
	}
	cmd.Flags().StringVar(&accountStr, "account", "", "account id (<prefix-hex>:<suffix-hex>)")
	cmd.Flags().StringVar(&seedHex, "seed", "", "key derivation seed")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func accountListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked account ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := rollup.Accounts()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "%x:%x  %s/%s\n", id.Prefix, id.Suffix, id.StorageMode(), id.AccountType())
			}
			return nil
		},
	}
	return cmd
}
