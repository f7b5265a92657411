package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"rollupclient/asset"
	"rollupclient/coretypes"
	"rollupclient/digest"
	"rollupclient/note"
	"rollupclient/txpipeline"
)

func txCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tx",
		Short: "Build and submit transactions",
	}
	root.AddCommand(txNewCmd())
	root.AddCommand(txMintCmd())
	root.AddCommand(txPayToIDCmd())
	root.AddCommand(txSwapCmd())
	root.AddCommand(txSubmitCmd())
	root.AddCommand(txPendingCmd())
	return root
}

// parseAccountID accepts "<prefix-hex>:<suffix-hex>", matching how
// coretypes.AccountID itself is a bare prefix/suffix pair (spec.md §3
// "every ID has a storage mode... and a type" packed into the prefix bits).
func parseAccountID(s string) (coretypes.AccountID, error) {
	var prefix, suffix uint64
	n, err := fmt.Sscanf(s, "%x:%x", &prefix, &suffix)
	if err != nil || n != 2 {
		return coretypes.AccountID{}, fmt.Errorf("invalid account id %q, want <prefix-hex>:<suffix-hex>", s)
	}
	return coretypes.AccountID{Prefix: prefix, Suffix: suffix}, nil
}

func txNewCmd() *cobra.Command {
	var accountStr string
	var authInputs []string
	var expirationDelta uint32
	var ignoreInvalid bool

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Execute a transaction locally against an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseAccountID(accountStr)
			if err != nil {
				return err
			}
			inputs := make([]digest.Hash, 0, len(authInputs))
			for _, s := range authInputs {
				h, err := digest.ParseHash(s)
				if err != nil {
					return fmt.Errorf("invalid input note id %q: %w", s, err)
				}
				inputs = append(inputs, h)
			}
			req := txpipeline.Request{
				Template:                txpipeline.TemplateConsume,
				AuthenticatedInputs:     inputs,
				ExpirationDelta:         expirationDelta,
				IgnoreInvalidInputNotes: ignoreInvalid,
			}
			executed, err := rollup.NewTransaction(context.Background(), accountID, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied transaction %s\n", executed.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&accountStr, "account", "", "account id (<prefix-hex>:<suffix-hex>)")
	cmd.Flags().StringSliceVar(&authInputs, "input", nil, "authenticated input note id (hex digest), repeatable")
	cmd.Flags().Uint32Var(&expirationDelta, "expiration-delta", 100, "blocks past the reference block before the transaction expires")
	cmd.Flags().BoolVar(&ignoreInvalid, "ignore-invalid-inputs", false, "skip unconsumable input notes instead of aborting")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func txMintCmd() *cobra.Command {
	var faucetStr string
	var amount uint64
	var tagVal uint32
	var serialSeed string
	var expirationDelta uint32

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Execute a faucet mint transaction locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			faucet, err := parseAccountID(faucetStr)
			if err != nil {
				return err
			}
			recipient := note.Recipient{SerialNumber: digest.Sum([]byte(serialSeed))}
			req, err := txpipeline.BuildMintRequest(faucet, amount, recipient, coretypes.NoteTag(tagVal), expirationDelta)
			if err != nil {
				return err
			}
			executed, err := rollup.NewTransaction(context.Background(), faucet, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied mint transaction %s\n", executed.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&faucetStr, "faucet", "", "faucet account id (<prefix-hex>:<suffix-hex>)")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "amount to mint")
	cmd.Flags().Uint32Var(&tagVal, "tag", 0, "note tag for the minted note")
	cmd.Flags().StringVar(&serialSeed, "serial-seed", "", "seed hashed into the minted note's serial number")
	cmd.Flags().Uint32Var(&expirationDelta, "expiration-delta", 100, "blocks past the reference block before the transaction expires")
	_ = cmd.MarkFlagRequired("faucet")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func txPayToIDCmd() *cobra.Command {
	var senderStr string
	var faucetStr string
	var amount uint64
	var tagVal uint32
	var serialSeed string
	var recallBlock uint32
	var expirationDelta uint32

	cmd := &cobra.Command{
		Use:   "pay-to-id",
		Short: "Execute a pay-to-id (optionally recallable) transfer locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sender, err := parseAccountID(senderStr)
			if err != nil {
				return err
			}
			faucet, err := parseAccountID(faucetStr)
			if err != nil {
				return err
			}
			recipient := note.Recipient{SerialNumber: digest.Sum([]byte(serialSeed))}
			var req txpipeline.Request
			if recallBlock > 0 {
				req, err = txpipeline.BuildPayToIDWithRecallRequest(sender, faucet, amount, recipient, coretypes.NoteTag(tagVal), recallBlock, expirationDelta)
			} else {
				req, err = txpipeline.BuildPayToIDRequest(sender, faucet, amount, recipient, coretypes.NoteTag(tagVal), expirationDelta)
			}
			if err != nil {
				return err
			}
			executed, err := rollup.NewTransaction(context.Background(), sender, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied pay-to-id transaction %s\n", executed.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&senderStr, "sender", "", "sending account id (<prefix-hex>:<suffix-hex>)")
	cmd.Flags().StringVar(&faucetStr, "faucet", "", "faucet account id of the transferred asset (<prefix-hex>:<suffix-hex>)")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "amount to send")
	cmd.Flags().Uint32Var(&tagVal, "tag", 0, "note tag for the output note")
	cmd.Flags().StringVar(&serialSeed, "serial-seed", "", "seed hashed into the output note's serial number")
	cmd.Flags().Uint32Var(&recallBlock, "recall-block", 0, "if set, sender may reclaim the note after this block (pay-to-id-with-recall)")
	cmd.Flags().Uint32Var(&expirationDelta, "expiration-delta", 100, "blocks past the reference block before the transaction expires")
	_ = cmd.MarkFlagRequired("sender")
	_ = cmd.MarkFlagRequired("faucet")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func txSwapCmd() *cobra.Command {
	var senderStr string
	var offeredFaucetStr string
	var offeredAmount uint64
	var requestedFaucetStr string
	var tagVal uint32
	var serialSeed string
	var expirationDelta uint32

	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Execute a swap transaction's offering leg locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sender, err := parseAccountID(senderStr)
			if err != nil {
				return err
			}
			offeredFaucet, err := parseAccountID(offeredFaucetStr)
			if err != nil {
				return err
			}
			requestedFaucet, err := parseAccountID(requestedFaucetStr)
			if err != nil {
				return err
			}
			offered, err := asset.NewFungible(offeredFaucet, offeredAmount)
			if err != nil {
				return err
			}
			recipient := note.Recipient{SerialNumber: digest.Sum([]byte(serialSeed))}
			req, err := txpipeline.BuildSwapRequest(sender, offered, requestedFaucet, recipient, coretypes.NoteTag(tagVal), expirationDelta)
			if err != nil {
				return err
			}
			executed, err := rollup.NewTransaction(context.Background(), sender, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied swap transaction %s\n", executed.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&senderStr, "sender", "", "offering account id (<prefix-hex>:<suffix-hex>)")
	cmd.Flags().StringVar(&offeredFaucetStr, "offered-faucet", "", "faucet id of the offered asset (<prefix-hex>:<suffix-hex>)")
	cmd.Flags().Uint64Var(&offeredAmount, "offered-amount", 0, "amount of the offered asset")
	cmd.Flags().StringVar(&requestedFaucetStr, "requested-faucet", "", "faucet id of the asset expected back (<prefix-hex>:<suffix-hex>)")
	cmd.Flags().Uint32Var(&tagVal, "tag", 0, "note tag for the output note")
	cmd.Flags().StringVar(&serialSeed, "serial-seed", "", "seed hashed into the output note's serial number")
	cmd.Flags().Uint32Var(&expirationDelta, "expiration-delta", 100, "blocks past the reference block before the transaction expires")
	_ = cmd.MarkFlagRequired("sender")
	_ = cmd.MarkFlagRequired("offered-faucet")
	_ = cmd.MarkFlagRequired("offered-amount")
	_ = cmd.MarkFlagRequired("requested-faucet")
	return cmd
}

func txSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <tx-id>",
		Short: "Prove and submit a locally applied transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			block, err := rollup.SubmitTransaction(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submitted at block %d\n", block)
			return nil
		},
	}
	return cmd
}

func txPendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List transaction ids applied locally but not yet resolved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range rollup.PendingTransactions() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	return cmd
}
