package txexec

import (
	"fmt"

	"rollupclient/asset"
	"rollupclient/coretypes"
	"rollupclient/note"
	"rollupclient/screener"
)

// FakeExecutor is a deterministic in-process stand-in for the VM-backed
// executor, used by tests and by the screener's trial-consume calls. It
// implements both Executor and screener.TrialExecutor.
//
// Consumption rule: a note is immediately consumable by an account if the
// note's hint has no after-block requirement, or the chain has already
// reached that block; otherwise it is ConsumableAfter(block). This models
// a generic P2ID-style script closely enough to exercise the screener and
// pipeline without an assembler/VM (spec §1 Non-goal).
type FakeExecutor struct {
	// ChainHeight lets trial-consume calls evaluate HintAfterBlock notes
	// against the current tip.
	ChainHeight uint32
}

// NewFakeExecutor returns an executor evaluating trial consumes against the
// given chain height.
func NewFakeExecutor(chainHeight uint32) *FakeExecutor {
	return &FakeExecutor{ChainHeight: chainHeight}
}

// Execute merges every input note's assets into a cloned final account,
// debits any expected output note's assets back out of that same vault
// (unless ds.Issuance marks this a faucet mint, which has no vault to debit
// from), and advances the nonce by one. This is the simplest possible
// faithful "account consumed these notes and sent these notes" transition:
// value that leaves via an output note must have been present in the vault
// (spec.md §8 scenario 2's "W1 balance decreased by 100").
func (e *FakeExecutor) Execute(id string, ds DataStore) (ExecutedTransaction, error) {
	final := ds.Account.Clone()

	added := asset.NewVault()
	for _, n := range ds.InputNotes {
		if n.Assets == nil {
			continue
		}
		if err := final.Vault.Merge(n.Assets); err != nil {
			return ExecutedTransaction{}, fmt.Errorf("txexec: Execute: %w", err)
		}
		if err := added.Merge(n.Assets); err != nil {
			return ExecutedTransaction{}, fmt.Errorf("txexec: Execute: %w", err)
		}
	}

	removed := asset.NewVault()
	if !ds.Issuance {
		for _, n := range ds.ExpectedOutputs {
			if n.Assets == nil {
				continue
			}
			for _, a := range n.Assets.Assets() {
				if err := final.Vault.Remove(a); err != nil {
					return ExecutedTransaction{}, fmt.Errorf("txexec: Execute: debit output note %s: %w", n.ID(), err)
				}
				if err := removed.Add(a); err != nil {
					return ExecutedTransaction{}, fmt.Errorf("txexec: Execute: %w", err)
				}
			}
		}
	}

	final.Nonce++
	return ExecutedTransaction{
		ID:             id,
		InitialAccount: ds.Account,
		FinalAccount:   final,
		InputNotes:     ds.InputNotes,
		OutputNotes:    ds.ExpectedOutputs,
		ReferenceBlock: ds.ReferenceBlock,
		Delta:          AccountDelta{NonceDelta: 1, VaultAdded: added, VaultRemoved: removed},
	}, nil
}

// TrialConsume implements screener.TrialExecutor.
func (e *FakeExecutor) TrialConsume(_ coretypes.AccountID, n *note.Note) (screener.TrialResult, error) {
	if n.Metadata.Hint.Kind == note.HintAfterBlock && n.Metadata.Hint.BlockNumber > e.ChainHeight {
		return screener.TrialResult{Status: screener.ConsumableAfter, ConsumableBlock: n.Metadata.Hint.BlockNumber}, nil
	}
	return screener.TrialResult{Status: screener.Consumable}, nil
}
