// Package txexec adapts the store and chain state into the DataStore view
// the VM-level transaction executor needs, and defines the
// ExecutedTransaction/TransactionWitness shapes the transaction pipeline
// passes to a prover (spec.md §4.4, component budget item "Transaction
// Executor / Data Store Adapter").
//
// The VM itself is out of scope (spec §1 Non-goals); this package only
// carries the data the real executor would consume and produce, plus a
// deterministic in-process Executor usable by tests and by the note
// screener's trial-consume calls.
package txexec

import (
	"rollupclient/account"
	"rollupclient/asset"
	"rollupclient/chainmmr"
	"rollupclient/coretypes"
	"rollupclient/note"
)

// ForeignAccountProof is a read-only view of another account supplied to a
// script that inspects it without mutating it ("foreign-account
// references" in spec §4.4).
type ForeignAccountProof struct {
	AccountID  coretypes.AccountID
	Commitment [32]byte
	Storage    account.Storage
}

// DataStore is the read-only view of chain and store state an executor run
// needs: the executing account, the reference block header, the input
// notes being consumed, the notes the
// request expects the script to produce, and any foreign-account proofs a
// script references.
type DataStore struct {
	Account         *account.Account
	ReferenceBlock  chainmmr.BlockHeader
	InputNotes      []*note.Note
	ExpectedOutputs []*note.Note
	ForeignAccounts []ForeignAccountProof
	// Issuance marks a faucet mint: the script issues new assets rather than
	// moving value out of Account's existing vault, so Execute must not debit
	// ExpectedOutputs from the vault the way a pay-to-id/swap transfer would
	// (spec.md §3 "Faucet" — faucets mint, they don't hold backing reserves).
	Issuance bool
}

// AccountDelta is the net change to an account's state a transaction
// produced, used both to build the final account and, on rollback, to
// reason about what must be undone.
type AccountDelta struct {
	NonceDelta    uint64
	VaultAdded    *asset.Vault
	VaultRemoved  *asset.Vault
	StorageWrites account.Storage
}

// ExecutedTransaction is the executor's output for one request (spec §4.4
// step 3).
type ExecutedTransaction struct {
	ID             string
	InitialAccount *account.Account
	FinalAccount   *account.Account
	InputNotes     []*note.Note
	OutputNotes    []*note.Note
	ReferenceBlock chainmmr.BlockHeader
	Delta          AccountDelta
	Arguments      map[string][]byte
}

// TransactionWitness is what a TransactionProver consumes: essentially the
// executed transaction plus whatever advice/witness data the VM recorded
// during execution (opaque to this engine).
type TransactionWitness struct {
	Executed  ExecutedTransaction
	AdviceMap map[string][]byte
}

// Executor runs a composed script against a DataStore and returns the
// resulting ExecutedTransaction. A real implementation wraps the VM; this
// package ships only the interface plus a deterministic test double.
type Executor interface {
	Execute(id string, ds DataStore) (ExecutedTransaction, error)
}
