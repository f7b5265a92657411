// Package rpc defines the Node RPC capability set of spec.md §6: the
// contract the client uses to reach the remote node. Real transport (gRPC,
// protobuf framing) lives behind an implementation of this interface; this
// package only states the contract plus the message shapes, and ships the
// deterministic in-process mock used for tests in rpc/mockchain.
package rpc

import (
	"context"

	"rollupclient/chainmmr"
	"rollupclient/coretypes"
	"rollupclient/digest"
	"rollupclient/note"
)

// AccountSummary is the lightweight account view the node reports during
// sync and account-detail queries.
type AccountSummary struct {
	ID         coretypes.AccountID
	Commitment digest.Hash
	LastBlock  uint32
}

// TransactionSummary is what the node reports for a transaction included in
// a sync delta.
type TransactionSummary struct {
	ID    string
	Block uint32
}

// FetchedNoteVisibility distinguishes a private note (only metadata and
// proof visible) from a public one (full payload visible).
type FetchedNoteVisibility uint8

const (
	FetchedPrivate FetchedNoteVisibility = iota
	FetchedPublic
)

// FetchedNote is the node's answer to get_notes_by_id for a single id.
type FetchedNote struct {
	Visibility FetchedNoteVisibility
	NoteID     digest.Hash
	Metadata   note.Metadata
	Note       *note.Note // nil when Visibility == FetchedPrivate
	Proof      note.InclusionProof
}

// AccountDetailsVisibility mirrors FetchedNoteVisibility for account
// details.
type AccountDetailsVisibility uint8

const (
	AccountDetailsPrivate AccountDetailsVisibility = iota
	AccountDetailsPublic
)

// AccountDetails is the node's answer to get_account_details.
type AccountDetails struct {
	Visibility AccountDetailsVisibility
	ID         coretypes.AccountID
	Summary    AccountSummary
	FullState  *AccountFullState // nil when Visibility == AccountDetailsPrivate
}

// AccountFullState is the full public account payload.
type AccountFullState struct {
	Nonce       uint64
	VaultRoot   digest.Hash
	StorageRoot digest.Hash
	CodeRoot    digest.Hash
}

// AccountProofRequest asks for a proof of one account's state, optionally
// skipping code bytes the caller already has cached (known_codes).
type AccountProofRequest struct {
	ID          coretypes.AccountID
	KnownCodeID digest.Hash
}

// AccountProof is the node's answer to one entry of get_account_proofs.
type AccountProof struct {
	ID         coretypes.AccountID
	Commitment digest.Hash
	CodeBytes  []byte // nil when the caller's KnownCodeID already matched
}

// AccountDelta is the node's answer to get_account_state_delta.
type AccountDelta struct {
	FromBlock, ToBlock uint32
	NonceDelta         uint64
}

// NullifierUpdate is one entry of check_nullifiers_by_prefix's response.
type NullifierUpdate struct {
	Nullifier digest.Hash
	Block     uint32
}

// SyncStateResponse is the node's answer to sync_state (spec §6).
type SyncStateResponse struct {
	ChainTip            uint32
	BlockHeader          chainmmr.BlockHeader
	MMRDelta             chainmmr.InclusionProof
	BlockHasClientNotes  bool
	AccountSummaries     []AccountSummary
	TransactionSummaries []TransactionSummary
	NoteRecords          []FetchedNote
}

// SyncNotesResponse is the node's answer to sync_notes.
type SyncNotesResponse struct {
	ChainTip    uint32
	BlockHeader chainmmr.BlockHeader
	MMRPath     []digest.Hash
	Notes       []FetchedNote
}

// Client is the capability set spec.md §6 names. Every method suspends on
// I/O (spec §5); implementations must honor ctx cancellation.
type Client interface {
	SyncState(ctx context.Context, fromBlock uint32, accountIDs []coretypes.AccountID, tags []coretypes.NoteTag) (SyncStateResponse, error)
	SyncNotes(ctx context.Context, fromBlock uint32, tags []coretypes.NoteTag) (SyncNotesResponse, error)
	GetBlockHeaderByNumber(ctx context.Context, num *uint32, includeMMRProof bool) (chainmmr.BlockHeader, *chainmmr.InclusionProof, error)
	GetBlockByNumber(ctx context.Context, num uint32) (chainmmr.BlockHeader, error)
	GetNotesByID(ctx context.Context, ids []digest.Hash) ([]FetchedNote, error)
	GetAccountDetails(ctx context.Context, id coretypes.AccountID) (AccountDetails, error)
	GetAccountProofs(ctx context.Context, requests []AccountProofRequest) (uint32, []AccountProof, error)
	GetAccountStateDelta(ctx context.Context, id coretypes.AccountID, fromBlock, toBlock uint32) (AccountDelta, error)
	CheckNullifiers(ctx context.Context, nullifiers []digest.Hash) ([][]byte, error)
	CheckNullifiersByPrefix(ctx context.Context, prefixes []uint32, fromBlock uint32) ([]NullifierUpdate, error)
	SubmitProvenTransaction(ctx context.Context, tx []byte) (uint32, error)
	SetGenesisCommitment(ctx context.Context, commitment digest.Hash) error
}
