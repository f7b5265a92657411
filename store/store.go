// Package store defines the Store contract of spec.md §4.1: the
// persistent-mapping capability set every client facade is built on. Actual
// persistent backends are explicitly out of scope (spec §1 treats them as
// external collaborators); this package defines only the contract plus the
// update/filter shapes every implementation must honor. See store/memstore
// for the in-process reference implementation used by tests.
package store

import (
	"rollupclient/account"
	"rollupclient/chainmmr"
	"rollupclient/coretypes"
	"rollupclient/digest"
	"rollupclient/note"
)

// NoteFilterKind selects which subset of input notes a query returns.
type NoteFilterKind uint8

const (
	NoteFilterAll NoteFilterKind = iota
	NoteFilterExpected
	NoteFilterCommitted
	NoteFilterProcessing
	NoteFilterConsumed
	NoteFilterUnverified
	NoteFilterNullifiers
	NoteFilterUnique
)

// NoteFilter narrows a GetInputNotes/GetOutputNotes call.
type NoteFilter struct {
	Kind       NoteFilterKind
	Nullifiers []digest.Hash // meaningful iff Kind == NoteFilterNullifiers
	ID         digest.Hash   // meaningful iff Kind == NoteFilterUnique
}

// TransactionFilterKind selects which subset of transactions a query
// returns.
type TransactionFilterKind uint8

const (
	TransactionFilterAll TransactionFilterKind = iota
	TransactionFilterIDs
	TransactionFilterUncommitted
	TransactionFilterExpiredBefore
)

// TransactionFilter narrows a GetTransactions call.
type TransactionFilter struct {
	Kind  TransactionFilterKind
	IDs   []string
	Block uint32 // meaningful iff Kind == TransactionFilterExpiredBefore
}

// DiscardCause names why a transaction record became terminal without
// committing (spec §4.4).
type DiscardCause uint8

const (
	DiscardNone DiscardCause = iota
	DiscardInputConsumed
	DiscardStale
	DiscardRejected
	DiscardExpired
)

func (c DiscardCause) String() string {
	switch c {
	case DiscardInputConsumed:
		return "InputConsumed"
	case DiscardStale:
		return "Stale"
	case DiscardRejected:
		return "Rejected"
	case DiscardExpired:
		return "Expired"
	default:
		return "None"
	}
}

// TransactionStatusKind is the coarse status of a transaction record.
type TransactionStatusKind uint8

const (
	TransactionPending TransactionStatusKind = iota
	TransactionCommittedStatus
	TransactionDiscarded
)

// TransactionStatus is the full status payload (spec §4.4/§4.5).
type TransactionStatus struct {
	Kind      TransactionStatusKind
	Block     uint32 // meaningful iff Kind == TransactionCommittedStatus
	Timestamp uint64 // meaningful iff Kind == TransactionCommittedStatus
	Cause     DiscardCause
}

// TransactionRecord is the store's representation of one transaction
// (spec.md §3 "Transaction").
type TransactionRecord struct {
	ID                       string
	AccountID                coretypes.AccountID
	AuthenticatedInputs      []digest.Hash
	UnauthenticatedInputs    []digest.Hash
	OutputNotes              []digest.Hash
	ScriptRoot               digest.Hash
	ReferenceBlock           uint32
	ExpirationDelta          uint32
	Status                   TransactionStatus
	// PreApplyCommitment is retained so a discard can roll the account back
	// to exactly the value it held before this transaction was applied
	// (spec §9 "Rollback via retained commitments").
	PreApplyCommitment digest.Hash
	// PreApplyAccount is the full account snapshot taken immediately before
	// this transaction applied, letting a discard restore vault/nonce/storage
	// exactly rather than just the commitment hash (spec §4.4 "Discarding a
	// transaction always rolls back", §8 rollback-correctness property).
	PreApplyAccount *account.Account
}

// TransactionStatusUpdate is one entry of update_transaction_statuses.
type TransactionStatusUpdate struct {
	ID     string
	Status TransactionStatus
}

// TagSubscription pairs a tag with why it is subscribed.
type TagSubscription struct {
	Tag    coretypes.NoteTag
	Source coretypes.TagSource
}

// StateSyncUpdate bundles every entity a single sync round advances. It is
// the argument to ApplyStateSync, which must persist all of it atomically
// or none of it (spec §4.1, §4.5 step 10, §8 universal property).
type StateSyncUpdate struct {
	NewBlockHeaders          []chainmmr.BlockHeader
	BlockHasClientNotes      map[uint32]bool
	InputNoteUpdates         []*note.InputNoteRecord
	OutputNoteUpdates        []*note.OutputNoteRecord
	AccountCommitmentUpdates map[coretypes.AccountID]digest.Hash
	// AccountRestores replaces an account's working state with a retained
	// pre-apply snapshot, applied before AccountCommitmentUpdates so a sync
	// round that both discards a transaction against an account and learns
	// that account's chain commitment reconciles against the restored value,
	// not the discarded one (spec §4.4 rollback + §4.5 step 8, same round).
	AccountRestores          map[coretypes.AccountID]*account.Account
	TransactionStatusUpdates []TransactionStatusUpdate
	NewSyncHeight            uint32
}

// AccountHeader is the lightweight summary GetAccountHeaders returns,
// avoiding a full vault/storage fetch for listing purposes.
type AccountHeader struct {
	ID         coretypes.AccountID
	Nonce      uint64
	Commitment digest.Hash
	Locked     bool
}

// Store is the full capability set spec.md §4.1 requires. Not-found is
// represented by a (nil, nil) return, never by an error (spec: "not-found
// is represented by Option::None, not an error"); everything else that can
// go wrong is wrapped in *errs.Storage.
type Store interface {
	// Accounts
	GetAccountIDs() ([]coretypes.AccountID, error)
	GetAccountHeaders() ([]AccountHeader, error)
	GetAccount(id coretypes.AccountID) (*account.Record, error)
	GetAccountAuth(id coretypes.AccountID) ([]byte, error)
	UpsertAccount(acc *account.Account, seed []byte, overwrite bool) error
	SetAccountLocked(id coretypes.AccountID, locked bool) error

	// Notes
	GetInputNotes(filter NoteFilter) ([]*note.InputNoteRecord, error)
	GetInputNote(id digest.Hash) (*note.InputNoteRecord, error)
	GetOutputNotes(filter NoteFilter) ([]*note.OutputNoteRecord, error)
	UpsertInputNotes(records []*note.InputNoteRecord) error
	UpsertOutputNotes(records []*note.OutputNoteRecord) error

	// Transactions
	GetTransactions(filter TransactionFilter) ([]*TransactionRecord, error)
	InsertTransaction(record *TransactionRecord) error
	UpdateTransactionStatuses(updates []TransactionStatusUpdate) error

	// Tags
	GetNoteTags() ([]TagSubscription, error)
	AddNoteTag(tag coretypes.NoteTag, source coretypes.TagSource) error
	RemoveNoteTag(tag coretypes.NoteTag, source coretypes.TagSource) error

	// Chain
	GetSyncHeight() (uint32, error)
	GetBlockHeader(num uint32) (*chainmmr.BlockHeader, error)
	GetTrackedBlockHeaders() ([]chainmmr.BlockHeader, error)
	ApplyStateSync(update StateSyncUpdate) error
}
