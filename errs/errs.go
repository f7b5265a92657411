// Package errs defines the sentinel errors shared across the client engine.
//
// Storage "not found" is represented by a nil (value, nil) pair per the store
// contract (see store.Store) and never by one of these sentinels. Everything
// else that can go wrong crossing a layer boundary is one of these, wrapped
// with fmt.Errorf("...: %w", err) at the point it is raised so errors.Is and
// errors.As keep working through the wrap chain.
package errs

import "errors"

var (
	// ErrNotFound is returned by lookups outside the store contract (the
	// store itself returns (nil, nil) for a missing record).
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a note-state-machine event is
	// applied to a record in a state that does not accept it.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrAccountLocked is returned when an operation requires an unlocked
	// account but the local commitment disagrees with the chain.
	ErrAccountLocked = errors.New("account locked")

	// ErrNoteNotOnChain is returned importing a NoteId the node does not
	// yet know about.
	ErrNoteNotOnChain = errors.New("note not found on chain")

	// ErrTransactionExpired is returned submitting a transaction whose
	// reference block plus expiration delta is already behind the chain tip.
	ErrTransactionExpired = errors.New("transaction expiration window elapsed")

	// ErrStaleBlockNumber guards against a remote block number jumping
	// ahead by more than the configured max delta.
	ErrStaleBlockNumber = errors.New("remote block number delta exceeds configured maximum")

	// ErrInclusionProofRejected is returned when a note's merkle path does
	// not authenticate against the claimed block header's note root.
	ErrInclusionProofRejected = errors.New("inclusion proof rejected")

	// ErrNoteIdMismatch is returned when a note's recomputed id disagrees
	// with the id carried alongside its details.
	ErrNoteIdMismatch = errors.New("note id mismatch")

	// ErrUnknownAccount / ErrUnknownNote / ErrUnknownKey are input errors.
	ErrUnknownAccount = errors.New("unknown account")
	ErrUnknownNote    = errors.New("unknown note")
	ErrUnknownKey     = errors.New("unknown key")

	// ErrRecoverableProof marks a prover error that did not mutate the store.
	ErrRecoverableProof = errors.New("prover error")

	// ErrSubmitRejected marks a non-retriable node rejection of a proven
	// transaction.
	ErrSubmitRejected = errors.New("transaction rejected by node")
)

// Storage wraps a backend read/write failure. It is the single error kind
// storage implementations are expected to surface (spec: "storage errors are
// surfaced as a single kind with a message").
type Storage struct {
	Op  string
	Err error
}

func (e *Storage) Error() string {
	if e.Err == nil {
		return "storage: " + e.Op
	}
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *Storage) Unwrap() error { return e.Err }

// NewStorage builds a Storage error, returning nil when err is nil so callers
// can write `return errs.NewStorage("op", err)` unconditionally.
func NewStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Storage{Op: op, Err: err}
}
