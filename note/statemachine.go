package note

import (
	"fmt"

	"rollupclient/coretypes"
	"rollupclient/errs"
)

// Event is the closed set of inputs the note state machine accepts. The
// five concrete event types below satisfy it; the switch in Apply
// type-asserts on the concrete event.
type Event interface{ isNoteEvent() }

// InclusionProofReceived carries a note's inclusion proof and metadata as
// reported by the node. Authenticated records whether the engine has
// already verified the proof against a known block header (the state
// machine itself performs no I/O or MMR work, per spec §9 "compute... does
// not suspend"; authentication happens in the sync engine and is passed in
// as a fact).
type InclusionProofReceived struct {
	Proof        InclusionProof
	Metadata     Metadata
	Authenticated bool
}

func (InclusionProofReceived) isNoteEvent() {}

// BlockHeaderReceived authenticates (or fails to authenticate) a previously
// Unverified note's stored proof against a newly learned block header.
type BlockHeaderReceived struct {
	Authenticated bool
}

func (BlockHeaderReceived) isNoteEvent() {}

// ConsumedLocally records that a locally built transaction consumes this
// note.
type ConsumedLocally struct {
	ConsumerAccount coretypes.AccountID
	ConsumerTxID    string
	Timestamp       uint64
}

func (ConsumedLocally) isNoteEvent() {}

// TransactionCommitted records that the consuming transaction (tracked via
// ConsumerTxID) has been included on chain.
type TransactionCommitted struct {
	TxID  string
	Block uint32
}

func (TransactionCommitted) isNoteEvent() {}

// ConsumedExternally records a nullifier reveal with no matching local
// transaction.
type ConsumedExternally struct {
	Block uint32
}

func (ConsumedExternally) isNoteEvent() {}

// Apply advances rec's state in response to ev, mutating rec in place.
// Determinism (spec §8): the resulting state depends only on
// (rec.State, ev) and the record's prior metadata, never on external input.
// Terminal states are idempotent under the event that produced them and
// under TransactionCommitted arriving for an already ConsumedExternal note
// (spec §4.5 ordering rule); any other event on a terminal state is an
// ErrInvalidTransition.
func Apply(rec *InputNoteRecord, ev Event) error {
	if rec.State.Terminal() {
		return applyTerminal(rec, ev)
	}

	switch e := ev.(type) {
	case InclusionProofReceived:
		return applyInclusionProof(rec, e)
	case BlockHeaderReceived:
		return applyBlockHeader(rec, e)
	case ConsumedLocally:
		return applyConsumedLocally(rec, e)
	case TransactionCommitted:
		return applyTransactionCommitted(rec, e)
	case ConsumedExternally:
		rec.State = ConsumedExternal
		rec.ConsumerTxID = ""
		return nil
	default:
		return fmt.Errorf("note state machine: unknown event %T", ev)
	}
}

func applyTerminal(rec *InputNoteRecord, ev Event) error {
	switch rec.State {
	case Invalid:
		if _, ok := ev.(BlockHeaderReceived); ok {
			return nil
		}
	case ConsumedAuthenticatedLocal, ConsumedUnauthenticatedLocal:
		if _, ok := ev.(TransactionCommitted); ok {
			return nil
		}
	case ConsumedExternal:
		switch ev.(type) {
		case ConsumedExternally, TransactionCommitted:
			return nil
		}
	}
	return fmt.Errorf("note state machine: %w: state %s does not accept %T", errs.ErrInvalidTransition, rec.State, ev)
}

func applyInclusionProof(rec *InputNoteRecord, e InclusionProofReceived) error {
	if rec.State != Expected {
		return invalidTransition(rec.State, e)
	}
	if rec.Metadata != nil && !metadataEqual(*rec.Metadata, e.Metadata) {
		return fmt.Errorf("note state machine: %w", errs.ErrNoteIdMismatch)
	}
	md := e.Metadata
	rec.Metadata = &md
	proof := e.Proof
	rec.Proof = &proof
	if e.Authenticated {
		rec.State = Committed
	} else {
		rec.State = Unverified
	}
	return nil
}

func applyBlockHeader(rec *InputNoteRecord, e BlockHeaderReceived) error {
	if rec.State != Unverified {
		return invalidTransition(rec.State, e)
	}
	if e.Authenticated {
		rec.State = Committed
	} else {
		rec.State = Invalid
	}
	return nil
}

func applyConsumedLocally(rec *InputNoteRecord, e ConsumedLocally) error {
	switch rec.State {
	case Committed:
		rec.State = ProcessingAuthenticated
	case Expected, Unverified:
		rec.State = ProcessingUnauthenticated
	default:
		return invalidTransition(rec.State, e)
	}
	rec.ConsumerTxID = e.ConsumerTxID
	return nil
}

func applyTransactionCommitted(rec *InputNoteRecord, e TransactionCommitted) error {
	switch rec.State {
	case ProcessingAuthenticated:
		rec.State = ConsumedAuthenticatedLocal
	case ProcessingUnauthenticated:
		rec.State = ConsumedUnauthenticatedLocal
	default:
		return invalidTransition(rec.State, e)
	}
	return nil
}

func invalidTransition(s State, ev Event) error {
	return fmt.Errorf("note state machine: %w: state %s does not accept %T", errs.ErrInvalidTransition, s, ev)
}

// RollbackProcessing reverses the effect of ConsumedLocally on a note whose
// consuming transaction was discarded before committing (spec §4.4
// "Discarding a transaction always rolls back: ...consumed inputs returned
// from Processing* to their prior state"). It is a no-op outside the two
// Processing* states.
func RollbackProcessing(rec *InputNoteRecord) {
	switch rec.State {
	case ProcessingAuthenticated:
		rec.State = Committed
	case ProcessingUnauthenticated:
		if rec.Proof != nil && rec.Metadata != nil {
			rec.State = Unverified
		} else {
			rec.State = Expected
		}
	default:
		return
	}
	rec.ConsumerTxID = ""
}

func metadataEqual(a, b Metadata) bool {
	return a.Sender == b.Sender && a.Type == b.Type && a.Tag == b.Tag && a.Aux == b.Aux &&
		a.Hint.Kind == b.Hint.Kind && a.Hint.BlockNumber == b.Hint.BlockNumber
}
