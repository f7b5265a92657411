package note

import (
	"fmt"

	"rollupclient/digest"
	"rollupclient/errs"
)

// InputNoteRecord is a note the client may consume (spec §3). Details and
// Metadata are both optional independently: a note imported only by id
// before its payload is fetched has neither; one imported as NoteDetails
// has Details but no Proof; one imported as NoteWithProof has both Details
// and Proof immediately.
type InputNoteRecord struct {
	NoteID digest.Hash

	Details  *Note
	Metadata *Metadata
	Proof    *InclusionProof

	State State

	// ConsumerTxID is set while State is one of the Processing*/Consumed*Local
	// states, naming the local transaction consuming this note.
	ConsumerTxID string
}

// NewExpectedInputNote records a note imported before it exists on chain
// (spec §4.6 "NoteDetails{after_block}: record as Expected").
func NewExpectedInputNote(id digest.Hash, details *Note) *InputNoteRecord {
	return &InputNoteRecord{NoteID: id, Details: details, State: Expected}
}

// NewUnverifiedInputNote records a note imported together with a proof that
// has not yet been authenticated against a known header (spec §4.6
// "NoteWithProof: record as Unverified").
func NewUnverifiedInputNote(id digest.Hash, details *Note, md Metadata, proof InclusionProof) *InputNoteRecord {
	return &InputNoteRecord{
		NoteID:   id,
		Details:  details,
		Metadata: &md,
		Proof:    &proof,
		State:    Unverified,
	}
}

// OutputNoteRecord is a note the client created (spec §3).
type OutputNoteRecord struct {
	NoteID digest.Hash
	Note   *Note
	Proof  *InclusionProof
	State  OutputState
}

// NewExpectedOutputNote records a note this client's own transaction will
// produce. full is true when this client holds the note's complete
// payload (its own recipient), false when it only knows a commitment to a
// foreign recipient's note.
func NewExpectedOutputNote(id digest.Hash, n *Note, full bool) *OutputNoteRecord {
	st := ExpectedPartial
	if full {
		st = ExpectedFull
	}
	return &OutputNoteRecord{NoteID: id, Note: n, State: st}
}

// ApplyInclusionProof promotes an Expected* output note to the matching
// Committed* state once the node reports it on chain.
func (r *OutputNoteRecord) ApplyInclusionProof(proof InclusionProof) error {
	switch r.State {
	case ExpectedPartial:
		r.State = CommittedPartial
	case ExpectedFull:
		r.State = CommittedFull
	default:
		return invalidOutputTransition(r.State, "InclusionProofReceived")
	}
	p := proof
	r.Proof = &p
	return nil
}

// ApplyConsumedExternally marks the note consumed by someone else.
func (r *OutputNoteRecord) ApplyConsumedExternally() error {
	if r.State.Terminal() {
		return nil
	}
	r.State = OutputConsumedExternal
	return nil
}

func invalidOutputTransition(s OutputState, event string) error {
	return fmt.Errorf("note state machine: %w: output note in state %s does not accept %s", errs.ErrInvalidTransition, s, event)
}
