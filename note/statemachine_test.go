package note

import (
	"errors"
	"testing"

	"rollupclient/coretypes"
	"rollupclient/digest"
	"rollupclient/errs"
)

func freshRecord() *InputNoteRecord {
	return &InputNoteRecord{NoteID: digest.Sum([]byte("note")), State: Expected}
}

func TestExpectedToCommittedWhenAuthenticated(t *testing.T) {
	rec := freshRecord()
	md := Metadata{Sender: coretypes.AccountID{Prefix: 1}}
	err := Apply(rec, InclusionProofReceived{Metadata: md, Authenticated: true})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rec.State != Committed {
		t.Fatalf("state = %s, want Committed", rec.State)
	}
}

func TestExpectedToUnverifiedWhenNotAuthenticated(t *testing.T) {
	rec := freshRecord()
	md := Metadata{Sender: coretypes.AccountID{Prefix: 1}}
	err := Apply(rec, InclusionProofReceived{Metadata: md, Authenticated: false})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rec.State != Unverified {
		t.Fatalf("state = %s, want Unverified", rec.State)
	}

	if err := Apply(rec, BlockHeaderReceived{Authenticated: true}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rec.State != Committed {
		t.Fatalf("state = %s, want Committed", rec.State)
	}
}

func TestUnverifiedToInvalidOnFailedAuthentication(t *testing.T) {
	rec := freshRecord()
	rec.State = Unverified
	if err := Apply(rec, BlockHeaderReceived{Authenticated: false}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rec.State != Invalid {
		t.Fatalf("state = %s, want Invalid", rec.State)
	}
}

func TestConsumedLocallyBranchesOnAuthentication(t *testing.T) {
	rec := freshRecord()
	rec.State = Committed
	if err := Apply(rec, ConsumedLocally{ConsumerTxID: "tx-1"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rec.State != ProcessingAuthenticated {
		t.Fatalf("state = %s, want ProcessingAuthenticated", rec.State)
	}

	rec2 := freshRecord()
	if err := Apply(rec2, ConsumedLocally{ConsumerTxID: "tx-2"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rec2.State != ProcessingUnauthenticated {
		t.Fatalf("state = %s, want ProcessingUnauthenticated", rec2.State)
	}
}

func TestProcessingToConsumedLocalOnCommit(t *testing.T) {
	rec := freshRecord()
	rec.State = ProcessingAuthenticated
	rec.ConsumerTxID = "tx-1"
	if err := Apply(rec, TransactionCommitted{TxID: "tx-1", Block: 10}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rec.State != ConsumedAuthenticatedLocal {
		t.Fatalf("state = %s, want ConsumedAuthenticatedLocal", rec.State)
	}

	rec2 := freshRecord()
	rec2.State = ProcessingUnauthenticated
	if err := Apply(rec2, TransactionCommitted{TxID: "tx-2", Block: 10}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rec2.State != ConsumedUnauthenticatedLocal {
		t.Fatalf("state = %s, want ConsumedUnauthenticatedLocal", rec2.State)
	}
}

func TestConsumedExternallyFromAnyNonTerminalState(t *testing.T) {
	for _, s := range []State{Expected, Unverified, Committed, ProcessingAuthenticated, ProcessingUnauthenticated} {
		rec := freshRecord()
		rec.State = s
		if err := Apply(rec, ConsumedExternally{Block: 5}); err != nil {
			t.Fatalf("state %s: Apply: %v", s, err)
		}
		if rec.State != ConsumedExternal {
			t.Fatalf("state %s: got %s, want ConsumedExternal", s, rec.State)
		}
	}
}

func TestTerminalStatesRejectUnrelatedEvents(t *testing.T) {
	rec := freshRecord()
	rec.State = ConsumedExternal
	err := Apply(rec, ConsumedLocally{ConsumerTxID: "tx-3"})
	if !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
	if rec.State != ConsumedExternal {
		t.Fatal("terminal state must not change on a rejected event")
	}
}

// TestTransactionCommittedIdempotentOnConsumedExternal resolves the open
// question in spec.md §9: a TransactionCommitted arriving after the same
// note was already observed ConsumedExternal (spec §4.5 ordering rule) is a
// no-op, not an error and not a promotion to a different terminal state.
func TestTransactionCommittedIdempotentOnConsumedExternal(t *testing.T) {
	rec := freshRecord()
	rec.State = ConsumedExternal
	if err := Apply(rec, TransactionCommitted{TxID: "tx-4", Block: 7}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rec.State != ConsumedExternal {
		t.Fatalf("state = %s, want ConsumedExternal unchanged", rec.State)
	}
}

func TestConsumedLocalTerminalIdempotentOnOwnCommitEvent(t *testing.T) {
	rec := freshRecord()
	rec.State = ConsumedAuthenticatedLocal
	if err := Apply(rec, TransactionCommitted{TxID: "tx-5", Block: 1}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rec.State != ConsumedAuthenticatedLocal {
		t.Fatal("expected idempotent no-op")
	}
}

func TestDeterminismAcrossEventSequence(t *testing.T) {
	events := []Event{
		InclusionProofReceived{Metadata: Metadata{Sender: coretypes.AccountID{Prefix: 9}}, Authenticated: false},
		BlockHeaderReceived{Authenticated: true},
		ConsumedLocally{ConsumerTxID: "tx-6"},
		TransactionCommitted{TxID: "tx-6", Block: 3},
	}

	run := func() State {
		rec := freshRecord()
		for _, e := range events {
			if err := Apply(rec, e); err != nil {
				t.Fatalf("Apply: %v", err)
			}
		}
		return rec.State
	}

	first := run()
	second := run()
	if first != second {
		t.Fatalf("non-deterministic outcome: %s vs %s", first, second)
	}
	if first != ConsumedAuthenticatedLocal {
		t.Fatalf("got %s, want ConsumedAuthenticatedLocal", first)
	}
}

func TestOutputNoteLifecycle(t *testing.T) {
	id := digest.Sum([]byte("output"))
	rec := NewExpectedOutputNote(id, nil, true)
	if rec.State != ExpectedFull {
		t.Fatalf("state = %s, want ExpectedFull", rec.State)
	}
	if err := rec.ApplyInclusionProof(InclusionProof{BlockNumber: 4}); err != nil {
		t.Fatalf("ApplyInclusionProof: %v", err)
	}
	if rec.State != CommittedFull {
		t.Fatalf("state = %s, want CommittedFull", rec.State)
	}
	if err := rec.ApplyConsumedExternally(); err != nil {
		t.Fatalf("ApplyConsumedExternally: %v", err)
	}
	if rec.State != OutputConsumedExternal {
		t.Fatalf("state = %s, want ConsumedExternal", rec.State)
	}
	// idempotent once terminal
	if err := rec.ApplyConsumedExternally(); err != nil {
		t.Fatalf("ApplyConsumedExternally (repeat): %v", err)
	}
}
