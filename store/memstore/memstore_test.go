package memstore

import (
	"testing"

	"rollupclient/account"
	"rollupclient/chainmmr"
	"rollupclient/coretypes"
	"rollupclient/digest"
	"rollupclient/note"
	"rollupclient/store"
)

func newTestAccount(suffix uint64) *account.Account {
	id := coretypes.NewAccountID(0, suffix, coretypes.StorageModePublic, coretypes.AccountTypeRegularWallet)
	return account.NewAccount(id, account.Code{})
}

//-------------------------------------------------------------
// Test account upsert/lock round trip
//-------------------------------------------------------------

func TestStoreAccountLifecycle(t *testing.T) {
	tests := []struct {
		name      string
		overwrite bool
	}{
		{"InsertOnly", false},
		{"InsertThenOverwrite", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := New()
			acc := newTestAccount(1)
			if err := s.UpsertAccount(acc, []byte("seed"), false); err != nil {
				t.Fatalf("UpsertAccount: %v", err)
			}

			if tc.overwrite {
				fresh := newTestAccount(1)
				fresh.Nonce = 9
				if err := s.UpsertAccount(fresh, nil, true); err != nil {
					t.Fatalf("UpsertAccount overwrite: %v", err)
				}
			}

			rec, err := s.GetAccount(acc.ID)
			if err != nil || rec == nil {
				t.Fatalf("GetAccount: rec=%v err=%v", rec, err)
			}
			if tc.overwrite && rec.Account.Nonce != 9 {
				t.Fatalf("nonce = %d, want 9 after overwrite", rec.Account.Nonce)
			}

			if err := s.SetAccountLocked(acc.ID, true); err != nil {
				t.Fatalf("SetAccountLocked: %v", err)
			}
			rec, _ = s.GetAccount(acc.ID)
			if !rec.Locked {
				t.Fatal("expected account locked")
			}
		})
	}
}

func TestStoreGetAccountUnknownReturnsNilNil(t *testing.T) {
	s := New()
	rec, err := s.GetAccount(coretypes.AccountID{Prefix: 1})
	if err != nil {
		t.Fatalf("expected nil error for unknown account, got %v", err)
	}
	if rec != nil {
		t.Fatal("expected nil record for unknown account")
	}
}

func TestStoreInputNoteFilters(t *testing.T) {
	expected := &note.InputNoteRecord{NoteID: digest.Sum([]byte("a")), State: note.Expected}
	committed := &note.InputNoteRecord{NoteID: digest.Sum([]byte("b")), State: note.Committed}

	s := New()
	if err := s.UpsertInputNotes([]*note.InputNoteRecord{expected, committed}); err != nil {
		t.Fatalf("UpsertInputNotes: %v", err)
	}

	got, err := s.GetInputNotes(store.NoteFilter{Kind: store.NoteFilterCommitted})
	if err != nil {
		t.Fatalf("GetInputNotes: %v", err)
	}
	if len(got) != 1 || got[0].NoteID != committed.NoteID {
		t.Fatalf("got %d committed notes, want 1 matching %s", len(got), committed.NoteID)
	}

	got, err = s.GetInputNotes(store.NoteFilter{Kind: store.NoteFilterUnique, ID: expected.NoteID})
	if err != nil || len(got) != 1 {
		t.Fatalf("unique filter: got %d, err=%v", len(got), err)
	}
}

func TestStoreTransactionLifecycle(t *testing.T) {
	s := New()
	rec := &store.TransactionRecord{
		ID:             "tx-1",
		ReferenceBlock: 100,
		Status:         store.TransactionStatus{Kind: store.TransactionPending},
	}
	if err := s.InsertTransaction(rec); err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}

	pending, err := s.GetTransactions(store.TransactionFilter{Kind: store.TransactionFilterUncommitted})
	if err != nil || len(pending) != 1 {
		t.Fatalf("GetTransactions uncommitted: got %d, err=%v", len(pending), err)
	}

	err = s.UpdateTransactionStatuses([]store.TransactionStatusUpdate{
		{ID: "tx-1", Status: store.TransactionStatus{Kind: store.TransactionCommittedStatus, Block: 105}},
	})
	if err != nil {
		t.Fatalf("UpdateTransactionStatuses: %v", err)
	}
	pending, _ = s.GetTransactions(store.TransactionFilter{Kind: store.TransactionFilterUncommitted})
	if len(pending) != 0 {
		t.Fatal("expected no uncommitted transactions after commit")
	}
}

func TestStoreTagSubscriptions(t *testing.T) {
	s := New()
	src := coretypes.UserTagSource()
	if err := s.AddNoteTag(7, src); err != nil {
		t.Fatalf("AddNoteTag: %v", err)
	}
	if err := s.AddNoteTag(7, src); err != nil {
		t.Fatalf("AddNoteTag duplicate: %v", err)
	}
	tags, _ := s.GetNoteTags()
	if len(tags) != 1 {
		t.Fatalf("got %d tags, want 1 (duplicate add must be a no-op)", len(tags))
	}

	if err := s.RemoveNoteTag(7, src); err != nil {
		t.Fatalf("RemoveNoteTag: %v", err)
	}
	tags, _ = s.GetNoteTags()
	if len(tags) != 0 {
		t.Fatal("expected no tags after removal")
	}
}

//-------------------------------------------------------------
// Test ApplyStateSync persists every entity as one unit
//-------------------------------------------------------------

func TestApplyStateSyncAtomicEffect(t *testing.T) {
	s := New()
	acc := newTestAccount(2)
	if err := s.UpsertAccount(acc, nil, false); err != nil {
		t.Fatalf("UpsertAccount: %v", err)
	}

	header := chainmmr.BlockHeader{Number: 1, Timestamp: 42}
	noteRec := &note.InputNoteRecord{NoteID: digest.Sum([]byte("x")), State: note.Committed}

	update := store.StateSyncUpdate{
		NewBlockHeaders:          []chainmmr.BlockHeader{header},
		BlockHasClientNotes:      map[uint32]bool{1: true},
		InputNoteUpdates:         []*note.InputNoteRecord{noteRec},
		AccountCommitmentUpdates: map[coretypes.AccountID]digest.Hash{acc.ID: acc.Commitment()},
		NewSyncHeight:            1,
	}
	if err := s.ApplyStateSync(update); err != nil {
		t.Fatalf("ApplyStateSync: %v", err)
	}

	height, _ := s.GetSyncHeight()
	if height != 1 {
		t.Fatalf("sync height = %d, want 1", height)
	}
	stored, err := s.GetBlockHeader(1)
	if err != nil || stored == nil {
		t.Fatalf("GetBlockHeader: stored=%v err=%v", stored, err)
	}
	got, _ := s.GetInputNote(noteRec.NoteID)
	if got == nil || got.State != note.Committed {
		t.Fatal("expected note update to have been persisted")
	}
	rec, _ := s.GetAccount(acc.ID)
	if rec.Locked {
		t.Fatal("expected account unlocked after matching commitment reconciliation")
	}
}
