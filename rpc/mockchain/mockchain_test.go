package mockchain

import (
	"context"
	"testing"

	"rollupclient/chainmmr"
	"rollupclient/coretypes"
	"rollupclient/digest"
	"rollupclient/note"
	"rollupclient/rpc"
)

func TestSyncStateAdvancesOneBlockAtATime(t *testing.T) {
	c := New()
	h1 := chainmmr.BlockHeader{Number: 1, Timestamp: 10}
	h2 := chainmmr.BlockHeader{Number: 2, Timestamp: 20}
	c.AdvanceBlock(h1, nil, nil, nil)
	c.AdvanceBlock(h2, nil, nil, nil)

	resp, err := c.SyncState(context.Background(), 0, nil, nil)
	if err != nil {
		t.Fatalf("SyncState: %v", err)
	}
	if resp.BlockHeader.Number != 1 {
		t.Fatalf("got block %d, want 1", resp.BlockHeader.Number)
	}
	if resp.ChainTip != 2 {
		t.Fatalf("chain tip = %d, want 2", resp.ChainTip)
	}
}

func TestSyncStateNoteFiltering(t *testing.T) {
	c := New()
	id := digest.Sum([]byte("note-1"))
	tagged := rpc.FetchedNote{Visibility: rpc.FetchedPublic, NoteID: id, Metadata: note.Metadata{Tag: 7}}
	untagged := rpc.FetchedNote{Visibility: rpc.FetchedPublic, NoteID: digest.Sum([]byte("note-2")), Metadata: note.Metadata{Tag: 8}}

	h := chainmmr.BlockHeader{Number: 1}
	c.AdvanceBlock(h, []rpc.FetchedNote{tagged, untagged}, nil, nil)

	resp, err := c.SyncState(context.Background(), 0, nil, []coretypes.NoteTag{7})
	if err != nil {
		t.Fatalf("SyncState: %v", err)
	}
	if len(resp.NoteRecords) != 1 || resp.NoteRecords[0].NoteID != id {
		t.Fatalf("got %+v, want only the tag-7 note", resp.NoteRecords)
	}
}

func TestCheckNullifiersByPrefixFindsMatches(t *testing.T) {
	c := New()
	h := chainmmr.BlockHeader{Number: 1}
	n := digest.Sum([]byte("nullifier"))
	c.AdvanceBlock(h, nil, nil, []digest.Hash{n})

	prefix := prefixOf(n)
	updates, err := c.CheckNullifiersByPrefix(context.Background(), []uint32{prefix}, 0)
	if err != nil {
		t.Fatalf("CheckNullifiersByPrefix: %v", err)
	}
	if len(updates) != 1 || updates[0].Nullifier != n {
		t.Fatalf("got %+v, want one update for %s", updates, n)
	}
}

func TestGetBlockHeaderByNumberDefaultsToTip(t *testing.T) {
	c := New()
	c.AdvanceBlock(chainmmr.BlockHeader{Number: 1}, nil, nil, nil)
	c.AdvanceBlock(chainmmr.BlockHeader{Number: 2}, nil, nil, nil)

	h, proof, err := c.GetBlockHeaderByNumber(context.Background(), nil, true)
	if err != nil {
		t.Fatalf("GetBlockHeaderByNumber: %v", err)
	}
	if h.Number != 2 {
		t.Fatalf("got block %d, want tip 2", h.Number)
	}
	if proof == nil {
		t.Fatal("expected an MMR proof when includeMMRProof is true")
	}
}

func TestRegisterAndFetchAccountDetails(t *testing.T) {
	c := New()
	id := coretypes.NewAccountID(0, 1, coretypes.StorageModePublic, coretypes.AccountTypeRegularWallet)
	c.RegisterAccount(rpc.AccountSummary{ID: id, Commitment: digest.Sum([]byte("c")), LastBlock: 3})

	details, err := c.GetAccountDetails(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAccountDetails: %v", err)
	}
	if details.Visibility != rpc.AccountDetailsPublic {
		t.Fatal("expected public account details for a public-mode id")
	}
	if details.Summary.LastBlock != 3 {
		t.Fatalf("last block = %d, want 3", details.Summary.LastBlock)
	}
}
