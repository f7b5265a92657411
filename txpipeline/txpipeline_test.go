package txpipeline

import (
	"context"
	"testing"

	"rollupclient/account"
	"rollupclient/asset"
	"rollupclient/authenticator"
	"rollupclient/chainmmr"
	"rollupclient/coretypes"
	"rollupclient/digest"
	"rollupclient/note"
	"rollupclient/rpc/mockchain"
	"rollupclient/store"
	"rollupclient/store/memstore"
	"rollupclient/txexec"
)

func testAccountID(suffix uint64) coretypes.AccountID {
	return coretypes.NewAccountID(0, suffix, coretypes.StorageModePublic, coretypes.AccountTypeRegularWallet)
}

func newWallet(t *testing.T) *authenticator.HDWallet {
	t.Helper()
	w, err := authenticator.NewHDWalletFromSeed([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewHDWalletFromSeed: %v", err)
	}
	return w
}

func setupStore(t *testing.T, accID coretypes.AccountID) store.Store {
	t.Helper()
	st := memstore.New()
	acc := account.NewAccount(accID, account.Code{})
	if err := st.UpsertAccount(acc, []byte("seed"), false); err != nil {
		t.Fatalf("UpsertAccount: %v", err)
	}
	if err := st.ApplyStateSync(store.StateSyncUpdate{
		NewBlockHeaders: []chainmmr.BlockHeader{{Number: 1}},
		NewSyncHeight:   1,
	}); err != nil {
		t.Fatalf("ApplyStateSync: %v", err)
	}
	return st
}

func TestNewTransactionAppliesLocallyAndTracksPending(t *testing.T) {
	accID := testAccountID(1)
	st := setupStore(t, accID)
	chain := mockchain.New()
	wallet := newWallet(t)
	p := New(st, &txexec.FakeExecutor{}, chain, wallet, nil)

	executed, err := p.NewTransaction(context.Background(), accID, 1, Request{Template: TemplateConsume})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	if executed.ID == "" {
		t.Fatal("expected a non-empty transaction id")
	}

	pending := p.Pending()
	if len(pending) != 1 || pending[0] != executed.ID {
		t.Fatalf("pending = %v, want [%s]", pending, executed.ID)
	}

	txs, err := st.GetTransactions(store.TransactionFilter{Kind: store.TransactionFilterAll})
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Status.Kind != store.TransactionPending {
		t.Fatalf("got %+v, want one Pending transaction", txs)
	}
}

func TestNewTransactionConsumesAuthenticatedInputAndLocksItProcessing(t *testing.T) {
	accID := testAccountID(2)
	st := setupStore(t, accID)
	chain := mockchain.New()
	wallet := newWallet(t)
	p := New(st, &txexec.FakeExecutor{}, chain, wallet, nil)

	faucet := coretypes.NewAccountID(0, 99, coretypes.StorageModePublic, coretypes.AccountTypeFungibleFaucet)
	asset1, err := asset.NewFungible(faucet, 10)
	if err != nil {
		t.Fatalf("NewFungible: %v", err)
	}
	vault := asset.NewVault()
	if err := vault.Add(asset1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	n := &note.Note{Assets: vault, Recipient: note.Recipient{}}
	noteID := n.ID()

	rec := note.NewUnverifiedInputNote(noteID, n, note.Metadata{}, note.InclusionProof{BlockNumber: 1})
	rec.State = note.Committed
	if err := st.UpsertInputNotes([]*note.InputNoteRecord{rec}); err != nil {
		t.Fatalf("UpsertInputNotes: %v", err)
	}

	executed, err := p.NewTransaction(context.Background(), accID, 1, Request{
		Template:            TemplateConsume,
		AuthenticatedInputs: []digest.Hash{noteID},
	})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	_ = executed

	got, err := st.GetInputNote(noteID)
	if err != nil || got == nil {
		t.Fatalf("GetInputNote: rec=%v err=%v", got, err)
	}
	if got.State != note.ProcessingAuthenticated {
		t.Fatalf("note state = %s, want ProcessingAuthenticated", got.State)
	}
}

func TestSubmitFailsAndDiscardsWhenExpired(t *testing.T) {
	accID := testAccountID(3)
	st := setupStore(t, accID)
	chain := mockchain.New()
	wallet := newWallet(t)
	p := New(st, &txexec.FakeExecutor{}, chain, wallet, nil)

	executed, err := p.NewTransaction(context.Background(), accID, 1, Request{
		Template:        TemplateConsume,
		ExpirationDelta: 2,
	})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	if _, err := p.Submit(context.Background(), executed.ID, 10); err == nil {
		t.Fatal("expected Submit to fail once past the expiration window")
	}

	txs, err := st.GetTransactions(store.TransactionFilter{Kind: store.TransactionFilterAll})
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Status.Kind != store.TransactionDiscarded || txs[0].Status.Cause != store.DiscardExpired {
		t.Fatalf("got %+v, want Discarded(Expired)", txs)
	}
	if pending := p.Pending(); len(pending) != 0 {
		t.Fatalf("pending = %v, want empty after discard", pending)
	}
}

func TestBuildMintRequestProducesExpectedOutputFromFaucet(t *testing.T) {
	faucet := coretypes.NewAccountID(0, 100, coretypes.StorageModePublic, coretypes.AccountTypeFungibleFaucet)
	recipient := note.Recipient{SerialNumber: digest.Sum([]byte("recipient"))}

	req, err := BuildMintRequest(faucet, 25, recipient, coretypes.NoteTag(7), 50)
	if err != nil {
		t.Fatalf("BuildMintRequest: %v", err)
	}
	if req.Template != TemplateMint {
		t.Fatalf("template = %v, want TemplateMint", req.Template)
	}
	if len(req.ExpectedOutputs) != 1 {
		t.Fatalf("got %d expected outputs, want 1", len(req.ExpectedOutputs))
	}
	minted := req.ExpectedOutputs[0]
	if minted.Metadata.Sender != faucet {
		t.Fatalf("minted sender = %v, want %v", minted.Metadata.Sender, faucet)
	}
	if minted.Metadata.Tag != 7 {
		t.Fatalf("minted tag = %d, want 7", minted.Metadata.Tag)
	}
	assets := minted.Assets.Assets()
	if len(assets) != 1 || assets[0].Amount != 25 {
		t.Fatalf("got assets %+v, want one asset of amount 25", assets)
	}
}

func TestDiscardRestoresAccountAndRollsBackNotes(t *testing.T) {
	accID := testAccountID(4)
	st := setupStore(t, accID)
	chain := mockchain.New()
	wallet := newWallet(t)
	p := New(st, &txexec.FakeExecutor{}, chain, wallet, nil)

	before, err := st.GetAccount(accID)
	if err != nil || before == nil {
		t.Fatalf("GetAccount: rec=%v err=%v", before, err)
	}
	beforeCommitment := before.Account.Commitment()

	faucet := coretypes.NewAccountID(0, 99, coretypes.StorageModePublic, coretypes.AccountTypeFungibleFaucet)
	asset1, err := asset.NewFungible(faucet, 5)
	if err != nil {
		t.Fatalf("NewFungible: %v", err)
	}
	vault := asset.NewVault()
	if err := vault.Add(asset1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	n := &note.Note{Assets: vault, Recipient: note.Recipient{SerialNumber: digest.Sum([]byte{1})}}
	noteID := n.ID()
	rec := note.NewExpectedInputNote(noteID, n)
	rec.State = note.Committed
	if err := st.UpsertInputNotes([]*note.InputNoteRecord{rec}); err != nil {
		t.Fatalf("UpsertInputNotes: %v", err)
	}

	executed, err := p.NewTransaction(context.Background(), accID, 1, Request{
		Template:            TemplateConsume,
		AuthenticatedInputs: []digest.Hash{noteID},
	})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	after, err := st.GetAccount(accID)
	if err != nil || after == nil {
		t.Fatalf("GetAccount after apply: rec=%v err=%v", after, err)
	}
	if after.Account.Commitment() == beforeCommitment {
		t.Fatal("expected account commitment to change after local apply")
	}

	if err := p.Discard(executed.ID, store.DiscardRejected); err != nil {
		t.Fatalf("Discard: %v", err)
	}

	restored, err := st.GetAccount(accID)
	if err != nil || restored == nil {
		t.Fatalf("GetAccount after discard: rec=%v err=%v", restored, err)
	}
	if restored.Account.Commitment() != beforeCommitment {
		t.Fatal("expected account commitment restored to its pre-apply value after discard")
	}

	gotNote, err := st.GetInputNote(noteID)
	if err != nil || gotNote == nil {
		t.Fatalf("GetInputNote: rec=%v err=%v", gotNote, err)
	}
	if gotNote.State != note.Committed {
		t.Fatalf("note state = %s, want rolled back to Committed", gotNote.State)
	}
}
