package screener

import (
	"errors"
	"testing"

	"rollupclient/asset"
	"rollupclient/coretypes"
	"rollupclient/note"
)

type fakeExecutor struct {
	results map[coretypes.AccountID]TrialResult
	errs    map[coretypes.AccountID]error
}

func (f *fakeExecutor) TrialConsume(acc coretypes.AccountID, _ *note.Note) (TrialResult, error) {
	if err, ok := f.errs[acc]; ok {
		return TrialResult{}, err
	}
	return f.results[acc], nil
}

func acctID(suffix uint64) coretypes.AccountID {
	return coretypes.NewAccountID(0, suffix, coretypes.StorageModePublic, coretypes.AccountTypeRegularWallet)
}

func plainNote(sender coretypes.AccountID) *note.Note {
	return &note.Note{
		Assets:   asset.NewVault(),
		Metadata: note.Metadata{Sender: sender},
	}
}

func TestCheckRelevanceConsumable(t *testing.T) {
	a := acctID(1)
	ex := &fakeExecutor{results: map[coretypes.AccountID]TrialResult{a: {Status: Consumable}}}
	s := New(ex)
	rel := s.CheckRelevance(plainNote(acctID(2)), []coretypes.AccountID{a}, false)
	if len(rel) != 1 || rel[0].When != Now {
		t.Fatalf("got %+v, want single Now relevance", rel)
	}
}

func TestCheckRelevanceConsumableAfter(t *testing.T) {
	a := acctID(1)
	ex := &fakeExecutor{results: map[coretypes.AccountID]TrialResult{a: {Status: ConsumableAfter, ConsumableBlock: 500}}}
	s := New(ex)
	rel := s.CheckRelevance(plainNote(acctID(2)), []coretypes.AccountID{a}, false)
	if len(rel) != 1 || rel[0].When != After || rel[0].Block != 500 {
		t.Fatalf("got %+v, want After(500)", rel)
	}
}

func TestCheckRelevanceUnconsumableOmitted(t *testing.T) {
	a := acctID(1)
	ex := &fakeExecutor{results: map[coretypes.AccountID]TrialResult{a: {Status: Unconsumable}}}
	s := New(ex)
	rel := s.CheckRelevance(plainNote(acctID(2)), []coretypes.AccountID{a}, false)
	if len(rel) != 0 {
		t.Fatalf("got %+v, want no relevance", rel)
	}
}

func TestCheckRelevanceUnauthorizedStillOffered(t *testing.T) {
	a := acctID(1)
	ex := &fakeExecutor{results: map[coretypes.AccountID]TrialResult{a: {Status: UnconsumableWithoutAuthorization}}}
	s := New(ex)
	rel := s.CheckRelevance(plainNote(acctID(2)), []coretypes.AccountID{a}, false)
	if len(rel) != 1 || rel[0].When != Now {
		t.Fatalf("got %+v, want Now (offered pending authorization)", rel)
	}
}

func TestCheckRelevanceExecutorErrorDegradesToNotRelevant(t *testing.T) {
	a := acctID(1)
	ex := &fakeExecutor{errs: map[coretypes.AccountID]error{a: errors.New("boom")}}
	s := New(ex)
	rel := s.CheckRelevance(plainNote(acctID(2)), []coretypes.AccountID{a}, false)
	if len(rel) != 0 {
		t.Fatalf("got %+v, want no relevance on executor error", rel)
	}
}

func TestCheckRelevanceP2IDRecallFallback(t *testing.T) {
	sender := acctID(1)
	recipient := acctID(2)
	outsider := acctID(3)

	n := &note.Note{
		Assets: asset.NewVault(),
		Metadata: note.Metadata{
			Sender: sender,
			Hint:   note.ExecutionHint{Kind: note.HintAfterBlock, BlockNumber: 200},
		},
	}

	ex := &fakeExecutor{results: map[coretypes.AccountID]TrialResult{
		recipient: {Status: Consumable},
		sender:    {Status: Unconsumable},
		outsider:  {Status: Unconsumable},
	}}
	s := New(ex)

	rel := s.CheckRelevance(n, []coretypes.AccountID{sender, recipient, outsider}, true)
	byAcct := map[coretypes.AccountID]Relevance{}
	for _, r := range rel {
		byAcct[r.Account] = r
	}

	if len(rel) != 2 {
		t.Fatalf("got %d relevant accounts, want 2 (sender recall + recipient now)", len(rel))
	}
	if r, ok := byAcct[recipient]; !ok || r.When != Now {
		t.Fatalf("recipient relevance = %+v, want Now", r)
	}
	if r, ok := byAcct[sender]; !ok || r.When != After || r.Block != 200 {
		t.Fatalf("sender relevance = %+v, want After(200)", r)
	}
	if _, ok := byAcct[outsider]; ok {
		t.Fatal("outsider should not be relevant")
	}
}
