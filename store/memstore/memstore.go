// Package memstore is the in-process reference implementation of the Store
// contract (spec.md §4.1), used by the client facade's
// tests, and anywhere an on-disk backend is unnecessary. It mirrors the
// teacher's Ledger shape -- a single mutex-guarded struct of maps -- from
// core/ledger.go, adapted from block/UTXO bookkeeping to account/note/
// transaction/tag/chain bookkeeping.
package memstore

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"rollupclient/account"
	"rollupclient/chainmmr"
	"rollupclient/coretypes"
	"rollupclient/digest"
	"rollupclient/errs"
	"rollupclient/note"
	"rollupclient/store"
)

const recentNoteCacheSize = 256

// Store is an in-memory, single-writer implementation of store.Store.
// Every exported method locks mu for its full duration, so ApplyStateSync's
// atomicity requirement is satisfied trivially: an in-memory write cannot
// partially fail, and no other goroutine observes an interleaved state.
type Store struct {
	mu sync.Mutex

	accounts map[coretypes.AccountID]*account.Record
	auth     map[coretypes.AccountID][]byte

	inputNotes  map[digest.Hash]*note.InputNoteRecord
	outputNotes map[digest.Hash]*note.OutputNoteRecord

	transactions map[string]*store.TransactionRecord

	tags []store.TagSubscription

	chain      *chainmmr.Chain
	syncHeight uint32

	// recent is a bounded cache of recently touched input note ids, an
	// operational convenience layered on top of the authoritative map above
	// (wires github.com/hashicorp/golang-lru/v2 per the domain stack).
	recent *lru.Cache[digest.Hash, struct{}]
}

// New returns an empty store.
func New() *Store {
	cache, _ := lru.New[digest.Hash, struct{}](recentNoteCacheSize)
	return &Store{
		accounts:     make(map[coretypes.AccountID]*account.Record),
		auth:         make(map[coretypes.AccountID][]byte),
		inputNotes:   make(map[digest.Hash]*note.InputNoteRecord),
		outputNotes:  make(map[digest.Hash]*note.OutputNoteRecord),
		transactions: make(map[string]*store.TransactionRecord),
		chain:        chainmmr.NewChain(),
		recent:       cache,
	}
}

func (s *Store) GetAccountIDs() ([]coretypes.AccountID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]coretypes.AccountID, 0, len(s.accounts))
	for id := range s.accounts {
		out = append(out, id)
	}
	return out, nil
}

func (s *Store) GetAccountHeaders() ([]store.AccountHeader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AccountHeader, 0, len(s.accounts))
	for id, rec := range s.accounts {
		out = append(out, store.AccountHeader{
			ID:         id,
			Nonce:      rec.Account.Nonce,
			Commitment: rec.LastCommitment,
			Locked:     rec.Locked,
		})
	}
	return out, nil
}

func (s *Store) GetAccount(id coretypes.AccountID) (*account.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

func (s *Store) GetAccountAuth(id coretypes.AccountID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth[id], nil
}

func (s *Store) UpsertAccount(acc *account.Account, seed []byte, overwrite bool) error {
	if acc == nil {
		return errs.NewStorage("memstore.UpsertAccount", errs.ErrUnknownAccount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.accounts[acc.ID]
	if ok && !overwrite {
		existing.Account = acc
		existing.LastCommitment = acc.Commitment()
		return nil
	}
	s.accounts[acc.ID] = &account.Record{
		Account:        acc,
		Seed:           append([]byte(nil), seed...),
		LastCommitment: acc.Commitment(),
	}
	return nil
}

func (s *Store) SetAccountLocked(id coretypes.AccountID, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.accounts[id]
	if !ok {
		return errs.NewStorage("memstore.SetAccountLocked", errs.ErrUnknownAccount)
	}
	rec.Locked = locked
	return nil
}

func (s *Store) GetInputNotes(filter store.NoteFilter) ([]*note.InputNoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterInputNotes(s.inputNotes, filter), nil
}

func (s *Store) GetInputNote(id digest.Hash) (*note.InputNoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.inputNotes[id]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

func (s *Store) GetOutputNotes(filter store.NoteFilter) ([]*note.OutputNoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*note.OutputNoteRecord, 0, len(s.outputNotes))
	for _, rec := range s.outputNotes {
		if filter.Kind == store.NoteFilterUnique && rec.NoteID != filter.ID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) UpsertInputNotes(records []*note.InputNoteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.inputNotes[r.NoteID] = r
		s.recent.Add(r.NoteID, struct{}{})
	}
	return nil
}

func (s *Store) UpsertOutputNotes(records []*note.OutputNoteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.outputNotes[r.NoteID] = r
	}
	return nil
}

func (s *Store) GetTransactions(filter store.TransactionFilter) ([]*store.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterTransactions(s.transactions, filter), nil
}

func (s *Store) InsertTransaction(record *store.TransactionRecord) error {
	if record == nil {
		return errs.NewStorage("memstore.InsertTransaction", errs.ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[record.ID] = record
	return nil
}

func (s *Store) UpdateTransactionStatuses(updates []store.TransactionStatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		rec, ok := s.transactions[u.ID]
		if !ok {
			return errs.NewStorage("memstore.UpdateTransactionStatuses", errs.ErrNotFound)
		}
		rec.Status = u.Status
	}
	return nil
}

func (s *Store) GetNoteTags() ([]store.TagSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.TagSubscription(nil), s.tags...), nil
}

func (s *Store) AddNoteTag(tag coretypes.NoteTag, source coretypes.TagSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tags {
		if t.Tag == tag && string(t.Source.RefID) == string(source.RefID) && t.Source.Kind == source.Kind {
			return nil
		}
	}
	s.tags = append(s.tags, store.TagSubscription{Tag: tag, Source: source})
	return nil
}

func (s *Store) RemoveNoteTag(tag coretypes.NoteTag, source coretypes.TagSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.tags[:0]
	for _, t := range s.tags {
		if t.Tag == tag && string(t.Source.RefID) == string(source.RefID) && t.Source.Kind == source.Kind {
			continue
		}
		out = append(out, t)
	}
	s.tags = out
	return nil
}

func (s *Store) GetSyncHeight() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncHeight, nil
}

func (s *Store) GetBlockHeader(num uint32) (*chainmmr.BlockHeader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.chain.Header(num)
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (s *Store) GetTrackedBlockHeaders() ([]chainmmr.BlockHeader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chainmmr.BlockHeader, 0)
	for n := uint32(0); n <= s.syncHeight; n++ {
		if h, ok := s.chain.Header(n); ok {
			out = append(out, h)
		}
	}
	return out, nil
}

// ApplyStateSync persists every entity of update as one unit. Because the
// whole operation runs under a single lock over in-memory maps, there is no
// window in which a reader observes a partial apply, and no failure mode
// that would leave only some of it written (spec §4.1, §8 universal
// property).
func (s *Store) ApplyStateSync(update store.StateSyncUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range update.NewBlockHeaders {
		s.chain.ApplyHeader(h, update.BlockHasClientNotes[h.Number])
	}
	for _, r := range update.InputNoteUpdates {
		s.inputNotes[r.NoteID] = r
		s.recent.Add(r.NoteID, struct{}{})
	}
	for _, r := range update.OutputNoteUpdates {
		s.outputNotes[r.NoteID] = r
	}
	for id, acc := range update.AccountRestores {
		if rec, ok := s.accounts[id]; ok {
			rec.Account = acc
		}
	}
	for id, commitment := range update.AccountCommitmentUpdates {
		rec, ok := s.accounts[id]
		if !ok {
			continue
		}
		rec.ReconcileCommitment(commitment)
	}
	for _, u := range update.TransactionStatusUpdates {
		if rec, ok := s.transactions[u.ID]; ok {
			rec.Status = u.Status
		}
	}
	if update.NewSyncHeight > s.syncHeight {
		s.syncHeight = update.NewSyncHeight
	}
	return nil
}
