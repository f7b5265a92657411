package memstore

import (
	"rollupclient/digest"
	"rollupclient/note"
	"rollupclient/store"
)

func filterInputNotes(all map[digest.Hash]*note.InputNoteRecord, filter store.NoteFilter) []*note.InputNoteRecord {
	out := make([]*note.InputNoteRecord, 0, len(all))
	switch filter.Kind {
	case store.NoteFilterUnique:
		if rec, ok := all[filter.ID]; ok {
			out = append(out, rec)
		}
		return out
	case store.NoteFilterNullifiers:
		want := make(map[digest.Hash]struct{}, len(filter.Nullifiers))
		for _, n := range filter.Nullifiers {
			want[n] = struct{}{}
		}
		for _, rec := range all {
			if rec.Details == nil {
				continue
			}
			if _, ok := want[rec.Details.Nullifier()]; ok {
				out = append(out, rec)
			}
		}
		return out
	}

	for _, rec := range all {
		if matchesNoteFilterKind(rec.State, filter.Kind) {
			out = append(out, rec)
		}
	}
	return out
}

func matchesNoteFilterKind(s note.State, kind store.NoteFilterKind) bool {
	switch kind {
	case store.NoteFilterAll:
		return true
	case store.NoteFilterExpected:
		return s == note.Expected
	case store.NoteFilterCommitted:
		return s == note.Committed
	case store.NoteFilterUnverified:
		return s == note.Unverified
	case store.NoteFilterProcessing:
		return s == note.ProcessingAuthenticated || s == note.ProcessingUnauthenticated
	case store.NoteFilterConsumed:
		return s == note.ConsumedAuthenticatedLocal || s == note.ConsumedUnauthenticatedLocal || s == note.ConsumedExternal
	default:
		return false
	}
}

func filterTransactions(all map[string]*store.TransactionRecord, filter store.TransactionFilter) []*store.TransactionRecord {
	out := make([]*store.TransactionRecord, 0, len(all))
	switch filter.Kind {
	case store.TransactionFilterIDs:
		want := make(map[string]struct{}, len(filter.IDs))
		for _, id := range filter.IDs {
			want[id] = struct{}{}
		}
		for _, rec := range all {
			if _, ok := want[rec.ID]; ok {
				out = append(out, rec)
			}
		}
	case store.TransactionFilterUncommitted:
		for _, rec := range all {
			if rec.Status.Kind == store.TransactionPending {
				out = append(out, rec)
			}
		}
	case store.TransactionFilterExpiredBefore:
		for _, rec := range all {
			if rec.Status.Kind == store.TransactionPending && rec.ReferenceBlock+rec.ExpirationDelta < filter.Block {
				out = append(out, rec)
			}
		}
	default:
		for _, rec := range all {
			out = append(out, rec)
		}
	}
	return out
}
