// Package account implements the account data model of spec.md §3: identity,
// state (nonce/vault/storage/code/commitment), and the record wrapper the
// store persists (seed, locked flag, last known commitment).
package account

import (
	"sort"

	"rollupclient/asset"
	"rollupclient/coretypes"
	"rollupclient/digest"
)

// StorageSlot is a single indexed account storage slot. Some slots are plain
// values, others are key->value maps (spec §3 "storage (indexed slots, some
// of which are key→value maps)").
type StorageSlot struct {
	Index uint8
	Value digest.Hash
	Map   map[digest.Hash]digest.Hash // nil for a plain-value slot
}

func (s StorageSlot) commitment() digest.Hash {
	if s.Map == nil {
		return digest.Sum([]byte{s.Index}, s.Value[:])
	}
	keys := make([]digest.Hash, 0, len(s.Map))
	for k := range s.Map {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return string(keys[i][:]) < string(keys[j][:]) })
	h := digest.Sum([]byte{s.Index})
	for _, k := range keys {
		v := s.Map[k]
		h = digest.Combine(h, digest.Sum(k[:], v[:]))
	}
	return h
}

// Storage is the full indexed slot table for an account.
type Storage []StorageSlot

// Root computes a deterministic commitment over every slot, in index order.
func (s Storage) Root() digest.Hash {
	if len(s) == 0 {
		return digest.Hash{}
	}
	sorted := make(Storage, len(s))
	copy(sorted, s)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	h := sorted[0].commitment()
	for _, slot := range sorted[1:] {
		h = digest.Combine(h, slot.commitment())
	}
	return h
}

// Code is a commitment to the account's executable procedures. The
// procedures themselves live with the assembler/VM (out of scope, spec §1);
// the engine only needs the root that feeds the account commitment.
type Code struct {
	Root digest.Hash
}

// Account is the mutable state tracked for one AccountID.
type Account struct {
	ID      coretypes.AccountID
	Nonce   uint64
	Vault   *asset.Vault
	Storage Storage
	Code    Code
}

// NewAccount builds a fresh, nonce-zero account with an empty vault.
func NewAccount(id coretypes.AccountID, code Code) *Account {
	return &Account{ID: id, Vault: asset.NewVault(), Code: code}
}

// Commitment is the cryptographic summary over (nonce, vault-root,
// storage-root, code-root) that uniquely identifies the account's state
// (spec §3 invariant).
func (a *Account) Commitment() digest.Hash {
	nonceBuf := make([]byte, 8)
	for i := range nonceBuf {
		nonceBuf[i] = byte(a.Nonce >> (8 * (7 - i)))
	}
	vaultRoot := digest.Hash{}
	if a.Vault != nil {
		vaultRoot = a.Vault.Root()
	}
	storageRoot := a.Storage.Root()
	return digest.Sum(nonceBuf, vaultRoot[:], storageRoot[:], a.Code.Root[:])
}

// Clone deep-copies the account so callers can mutate a working copy (used
// by the transaction executor to produce a final-state account without
// mutating the store's view until apply).
func (a *Account) Clone() *Account {
	out := &Account{ID: a.ID, Nonce: a.Nonce, Code: a.Code}
	if a.Vault != nil {
		out.Vault = a.Vault.Clone()
	} else {
		out.Vault = asset.NewVault()
	}
	out.Storage = make(Storage, len(a.Storage))
	copy(out.Storage, a.Storage)
	return out
}

// Record is what the store persists per spec §3 ("Record: stored with
// optional account seed... a locked flag, and the last known commitment").
type Record struct {
	Account        *Account
	Seed           []byte // required for accounts not yet confirmed on chain
	Locked         bool
	LastCommitment digest.Hash
}

// Overwrite replaces this record's account state with a freshly imported
// snapshot, unlocking it (spec §3 lifecycle: "unlocked by overwrite-import
// of a fresh snapshot").
func (r *Record) Overwrite(acc *Account) {
	r.Account = acc
	r.LastCommitment = acc.Commitment()
	r.Locked = false
}

// ReconcileCommitment compares the account's current commitment against a
// chain-reported commitment, locking the record on mismatch and unlocking it
// on match (spec §3 invariant + §4.5 step 8).
func (r *Record) ReconcileCommitment(chainCommitment digest.Hash) {
	r.Locked = r.Account.Commitment() != chainCommitment
	if !r.Locked {
		r.LastCommitment = chainCommitment
	}
}
