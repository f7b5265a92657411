// Package asset implements the fungible/non-fungible asset types and the
// account vault, following the merge semantics spec.md §3 describes: two
// fungible assets of the same faucet sum, non-fungible assets are unique.
package asset

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"rollupclient/coretypes"
	"rollupclient/digest"
)

// Kind distinguishes fungible from non-fungible assets.
type Kind uint8

const (
	Fungible Kind = iota
	NonFungible
)

// Asset is either a fungible (faucet, amount) pair or a non-fungible
// (faucet, opaque id word) pair. Exactly one of Amount/NFTID is meaningful,
// selected by Kind.
type Asset struct {
	Kind     Kind
	FaucetID coretypes.AccountID
	Amount   uint64      // meaningful iff Kind == Fungible
	NFTID    digest.Hash // meaningful iff Kind == NonFungible
}

// NewFungible constructs a fungible asset, validating the faucet id is
// actually a fungible-faucet account.
func NewFungible(faucet coretypes.AccountID, amount uint64) (Asset, error) {
	if faucet.AccountType() != coretypes.AccountTypeFungibleFaucet {
		return Asset{}, fmt.Errorf("asset: %s is not a fungible faucet", faucet)
	}
	return Asset{Kind: Fungible, FaucetID: faucet, Amount: amount}, nil
}

// NewNonFungible constructs a non-fungible asset for the given faucet and
// opaque id.
func NewNonFungible(faucet coretypes.AccountID, id digest.Hash) (Asset, error) {
	if faucet.AccountType() != coretypes.AccountTypeNonFungibleFaucet {
		return Asset{}, fmt.Errorf("asset: %s is not a non-fungible faucet", faucet)
	}
	return Asset{Kind: NonFungible, FaucetID: faucet, NFTID: id}, nil
}

// addAmounts sums two fungible amounts using uint256.Int's overflow
// detection rather than wrapping uint64 arithmetic, so a vault never
// silently under-reports a balance that actually overflowed.
func addAmounts(a, b uint64) (uint64, error) {
	sum := new(uint256.Int).Add(uint256.NewInt(a), uint256.NewInt(b))
	if !sum.IsUint64() {
		return 0, fmt.Errorf("asset: amount overflow adding %d + %d", a, b)
	}
	return sum.Uint64(), nil
}

// Key returns a value suitable for use as a vault map key: fungible assets
// key on their faucet alone (so amounts merge), non-fungible assets key on
// faucet+id (so each token is distinct).
func (a Asset) Key() string {
	if a.Kind == Fungible {
		return "f:" + a.FaucetID.String()
	}
	return "n:" + a.FaucetID.String() + ":" + a.NFTID.Hex()
}

// Commitment folds the asset into a single digest, used when computing a
// note's asset-commitment digest for its NoteId (spec §3).
func (a Asset) Commitment() digest.Hash {
	if a.Kind == Fungible {
		buf := make([]byte, 8)
		for i := range buf {
			buf[i] = byte(a.Amount >> (8 * (7 - i)))
		}
		return digest.Sum([]byte{byte(a.Kind)}, a.FaucetID.Bytes(), buf)
	}
	return digest.Sum([]byte{byte(a.Kind)}, a.FaucetID.Bytes(), a.NFTID[:])
}

// Vault is the set of assets an account (or a note) carries. Fungible
// amounts of the same faucet are merged on Add; non-fungible assets are
// unique per (faucet, id).
type Vault struct {
	assets map[string]Asset
}

func NewVault() *Vault {
	return &Vault{assets: make(map[string]Asset)}
}

// Add merges a into the vault, summing fungible amounts of the same faucet.
// Adding a non-fungible asset that already exists in the vault is a no-op
// (sets, not multisets).
func (v *Vault) Add(a Asset) error {
	if v.assets == nil {
		v.assets = make(map[string]Asset)
	}
	key := a.Key()
	if existing, ok := v.assets[key]; ok && a.Kind == Fungible {
		sum, err := addAmounts(existing.Amount, a.Amount)
		if err != nil {
			return err
		}
		existing.Amount = sum
		v.assets[key] = existing
		return nil
	}
	v.assets[key] = a
	return nil
}

// Remove subtracts a fungible amount (returning an error if the vault holds
// less than requested) or removes a non-fungible asset entirely.
func (v *Vault) Remove(a Asset) error {
	key := a.Key()
	existing, ok := v.assets[key]
	if !ok {
		return fmt.Errorf("vault: asset %s not present", key)
	}
	if a.Kind == NonFungible {
		delete(v.assets, key)
		return nil
	}
	if existing.Amount < a.Amount {
		return fmt.Errorf("vault: insufficient balance for faucet %s: have %d, want %d",
			a.FaucetID, existing.Amount, a.Amount)
	}
	existing.Amount -= a.Amount
	if existing.Amount == 0 {
		delete(v.assets, key)
	} else {
		v.assets[key] = existing
	}
	return nil
}

// FungibleBalance returns the amount held for the given faucet.
func (v *Vault) FungibleBalance(faucet coretypes.AccountID) uint64 {
	a, ok := v.assets["f:"+faucet.String()]
	if !ok {
		return 0
	}
	return a.Amount
}

// Assets returns a deterministically ordered snapshot of the vault's
// contents (ordering makes the vault root reproducible).
func (v *Vault) Assets() []Asset {
	keys := make([]string, 0, len(v.assets))
	for k := range v.assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Asset, 0, len(keys))
	for _, k := range keys {
		out = append(out, v.assets[k])
	}
	return out
}

// Merge folds another vault's assets into v (used applying account/vault
// deltas and combining a transaction's output-note assets).
func (v *Vault) Merge(other *Vault) error {
	if other == nil {
		return nil
	}
	for _, a := range other.Assets() {
		if err := v.Add(a); err != nil {
			return err
		}
	}
	return nil
}

// Root computes a deterministic commitment over the vault's contents,
// folding each asset's own commitment in sorted-key order.
func (v *Vault) Root() digest.Hash {
	assets := v.Assets()
	if len(assets) == 0 {
		return digest.Hash{}
	}
	h := assets[0].Commitment()
	for _, a := range assets[1:] {
		h = digest.Combine(h, a.Commitment())
	}
	return h
}

// Clone returns a deep copy of the vault.
func (v *Vault) Clone() *Vault {
	out := NewVault()
	for k, a := range v.assets {
		out.assets[k] = a
	}
	return out
}
