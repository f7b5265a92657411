// Package coretypes centralizes the small set of identifier and enum types
// referenced across account, asset, note and transaction packages, the same
// way the teacher's core/common_structs.go "declares only data structures...
// to avoid cyclic imports" for its cross-cutting types.
package coretypes

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"rollupclient/digest"
)

// StorageMode is whether an account publishes its full state to the node
// (Public) or only its commitment (Private).
type StorageMode uint8

const (
	StorageModePublic StorageMode = iota
	StorageModePrivate
)

func (m StorageMode) String() string {
	if m == StorageModePrivate {
		return "private"
	}
	return "public"
}

// AccountType distinguishes the four account kinds spec.md names.
type AccountType uint8

const (
	AccountTypeRegularWallet AccountType = iota
	AccountTypeRegularWalletUpdatable
	AccountTypeFungibleFaucet
	AccountTypeNonFungibleFaucet
)

func (t AccountType) String() string {
	switch t {
	case AccountTypeRegularWalletUpdatable:
		return "regular-wallet-updatable"
	case AccountTypeFungibleFaucet:
		return "fungible-faucet"
	case AccountTypeNonFungibleFaucet:
		return "non-fungible-faucet"
	default:
		return "regular-wallet"
	}
}

func (t AccountType) IsFaucet() bool {
	return t == AccountTypeFungibleFaucet || t == AccountTypeNonFungibleFaucet
}

// AccountID is a stable account identifier split into a prefix and suffix
// half. The low bits of the prefix encode storage mode and account type so
// both are derivable from the id alone, matching spec.md's "every ID has a
// storage mode... and a type".
type AccountID struct {
	Prefix uint64
	Suffix uint64
}

const (
	accountIDModeShift = 0
	accountIDModeMask   = 0x1
	accountIDTypeShift  = 1
	accountIDTypeMask   = 0x3 << accountIDTypeShift
)

// NewAccountID packs a random-looking prefix/suffix pair (normally produced
// by the seed-grinding procedure the executor/assembler performs; here
// callers supply entropy directly) together with the given mode and type.
func NewAccountID(prefix, suffix uint64, mode StorageMode, typ AccountType) AccountID {
	p := prefix &^ uint64(accountIDModeMask|accountIDTypeMask)
	p |= uint64(mode) << accountIDModeShift
	p |= uint64(typ) << accountIDTypeShift
	return AccountID{Prefix: p, Suffix: suffix}
}

func (id AccountID) StorageMode() StorageMode {
	return StorageMode((id.Prefix >> accountIDModeShift) & accountIDModeMask)
}

func (id AccountID) AccountType() AccountType {
	return AccountType((id.Prefix & accountIDTypeMask) >> accountIDTypeShift)
}

func (id AccountID) IsFaucet() bool { return id.AccountType().IsFaucet() }

// Bytes returns the 16-byte big-endian encoding of the id (prefix || suffix).
func (id AccountID) Bytes() []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[:8], id.Prefix)
	binary.BigEndian.PutUint64(b[8:], id.Suffix)
	return b
}

func (id AccountID) String() string {
	return "0x" + hex.EncodeToString(id.Bytes())
}

func (id AccountID) IsZero() bool { return id.Prefix == 0 && id.Suffix == 0 }

// AccountIDFromBytes decodes the 16-byte encoding produced by Bytes.
func AccountIDFromBytes(b []byte) (AccountID, error) {
	if len(b) != 16 {
		return AccountID{}, fmt.Errorf("account id: want 16 bytes, got %d", len(b))
	}
	return AccountID{
		Prefix: binary.BigEndian.Uint64(b[:8]),
		Suffix: binary.BigEndian.Uint64(b[8:]),
	}, nil
}

// Digest returns a content hash of the id, used when an id needs to be
// folded into a BLAKE3 commitment (e.g. as part of a note recipient digest).
func (id AccountID) Digest() digest.Hash {
	return digest.Sum(id.Bytes())
}

// NoteTag is a 32-bit filter value the node uses to route notes to
// subscribing clients.
type NoteTag uint32

// TagSourceKind identifies why a tag is subscribed.
type TagSourceKind uint8

const (
	TagSourceUser TagSourceKind = iota
	TagSourceNote
	TagSourceAccount
)

// TagSource records why a NoteTag subscription exists, so it can be removed
// when its owning note/account is no longer tracked.
type TagSource struct {
	Kind TagSourceKind
	// RefID holds the owning entity's bytes: the note id when Kind is
	// TagSourceNote, the account id when Kind is TagSourceAccount, each in
	// the encoding of the owning package to avoid an import here.
	RefID []byte
}

func UserTagSource() TagSource { return TagSource{Kind: TagSourceUser} }

func NoteTagSource(noteID []byte) TagSource {
	return TagSource{Kind: TagSourceNote, RefID: append([]byte(nil), noteID...)}
}

func AccountTagSource(id AccountID) TagSource {
	return TagSource{Kind: TagSourceAccount, RefID: id.Bytes()}
}
