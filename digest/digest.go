// Package digest holds the hash type and hashing helpers shared by every
// other package in the engine (account commitments, note ids, nullifiers,
// block headers, MMR nodes). It sits at the bottom of the import graph the
// same way the teacher's wallet package documents staying "at the lowest
// tier" (common + crypto only, no ledger/consensus/network).
package digest

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// Hash is a 32-byte digest used throughout the engine: account commitments,
// note ids, nullifiers, block header hashes and MMR node hashes.
type Hash [32]byte

// Hex returns the full hexadecimal representation, 0x-prefixed.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

// Short returns a shortened form (first 4 + last 4 hex chars) suitable for
// log lines.
func (h Hash) Short() string {
	full := hex.EncodeToString(h[:])
	if len(full) <= 8 {
		return full
	}
	return fmt.Sprintf("%s..%s", full[:4], full[len(full)-4:])
}

func (h Hash) String() string { return h.Hex() }

// Bytes returns the digest as a slice, for folding into further hash input.
func (h Hash) Bytes() []byte { return h[:] }

// IsZero reports whether h is the all-zero hash (used as the "no prior
// block" / "empty" sentinel, matching the teacher's genesis-hash handling in
// ledger.go's LastBlockHash).
func (h Hash) IsZero() bool { return h == Hash{} }

// Sum hashes the concatenation of data with BLAKE3, the engine's default
// hash for commitments (note ids, nullifiers, account/note commitments).
func Sum(data ...[]byte) Hash {
	h := blake3.New(32, nil)
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Combine hashes two digests together, used for parent-from-children merkle
// steps (account/vault/storage roots, MMR peaks).
func Combine(a, b Hash) Hash {
	return Sum(a[:], b[:])
}

// ParseHash decodes a 0x-prefixed or bare hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("parse hash: %w", err)
	}
	if len(b) != 32 {
		return Hash{}, fmt.Errorf("parse hash: want 32 bytes, got %d", len(b))
	}
	var out Hash
	copy(out[:], b)
	return out, nil
}
