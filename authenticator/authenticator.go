// Package authenticator defines the TransactionAuthenticator capability
// (spec.md §4.4 step "sign" / component budget item "Transaction
// Authenticator") and an ed25519 HD-wallet implementation of it, grounded on
// the teacher's core/wallet.go: SLIP-0010 hardened derivation from a BIP-39
// seed, ed25519 signatures, no unhardened child support.
//
// Real keystore/hardware-signer backends are out of scope (spec §1); this
// package carries an in-memory wallet suitable for tests and local use, the
// same tier wallet.go itself occupies ("depends only on common + utility").
package authenticator

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	bip39 "github.com/tyler-smith/go-bip39"

	"rollupclient/coretypes"
)

const (
	hardenedOffset uint32 = 0x80000000
	masterHMACKey         = "ed25519 seed"
)

// SigningInputs is whatever the transaction pipeline hands the
// authenticator to produce a signature over: the account being signed for
// plus the message the VM/prover requires signed (typically a commitment
// over the executed transaction).
type SigningInputs struct {
	Account coretypes.AccountID
	Message []byte
}

// Signature is the authenticator's output: a detached signature plus the
// public key needed to verify it, matching wallet.go's SignTx layout
// (signature || pubkey) without the transaction-specific framing.
type Signature struct {
	Sig    []byte
	PubKey ed25519.PublicKey
}

// Authenticator is the capability the transaction pipeline calls during the
// sign step. Real implementations may prompt a user, reach a hardware
// signer, or (as here) derive from an in-memory HD wallet.
type Authenticator interface {
	Sign(inputs SigningInputs) (Signature, error)
}

// HDWallet derives one ed25519 keypair per account, using the low 32 bits
// of the account id's suffix as a hardened derivation index, so the same
// account always signs
// with the same key without the caller tracking an account-to-index table.
type HDWallet struct {
	mu sync.Mutex

	seed        []byte
	masterKey   []byte
	masterChain []byte
}

// NewRandomHDWallet generates entropyBits (128 or 256) of randomness,
// returning the wallet and the BIP-39 mnemonic the caller must record to
// recover it. Mirrors wallet.go's NewRandomWallet.
func NewRandomHDWallet(entropyBits int) (*HDWallet, string, error) {
	if entropyBits != 128 && entropyBits != 256 {
		return nil, "", fmt.Errorf("authenticator: unsupported entropy size %d", entropyBits)
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, "", fmt.Errorf("authenticator: entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", fmt.Errorf("authenticator: mnemonic: %w", err)
	}
	w, err := NewHDWalletFromSeed(bip39.NewSeed(mnemonic, ""))
	if err != nil {
		return nil, "", err
	}
	return w, mnemonic, nil
}

// HDWalletFromMnemonic imports an existing BIP-39 phrase.
func HDWalletFromMnemonic(mnemonic, passphrase string) (*HDWallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("authenticator: invalid mnemonic checksum")
	}
	return NewHDWalletFromSeed(bip39.NewSeed(mnemonic, passphrase))
}

// NewHDWalletFromSeed builds a wallet directly from raw seed bytes.
func NewHDWalletFromSeed(seed []byte) (*HDWallet, error) {
	if len(seed) < 16 {
		return nil, errors.New("authenticator: seed too short")
	}
	i := hmacSHA512([]byte(masterHMACKey), seed)
	return &HDWallet{
		seed:        seed,
		masterKey:   i[:32],
		masterChain: i[32:],
	}, nil
}

func hmacSHA512(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// derivePrivate returns the key material and chain code for a hardened
// index. ed25519 supports only hardened children.
func derivePrivate(parentKey, parentChain []byte, index uint32) (key, chain []byte, err error) {
	if index < hardenedOffset {
		return nil, nil, errors.New("authenticator: non-hardened derivation not supported for ed25519")
	}
	data := make([]byte, 1+32+4)
	copy(data[1:], parentKey)
	binary.BigEndian.PutUint32(data[33:], index)
	i := hmacSHA512(parentChain, data)
	return i[:32], i[32:], nil
}

// accountIndex folds an account id's suffix into a hardened derivation
// index, so every SigningInputs for the same account derives the same key.
func accountIndex(id coretypes.AccountID) uint32 {
	return uint32(id.Suffix) | hardenedOffset
}

// keyFor derives the ed25519 keypair for the given account, under a fixed
// account' level (0') and a per-account hardened index' level.
func (w *HDWallet) keyFor(id coretypes.AccountID) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	k1, c1, err := derivePrivate(w.masterKey, w.masterChain, hardenedOffset)
	if err != nil {
		return nil, nil, err
	}
	k2, _, err := derivePrivate(k1, c1, accountIndex(id))
	if err != nil {
		return nil, nil, err
	}
	priv := ed25519.NewKeyFromSeed(k2)
	pub := priv.Public().(ed25519.PublicKey)
	return priv, pub, nil
}

// Sign derives the account's key and signs the given message.
func (w *HDWallet) Sign(inputs SigningInputs) (Signature, error) {
	if len(inputs.Message) == 0 {
		return Signature{}, errors.New("authenticator: empty signing message")
	}
	priv, pub, err := w.keyFor(inputs.Account)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Sig: ed25519.Sign(priv, inputs.Message), PubKey: pub}, nil
}

// PublicKey exposes the derived public key for an account without signing,
// useful when a caller wants to register the account's authentication key
// ahead of any signing request.
func (w *HDWallet) PublicKey(id coretypes.AccountID) (ed25519.PublicKey, error) {
	_, pub, err := w.keyFor(id)
	return pub, err
}

// Verify checks a Signature against a message, for tests and for any
// caller that wants to double-check a signature before submission.
func Verify(sig Signature, message []byte) bool {
	return ed25519.Verify(sig.PubKey, message, sig.Sig)
}

var _ Authenticator = (*HDWallet)(nil)
