// Package note implements the note data model and the pure note-state
// machine of spec.md §3 and §4.2: a note's identity, the assets and script
// gate it carries, its inclusion proof, and the event-driven transitions an
// InputNoteRecord or OutputNoteRecord moves through.
package note

import (
	"rollupclient/asset"
	"rollupclient/chainmmr"
	"rollupclient/coretypes"
	"rollupclient/digest"
)

// Type distinguishes a public note (full details visible on chain) from a
// private one (only a commitment is published).
type Type uint8

const (
	Public Type = iota
	Private
)

// ExecutionHintKind selects when a note's consuming script becomes eligible
// to run.
type ExecutionHintKind uint8

const (
	// HintAlways notes are consumable as soon as they are committed.
	HintAlways ExecutionHintKind = iota
	// HintAfterBlock notes are only consumable once the chain reaches
	// BlockNumber (used by pay-to-id-with-recall and similar scripts).
	HintAfterBlock
)

// ExecutionHint is part of a note's metadata; the screener consults it when
// producing a Relevance.
type ExecutionHint struct {
	Kind        ExecutionHintKind
	BlockNumber uint32
}

// Metadata carries the sender, visibility, routing tag, execution hint, and
// an auxiliary value a note's recipient can give it arbitrary meaning.
type Metadata struct {
	Sender coretypes.AccountID
	Type   Type
	Tag    coretypes.NoteTag
	Hint   ExecutionHint
	Aux    uint64
}

// Recipient is the (serial_number, script, inputs) triple that gates
// consumption and feeds the note's identity.
type Recipient struct {
	SerialNumber digest.Hash
	ScriptRoot   digest.Hash
	InputsRoot   digest.Hash
}

// Digest folds the recipient triple into the "recipient_digest" spec.md's
// NoteId formula references.
func (r Recipient) Digest() digest.Hash {
	return digest.Sum(r.SerialNumber[:], r.ScriptRoot[:], r.InputsRoot[:])
}

// ComputeID implements NoteId = H(recipient_digest, asset_commitment_digest).
func ComputeID(recipient Recipient, assets *asset.Vault) digest.Hash {
	assetRoot := digest.Hash{}
	if assets != nil {
		assetRoot = assets.Root()
	}
	return digest.Combine(recipient.Digest(), assetRoot)
}

// Note is the full payload of a note: its assets, metadata, and recipient.
// Its ID is derived, never stored independently of these fields.
type Note struct {
	Assets    *asset.Vault
	Metadata  Metadata
	Recipient Recipient
}

// ID returns the note's deterministic identity.
func (n *Note) ID() digest.Hash {
	return ComputeID(n.Recipient, n.Assets)
}

// Nullifier is the value revealed on consumption, deterministic in the note
// alone so two clients holding the same note agree on it without
// coordination.
func (n *Note) Nullifier() digest.Hash {
	id := n.ID()
	return digest.Sum(id.Bytes(), n.Recipient.SerialNumber[:])
}

// InclusionProof locates a note inside a specific block's note tree.
type InclusionProof struct {
	BlockNumber uint32
	Index       uint32
	Path        []digest.Hash
}

// Authenticate checks the proof against a block's stored note root (spec §7
// consistency rule).
func (p InclusionProof) Authenticate(noteRoot digest.Hash, noteID digest.Hash) bool {
	return chainmmr.VerifyNoteInclusion(noteRoot, noteID, p.Index, p.Path)
}
