// Package notefile implements the note-file serialization of spec.md §6:
// a persisted note file is one of three tagged variants (NoteId,
// NoteDetails{after_block}, NoteWithProof), each length-prefixed,
// little-endian, self-describing, and round-trippable. Wire encoding uses
// RLP (github.com/ethereum/go-ethereum/rlp), the same codec the teacher's
// ledger.go already pulls in for block encoding.
package notefile

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"rollupclient/asset"
	"rollupclient/coretypes"
	"rollupclient/digest"
	"rollupclient/note"
)

// Variant tags the three note-file shapes spec §6 names.
type Variant uint8

const (
	VariantNoteID Variant = iota
	VariantNoteDetails
	VariantNoteWithProof
)

// File is the parsed form of a note file: exactly one of the fields below
// is meaningful, selected by Variant.
type File struct {
	Variant Variant

	ID digest.Hash // VariantNoteID

	Details    *note.Note       // VariantNoteDetails, VariantNoteWithProof
	AfterBlock uint32           // VariantNoteDetails
	Tag        *coretypes.NoteTag // VariantNoteDetails, optional

	Proof note.InclusionProof // VariantNoteWithProof
}

// wire types mirror the domain types with only RLP-friendly fields
// (exported, no maps, no pointers) since note.Note/asset.Vault carry
// unexported state (Vault's internal map) RLP cannot walk directly.

type wireAsset struct {
	Kind         uint8
	FaucetPrefix uint64
	FaucetSuffix uint64
	Amount       uint64
	NFTID        [32]byte
}

type wireHint struct {
	Kind        uint8
	BlockNumber uint32
}

type wireMetadata struct {
	SenderPrefix uint64
	SenderSuffix uint64
	Type         uint8
	Tag          uint32
	Hint         wireHint
	Aux          uint64
}

type wireRecipient struct {
	SerialNumber [32]byte
	ScriptRoot   [32]byte
	InputsRoot   [32]byte
}

type wireNote struct {
	Assets    []wireAsset
	Metadata  wireMetadata
	Recipient wireRecipient
}

type wireProof struct {
	BlockNumber uint32
	Index       uint32
	Path        [][32]byte
}

type wireNoteIDPayload struct {
	ID [32]byte
}

type wireNoteDetailsPayload struct {
	Note       wireNote
	AfterBlock uint32
	HasTag     bool
	Tag        uint32
}

type wireNoteWithProofPayload struct {
	Note  wireNote
	Proof wireProof
}

func toWireNote(n *note.Note) wireNote {
	var assets []wireAsset
	if n.Assets != nil {
		for _, a := range n.Assets.Assets() {
			assets = append(assets, wireAsset{
				Kind:         uint8(a.Kind),
				FaucetPrefix: a.FaucetID.Prefix,
				FaucetSuffix: a.FaucetID.Suffix,
				Amount:       a.Amount,
				NFTID:        a.NFTID,
			})
		}
	}
	return wireNote{
		Assets: assets,
		Metadata: wireMetadata{
			SenderPrefix: n.Metadata.Sender.Prefix,
			SenderSuffix: n.Metadata.Sender.Suffix,
			Type:         uint8(n.Metadata.Type),
			Tag:          uint32(n.Metadata.Tag),
			Hint: wireHint{
				Kind:        uint8(n.Metadata.Hint.Kind),
				BlockNumber: n.Metadata.Hint.BlockNumber,
			},
			Aux: n.Metadata.Aux,
		},
		Recipient: wireRecipient{
			SerialNumber: n.Recipient.SerialNumber,
			ScriptRoot:   n.Recipient.ScriptRoot,
			InputsRoot:   n.Recipient.InputsRoot,
		},
	}
}

func fromWireNote(w wireNote) (*note.Note, error) {
	vault := asset.NewVault()
	for _, wa := range w.Assets {
		faucet := coretypes.AccountID{Prefix: wa.FaucetPrefix, Suffix: wa.FaucetSuffix}
		a := asset.Asset{Kind: asset.Kind(wa.Kind), FaucetID: faucet, Amount: wa.Amount, NFTID: wa.NFTID}
		if err := vault.Add(a); err != nil {
			return nil, fmt.Errorf("notefile: decoding note assets: %w", err)
		}
	}
	return &note.Note{
		Assets: vault,
		Metadata: note.Metadata{
			Sender: coretypes.AccountID{Prefix: w.Metadata.SenderPrefix, Suffix: w.Metadata.SenderSuffix},
			Type:   note.Type(w.Metadata.Type),
			Tag:    coretypes.NoteTag(w.Metadata.Tag),
			Hint: note.ExecutionHint{
				Kind:        note.ExecutionHintKind(w.Metadata.Hint.Kind),
				BlockNumber: w.Metadata.Hint.BlockNumber,
			},
			Aux: w.Metadata.Aux,
		},
		Recipient: note.Recipient{
			SerialNumber: w.Recipient.SerialNumber,
			ScriptRoot:   w.Recipient.ScriptRoot,
			InputsRoot:   w.Recipient.InputsRoot,
		},
	}, nil
}

func toWireProof(p note.InclusionProof) wireProof {
	path := make([][32]byte, len(p.Path))
	for i, h := range p.Path {
		path[i] = h
	}
	return wireProof{BlockNumber: p.BlockNumber, Index: p.Index, Path: path}
}

func fromWireProof(w wireProof) note.InclusionProof {
	path := make([]digest.Hash, len(w.Path))
	for i, h := range w.Path {
		path[i] = h
	}
	return note.InclusionProof{BlockNumber: w.BlockNumber, Index: w.Index, Path: path}
}

// Serialize encodes f as [1-byte variant tag][4-byte little-endian payload
// length][RLP-encoded payload], matching spec §6's "length-prefixed,
// little-endian, self-describing" requirement.
func Serialize(f File) ([]byte, error) {
	var payload []byte
	var err error
	switch f.Variant {
	case VariantNoteID:
		payload, err = rlp.EncodeToBytes(wireNoteIDPayload{ID: f.ID})
	case VariantNoteDetails:
		if f.Details == nil {
			return nil, fmt.Errorf("notefile: Serialize: NoteDetails variant requires Details")
		}
		p := wireNoteDetailsPayload{Note: toWireNote(f.Details), AfterBlock: f.AfterBlock}
		if f.Tag != nil {
			p.HasTag = true
			p.Tag = uint32(*f.Tag)
		}
		payload, err = rlp.EncodeToBytes(p)
	case VariantNoteWithProof:
		if f.Details == nil {
			return nil, fmt.Errorf("notefile: Serialize: NoteWithProof variant requires Details")
		}
		payload, err = rlp.EncodeToBytes(wireNoteWithProofPayload{Note: toWireNote(f.Details), Proof: toWireProof(f.Proof)})
	default:
		return nil, fmt.Errorf("notefile: Serialize: unknown variant %d", f.Variant)
	}
	if err != nil {
		return nil, fmt.Errorf("notefile: Serialize: %w", err)
	}

	out := make([]byte, 1+4+len(payload))
	out[0] = byte(f.Variant)
	binary.LittleEndian.PutUint32(out[1:5], uint32(len(payload)))
	copy(out[5:], payload)
	return out, nil
}

// Parse decodes a byte slice produced by Serialize back into a File.
func Parse(data []byte) (File, error) {
	if len(data) < 5 {
		return File{}, fmt.Errorf("notefile: Parse: data too short (%d bytes)", len(data))
	}
	variant := Variant(data[0])
	length := binary.LittleEndian.Uint32(data[1:5])
	if uint32(len(data)-5) != length {
		return File{}, fmt.Errorf("notefile: Parse: length prefix %d does not match payload size %d", length, len(data)-5)
	}
	payload := data[5:]

	switch variant {
	case VariantNoteID:
		var p wireNoteIDPayload
		if err := rlp.DecodeBytes(payload, &p); err != nil {
			return File{}, fmt.Errorf("notefile: Parse: %w", err)
		}
		return File{Variant: VariantNoteID, ID: p.ID}, nil
	case VariantNoteDetails:
		var p wireNoteDetailsPayload
		if err := rlp.DecodeBytes(payload, &p); err != nil {
			return File{}, fmt.Errorf("notefile: Parse: %w", err)
		}
		details, err := fromWireNote(p.Note)
		if err != nil {
			return File{}, fmt.Errorf("notefile: Parse: %w", err)
		}
		f := File{Variant: VariantNoteDetails, Details: details, AfterBlock: p.AfterBlock}
		if p.HasTag {
			tag := coretypes.NoteTag(p.Tag)
			f.Tag = &tag
		}
		return f, nil
	case VariantNoteWithProof:
		var p wireNoteWithProofPayload
		if err := rlp.DecodeBytes(payload, &p); err != nil {
			return File{}, fmt.Errorf("notefile: Parse: %w", err)
		}
		details, err := fromWireNote(p.Note)
		if err != nil {
			return File{}, fmt.Errorf("notefile: Parse: %w", err)
		}
		return File{Variant: VariantNoteWithProof, Details: details, Proof: fromWireProof(p.Proof)}, nil
	default:
		return File{}, fmt.Errorf("notefile: Parse: unknown variant %d", variant)
	}
}
