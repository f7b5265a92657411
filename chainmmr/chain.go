package chainmmr

import (
	"fmt"
	"sync"

	"rollupclient/digest"
)

// BlockHeader is the minimal header data the client authenticates and
// stores (spec §6 persistence layout: "block_headers (num, header,
// has_client_notes)").
type BlockHeader struct {
	Number        uint32
	PrevHash      digest.Hash
	NoteRoot      digest.Hash
	NullifierRoot digest.Hash
	AccountRoot   digest.Hash
	Timestamp     uint64
}

// Hash returns the header's content digest, the leaf value appended to the
// chain MMR.
func (h BlockHeader) Hash() digest.Hash {
	buf := make([]byte, 12)
	for i := 0; i < 4; i++ {
		buf[i] = byte(h.Number >> (8 * (3 - i)))
	}
	for i := 0; i < 8; i++ {
		buf[4+i] = byte(h.Timestamp >> (8 * (7 - i)))
	}
	return digest.Sum(buf, h.PrevHash[:], h.NoteRoot[:], h.NullifierRoot[:], h.AccountRoot[:])
}

// Chain holds every block header the client has authenticated, the MMR
// committing to them, and the highest fully reconciled block number (spec
// §3: "SyncHeight is the highest block number fully reconciled").
type Chain struct {
	mu             sync.RWMutex
	mmr            *MMR
	headers        map[uint32]BlockHeader
	indexByNumber  map[uint32]uint64
	hasClientNotes map[uint32]bool
	syncHeight     uint32
}

// NewChain returns an empty chain with no authenticated headers.
func NewChain() *Chain {
	return &Chain{
		mmr:            NewMMR(),
		headers:        make(map[uint32]BlockHeader),
		indexByNumber:  make(map[uint32]uint64),
		hasClientNotes: make(map[uint32]bool),
	}
}

// SyncHeight returns the highest block number fully reconciled so far.
func (c *Chain) SyncHeight() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syncHeight
}

// Header returns the stored header for number, if any.
func (c *Chain) Header(number uint32) (BlockHeader, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.headers[number]
	return h, ok
}

// Root returns the current MMR root over every appended header.
func (c *Chain) Root() digest.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mmr.Root()
}

// ApplyHeader appends a newly authenticated header to the MMR and advances
// SyncHeight, part of the atomic apply_state_sync step (spec §4.1, §4.5
// step 3). hasClientNotes records whether the sync response flagged this
// block as relevant to a tracked account or tag.
func (c *Chain) ApplyHeader(h BlockHeader, hasClientNotes bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexByNumber[h.Number] = c.mmr.NumLeaves()
	c.mmr.Append(h.Hash())
	c.headers[h.Number] = h
	c.hasClientNotes[h.Number] = hasClientNotes
	if h.Number > c.syncHeight {
		c.syncHeight = h.Number
	}
}

// ProofFor returns the MMR inclusion proof for a previously applied header,
// used to re-authenticate a stored header against a later chain tip.
func (c *Chain) ProofFor(number uint32) (InclusionProof, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexByNumber[number]
	if !ok {
		return InclusionProof{}, fmt.Errorf("chainmmr: no authenticated header for block %d", number)
	}
	return c.mmr.Proof(idx)
}

// AuthenticateHeader reports whether h authenticates against the chain's
// current MMR root using proof (spec §4.5 step 3: "authenticate block_header
// against the MMR delta applied to the stored peaks").
func (c *Chain) AuthenticateHeader(h BlockHeader, proof InclusionProof) bool {
	c.mu.RLock()
	root := c.mmr.Root()
	c.mu.RUnlock()
	return VerifyInclusion(root, h.Hash(), proof)
}

// HasClientNotes reports whether block number was flagged relevant during
// sync (a fast-path hint, not an authoritative filter).
func (c *Chain) HasClientNotes(number uint32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasClientNotes[number]
}

// VerifyNoteInclusion checks a note's merkle path against a block header's
// note root (spec §7 consistency rule: "authentication succeeds iff the
// recomputed merkle root over (note_id, index, path) equals the stored
// block header's note root"). Proof hashes are ordered leaf-upwards, the
// same convention the teacher's VerifyMerklePath uses.
func VerifyNoteInclusion(noteRoot digest.Hash, noteID digest.Hash, index uint32, path []digest.Hash) bool {
	h := noteID
	idx := index
	for _, sib := range path {
		if idx%2 == 0 {
			h = digest.Combine(h, sib)
		} else {
			h = digest.Combine(sib, h)
		}
		idx /= 2
	}
	return h == noteRoot
}
