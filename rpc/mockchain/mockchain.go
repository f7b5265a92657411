// Package mockchain is the deterministic in-process implementation of the
// Node RPC contract (spec.md component budget item "Mock Chain / RPC (5%)
// — deterministic in-process implementation of the remote-node contract for
// tests"). It is driven explicitly by test code (AdvanceBlock,
// RegisterAccount) rather than by any real consensus, and answers every
// rpc.Client method against that driven state.
package mockchain

import (
	"context"
	"fmt"
	"sync"

	"rollupclient/chainmmr"
	"rollupclient/coretypes"
	"rollupclient/digest"
	"rollupclient/rpc"
)

// Chain is the mock node. Zero value is not usable; use New.
type Chain struct {
	mu sync.Mutex

	chain *chainmmr.Chain

	accounts map[coretypes.AccountID]rpc.AccountSummary

	// notesByBlock holds the public notes committed at each block number,
	// keyed by note id, so sync_state/sync_notes can report them.
	notesByBlock map[uint32]map[digest.Hash]rpc.FetchedNote

	// txByBlock holds the transaction summaries committed at each block.
	txByBlock map[uint32][]rpc.TransactionSummary

	// nullifiers maps a revealed nullifier to the block it was revealed in.
	nullifiers map[digest.Hash]uint32

	genesisCommitment digest.Hash
}

// New returns an empty mock chain at height 0.
func New() *Chain {
	return &Chain{
		chain:        chainmmr.NewChain(),
		accounts:     make(map[coretypes.AccountID]rpc.AccountSummary),
		notesByBlock: make(map[uint32]map[digest.Hash]rpc.FetchedNote),
		txByBlock:    make(map[uint32][]rpc.TransactionSummary),
		nullifiers:   make(map[digest.Hash]uint32),
	}
}

// AdvanceBlock appends a new header, optionally carrying committed notes,
// transaction summaries, and revealed nullifiers. Test code drives the mock
// chain's "consensus" entirely through this method.
func (c *Chain) AdvanceBlock(header chainmmr.BlockHeader, notes []rpc.FetchedNote, txs []rpc.TransactionSummary, revealedNullifiers []digest.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hasNotes := len(notes) > 0
	c.chain.ApplyHeader(header, hasNotes)

	byID := make(map[digest.Hash]rpc.FetchedNote, len(notes))
	for _, n := range notes {
		byID[n.NoteID] = n
	}
	c.notesByBlock[header.Number] = byID
	c.txByBlock[header.Number] = txs
	for _, nf := range revealedNullifiers {
		c.nullifiers[nf] = header.Number
	}
}

// RegisterAccount seeds the mock node's view of an account's commitment, as
// if a prior transaction had already established it.
func (c *Chain) RegisterAccount(summary rpc.AccountSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[summary.ID] = summary
}

func (c *Chain) SyncState(ctx context.Context, fromBlock uint32, accountIDs []coretypes.AccountID, tags []coretypes.NoteTag) (rpc.SyncStateResponse, error) {
	if err := ctx.Err(); err != nil {
		return rpc.SyncStateResponse{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	next := fromBlock + 1
	header, ok := c.chain.Header(next)
	if !ok {
		return rpc.SyncStateResponse{ChainTip: c.chain.SyncHeight()}, nil
	}

	proof, err := c.chain.ProofFor(next)
	if err != nil {
		return rpc.SyncStateResponse{}, fmt.Errorf("mockchain: sync_state: %w", err)
	}

	wantAccounts := make(map[coretypes.AccountID]struct{}, len(accountIDs))
	for _, id := range accountIDs {
		wantAccounts[id] = struct{}{}
	}
	var summaries []rpc.AccountSummary
	for id, s := range c.accounts {
		if _, ok := wantAccounts[id]; ok {
			summaries = append(summaries, s)
		}
	}

	var noteRecords []rpc.FetchedNote
	for _, fn := range c.notesByBlock[next] {
		if noteMatchesTags(fn, tags) {
			noteRecords = append(noteRecords, fn)
		}
	}

	return rpc.SyncStateResponse{
		ChainTip:             c.chain.SyncHeight(),
		BlockHeader:          header,
		MMRDelta:             proof,
		BlockHasClientNotes:  c.chain.HasClientNotes(next),
		AccountSummaries:     summaries,
		TransactionSummaries: c.txByBlock[next],
		NoteRecords:          noteRecords,
	}, nil
}

func noteMatchesTags(fn rpc.FetchedNote, tags []coretypes.NoteTag) bool {
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if fn.Metadata.Tag == t {
			return true
		}
	}
	return false
}

func (c *Chain) SyncNotes(ctx context.Context, fromBlock uint32, tags []coretypes.NoteTag) (rpc.SyncNotesResponse, error) {
	if err := ctx.Err(); err != nil {
		return rpc.SyncNotesResponse{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	next := fromBlock + 1
	header, ok := c.chain.Header(next)
	if !ok {
		return rpc.SyncNotesResponse{ChainTip: c.chain.SyncHeight()}, nil
	}
	proof, err := c.chain.ProofFor(next)
	if err != nil {
		return rpc.SyncNotesResponse{}, fmt.Errorf("mockchain: sync_notes: %w", err)
	}
	var matched []rpc.FetchedNote
	for _, fn := range c.notesByBlock[next] {
		if noteMatchesTags(fn, tags) {
			matched = append(matched, fn)
		}
	}
	return rpc.SyncNotesResponse{
		ChainTip:    c.chain.SyncHeight(),
		BlockHeader: header,
		MMRPath:     proof.LocalPath,
		Notes:       matched,
	}, nil
}

func (c *Chain) GetBlockHeaderByNumber(ctx context.Context, num *uint32, includeMMRProof bool) (chainmmr.BlockHeader, *chainmmr.InclusionProof, error) {
	if err := ctx.Err(); err != nil {
		return chainmmr.BlockHeader{}, nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.chain.SyncHeight()
	if num != nil {
		n = *num
	}
	header, ok := c.chain.Header(n)
	if !ok {
		return chainmmr.BlockHeader{}, nil, fmt.Errorf("mockchain: no header for block %d", n)
	}
	if !includeMMRProof {
		return header, nil, nil
	}
	proof, err := c.chain.ProofFor(n)
	if err != nil {
		return chainmmr.BlockHeader{}, nil, err
	}
	return header, &proof, nil
}

func (c *Chain) GetBlockByNumber(ctx context.Context, num uint32) (chainmmr.BlockHeader, error) {
	if err := ctx.Err(); err != nil {
		return chainmmr.BlockHeader{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	header, ok := c.chain.Header(num)
	if !ok {
		return chainmmr.BlockHeader{}, fmt.Errorf("mockchain: no block %d", num)
	}
	return header, nil
}

func (c *Chain) GetNotesByID(ctx context.Context, ids []digest.Hash) ([]rpc.FetchedNote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	want := make(map[digest.Hash]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []rpc.FetchedNote
	for _, byID := range c.notesByBlock {
		for id, fn := range byID {
			if _, ok := want[id]; ok {
				out = append(out, fn)
			}
		}
	}
	return out, nil
}

func (c *Chain) GetAccountDetails(ctx context.Context, id coretypes.AccountID) (rpc.AccountDetails, error) {
	if err := ctx.Err(); err != nil {
		return rpc.AccountDetails{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	summary, ok := c.accounts[id]
	if !ok {
		return rpc.AccountDetails{}, fmt.Errorf("mockchain: unknown account %s", id)
	}
	vis := rpc.AccountDetailsPrivate
	if id.StorageMode() == coretypes.StorageModePublic {
		vis = rpc.AccountDetailsPublic
	}
	return rpc.AccountDetails{Visibility: vis, ID: id, Summary: summary}, nil
}

func (c *Chain) GetAccountProofs(ctx context.Context, requests []rpc.AccountProofRequest) (uint32, []rpc.AccountProof, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]rpc.AccountProof, 0, len(requests))
	for _, req := range requests {
		s, ok := c.accounts[req.ID]
		if !ok {
			continue
		}
		out = append(out, rpc.AccountProof{ID: req.ID, Commitment: s.Commitment})
	}
	return c.chain.SyncHeight(), out, nil
}

func (c *Chain) GetAccountStateDelta(ctx context.Context, id coretypes.AccountID, fromBlock, toBlock uint32) (rpc.AccountDelta, error) {
	if err := ctx.Err(); err != nil {
		return rpc.AccountDelta{}, err
	}
	return rpc.AccountDelta{FromBlock: fromBlock, ToBlock: toBlock}, nil
}

func (c *Chain) CheckNullifiers(ctx context.Context, nullifiers []digest.Hash) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(nullifiers))
	for i, n := range nullifiers {
		if block, ok := c.nullifiers[n]; ok {
			out[i] = []byte{byte(block)}
		}
	}
	return out, nil
}

func (c *Chain) CheckNullifiersByPrefix(ctx context.Context, prefixes []uint32, fromBlock uint32) ([]rpc.NullifierUpdate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	want := make(map[uint32]struct{}, len(prefixes))
	for _, p := range prefixes {
		want[p] = struct{}{}
	}
	var out []rpc.NullifierUpdate
	for n, block := range c.nullifiers {
		if block < fromBlock {
			continue
		}
		prefix := prefixOf(n)
		if _, ok := want[prefix]; ok {
			out = append(out, rpc.NullifierUpdate{Nullifier: n, Block: block})
		}
	}
	return out, nil
}

// prefixOf extracts the 32-bit routing prefix check_nullifiers_by_prefix
// matches against, the first four bytes of the nullifier digest.
func prefixOf(n digest.Hash) uint32 {
	return uint32(n[0])<<24 | uint32(n[1])<<16 | uint32(n[2])<<8 | uint32(n[3])
}

func (c *Chain) SubmitProvenTransaction(ctx context.Context, tx []byte) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chain.SyncHeight(), nil
}

func (c *Chain) SetGenesisCommitment(ctx context.Context, commitment digest.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.genesisCommitment = commitment
	return nil
}

var _ rpc.Client = (*Chain)(nil)
