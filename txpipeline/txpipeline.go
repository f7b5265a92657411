// Package txpipeline implements the transaction lifecycle of spec.md §4.4:
// request construction, local execution, proving, local apply, submission,
// and the cancellation/expiration paths that roll a discarded transaction's
// local effects back out. It composes the txexec.Executor, a
// TransactionProver, the store, and an authenticator.Authenticator behind
// one pending-transaction ledger, grounded on the teacher's TxPool's
// mutex-guarded lookup map and queue.
package txpipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"rollupclient/account"
	"rollupclient/asset"
	"rollupclient/authenticator"
	"rollupclient/coretypes"
	"rollupclient/digest"
	"rollupclient/errs"
	"rollupclient/note"
	"rollupclient/rpc"
	"rollupclient/store"
	"rollupclient/txexec"
)

// Template names the script family a Request composes, matching the
// built-in note scripts spec.md's DATA MODEL describes. TemplateCustom
// covers anything the catalog doesn't name.
type Template uint8

const (
	TemplateCustom Template = iota
	TemplateMint
	TemplateConsume
	TemplatePayToID
	TemplatePayToIDWithRecall
	TemplateSwap
)

// Request is everything NewTransaction needs to execute one transaction
// (spec §4.4 "Request"): which notes to consume (split between
// authenticated ids already tracked by the store and unauthenticated notes
// supplied in full), which notes the script is expected to produce, any
// foreign-account references the script reads, the expiration window, and
// whether an input note that turns out to be unconsumable should abort the
// whole request or simply be skipped.
type Request struct {
	Template                Template
	AuthenticatedInputs     []digest.Hash
	UnauthenticatedInputs   []*note.Note
	InputArgs               map[digest.Hash][]byte
	ExpectedOutputs         []*note.Note
	ForeignAccounts         []txexec.ForeignAccountProof
	ExpirationDelta         uint32
	IgnoreInvalidInputNotes bool
	AdviceMap               map[string][]byte
}

// BuildMintRequest builds a TemplateMint Request minting amount of a
// fungible asset from faucet to recipient, grounded on the teacher's
// core/faucet.go issuance path and exercised the same way scenario 1 of
// original_source's integration tests drives a faucet mint. The caller
// still executes it through NewTransaction against the faucet account.
func BuildMintRequest(faucet coretypes.AccountID, amount uint64, recipient note.Recipient, tag coretypes.NoteTag, expirationDelta uint32) (Request, error) {
	a, err := asset.NewFungible(faucet, amount)
	if err != nil {
		return Request{}, fmt.Errorf("txpipeline: BuildMintRequest: %w", err)
	}
	vault := asset.NewVault()
	if err := vault.Add(a); err != nil {
		return Request{}, fmt.Errorf("txpipeline: BuildMintRequest: %w", err)
	}
	minted := &note.Note{
		Assets:    vault,
		Recipient: recipient,
		Metadata: note.Metadata{
			Sender: faucet,
			Type:   note.Public,
			Tag:    tag,
			Hint:   note.ExecutionHint{Kind: note.HintAlways},
		},
	}
	return Request{
		Template:        TemplateMint,
		ExpectedOutputs: []*note.Note{minted},
		ExpirationDelta: expirationDelta,
	}, nil
}

// BuildPayToIDRequest builds a TemplatePayToID Request sending amount of a
// fungible asset from sender's own vault to recipient in a single output
// note (spec.md §8 scenario 2's "W1 balance decreased by 100"): the
// executor debits the output note's assets from the executing account's
// vault (txexec.DataStore.Issuance is false for this template), the same
// way the teacher's core/transactions.go builds a transfer around
// `FromCommon`/`HashTx` before signing.
func BuildPayToIDRequest(sender coretypes.AccountID, faucet coretypes.AccountID, amount uint64, recipient note.Recipient, tag coretypes.NoteTag, expirationDelta uint32) (Request, error) {
	a, err := asset.NewFungible(faucet, amount)
	if err != nil {
		return Request{}, fmt.Errorf("txpipeline: BuildPayToIDRequest: %w", err)
	}
	vault := asset.NewVault()
	if err := vault.Add(a); err != nil {
		return Request{}, fmt.Errorf("txpipeline: BuildPayToIDRequest: %w", err)
	}
	out := &note.Note{
		Assets:    vault,
		Recipient: recipient,
		Metadata: note.Metadata{
			Sender: sender,
			Type:   note.Public,
			Tag:    tag,
			Hint:   note.ExecutionHint{Kind: note.HintAlways},
		},
	}
	return Request{
		Template:        TemplatePayToID,
		ExpectedOutputs: []*note.Note{out},
		ExpirationDelta: expirationDelta,
	}, nil
}

// BuildPayToIDWithRecallRequest is BuildPayToIDRequest with the output
// note's execution hint set to HintAfterBlock(recallBlock), matching the
// well-known pay-to-id-with-recall script spec.md §4.3 names: syncengine's
// isP2IDRecall check has the screener offer the note back to sender After(recallBlock) even
// if the recipient never consumes it (spec.md §8 scenario 6).
func BuildPayToIDWithRecallRequest(sender, faucet coretypes.AccountID, amount uint64, recipient note.Recipient, tag coretypes.NoteTag, recallBlock uint32, expirationDelta uint32) (Request, error) {
	req, err := BuildPayToIDRequest(sender, faucet, amount, recipient, tag, expirationDelta)
	if err != nil {
		return Request{}, fmt.Errorf("txpipeline: BuildPayToIDWithRecallRequest: %w", err)
	}
	req.Template = TemplatePayToIDWithRecall
	req.ExpectedOutputs[0].Metadata.Hint = note.ExecutionHint{Kind: note.HintAfterBlock, BlockNumber: recallBlock}
	return req, nil
}

// BuildSwapRequest builds a TemplateSwap Request: sender offers a single
// asset out of its own vault (debited by the executor the same way
// BuildPayToIDRequest's transfer is) in one output note, with Aux recording
// the faucet the sender expects back so a counterparty's screener can judge
// whether the trade is worth taking. The atomic two-sided exchange itself is
// the swap note script's job, which is VM-level and out of scope (spec §1);
// this builder only covers the offering leg the pipeline can execute and
// debit locally.
func BuildSwapRequest(sender coretypes.AccountID, offered asset.Asset, requestedFaucet coretypes.AccountID, recipient note.Recipient, tag coretypes.NoteTag, expirationDelta uint32) (Request, error) {
	vault := asset.NewVault()
	if err := vault.Add(offered); err != nil {
		return Request{}, fmt.Errorf("txpipeline: BuildSwapRequest: %w", err)
	}
	out := &note.Note{
		Assets:    vault,
		Recipient: recipient,
		Metadata: note.Metadata{
			Sender: sender,
			Type:   note.Public,
			Tag:    tag,
			Hint:   note.ExecutionHint{Kind: note.HintAlways},
			Aux:    requestedFaucet.Suffix,
		},
	}
	return Request{
		Template:        TemplateSwap,
		ExpectedOutputs: []*note.Note{out},
		ExpirationDelta: expirationDelta,
	}, nil
}

// ProvenTransaction is the output of proving: an opaque wire payload plus
// the id it proves, ready for rpc.Client.SubmitProvenTransaction.
type ProvenTransaction struct {
	ID    string
	Bytes []byte
}

// Prover turns an executed transaction's witness into a ProvenTransaction.
// Errors here are recoverable (spec §4.4 "Prove"): they never mutate
// anything the pipeline has already applied locally, so a caller can retry
// proving, or even resubmit through a different prover, without redoing
// execution.
type Prover interface {
	Prove(witness txexec.TransactionWitness) (ProvenTransaction, error)
}

// LocalProver is a deterministic in-process stand-in for a VM-backed
// prover (the VM itself is out of scope, spec §1). It folds the executed
// transaction's id, final account commitment and input note ids into a
// single digest in place of a real proof.
type LocalProver struct{}

func (LocalProver) Prove(w txexec.TransactionWitness) (ProvenTransaction, error) {
	if w.Executed.ID == "" {
		return ProvenTransaction{}, fmt.Errorf("txpipeline: %w: executed transaction has no id", errs.ErrRecoverableProof)
	}
	h := digest.Sum([]byte(w.Executed.ID), w.Executed.FinalAccount.Commitment().Bytes())
	for _, n := range w.Executed.InputNotes {
		id := n.ID()
		h = digest.Combine(h, id)
	}
	return ProvenTransaction{ID: w.Executed.ID, Bytes: h.Bytes()}, nil
}

// pendingEntry is the bookkeeping the pipeline retains between NewTransaction
// and either Submit or Discard, grounded on the teacher's TxPool: a lookup
// keyed by transaction id, holding enough to roll back the local apply.
type pendingEntry struct {
	request         Request
	executed        txexec.ExecutedTransaction
	accountID       coretypes.AccountID
	preApplyAccount *account.Account
	preApplySeed    []byte
}

// Pipeline drives one account's transactions through execute, prove, apply,
// submit. It holds no chain connection of its own beyond the rpc.Client
// used to submit; callers supply the reference block each request executes
// against (typically the store's current synced tip).
type Pipeline struct {
	store  store.Store
	exec   txexec.Executor
	client rpc.Client
	auth   authenticator.Authenticator
	prover Prover

	mu      sync.Mutex
	pending map[string]*pendingEntry
	queue   []string
}

// New wires a pipeline over the given capability set. prover may be nil, in
// which case Submit uses LocalProver.
func New(st store.Store, exec txexec.Executor, client rpc.Client, auth authenticator.Authenticator, prover Prover) *Pipeline {
	if prover == nil {
		prover = LocalProver{}
	}
	return &Pipeline{
		store:   st,
		exec:    exec,
		client:  client,
		auth:    auth,
		prover:  prover,
		pending: make(map[string]*pendingEntry),
	}
}

// NewTransaction executes req against accountID's current store state and
// applies the result locally: the transaction record is persisted Pending,
// consumed inputs move to a Processing* state, expected outputs become
// Expected*, and the account's working state advances to the post-script
// value (spec §4.4 steps 1-4, "Apply locally"). The transaction is not yet
// submitted; call Submit with the returned id to prove, sign, and send it.
func (p *Pipeline) NewTransaction(ctx context.Context, accountID coretypes.AccountID, referenceBlock uint32, req Request) (txexec.ExecutedTransaction, error) {
	if err := ctx.Err(); err != nil {
		return txexec.ExecutedTransaction{}, err
	}

	rec, err := p.store.GetAccount(accountID)
	if err != nil {
		return txexec.ExecutedTransaction{}, fmt.Errorf("txpipeline: NewTransaction: %w", err)
	}
	if rec == nil {
		return txexec.ExecutedTransaction{}, fmt.Errorf("txpipeline: NewTransaction: %w", errs.ErrUnknownAccount)
	}
	if rec.Locked {
		return txexec.ExecutedTransaction{}, fmt.Errorf("txpipeline: NewTransaction: %w", errs.ErrAccountLocked)
	}

	header, err := p.store.GetBlockHeader(referenceBlock)
	if err != nil {
		return txexec.ExecutedTransaction{}, fmt.Errorf("txpipeline: NewTransaction: %w", err)
	}
	if header == nil {
		return txexec.ExecutedTransaction{}, fmt.Errorf("txpipeline: NewTransaction: no tracked header for block %d", referenceBlock)
	}

	inputNotes, consumedIDs, err := p.gatherInputs(req)
	if err != nil {
		return txexec.ExecutedTransaction{}, err
	}

	ds := txexec.DataStore{
		Account:         rec.Account.Clone(),
		ReferenceBlock:  *header,
		InputNotes:      inputNotes,
		ExpectedOutputs: req.ExpectedOutputs,
		ForeignAccounts: req.ForeignAccounts,
		Issuance:        req.Template == TemplateMint,
	}

	id := uuid.NewString()
	executed, err := p.exec.Execute(id, ds)
	if err != nil {
		return txexec.ExecutedTransaction{}, fmt.Errorf("txpipeline: execute: %w", err)
	}
	executed.OutputNotes = req.ExpectedOutputs
	executed.Arguments = req.InputArgs

	if err := p.applyLocally(accountID, referenceBlock, req, executed, consumedIDs); err != nil {
		return txexec.ExecutedTransaction{}, err
	}

	p.mu.Lock()
	p.pending[id] = &pendingEntry{
		request:         req,
		executed:        executed,
		accountID:       accountID,
		preApplyAccount: rec.Account.Clone(),
		preApplySeed:    append([]byte(nil), rec.Seed...),
	}
	p.queue = append(p.queue, id)
	p.mu.Unlock()

	return executed, nil
}

// gatherInputs resolves a Request's authenticated input ids against the
// store and combines them with its unauthenticated notes, honoring
// IgnoreInvalidInputNotes for ids the store doesn't recognize.
func (p *Pipeline) gatherInputs(req Request) ([]*note.Note, []digest.Hash, error) {
	var notes []*note.Note
	var ids []digest.Hash
	for _, id := range req.AuthenticatedInputs {
		rec, err := p.store.GetInputNote(id)
		if err != nil {
			return nil, nil, fmt.Errorf("txpipeline: gatherInputs: %w", err)
		}
		if rec == nil || rec.Details == nil {
			if req.IgnoreInvalidInputNotes {
				continue
			}
			return nil, nil, fmt.Errorf("txpipeline: gatherInputs: %w: note %s", errs.ErrUnknownNote, id)
		}
		notes = append(notes, rec.Details)
		ids = append(ids, id)
	}
	for _, n := range req.UnauthenticatedInputs {
		notes = append(notes, n)
		ids = append(ids, n.ID())
	}
	return notes, ids, nil
}

// applyLocally persists the transaction record, advances every consumed
// input note to its Processing* state, records expected output notes, and
// moves the account's working state forward (spec §4.4 "Apply locally").
func (p *Pipeline) applyLocally(accountID coretypes.AccountID, referenceBlock uint32, req Request, executed txexec.ExecutedTransaction, consumedIDs []digest.Hash) error {
	var outputIDs []digest.Hash
	var outputUpdates []*note.OutputNoteRecord
	for _, n := range req.ExpectedOutputs {
		id := n.ID()
		outputIDs = append(outputIDs, id)
		outputUpdates = append(outputUpdates, note.NewExpectedOutputNote(id, n, true))
	}
	if len(outputUpdates) > 0 {
		if err := p.store.UpsertOutputNotes(outputUpdates); err != nil {
			return fmt.Errorf("txpipeline: applyLocally: %w", err)
		}
	}

	preApply, err := p.store.GetAccount(accountID)
	if err != nil {
		return fmt.Errorf("txpipeline: applyLocally: %w", err)
	}

	txRecord := &store.TransactionRecord{
		ID:                    executed.ID,
		AccountID:             accountID,
		AuthenticatedInputs:   filterAuthenticated(req.AuthenticatedInputs, consumedIDs),
		UnauthenticatedInputs: filterUnauthenticated(req.UnauthenticatedInputs),
		OutputNotes:           outputIDs,
		ReferenceBlock:        referenceBlock,
		ExpirationDelta:       req.ExpirationDelta,
		Status:                store.TransactionStatus{Kind: store.TransactionPending},
		PreApplyCommitment:    preApply.Account.Commitment(),
		PreApplyAccount:       preApply.Account.Clone(),
	}
	if err := p.store.InsertTransaction(txRecord); err != nil {
		return fmt.Errorf("txpipeline: applyLocally: %w", err)
	}

	var inputUpdates []*note.InputNoteRecord
	for _, id := range consumedIDs {
		rec, err := p.store.GetInputNote(id)
		if err != nil {
			return fmt.Errorf("txpipeline: applyLocally: %w", err)
		}
		if rec == nil {
			rec = note.NewExpectedInputNote(id, nil)
		}
		if err := note.Apply(rec, note.ConsumedLocally{ConsumerAccount: accountID, ConsumerTxID: executed.ID}); err != nil {
			return fmt.Errorf("txpipeline: applyLocally: %w", err)
		}
		inputUpdates = append(inputUpdates, rec)
	}
	if len(inputUpdates) > 0 {
		if err := p.store.UpsertInputNotes(inputUpdates); err != nil {
			return fmt.Errorf("txpipeline: applyLocally: %w", err)
		}
	}

	if err := p.store.UpsertAccount(executed.FinalAccount, nil, false); err != nil {
		return fmt.Errorf("txpipeline: applyLocally: %w", err)
	}
	return nil
}

func filterAuthenticated(want, consumed []digest.Hash) []digest.Hash {
	set := make(map[digest.Hash]struct{}, len(want))
	for _, id := range want {
		set[id] = struct{}{}
	}
	var out []digest.Hash
	for _, id := range consumed {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func filterUnauthenticated(notes []*note.Note) []digest.Hash {
	out := make([]digest.Hash, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.ID())
	}
	return out
}

// Submit proves, signs, and sends a pending transaction. If the reference
// block plus the request's expiration_delta has already fallen behind
// chainTip, the transaction fails at submit time and is discarded as
// Expired (spec §4.4 "Cancellation and expiration": "A pending transaction
// whose reference_block + expiration_delta is below the chain tip at
// submit time MUST fail at submit").
func (p *Pipeline) Submit(ctx context.Context, txID string, chainTip uint32) (uint32, error) {
	return p.submit(ctx, txID, chainTip, p.prover)
}

// SubmitWithProver is Submit using a one-off prover instead of the
// pipeline's default, for a caller who wants to route a specific
// transaction through a different (e.g. remote) prover without
// reconfiguring the whole pipeline.
func (p *Pipeline) SubmitWithProver(ctx context.Context, txID string, chainTip uint32, prover Prover) (uint32, error) {
	if prover == nil {
		prover = p.prover
	}
	return p.submit(ctx, txID, chainTip, prover)
}

func (p *Pipeline) submit(ctx context.Context, txID string, chainTip uint32, prover Prover) (uint32, error) {
	p.mu.Lock()
	entry, ok := p.pending[txID]
	p.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("txpipeline: Submit: %w: transaction %s", errs.ErrUnknownKey, txID)
	}

	if entry.request.ExpirationDelta > 0 && entry.executed.ReferenceBlock.Number+entry.request.ExpirationDelta < chainTip {
		if err := p.Discard(txID, store.DiscardExpired); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("txpipeline: Submit: %w", errs.ErrTransactionExpired)
	}

	proven, err := prover.Prove(txexec.TransactionWitness{Executed: entry.executed, AdviceMap: entry.request.AdviceMap})
	if err != nil {
		return 0, fmt.Errorf("txpipeline: Submit: %w", err)
	}

	if p.auth != nil {
		if _, err := p.auth.Sign(authenticator.SigningInputs{Account: entry.accountID, Message: proven.Bytes}); err != nil {
			return 0, fmt.Errorf("txpipeline: Submit: sign: %w", err)
		}
	}

	block, err := p.client.SubmitProvenTransaction(ctx, proven.Bytes)
	if err != nil {
		if errors.Is(err, errs.ErrSubmitRejected) {
			if derr := p.Discard(txID, store.DiscardRejected); derr != nil {
				return 0, derr
			}
		}
		return 0, fmt.Errorf("txpipeline: Submit: %w", err)
	}
	return block, nil
}

// Discard marks a pending transaction Discarded(cause) and rolls its local
// effects back out: every input note it had moved to a Processing* state
// returns to its prior state, and the account reverts to the snapshot taken
// before this transaction applied (spec §4.4 "Discarding a transaction
// always rolls back"). Output notes this transaction would have produced
// are left as Expected*; nothing downstream will ever complete them, which
// is the client-visible signal they were abandoned.
func (p *Pipeline) Discard(txID string, cause store.DiscardCause) error {
	p.mu.Lock()
	entry, ok := p.pending[txID]
	if ok {
		delete(p.pending, txID)
		p.removeFromQueueLocked(txID)
	}
	p.mu.Unlock()

	if err := p.store.UpdateTransactionStatuses([]store.TransactionStatusUpdate{
		{ID: txID, Status: store.TransactionStatus{Kind: store.TransactionDiscarded, Cause: cause}},
	}); err != nil {
		return fmt.Errorf("txpipeline: Discard: %w", err)
	}

	if !ok {
		return p.rollbackNotesOnly(txID)
	}

	var inputUpdates []*note.InputNoteRecord
	for _, n := range entry.executed.InputNotes {
		id := n.ID()
		rec, err := p.store.GetInputNote(id)
		if err != nil {
			return fmt.Errorf("txpipeline: Discard: %w", err)
		}
		if rec == nil || rec.ConsumerTxID != txID {
			continue
		}
		note.RollbackProcessing(rec)
		inputUpdates = append(inputUpdates, rec)
	}
	if len(inputUpdates) > 0 {
		if err := p.store.UpsertInputNotes(inputUpdates); err != nil {
			return fmt.Errorf("txpipeline: Discard: %w", err)
		}
	}

	if err := p.store.UpsertAccount(entry.preApplyAccount, entry.preApplySeed, false); err != nil {
		return fmt.Errorf("txpipeline: Discard: %w", err)
	}
	return nil
}

// rollbackNotesOnly handles Discard for a transaction id this pipeline
// instance has no pending-entry snapshot for (e.g. a stale transaction
// syncengine flagged after a restart): it can still roll back any input
// note whose ConsumerTxID names txID, but cannot restore the consuming
// account's pre-apply state without the snapshot.
func (p *Pipeline) rollbackNotesOnly(txID string) error {
	recs, err := p.store.GetInputNotes(store.NoteFilter{Kind: store.NoteFilterProcessing})
	if err != nil {
		return fmt.Errorf("txpipeline: Discard: %w", err)
	}
	var updates []*note.InputNoteRecord
	for _, rec := range recs {
		if rec.ConsumerTxID != txID {
			continue
		}
		note.RollbackProcessing(rec)
		updates = append(updates, rec)
	}
	if len(updates) == 0 {
		return nil
	}
	return p.store.UpsertInputNotes(updates)
}

// Pending returns the ids of transactions this pipeline has applied locally
// but not yet seen committed or discarded, oldest first.
func (p *Pipeline) Pending() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.queue))
	copy(out, p.queue)
	return out
}

// Forget drops txID from the pending queue once its caller has observed it
// committed (syncengine tracks commitment; this pipeline only tracks what
// it has not yet heard back about).
func (p *Pipeline) Forget(txID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, txID)
	p.removeFromQueueLocked(txID)
}

func (p *Pipeline) removeFromQueueLocked(txID string) {
	for i, id := range p.queue {
		if id == txID {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			return
		}
	}
}
