// Package client implements the Client Facade of spec.md §4.6: the
// thread-safe entry point a caller drives, holding references to the
// store, the node RPC client, a prover, an authenticator, and the note
// screener, and exposing new_transaction/submit_transaction/sync_state/
// import_note/import_account/tag management/query operations.
package client

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"rollupclient/account"
	"rollupclient/authenticator"
	"rollupclient/coretypes"
	"rollupclient/digest"
	"rollupclient/errs"
	"rollupclient/note"
	"rollupclient/rpc"
	"rollupclient/rpc/notestream"
	"rollupclient/screener"
	"rollupclient/store"
	"rollupclient/syncengine"
	"rollupclient/txexec"
	"rollupclient/txpipeline"
)

// Config carries the environment inputs spec §6 names beyond what the RPC
// client, store, and keystore constructors already consumed: the
// concurrency-relevant knobs the sync engine and transaction pipeline need
// (spec §4.6).
type Config struct {
	GracefulBlocks      uint32
	MaxBlockNumberDelta uint32
	DebugMode           bool
}

// Client is the facade. sync_state and submit_transaction are serialized
// against each other by mu (spec §5 "sync_state is serialized against
// itself and against submit_transaction within a single client"); every
// other operation only touches the store through its own internally
// synchronized methods and needs no additional lock here.
type Client struct {
	store    store.Store
	rpc      rpc.Client
	pipeline *txpipeline.Pipeline
	sync     *syncengine.Engine
	logger   *log.Logger
	cfg      Config

	mu sync.Mutex

	metrics *metrics
}

// New wires a facade over the given capability set. scr may be nil to skip
// note screening (all fetched public notes import as Expected/Unverified
// without a relevance check). prover may be nil to default to
// txpipeline.LocalProver. lg may be nil to fall back to logrus's standard
// logger, matching every other long-lived component in this engine.
func New(st store.Store, rpcClient rpc.Client, scr *screener.Screen, exec txexec.Executor, auth authenticator.Authenticator, prover txpipeline.Prover, cfg Config, lg *log.Logger) *Client {
	if lg == nil {
		lg = log.StandardLogger()
	}
	return &Client{
		store:    st,
		rpc:      rpcClient,
		pipeline: txpipeline.New(st, exec, rpcClient, auth, prover),
		sync:     syncengine.New(rpcClient, st, scr, syncengine.Config{GracefulBlocks: cfg.GracefulBlocks, MaxBlockNumberDelta: cfg.MaxBlockNumberDelta}, lg),
		logger:   lg,
		cfg:      cfg,
		metrics:  newMetrics(),
	}
}

// NewTransaction executes req against accountID at the store's current
// sync height and applies it locally (spec §4.4 steps 1-4). It does not
// submit the transaction; call SubmitTransaction with the returned id.
func (c *Client) NewTransaction(ctx context.Context, accountID coretypes.AccountID, req txpipeline.Request) (txexec.ExecutedTransaction, error) {
	height, err := c.store.GetSyncHeight()
	if err != nil {
		return txexec.ExecutedTransaction{}, fmt.Errorf("client: NewTransaction: %w", err)
	}
	return c.pipeline.NewTransaction(ctx, accountID, height, req)
}

// SubmitTransaction proves (with the pipeline's configured prover), signs,
// and submits a previously applied transaction.
func (c *Client) SubmitTransaction(ctx context.Context, txID string) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	height, err := c.store.GetSyncHeight()
	if err != nil {
		return 0, fmt.Errorf("client: SubmitTransaction: %w", err)
	}
	return c.pipeline.Submit(ctx, txID, height)
}

// SubmitTransactionWithProver is SubmitTransaction routed through a
// caller-supplied prover instead of the pipeline's default (spec §4.6
// "submit_transaction_with_prover").
func (c *Client) SubmitTransactionWithProver(ctx context.Context, txID string, prover txpipeline.Prover) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	height, err := c.store.GetSyncHeight()
	if err != nil {
		return 0, fmt.Errorf("client: SubmitTransactionWithProver: %w", err)
	}
	return c.pipeline.SubmitWithProver(ctx, txID, height, prover)
}

// SyncState runs the sync engine to completion and records the round's
// summary as Prometheus counters for operators (spec §4.6 "sync_state",
// ambient observability carried regardless of spec.md's Non-goals).
func (c *Client) SyncState(ctx context.Context) (syncengine.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	summary, err := c.sync.SyncState(ctx)
	if err != nil {
		return summary, fmt.Errorf("client: SyncState: %w", err)
	}
	c.metrics.observe(summary)
	return summary, nil
}

// ImportKind selects which of the three note-file variants spec §4.6
// describes an ImportNote call carries.
type ImportKind uint8

const (
	ImportByID ImportKind = iota
	ImportDetails
	ImportWithProof
)

// NoteImport is the argument to ImportNote, covering all three variants
// spec §4.6 names: NoteId (fetch from node), NoteDetails{after_block}
// (record as Expected, promoting immediately if already synced past that
// block), and NoteWithProof (record as Unverified, authenticated on next
// sync).
type NoteImport struct {
	Kind ImportKind

	ID      digest.Hash // meaningful iff Kind == ImportByID
	Details *note.Note  // meaningful iff Kind != ImportByID

	AfterBlock uint32              // meaningful iff Kind == ImportDetails
	Tag        *coretypes.NoteTag  // optional, meaningful iff Kind == ImportDetails
	Proof      note.InclusionProof // meaningful iff Kind == ImportWithProof
}

// ImportNote records a note by one of the three variants spec §4.6 names.
// Importing a NoteId the node doesn't yet know about fails with
// errs.ErrNoteNotOnChain.
func (c *Client) ImportNote(ctx context.Context, imp NoteImport) error {
	switch imp.Kind {
	case ImportByID:
		return c.importByID(ctx, imp.ID)
	case ImportDetails:
		return c.importDetails(ctx, imp)
	case ImportWithProof:
		return c.importWithProof(imp)
	default:
		return fmt.Errorf("client: ImportNote: unknown import kind %d", imp.Kind)
	}
}

func (c *Client) importByID(ctx context.Context, id digest.Hash) error {
	fetched, err := c.rpc.GetNotesByID(ctx, []digest.Hash{id})
	if err != nil {
		return fmt.Errorf("client: ImportNote: %w", err)
	}
	if len(fetched) == 0 {
		return fmt.Errorf("client: ImportNote: %w", errs.ErrNoteNotOnChain)
	}
	fn := fetched[0]
	var details *note.Note
	if fn.Visibility == rpc.FetchedPublic {
		details = fn.Note
	}
	rec := note.NewUnverifiedInputNote(id, details, fn.Metadata, fn.Proof)
	if err := c.store.UpsertInputNotes([]*note.InputNoteRecord{rec}); err != nil {
		return fmt.Errorf("client: ImportNote: %w", err)
	}
	return nil
}

func (c *Client) importDetails(ctx context.Context, imp NoteImport) error {
	if imp.Details == nil {
		return fmt.Errorf("client: ImportNote: NoteDetails import requires note details")
	}
	id := imp.Details.ID()
	rec := note.NewExpectedInputNote(id, imp.Details)

	height, err := c.store.GetSyncHeight()
	if err != nil {
		return fmt.Errorf("client: ImportNote: %w", err)
	}
	if height >= imp.AfterBlock {
		// Best-effort: a failure here just leaves rec Expected, to be
		// resolved on the next organic sync.
		_, _ = c.tryPromote(ctx, id, rec)
	}

	if err := c.store.UpsertInputNotes([]*note.InputNoteRecord{rec}); err != nil {
		return fmt.Errorf("client: ImportNote: %w", err)
	}
	if imp.Tag != nil {
		if err := c.store.AddNoteTag(*imp.Tag, coretypes.NoteTagSource(id.Bytes())); err != nil {
			return fmt.Errorf("client: ImportNote: %w", err)
		}
	}
	return nil
}

// tryPromote looks up a just-imported note against the node immediately,
// rather than waiting for the next organic sync_state round: the note's
// tag is not necessarily one the client already subscribes to, so sync
// alone might never surface it. If the node reports it with a proof that
// authenticates against an already-tracked header, rec is promoted in
// place to Committed/Unverified per the inclusion-proof event.
func (c *Client) tryPromote(ctx context.Context, id digest.Hash, rec *note.InputNoteRecord) (bool, error) {
	fetched, err := c.rpc.GetNotesByID(ctx, []digest.Hash{id})
	if err != nil || len(fetched) == 0 {
		return false, err
	}
	fn := fetched[0]
	header, err := c.store.GetBlockHeader(fn.Proof.BlockNumber)
	if err != nil || header == nil {
		return false, err
	}
	authenticated := fn.Proof.Authenticate(header.NoteRoot, id)
	if err := note.Apply(rec, note.InclusionProofReceived{Proof: fn.Proof, Metadata: fn.Metadata, Authenticated: authenticated}); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) importWithProof(imp NoteImport) error {
	if imp.Details == nil {
		return fmt.Errorf("client: ImportNote: NoteWithProof import requires note details")
	}
	id := imp.Details.ID()
	rec := note.NewUnverifiedInputNote(id, imp.Details, imp.Details.Metadata, imp.Proof)
	if err := c.store.UpsertInputNotes([]*note.InputNoteRecord{rec}); err != nil {
		return fmt.Errorf("client: ImportNote: %w", err)
	}
	return nil
}

// ImportAccount records a full account snapshot, unlocking any existing
// tracked record for the same id (spec §4.6 "import_account").
func (c *Client) ImportAccount(acc *account.Account, seed []byte) error {
	if err := c.store.UpsertAccount(acc, seed, true); err != nil {
		return fmt.Errorf("client: ImportAccount: %w", err)
	}
	return nil
}

// AddNoteTag subscribes to tag for the given reason.
func (c *Client) AddNoteTag(tag coretypes.NoteTag, source coretypes.TagSource) error {
	if err := c.store.AddNoteTag(tag, source); err != nil {
		return fmt.Errorf("client: AddNoteTag: %w", err)
	}
	return nil
}

// RemoveNoteTag unsubscribes from tag for the given reason.
func (c *Client) RemoveNoteTag(tag coretypes.NoteTag, source coretypes.TagSource) error {
	if err := c.store.RemoveNoteTag(tag, source); err != nil {
		return fmt.Errorf("client: RemoveNoteTag: %w", err)
	}
	return nil
}

// Account returns the tracked record for id, or (nil, nil) if untracked.
func (c *Client) Account(id coretypes.AccountID) (*account.Record, error) {
	return c.store.GetAccount(id)
}

// Accounts lists every account id this client tracks.
func (c *Client) Accounts() ([]coretypes.AccountID, error) {
	return c.store.GetAccountIDs()
}

// InputNotes queries tracked input notes by filter.
func (c *Client) InputNotes(filter store.NoteFilter) ([]*note.InputNoteRecord, error) {
	return c.store.GetInputNotes(filter)
}

// OutputNotes queries tracked output notes by filter.
func (c *Client) OutputNotes(filter store.NoteFilter) ([]*note.OutputNoteRecord, error) {
	return c.store.GetOutputNotes(filter)
}

// Transactions queries tracked transactions by filter.
func (c *Client) Transactions(filter store.TransactionFilter) ([]*store.TransactionRecord, error) {
	return c.store.GetTransactions(filter)
}

// SyncHeight returns the store's current sync height.
func (c *Client) SyncHeight() (uint32, error) {
	return c.store.GetSyncHeight()
}

// PendingTransactions returns the ids of transactions applied locally but
// not yet submitted or discarded.
func (c *Client) PendingTransactions() []string {
	return c.pipeline.Pending()
}

// VerifyNullifier answers whether nullifier has been consumed on chain,
// using the node's full SMT proof (rpc.Client.CheckNullifiers) rather than
// the probabilistic prefix-bucket check sync_state uses internally: a
// caller willing to pay the extra round trip gets a definite answer instead
// of a maybe-false-positive bucket match.
func (c *Client) VerifyNullifier(ctx context.Context, nullifier digest.Hash) (bool, error) {
	proofs, err := c.rpc.CheckNullifiers(ctx, []digest.Hash{nullifier})
	if err != nil {
		return false, fmt.Errorf("client: VerifyNullifier: %w", err)
	}
	if len(proofs) == 0 {
		return false, fmt.Errorf("client: VerifyNullifier: node returned no proof")
	}
	return len(proofs[0]) > 0, nil
}

// WatchNoteTags dials a node's optional tag push-notification endpoint and
// runs SyncState every time the node pushes a notification for one of tags,
// until ctx is cancelled or the connection drops. It is a latency
// optimization layered over the poll-based SyncState loop, never a
// replacement for it - callers on a node without the push endpoint simply
// don't call this and keep polling SyncState on their own schedule.
// The returned stop func closes the underlying connection; callers should
// still call it even after ctx is cancelled, to release the socket.
func (c *Client) WatchNoteTags(ctx context.Context, pushURL string, tags []coretypes.NoteTag) (stop func() error, err error) {
	watcher, err := notestream.Dial(ctx, pushURL, tags)
	if err != nil {
		return nil, fmt.Errorf("client: WatchNoteTags: %w", err)
	}

	pushes := watcher.WatchNoteTags(ctx)
	go func() {
		for range pushes {
			if _, err := c.SyncState(ctx); err != nil {
				c.logger.WithError(err).Warn("client: sync triggered by note-tag push failed")
			}
		}
	}()

	return watcher.Close, nil
}
