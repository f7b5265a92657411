// Package screener implements the note relevance screener of spec.md §4.3:
// for each tracked account, it asks an executor to trial-consume a note and
// maps the executor's verdict to a Relevance.
package screener

import (
	"rollupclient/coretypes"
	"rollupclient/note"
)

// ConsumptionStatus is the executor's verdict for a single trial consume,
// named after spec.md's NoteConsumptionStatus.
type ConsumptionStatus uint8

const (
	Consumable ConsumptionStatus = iota
	ConsumableAfter
	UnconsumableWithoutAuthorization
	Unconsumable
	Incompatible
)

// TrialExecutor is the minimal capability the screener needs from the
// transaction executor: attempt to consume a note against an account and
// report what happened, without mutating any state (spec §4.3 "trial
// consume").
type TrialExecutor interface {
	TrialConsume(account coretypes.AccountID, n *note.Note) (TrialResult, error)
}

// TrialResult is the executor's answer to a single trial consume.
type TrialResult struct {
	Status          ConsumptionStatus
	ConsumableBlock uint32 // meaningful iff Status == ConsumableAfter
}

// Relevance describes when a note becomes consumable by an account.
type Relevance struct {
	Account coretypes.AccountID
	When    When
	Block   uint32 // meaningful iff When == After
}

// When is the relevance verdict kind.
type When uint8

const (
	Now When = iota
	After
)

// Screen is the note relevance screener. Callers identify pay-to-id-with-
// recall notes externally (by script root or note template) and pass that
// fact in explicitly, since script compilation is out of this engine's
// scope (spec §1 Non-goals: "the assembler/VM").
type Screen struct {
	executor TrialExecutor
}

// New returns a screener driven by the given trial executor.
func New(executor TrialExecutor) *Screen {
	return &Screen{executor: executor}
}

// CheckRelevance implements spec.md §4.3's check_relevance: for each of the
// given tracked accounts, it trial-consumes n and reports the resulting
// relevance, omitting accounts the note is not relevant to. An executor
// error for a given account is never surfaced to the caller (spec §7:
// "Screener errors are never surfaced"); the account is then treated like a
// failed trial consume, so it is "not relevant" unless recallFallback
// applies (the sender of a pay-to-id-with-recall note).
func (s *Screen) CheckRelevance(n *note.Note, accounts []coretypes.AccountID, isP2IDRecall bool) []Relevance {
	out := make([]Relevance, 0, len(accounts))
	for _, acc := range accounts {
		if rel, ok := s.checkOne(n, acc, isP2IDRecall); ok {
			out = append(out, rel)
		}
	}
	return out
}

func (s *Screen) checkOne(n *note.Note, acc coretypes.AccountID, isP2IDRecall bool) (Relevance, bool) {
	result, err := s.executor.TrialConsume(acc, n)
	if err != nil {
		return s.recallFallback(n, acc, isP2IDRecall)
	}

	switch result.Status {
	case Consumable:
		return Relevance{Account: acc, When: Now}, true
	case ConsumableAfter:
		return Relevance{Account: acc, When: After, Block: result.ConsumableBlock}, true
	case UnconsumableWithoutAuthorization:
		// still offered; a signer may choose to approve the authorization.
		return Relevance{Account: acc, When: Now}, true
	case Unconsumable, Incompatible:
		return s.recallFallback(n, acc, isP2IDRecall)
	default:
		return s.recallFallback(n, acc, isP2IDRecall)
	}
}

// recallFallback implements the pay-to-id-with-recall special case (spec
// §4.3): even when the trial consume fails, if the checked account is the
// note's sender, it is still relevant After(recall_height).
func (s *Screen) recallFallback(n *note.Note, acc coretypes.AccountID, isP2IDRecall bool) (Relevance, bool) {
	if !isP2IDRecall || n.Metadata.Sender != acc {
		return Relevance{}, false
	}
	if n.Metadata.Hint.Kind != note.HintAfterBlock {
		return Relevance{}, false
	}
	return Relevance{Account: acc, When: After, Block: n.Metadata.Hint.BlockNumber}, true
}
