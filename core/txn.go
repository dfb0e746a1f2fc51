package core

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// compensation reverses one collaborator call that is not journaled.
type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

// txn groups the collaborator calls of one engine operation so that a failure
// in any step leaves funds and custody as they were before the operation.
//
// Collaborators implementing Checkpointer journal their own movements and
// revert only those. For the others every successful call registers a
// compensating call, run in reverse order on rollback.
type txn struct {
	journals      []namedJournal
	compensations []compensation
	fundsExact    bool
	custodyExact  bool
	done          bool
}

type namedJournal struct {
	name string
	j    Journal
}

func beginTxn(funds FungibleLedger, custody AssetRegistry) *txn {
	t := &txn{}
	if cp, ok := funds.(Checkpointer); ok {
		t.journals = append(t.journals, namedJournal{"funds journal", cp.Checkpoint()})
		t.fundsExact = true
	}
	if cp, ok := custody.(Checkpointer); ok {
		t.journals = append(t.journals, namedJournal{"custody journal", cp.Checkpoint()})
		t.custodyExact = true
	}
	return t
}

// movedFunds records how to undo a successful token movement.
func (t *txn) movedFunds(name string, undo func(ctx context.Context) error) {
	if t.fundsExact {
		return
	}
	t.compensations = append(t.compensations, compensation{name: name, fn: undo})
}

// movedCustody records how to undo a successful custody transfer.
func (t *txn) movedCustody(name string, undo func(ctx context.Context) error) {
	if t.custodyExact {
		return
	}
	t.compensations = append(t.compensations, compensation{name: name, fn: undo})
}

// rollback reverts every effect of the transaction and returns cause. If a
// revert step fails the returned error says so, still wrapping cause.
func (t *txn) rollback(ctx context.Context, log *zap.Logger, cause error) error {
	if t.done {
		return cause
	}
	t.done = true

	var failed []string
	for i := len(t.compensations) - 1; i >= 0; i-- {
		c := t.compensations[i]
		if err := c.fn(context.WithoutCancel(ctx)); err != nil {
			log.Error("Rollback step failed", zap.String("step", c.name), zap.Error(err))
			failed = append(failed, c.name)
		}
	}
	for i := len(t.journals) - 1; i >= 0; i-- {
		nj := t.journals[i]
		if err := nj.j.Revert(); err != nil {
			log.Error("Rollback step failed", zap.String("step", nj.name), zap.Error(err))
			failed = append(failed, nj.name)
		}
	}
	if len(failed) > 0 {
		return errors.Wrapf(cause, "rollback incomplete (%v)", failed)
	}
	return cause
}

// commit ends the transaction; later rollbacks are no-ops.
func (t *txn) commit() {
	t.done = true
	for _, nj := range t.journals {
		nj.j.Release()
	}
	t.journals = nil
	t.compensations = nil
}
