package token

import (
	"github.com/pkg/errors"

	"github.com/cloudx-io/auctionhouse/core"
)

type entryKind int

const (
	entryMove      entryKind = iota // from -> to balance movement
	entryAllowance                  // allowance of to over from's balance consumed
)

type entry struct {
	kind     entryKind
	from, to core.Address
	amount   core.Amount
}

type allowanceKey struct {
	holder, spender core.Address
}

// journal records the transfers made after a Checkpoint. Reverting applies
// the inverse deltas, so balances credited by other calls in the meantime
// are kept. An allowance set by Approve after the checkpoint is not restored.
type journal struct {
	l        *Ledger
	entries  []entry
	approved map[allowanceKey]struct{}
}

var _ core.Journal = (*journal)(nil)

// Checkpoint starts journaling transfers until the returned journal is
// reverted or released.
func (l *Ledger) Checkpoint() core.Journal {
	j := &journal{l: l, approved: make(map[allowanceKey]struct{})}
	l.mu.Lock()
	l.journals[j] = struct{}{}
	l.mu.Unlock()
	return j
}

// record appends e to every open journal. Callers hold l.mu.
func (l *Ledger) record(e entry) {
	for j := range l.journals {
		j.entries = append(j.entries, e)
	}
}

func (j *journal) Release() {
	j.l.mu.Lock()
	defer j.l.mu.Unlock()
	delete(j.l.journals, j)
	j.entries = nil
}

// Revert undoes the journaled transfers newest first. Pausing does not block
// a revert.
func (j *journal) Revert() error {
	l := j.l
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.journals, j)

	var failed error
	for i := len(j.entries) - 1; i >= 0; i-- {
		e := j.entries[i]
		switch e.kind {
		case entryMove:
			if err := l.unmove(e.to, e.from, e.amount); err != nil && failed == nil {
				failed = err
			}
		case entryAllowance:
			if _, set := j.approved[allowanceKey{e.from, e.to}]; set {
				continue
			}
			spenders, ok := l.allowances[e.from]
			if !ok {
				spenders = make(map[core.Address]core.Amount)
				l.allowances[e.from] = spenders
			}
			allowed := spenders[e.to]
			allowed.Add(&allowed, &e.amount)
			spenders[e.to] = allowed
		}
	}
	j.entries = nil
	return failed
}

// unmove moves amount back without the pause check and without journaling.
func (l *Ledger) unmove(from, to core.Address, amount core.Amount) error {
	balance := l.balances[from]
	if balance.Lt(&amount) {
		return errors.Wrapf(core.ErrInsufficientFunds, "revert: %s holds %s, needs %s",
			from, core.FormatAmount(balance), core.FormatAmount(amount))
	}
	balance.Sub(&balance, &amount)
	if balance.IsZero() {
		delete(l.balances, from)
	} else {
		l.balances[from] = balance
	}
	credit := l.balances[to]
	credit.Add(&credit, &amount)
	l.balances[to] = credit
	return nil
}
