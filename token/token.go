// Package token is an in-memory, pausable fungible token with allowances.
// It is the settlement currency of a local auction house.
package token

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/cloudx-io/auctionhouse/core"
)

const (
	DefaultName   = "Art Token"
	DefaultSymbol = "ARTT"
	// DefaultSupply is the whole-token supply minted to the owner at genesis.
	DefaultSupply = "1000000"
)

// Ledger holds token balances and allowances. The owner may mint and pause.
type Ledger struct {
	mu sync.RWMutex

	name       string
	symbol     string
	owner      core.Address
	paused     bool
	supply     core.Amount
	balances   map[core.Address]core.Amount
	allowances map[core.Address]map[core.Address]core.Amount
	journals   map[*journal]struct{}
}

// New creates a token owned by owner with initialSupply smallest units
// credited to the owner.
func New(owner core.Address, name, symbol string, initialSupply core.Amount) (*Ledger, error) {
	if owner.IsZero() {
		return nil, errors.Wrap(core.ErrInvalidParameters, "token owner is required")
	}
	l := &Ledger{
		name:       name,
		symbol:     symbol,
		owner:      owner,
		balances:   make(map[core.Address]core.Amount),
		allowances: make(map[core.Address]map[core.Address]core.Amount),
		journals:   make(map[*journal]struct{}),
	}
	if !initialSupply.IsZero() {
		l.balances[owner] = initialSupply
		l.supply = initialSupply
	}
	return l, nil
}

func (l *Ledger) Name() string        { return l.name }
func (l *Ledger) Symbol() string      { return l.symbol }
func (l *Ledger) Owner() core.Address { return l.owner }

// Paused reports whether transfers are currently refused.
func (l *Ledger) Paused() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.paused
}

// TotalSupply returns the amount of tokens in existence.
func (l *Ledger) TotalSupply() core.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply
}

// BalanceOf returns the balance of addr.
func (l *Ledger) BalanceOf(_ context.Context, addr core.Address) (core.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[addr], nil
}

// Allowance returns how much spender may still move out of holder's balance.
func (l *Ledger) Allowance(holder, spender core.Address) core.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowances[holder][spender]
}

// Mint creates amount new tokens for to. Only the owner may mint.
func (l *Ledger) Mint(_ context.Context, caller, to core.Address, amount core.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return errors.Wrapf(core.ErrNotAuthorized, "%s is not the token owner", caller)
	}
	if to.IsZero() {
		return errors.Wrap(core.ErrInvalidParameters, "mint to empty address")
	}
	if l.paused {
		return errors.Wrap(core.ErrTransfersPaused, "mint")
	}
	var supply core.Amount
	if _, overflow := supply.AddOverflow(&l.supply, &amount); overflow {
		return errors.Wrap(core.ErrInvalidParameters, "total supply overflows")
	}
	l.supply = supply
	balance := l.balances[to]
	balance.Add(&balance, &amount)
	l.balances[to] = balance
	return nil
}

// Pause stops all balance movements until Unpause.
func (l *Ledger) Pause(caller core.Address) error {
	return l.setPaused(caller, true)
}

// Unpause resumes balance movements.
func (l *Ledger) Unpause(caller core.Address) error {
	return l.setPaused(caller, false)
}

func (l *Ledger) setPaused(caller core.Address, paused bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.owner {
		return errors.Wrapf(core.ErrNotAuthorized, "%s is not the token owner", caller)
	}
	l.paused = paused
	return nil
}

// Approve sets the amount spender may move out of holder's balance.
func (l *Ledger) Approve(_ context.Context, holder, spender core.Address, amount core.Amount) error {
	if holder.IsZero() || spender.IsZero() {
		return errors.Wrap(core.ErrInvalidParameters, "approve needs holder and spender")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for j := range l.journals {
		j.approved[allowanceKey{holder, spender}] = struct{}{}
	}
	spenders, ok := l.allowances[holder]
	if !ok {
		spenders = make(map[core.Address]core.Amount)
		l.allowances[holder] = spenders
	}
	if amount.IsZero() {
		delete(spenders, spender)
		return nil
	}
	spenders[spender] = amount
	return nil
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(_ context.Context, from, to core.Address, amount core.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

// TransferFrom moves amount from holder to to on behalf of spender, consuming
// spender's allowance.
func (l *Ledger) TransferFrom(_ context.Context, spender, holder, to core.Address, amount core.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := l.allowances[holder][spender]
	if allowed.Lt(&amount) {
		return errors.Wrapf(core.ErrNotAuthorized, "%s may move %s of %s's tokens, requested %s",
			spender, core.FormatAmount(allowed), holder, core.FormatAmount(amount))
	}
	if err := l.move(holder, to, amount); err != nil {
		return err
	}
	allowed.Sub(&allowed, &amount)
	if allowed.IsZero() {
		delete(l.allowances[holder], spender)
	} else {
		l.allowances[holder][spender] = allowed
	}
	l.record(entry{kind: entryAllowance, from: holder, to: spender, amount: amount})
	return nil
}

func (l *Ledger) move(from, to core.Address, amount core.Amount) error {
	if from.IsZero() || to.IsZero() {
		return errors.Wrap(core.ErrInvalidParameters, "transfer needs source and destination")
	}
	if l.paused {
		return errors.Wrap(core.ErrTransfersPaused, "transfer")
	}
	balance := l.balances[from]
	if balance.Lt(&amount) {
		return errors.Wrapf(core.ErrInsufficientFunds, "%s holds %s, needs %s",
			from, core.FormatAmount(balance), core.FormatAmount(amount))
	}
	if amount.IsZero() || from == to {
		return nil
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
	l.record(entry{kind: entryMove, from: from, to: to, amount: amount})
	return nil
}
