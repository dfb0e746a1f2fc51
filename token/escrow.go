package token

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cloudx-io/auctionhouse/core"
)

// EscrowAccount exposes a Ledger to the auction engine with account as the
// escrow that bids are pulled into.
type EscrowAccount struct {
	ledger  *Ledger
	account core.Address
}

var (
	_ core.FungibleLedger = (*EscrowAccount)(nil)
	_ core.Checkpointer   = (*EscrowAccount)(nil)
)

// Escrow binds ledger to the escrow account.
func Escrow(ledger *Ledger, account core.Address) (*EscrowAccount, error) {
	if ledger == nil {
		return nil, errors.Wrap(core.ErrInvalidParameters, "token ledger is required")
	}
	if account.IsZero() {
		return nil, errors.Wrap(core.ErrInvalidParameters, "escrow account is required")
	}
	return &EscrowAccount{ledger: ledger, account: account}, nil
}

func (e *EscrowAccount) Account() core.Address { return e.account }

func (e *EscrowAccount) BalanceOf(ctx context.Context, addr core.Address) (core.Amount, error) {
	return e.ledger.BalanceOf(ctx, addr)
}

func (e *EscrowAccount) Transfer(ctx context.Context, from, to core.Address, amount core.Amount) error {
	return e.ledger.Transfer(ctx, from, to, amount)
}

// Pull moves amount from holder into the escrow using the allowance holder
// granted to the escrow account.
func (e *EscrowAccount) Pull(ctx context.Context, holder core.Address, amount core.Amount) error {
	return e.ledger.TransferFrom(ctx, e.account, holder, e.account, amount)
}

func (e *EscrowAccount) Checkpoint() core.Journal {
	return e.ledger.Checkpoint()
}
