package core

import (
	"context"
	"time"
)

// FungibleLedger moves settlement tokens on behalf of the auction escrow.
//
// Implementations report ErrInsufficientFunds, ErrTransfersPaused or
// ErrNotAuthorized (possibly wrapped) when a movement is refused.
type FungibleLedger interface {
	// BalanceOf returns the current balance of addr.
	BalanceOf(ctx context.Context, addr Address) (Amount, error)
	// Transfer moves amount from one account to another.
	Transfer(ctx context.Context, from, to Address, amount Amount) error
	// Pull moves amount from an account into the escrow. The account must
	// have authorized the escrow beforehand.
	Pull(ctx context.Context, from Address, amount Amount) error
	// Account returns the escrow account funds are pulled into.
	Account() Address
}

// AssetRegistry holds custody of unique assets.
//
// TransferCustody reports ErrNotCustodyHolder when from is not the current
// holder of the asset.
type AssetRegistry interface {
	OwnerOf(ctx context.Context, id AssetID) (Address, error)
	TransferCustody(ctx context.Context, id AssetID, from, to Address) error
}

// OperatorRegistry is implemented by registries that let a holder authorize
// another account to list assets on its behalf.
type OperatorRegistry interface {
	IsOperator(ctx context.Context, holder, operator Address) (bool, error)
}

// Checkpointer is implemented by collaborators that journal the movements
// made through them after Checkpoint and can reverse exactly those movements.
type Checkpointer interface {
	Checkpoint() Journal
}

// Journal records the balance, allowance and custody movements made since its
// Checkpoint. Changes made through other calls (mints, approvals, operator
// grants) are never recorded and survive a Revert.
type Journal interface {
	// Revert undoes the recorded movements in reverse order and stops
	// recording.
	Revert() error
	// Release stops recording and keeps every movement.
	Release()
}

// Persister stores a committed auction record. It is called inside the
// operation's transaction, so a failure aborts the operation.
type Persister interface {
	SaveAuction(ctx context.Context, record AuctionRecord) error
}

// Clock returns the current time used for expiry checks.
type Clock func() time.Time
