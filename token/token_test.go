package token

import (
	"context"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/pkg/errors"

	"github.com/cloudx-io/auctionhouse/core"
)

func units(v uint64) core.Amount {
	return core.AmountFromUint64(v)
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	supply, err := core.TokensToUnits(DefaultSupply)
	assert.NoError(t, err)
	l, err := New("owner", DefaultName, DefaultSymbol, supply)
	assert.NoError(t, err)
	return l
}

func TestNew(t *testing.T) {
	l := newTestLedger(t)

	check.Equal(t, "Art Token", l.Name())
	check.Equal(t, "ARTT", l.Symbol())
	check.Equal(t, core.Address("owner"), l.Owner())

	supply := l.TotalSupply()
	check.Equal(t, "1000000000000000000000000", core.FormatAmount(supply))
	balance, err := l.BalanceOf(context.Background(), "owner")
	assert.NoError(t, err)
	check.Equal(t, "1000000", core.FormatUnits(balance))

	_, err = New("", "T", "T", units(1))
	check.True(t, errors.Is(err, core.ErrInvalidParameters))
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	assert.NoError(t, l.Transfer(ctx, "owner", "alice", units(500)))
	b, _ := l.BalanceOf(ctx, "alice")
	check.Equal(t, uint64(500), b.Uint64())

	err := l.Transfer(ctx, "alice", "bob", units(501))
	check.True(t, errors.Is(err, core.ErrInsufficientFunds))
	b, _ = l.BalanceOf(ctx, "alice")
	check.Equal(t, uint64(500), b.Uint64())

	err = l.Transfer(ctx, "alice", "", units(1))
	check.True(t, errors.Is(err, core.ErrInvalidParameters))

	assert.NoError(t, l.Transfer(ctx, "alice", "alice", units(500)))
	b, _ = l.BalanceOf(ctx, "alice")
	check.Equal(t, uint64(500), b.Uint64())
}

func TestPause(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	check.True(t, errors.Is(l.Pause("alice"), core.ErrNotAuthorized))
	assert.NoError(t, l.Pause("owner"))
	check.True(t, l.Paused())

	check.True(t, errors.Is(l.Transfer(ctx, "owner", "alice", units(1)), core.ErrTransfersPaused))
	check.True(t, errors.Is(l.Mint(ctx, "owner", "alice", units(1)), core.ErrTransfersPaused))

	assert.NoError(t, l.Unpause("owner"))
	check.NoError(t, l.Transfer(ctx, "owner", "alice", units(1)))
}

func TestMint(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	before := l.TotalSupply()

	check.True(t, errors.Is(l.Mint(ctx, "alice", "alice", units(1)), core.ErrNotAuthorized))
	assert.NoError(t, l.Mint(ctx, "owner", "alice", units(42)))

	b, _ := l.BalanceOf(ctx, "alice")
	check.Equal(t, uint64(42), b.Uint64())
	after := l.TotalSupply()
	var diff core.Amount
	diff.Sub(&after, &before)
	check.Equal(t, uint64(42), diff.Uint64())
}

func TestTransferFrom(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	assert.NoError(t, l.Transfer(ctx, "owner", "alice", units(100)))

	err := l.TransferFrom(ctx, "house", "alice", "house", units(10))
	check.True(t, errors.Is(err, core.ErrNotAuthorized))

	assert.NoError(t, l.Approve(ctx, "alice", "house", units(60)))
	assert.NoError(t, l.TransferFrom(ctx, "house", "alice", "house", units(40)))
	remaining := l.Allowance("alice", "house")
	check.Equal(t, uint64(20), remaining.Uint64())

	err = l.TransferFrom(ctx, "house", "alice", "house", units(21))
	check.True(t, errors.Is(err, core.ErrNotAuthorized))

	// A failed movement does not consume allowance.
	assert.NoError(t, l.Approve(ctx, "alice", "house", units(1000)))
	err = l.TransferFrom(ctx, "house", "alice", "house", units(61))
	check.True(t, errors.Is(err, core.ErrInsufficientFunds))
	remaining = l.Allowance("alice", "house")
	check.Equal(t, uint64(1000), remaining.Uint64())

	assert.NoError(t, l.Approve(ctx, "alice", "house", units(0)))
	remaining = l.Allowance("alice", "house")
	check.True(t, remaining.IsZero())
}

func TestCheckpoint(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	assert.NoError(t, l.Transfer(ctx, "owner", "alice", units(100)))
	assert.NoError(t, l.Approve(ctx, "alice", "house", units(50)))

	journal := l.Checkpoint()

	assert.NoError(t, l.TransferFrom(ctx, "house", "alice", "house", units(50)))
	assert.NoError(t, l.Mint(ctx, "owner", "bob", units(7)))
	assert.NoError(t, l.Mint(ctx, "owner", "house", units(3)))

	assert.NoError(t, journal.Revert())

	a, _ := l.BalanceOf(ctx, "alice")
	check.Equal(t, uint64(100), a.Uint64())
	allowance := l.Allowance("alice", "house")
	check.Equal(t, uint64(50), allowance.Uint64())

	// Mints that landed while the journal was open are kept.
	h, _ := l.BalanceOf(ctx, "house")
	check.Equal(t, uint64(3), h.Uint64())
	b, _ := l.BalanceOf(ctx, "bob")
	check.Equal(t, uint64(7), b.Uint64())
	supply := l.TotalSupply()
	check.Equal(t, "1000000000000000000000010", core.FormatAmount(supply))
}

func TestCheckpoint_RevertWhilePaused(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	journal := l.Checkpoint()
	assert.NoError(t, l.Transfer(ctx, "owner", "alice", units(100)))
	assert.NoError(t, l.Pause("owner"))

	assert.NoError(t, journal.Revert())
	check.True(t, l.Paused())
	a, _ := l.BalanceOf(ctx, "alice")
	check.True(t, a.IsZero())
}

func TestCheckpoint_ApproveOverridesRestoredAllowance(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	assert.NoError(t, l.Transfer(ctx, "owner", "alice", units(100)))
	assert.NoError(t, l.Approve(ctx, "alice", "house", units(50)))

	journal := l.Checkpoint()
	assert.NoError(t, l.TransferFrom(ctx, "house", "alice", "house", units(20)))
	assert.NoError(t, l.Approve(ctx, "alice", "house", units(5)))
	assert.NoError(t, journal.Revert())

	allowance := l.Allowance("alice", "house")
	check.Equal(t, uint64(5), allowance.Uint64())
	a, _ := l.BalanceOf(ctx, "alice")
	check.Equal(t, uint64(100), a.Uint64())
}

func TestCheckpoint_Release(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	journal := l.Checkpoint()
	assert.NoError(t, l.Transfer(ctx, "owner", "alice", units(100)))
	journal.Release()
	assert.NoError(t, journal.Revert())

	a, _ := l.BalanceOf(ctx, "alice")
	check.Equal(t, uint64(100), a.Uint64())
}

func TestCheckpoint_RevertFailsWhenRecipientSpent(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	journal := l.Checkpoint()
	assert.NoError(t, l.Transfer(ctx, "owner", "alice", units(100)))
	journal.Release()

	journal = l.Checkpoint()
	assert.NoError(t, l.Transfer(ctx, "alice", "house", units(60)))
	other := l.Checkpoint()
	assert.NoError(t, l.Transfer(ctx, "house", "bob", units(60)))
	other.Release()

	err := journal.Revert()
	check.True(t, errors.Is(err, core.ErrInsufficientFunds))
	h, _ := l.BalanceOf(ctx, "house")
	check.True(t, h.IsZero())
}

func TestEscrow(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	assert.NoError(t, l.Transfer(ctx, "owner", "alice", units(100)))

	_, err := Escrow(l, "")
	check.True(t, errors.Is(err, core.ErrInvalidParameters))
	_, err = Escrow(nil, "house")
	check.True(t, errors.Is(err, core.ErrInvalidParameters))

	e, err := Escrow(l, "house")
	assert.NoError(t, err)
	check.Equal(t, core.Address("house"), e.Account())

	check.True(t, errors.Is(e.Pull(ctx, "alice", units(10)), core.ErrNotAuthorized))

	assert.NoError(t, l.Approve(ctx, "alice", "house", units(30)))
	assert.NoError(t, e.Pull(ctx, "alice", units(30)))
	held, err := e.BalanceOf(ctx, "house")
	assert.NoError(t, err)
	check.Equal(t, uint64(30), held.Uint64())

	assert.NoError(t, e.Transfer(ctx, "house", "bob", units(30)))
	bob, _ := e.BalanceOf(ctx, "bob")
	check.Equal(t, uint64(30), bob.Uint64())
}
