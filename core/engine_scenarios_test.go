package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/pkg/errors"

	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/token"
)

func TestScenario_SaleToSingleBidder(t *testing.T) {
	f := newFixture(t)
	f.list(t, 100)

	_, err := f.engine.Bid(f.ctx, bidderX, f.asset, amt(103))
	assert.NoError(t, err)

	f.clock.Advance(11 * time.Second)
	s, err := f.engine.FinishAuction(f.ctx, f.asset)
	assert.NoError(t, err)

	check.True(t, s.Sold())
	check.Equal(t, core.StatusSettled, s.Record.Status)
	check.Equal(t, bidderX, s.Winner)
	check.Equal(t, uint64(103), s.Price.Uint64())
	check.Equal(t, uint64(10), s.Fee.Uint64())
	check.Equal(t, uint64(93), s.SellerProceeds.Uint64())
	check.Equal(t, treasury, s.Treasury)

	check.Equal(t, bidderX, f.holder(t))
	check.Equal(t, uint64(93), f.balance(t, creator))
	check.Equal(t, uint64(10), f.balance(t, treasury))
	check.Equal(t, uint64(897), f.balance(t, bidderX))
	check.Equal(t, uint64(0), f.balance(t, escrow))

	open, err := f.engine.IsAuctionOpen(f.asset)
	assert.NoError(t, err)
	check.False(t, open)
}

func TestScenario_ExpiryWithoutBids(t *testing.T) {
	f := newFixture(t)
	f.list(t, 100)

	f.clock.Advance(10 * time.Second)
	s, err := f.engine.FinishAuction(f.ctx, f.asset)
	assert.NoError(t, err)

	check.False(t, s.Sold())
	check.Equal(t, core.StatusCancelled, s.Record.Status)
	check.Equal(t, creator, f.holder(t))
	check.Equal(t, uint64(0), f.balance(t, treasury))
	check.Equal(t, uint64(0), f.balance(t, creator))
}

func TestScenario_CancelBeforeExpiry(t *testing.T) {
	f := newFixture(t)
	f.list(t, 100)

	s, err := f.engine.CancelAuction(f.ctx, creator, f.asset)
	assert.NoError(t, err)
	check.Equal(t, core.StatusCancelled, s.Record.Status)
	check.Equal(t, creator, f.holder(t))

	_, err = f.engine.Bid(f.ctx, bidderX, f.asset, amt(150))
	check.True(t, errors.Is(err, core.ErrAuctionNotOpen))
	check.Equal(t, uint64(1000), f.balance(t, bidderX))
}

func TestScenario_OutbidRefundsPriorBidder(t *testing.T) {
	f := newFixture(t)
	f.list(t, 100)

	_, err := f.engine.Bid(f.ctx, bidderX, f.asset, amt(100))
	assert.NoError(t, err)
	check.Equal(t, uint64(900), f.balance(t, bidderX))

	_, err = f.engine.Bid(f.ctx, bidderY, f.asset, amt(105))
	assert.NoError(t, err)

	check.Equal(t, uint64(1000), f.balance(t, bidderX))
	check.Equal(t, uint64(895), f.balance(t, bidderY))
	check.Equal(t, uint64(105), f.balance(t, escrow))

	bid, bidder, err := f.engine.GetLastBid(f.asset)
	assert.NoError(t, err)
	check.Equal(t, uint64(105), bid.Uint64())
	check.Equal(t, bidderY, bidder)
}

// refusingFunds fails every transfer to one account.
type refusingFunds struct {
	core.FungibleLedger
	refuse core.Address
}

func (r refusingFunds) Transfer(ctx context.Context, from, to core.Address, amount core.Amount) error {
	if to == r.refuse {
		return errors.Wrapf(core.ErrTransfersPaused, "transfers to %s are frozen", to)
	}
	return r.FungibleLedger.Transfer(ctx, from, to, amount)
}

// checkpointedRefusingFunds is refusingFunds that keeps the token's exact
// rollback.
type checkpointedRefusingFunds struct {
	refusingFunds
	cp core.Checkpointer
}

func (c checkpointedRefusingFunds) Checkpoint() core.Journal { return c.cp.Checkpoint() }

// mintingRefusingFunds mints to other accounts just before refusing a
// transfer, as a concurrent devnet mint would.
type mintingRefusingFunds struct {
	checkpointedRefusingFunds
	ledger *token.Ledger
}

func (m mintingRefusingFunds) Transfer(ctx context.Context, from, to core.Address, amount core.Amount) error {
	if to == m.refuse {
		if err := m.ledger.Mint(ctx, owner, "bystander", amt(50)); err != nil {
			return err
		}
		if err := m.ledger.Mint(ctx, owner, escrow, amt(7)); err != nil {
			return err
		}
	}
	return m.checkpointedRefusingFunds.Transfer(ctx, from, to, amount)
}

func TestScenario_RollbackKeepsUnrelatedMints(t *testing.T) {
	base := newFixture(t)
	funds := mintingRefusingFunds{
		checkpointedRefusingFunds{refusingFunds{base.funds, bidderX}, base.funds},
		base.token,
	}
	f := newFixtureWith(t, base.ctx, base.clock, base.token, base.funds, funds, base.nfts, base.nfts, base.asset)
	f.list(t, 100)

	_, err := f.engine.Bid(f.ctx, bidderX, f.asset, amt(100))
	assert.NoError(t, err)

	_, err = f.engine.Bid(f.ctx, bidderY, f.asset, amt(105))
	check.True(t, errors.Is(err, core.ErrTransfersPaused))

	// Only Y's pull was undone; both mints stand.
	check.Equal(t, uint64(50), f.balance(t, "bystander"))
	check.Equal(t, uint64(107), f.balance(t, escrow))
	check.Equal(t, uint64(1000), f.balance(t, bidderY))
	check.Equal(t, uint64(900), f.balance(t, bidderX))
	bid, bidder, _ := f.engine.GetLastBid(f.asset)
	check.Equal(t, uint64(100), bid.Uint64())
	check.Equal(t, bidderX, bidder)
}

func TestScenario_FailedRefundAbortsBid(t *testing.T) {
	tests := []struct {
		name  string
		funds func(f *fixture) core.FungibleLedger
	}{
		{
			name: "checkpointed ledger",
			funds: func(f *fixture) core.FungibleLedger {
				return checkpointedRefusingFunds{refusingFunds{f.funds, bidderX}, f.funds}
			},
		},
		{
			name: "compensated ledger",
			funds: func(f *fixture) core.FungibleLedger {
				return refusingFunds{f.funds, bidderX}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := newFixture(t)
			f := newFixtureWith(t, base.ctx, base.clock, base.token, base.funds, tt.funds(base), base.nfts, base.nfts, base.asset)
			f.list(t, 100)

			_, err := f.engine.Bid(f.ctx, bidderX, f.asset, amt(100))
			assert.NoError(t, err)

			_, err = f.engine.Bid(f.ctx, bidderY, f.asset, amt(105))
			check.True(t, errors.Is(err, core.ErrTransfersPaused))

			// Y's pull was undone and X still holds the top bid.
			check.Equal(t, uint64(1000), f.balance(t, bidderY))
			check.Equal(t, uint64(900), f.balance(t, bidderX))
			check.Equal(t, uint64(100), f.balance(t, escrow))
			bid, bidder, _ := f.engine.GetLastBid(f.asset)
			check.Equal(t, uint64(100), bid.Uint64())
			check.Equal(t, bidderX, bidder)
		})
	}
}

type persisterFunc func(ctx context.Context, record core.AuctionRecord) error

func (p persisterFunc) SaveAuction(ctx context.Context, record core.AuctionRecord) error {
	return p(ctx, record)
}

func TestScenario_PersistFailureRollsBack(t *testing.T) {
	fail := false
	var saved []core.AuctionRecord
	persister := persisterFunc(func(_ context.Context, record core.AuctionRecord) error {
		if fail {
			return errors.New("disk full")
		}
		saved = append(saved, record)
		return nil
	})
	f := newFixture(t, core.WithPersister(persister))
	f.list(t, 100)
	_, err := f.engine.Bid(f.ctx, bidderX, f.asset, amt(103))
	assert.NoError(t, err)
	assert.Equal(t, 2, len(saved))
	check.Equal(t, 1, saved[1].BidCount)

	fail = true
	f.clock.Advance(10 * time.Second)
	_, err = f.engine.FinishAuction(f.ctx, f.asset)
	check.Error(t, err)
	check.Equal(t, core.CodeInternal, core.Code(err))

	// Nothing moved.
	open, _ := f.engine.IsAuctionOpen(f.asset)
	check.True(t, open)
	check.Equal(t, escrow, f.holder(t))
	check.Equal(t, uint64(103), f.balance(t, escrow))
	check.Equal(t, uint64(0), f.balance(t, creator))
	check.Equal(t, uint64(0), f.balance(t, treasury))

	fail = false
	s, err := f.engine.FinishAuction(f.ctx, f.asset)
	assert.NoError(t, err)
	check.True(t, s.Sold())
	check.Equal(t, core.StatusSettled, saved[len(saved)-1].Status)
}
