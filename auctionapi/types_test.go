package auctionapi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/auctionhouse/core"
)

func settledFixture() core.Settlement {
	end := time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC)
	return core.Settlement{
		Record: core.AuctionRecord{
			ID:            "auction-1",
			AssetID:       7,
			Seller:        "creator",
			StartingPrice: core.AmountFromUint64(100),
			HighestBid:    core.AmountFromUint64(103),
			HighestBidder: "bidder-x",
			EndTime:       end,
			Status:        core.StatusSettled,
			BidCount:      2,
			CreatedAt:     end.Add(-10 * time.Second),
			ClosedAt:      end.Add(time.Second),
		},
		Winner:         "bidder-x",
		Price:          core.AmountFromUint64(103),
		Fee:            core.AmountFromUint64(10),
		SellerProceeds: core.AmountFromUint64(93),
		Treasury:       "treasury",
	}
}

func TestNewAuctionView(t *testing.T) {
	s := settledFixture()
	v := NewAuctionView(s.Record)
	check.Equal(t, "auction-1", v.ID)
	check.Equal(t, uint64(7), v.AssetID)
	check.Equal(t, "100", v.StartingPrice)
	check.Equal(t, "103", v.HighestBid)
	check.Equal(t, "bidder-x", v.HighestBidder)
	check.Equal(t, "settled", v.Status)
	check.NotNil(t, v.ClosedAt)

	open := s.Record
	open.Status = core.StatusOpen
	open.ClosedAt = time.Time{}
	v = NewAuctionView(open)
	check.True(t, v.ClosedAt == nil)

	data, err := json.Marshal(v)
	assert.NoError(t, err)
	var fields map[string]any
	assert.NoError(t, json.Unmarshal(data, &fields))
	_, hasClosed := fields["closed_at"]
	check.False(t, hasClosed)

	check.True(t, NewAuctionViews(nil) == nil)
	check.Equal(t, 2, len(NewAuctionViews([]core.AuctionRecord{s.Record, open})))
}

func TestNewSettlementView(t *testing.T) {
	v := NewSettlementView(settledFixture())
	check.Equal(t, "10", v.Fee)
	check.Equal(t, "93", v.SellerProceeds)
	check.Equal(t, "bidder-x", v.Winner)
	check.Equal(t, "settled", v.Status)
}

func TestNewTreasuryView(t *testing.T) {
	v := NewTreasuryView(core.FeeConfig{Numerator: 10, Denominator: 100, Treasury: "treasury"})
	check.Equal(t, "treasury", v.Treasury)
	check.Equal(t, "0.1", v.FeeRate)
}

func TestSettlementReceipt_Hash(t *testing.T) {
	s := settledFixture()
	r := NewSettlementReceipt("receipt-1", s, "nonce")
	check.Equal(t, core.ComputeSettlementHash(&s, "nonce"), r.Hash)

	recomputed, err := r.ComputeHash()
	assert.NoError(t, err)
	check.Equal(t, r.Hash, recomputed)

	tampered := r
	tampered.Price = "104"
	recomputed, err = tampered.ComputeHash()
	assert.NoError(t, err)
	check.NotEqual(t, r.Hash, recomputed)

	tampered = r
	tampered.Fee = "ten"
	_, err = tampered.ComputeHash()
	check.Error(t, err)
}

func TestSettlementReceipt_Cancelled(t *testing.T) {
	s := settledFixture()
	s.Record.Status = core.StatusCancelled
	s.Record.HighestBidder = ""
	s.Winner = ""
	s.Price = core.Amount{}
	s.Fee = core.Amount{}
	s.SellerProceeds = core.Amount{}

	r := NewSettlementReceipt("receipt-2", s, "n")
	check.Equal(t, "cancelled", r.Status)
	check.Equal(t, "0", r.Price)

	back, err := r.Settlement()
	assert.NoError(t, err)
	check.Equal(t, core.StatusCancelled, back.Record.Status)
	check.True(t, back.Winner.IsZero())
}
