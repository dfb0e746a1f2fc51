package core

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// FeeConfig is the platform fee applied at settlement. It is fixed when the
// engine is constructed.
type FeeConfig struct {
	Numerator   uint64
	Denominator uint64
	Treasury    Address
}

// Validate checks that the configuration describes a fee rate in [0, 1] paid
// to a real treasury account.
func (f FeeConfig) Validate() error {
	if f.Denominator == 0 {
		return errors.Wrap(ErrInvalidParameters, "fee denominator must be positive")
	}
	if f.Numerator > f.Denominator {
		return errors.Wrapf(ErrInvalidParameters, "fee rate %d/%d exceeds 100%%", f.Numerator, f.Denominator)
	}
	if f.Treasury.IsZero() {
		return errors.Wrap(ErrInvalidParameters, "treasury address is required")
	}
	return nil
}

// Rate returns the fee rate as a decimal fraction rounded to ratePrecision
// places, for display.
func (f FeeConfig) Rate() decimal.Decimal {
	if f.Denominator == 0 {
		return decimal.Zero
	}
	return decimal.NewFromUint64(f.Numerator).
		DivRound(decimal.NewFromUint64(f.Denominator), ratePrecision)
}

// SplitProceeds divides a winning bid between treasury and seller.
//
// fee = floor(price * Numerator / Denominator), proceeds = price - fee, so the
// two always sum to price and any rounding residue stays with the seller.
func (f FeeConfig) SplitProceeds(price Amount) (fee, proceeds Amount, err error) {
	if f.Denominator == 0 {
		return fee, proceeds, errors.Wrap(ErrInvalidParameters, "fee denominator must be positive")
	}
	var num, den Amount
	num.SetUint64(f.Numerator)
	den.SetUint64(f.Denominator)

	var scaled Amount
	if _, overflow := scaled.MulOverflow(&price, &num); overflow {
		return fee, proceeds, errors.Wrapf(ErrInvalidParameters, "fee computation overflows for price %s", price.ToBig().String())
	}
	fee.Div(&scaled, &den)
	proceeds.Sub(&price, &fee)
	return fee, proceeds, nil
}

// BidMeetsMinimum returns true if amount is admissible as the next bid on the
// record: at least the starting price for a first bid, strictly above the
// current highest bid afterwards.
func BidMeetsMinimum(record *AuctionRecord, amount Amount) bool {
	if amount.Lt(&record.StartingPrice) {
		return false
	}
	if record.HasBid() && !amount.Gt(&record.HighestBid) {
		return false
	}
	return true
}
