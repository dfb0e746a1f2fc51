package core

import (
	"github.com/pkg/errors"
)

// Failure taxonomy. Every operation reports exactly one of these (possibly
// wrapped with context); callers match with errors.Is.
var (
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrDuplicateAuction  = errors.New("auction already open for asset")
	ErrNotFound          = errors.New("auction not found")
	ErrNotCustodyHolder  = errors.New("caller does not hold custody of asset")
	ErrAuctionNotOpen    = errors.New("auction is not open")
	ErrAuctionExpired    = errors.New("auction has expired")
	ErrAuctionNotExpired = errors.New("auction has not expired")
	ErrBidTooLow         = errors.New("bid too low")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTransfersPaused   = errors.New("transfers paused")
	ErrAuctionHasBids    = errors.New("auction has bids")
	ErrNotAuthorized     = errors.New("not authorized")
)

// CodeInternal is reported for errors outside the taxonomy.
const CodeInternal = "Internal"

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidParameters, "InvalidParameters"},
	{ErrDuplicateAuction, "DuplicateAuction"},
	{ErrNotFound, "NotFound"},
	{ErrNotCustodyHolder, "NotCustodyHolder"},
	{ErrAuctionNotOpen, "AuctionNotOpen"},
	{ErrAuctionExpired, "AuctionExpired"},
	{ErrAuctionNotExpired, "AuctionNotExpired"},
	{ErrBidTooLow, "BidTooLow"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrTransfersPaused, "TransfersPaused"},
	{ErrAuctionHasBids, "AuctionHasBids"},
	{ErrNotAuthorized, "NotAuthorized"},
}

// Code returns the taxonomy name of err, "" for nil and CodeInternal for
// errors that do not wrap a taxonomy member.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// ErrorForCode is the inverse of Code. It returns nil for unknown codes.
func ErrorForCode(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
