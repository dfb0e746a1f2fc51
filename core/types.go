package core

import (
	"time"

	"github.com/holiman/uint256"
)

// Address identifies an account on the settlement token and the asset registry.
// The zero value means "no address".
type Address string

// IsZero reports whether a is the empty address.
func (a Address) IsZero() bool { return a == "" }

// AssetID identifies a unique asset in the AssetRegistry.
type AssetID uint64

// Amount is an unsigned quantity of the settlement token in its smallest unit.
type Amount = uint256.Int

// Status is the lifecycle state of an auction record.
type Status int32

const (
	StatusUnspecified Status = 0
	StatusOpen        Status = 1 // accepting bids until EndTime
	StatusSettled     Status = 2 // sold to the highest bidder
	StatusCancelled   Status = 3 // closed without a sale, custody returned to seller
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusSettled:
		return "settled"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unspecified"
	}
}

// ParseStatus is the inverse of Status.String. Unknown names yield
// StatusUnspecified.
func ParseStatus(name string) Status {
	switch name {
	case "open":
		return StatusOpen
	case "settled":
		return StatusSettled
	case "cancelled":
		return StatusCancelled
	default:
		return StatusUnspecified
	}
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusSettled || s == StatusCancelled
}

// AuctionRecord is the state of one listing of one asset.
type AuctionRecord struct {
	// ID distinguishes successive listings of the same asset.
	ID            string
	AssetID       AssetID
	Seller        Address
	StartingPrice Amount
	HighestBid    Amount
	HighestBidder Address
	EndTime       time.Time
	Status        Status
	BidCount      int
	CreatedAt     time.Time
	ClosedAt      time.Time
}

// HasBid reports whether any bid has been accepted on the record.
func (r *AuctionRecord) HasBid() bool {
	return !r.HighestBidder.IsZero()
}

// IsOpen reports whether the record still accepts state changes.
func (r *AuctionRecord) IsOpen() bool {
	return r.Status == StatusOpen
}

// Expired reports whether now is at or past the record's end time.
func (r *AuctionRecord) Expired(now time.Time) bool {
	return !now.Before(r.EndTime)
}

// MinimumBid returns the smallest amount the next bid could be admitted with,
// ignoring the strict increase over an existing highest bid.
func (r *AuctionRecord) MinimumBid() Amount {
	if r.HasBid() {
		var next Amount
		next.AddUint64(&r.HighestBid, 1)
		return next
	}
	return r.StartingPrice
}

// Settlement describes the outcome of a closed auction.
type Settlement struct {
	Record         AuctionRecord
	Winner         Address
	Price          Amount
	Fee            Amount
	SellerProceeds Amount
	Treasury       Address
}

// Sold reports whether the settlement transferred the asset to a bidder.
func (s *Settlement) Sold() bool {
	return s.Record.Status == StatusSettled
}
