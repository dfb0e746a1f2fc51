package core

import (
	"sort"

	"github.com/pkg/errors"
)

// AuctionLedger is the authoritative table of auction records, keyed by asset.
// It enforces at most one open record per asset and validates every mutation.
//
// AuctionLedger is not safe for concurrent use; AuctionEngine serializes all
// access to it.
type AuctionLedger struct {
	fees    FeeConfig
	records map[AssetID]*AuctionRecord
	history map[AssetID][]AuctionRecord
}

// NewAuctionLedger creates an empty ledger with a fixed fee configuration.
func NewAuctionLedger(fees FeeConfig) *AuctionLedger {
	return &AuctionLedger{
		fees:    fees,
		records: make(map[AssetID]*AuctionRecord),
		history: make(map[AssetID][]AuctionRecord),
	}
}

// Insert adds a new open record. A closed record for the same asset is moved
// into the asset's history.
func (l *AuctionLedger) Insert(record AuctionRecord) error {
	if record.Status != StatusOpen {
		return errors.Wrapf(ErrInvalidParameters, "new auction for asset %d must be open, got %s", record.AssetID, record.Status)
	}
	if record.HasBid() || !record.HighestBid.IsZero() {
		return errors.Wrapf(ErrInvalidParameters, "new auction for asset %d must not carry a bid", record.AssetID)
	}
	if existing, ok := l.records[record.AssetID]; ok {
		if existing.IsOpen() {
			return errors.Wrapf(ErrDuplicateAuction, "asset %d", record.AssetID)
		}
		l.history[record.AssetID] = append(l.history[record.AssetID], *existing)
	}
	stored := record
	l.records[record.AssetID] = &stored
	return nil
}

// Get returns a copy of the current record for an asset.
func (l *AuctionLedger) Get(id AssetID) (AuctionRecord, error) {
	record, ok := l.records[id]
	if !ok {
		return AuctionRecord{}, errors.Wrapf(ErrNotFound, "asset %d", id)
	}
	return *record, nil
}

// Prepare applies mutate to a copy of the open record for an asset and
// returns the copy if the result is a legal transition. The ledger is not
// modified.
func (l *AuctionLedger) Prepare(id AssetID, mutate func(*AuctionRecord) error) (AuctionRecord, error) {
	current, ok := l.records[id]
	if !ok {
		return AuctionRecord{}, errors.Wrapf(ErrNotFound, "asset %d", id)
	}
	if !current.IsOpen() {
		return AuctionRecord{}, errors.Wrapf(ErrAuctionNotOpen, "asset %d is %s", id, current.Status)
	}
	next := *current
	if err := mutate(&next); err != nil {
		return AuctionRecord{}, err
	}
	if err := checkTransition(current, &next); err != nil {
		return AuctionRecord{}, err
	}
	return next, nil
}

// Update is Prepare followed by storing the result.
func (l *AuctionLedger) Update(id AssetID, mutate func(*AuctionRecord) error) (AuctionRecord, error) {
	next, err := l.Prepare(id, mutate)
	if err != nil {
		return AuctionRecord{}, err
	}
	*l.records[id] = next
	return next, nil
}

// CanInsert reports the error Insert would return for a new record on id.
func (l *AuctionLedger) CanInsert(id AssetID) error {
	if existing, ok := l.records[id]; ok && existing.IsOpen() {
		return errors.Wrapf(ErrDuplicateAuction, "asset %d", id)
	}
	return nil
}

// checkTransition rejects mutations that would break the record invariants.
func checkTransition(before, after *AuctionRecord) error {
	if after.ID != before.ID ||
		after.AssetID != before.AssetID ||
		after.Seller != before.Seller ||
		!after.StartingPrice.Eq(&before.StartingPrice) ||
		!after.EndTime.Equal(before.EndTime) ||
		!after.CreatedAt.Equal(before.CreatedAt) {
		return errors.Wrapf(ErrInvalidParameters, "asset %d: identity fields are immutable", before.AssetID)
	}
	switch after.Status {
	case StatusOpen, StatusSettled, StatusCancelled:
	default:
		return errors.Wrapf(ErrInvalidParameters, "asset %d: invalid status %d", before.AssetID, after.Status)
	}
	if after.HighestBid.Lt(&before.HighestBid) {
		return errors.Wrapf(ErrBidTooLow, "asset %d: highest bid cannot decrease", before.AssetID)
	}
	if !after.HighestBid.Eq(&before.HighestBid) {
		if after.HighestBidder.IsZero() {
			return errors.Wrapf(ErrInvalidParameters, "asset %d: bid without bidder", before.AssetID)
		}
		if after.HighestBid.Lt(&after.StartingPrice) {
			return errors.Wrapf(ErrBidTooLow, "asset %d: bid below starting price", before.AssetID)
		}
	} else if after.HighestBidder != before.HighestBidder {
		return errors.Wrapf(ErrBidTooLow, "asset %d: bidder change requires a higher bid", before.AssetID)
	}
	if after.Status == StatusCancelled && after.HasBid() {
		return errors.Wrapf(ErrAuctionHasBids, "asset %d", before.AssetID)
	}
	if after.Status == StatusSettled && !after.HasBid() {
		return errors.Wrapf(ErrInvalidParameters, "asset %d: cannot settle without a bid", before.AssetID)
	}
	return nil
}

// Exists reports whether a record has ever been created for the asset.
func (l *AuctionLedger) Exists(id AssetID) bool {
	_, ok := l.records[id]
	return ok
}

// IsOpen reports whether the asset's current record is open.
func (l *AuctionLedger) IsOpen(id AssetID) (bool, error) {
	record, err := l.Get(id)
	if err != nil {
		return false, err
	}
	return record.IsOpen(), nil
}

// StartingPrice returns the starting price of the asset's current record.
func (l *AuctionLedger) StartingPrice(id AssetID) (Amount, error) {
	record, err := l.Get(id)
	if err != nil {
		return Amount{}, err
	}
	return record.StartingPrice, nil
}

// LastBid returns the highest bid and bidder of the asset's current record.
// The bidder is zero when no bid was placed.
func (l *AuctionLedger) LastBid(id AssetID) (Amount, Address, error) {
	record, err := l.Get(id)
	if err != nil {
		return Amount{}, "", err
	}
	return record.HighestBid, record.HighestBidder, nil
}

// Fees returns the fee configuration.
func (l *AuctionLedger) Fees() FeeConfig {
	return l.fees
}

// Treasury returns the account that receives settlement fees.
func (l *AuctionLedger) Treasury() Address {
	return l.fees.Treasury
}

// History returns the closed records that preceded the current one, oldest first.
func (l *AuctionLedger) History(id AssetID) []AuctionRecord {
	past := l.history[id]
	out := make([]AuctionRecord, len(past))
	copy(out, past)
	return out
}

// Len returns the number of assets that have a record.
func (l *AuctionLedger) Len() int {
	return len(l.records)
}

// Snapshot returns copies of all current records ordered by asset id.
func (l *AuctionLedger) Snapshot() []AuctionRecord {
	out := make([]AuctionRecord, 0, len(l.records))
	for _, record := range l.records {
		out = append(out, *record)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AssetID < out[j].AssetID
	})
	return out
}

// Restore replaces the table with previously persisted records. It fails
// without modifying the ledger if two records share an asset id.
func (l *AuctionLedger) Restore(records []AuctionRecord) error {
	restored := make(map[AssetID]*AuctionRecord, len(records))
	for i := range records {
		record := records[i]
		if _, dup := restored[record.AssetID]; dup {
			return errors.Wrapf(ErrDuplicateAuction, "restore: asset %d appears twice", record.AssetID)
		}
		switch record.Status {
		case StatusOpen, StatusSettled, StatusCancelled:
		default:
			return errors.Wrapf(ErrInvalidParameters, "restore: asset %d has invalid status %d", record.AssetID, record.Status)
		}
		restored[record.AssetID] = &record
	}
	l.records = restored
	l.history = make(map[AssetID][]AuctionRecord)
	return nil
}
