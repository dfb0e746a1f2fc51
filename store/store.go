// Package store persists the auction table so an auction house can resume
// after a restart.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/cloudx-io/auctionhouse/core"
)

// Store saves committed auction records and loads them back at startup.
type Store interface {
	core.Persister
	LoadAuctions(ctx context.Context) ([]core.AuctionRecord, error)
	Close() error
}

const (
	DriverNone  = "none"
	DriverFile  = "file"
	DriverMySQL = "mysql"
)

// Config selects and configures a Store.
type Config struct {
	Driver string `toml:"driver" mapstructure:"driver" json:"driver"`
	Path   string `toml:"path" mapstructure:"path" json:"path"`
	DSN    string `toml:"dsn" mapstructure:"dsn" json:"dsn"`
}

// Open returns the store named by cfg.Driver. It returns a nil Store for
// DriverNone.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return nil, nil
	case DriverFile:
		s, err := NewFileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMySQL:
		s, err := NewSQLStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// auctionRow is the storage form of an AuctionRecord shared by every driver.
// Amounts are base-10 strings and times are unix milliseconds.
type auctionRow struct {
	AssetID       uint64 `cbor:"asset_id" gorm:"column:asset_id;primaryKey;autoIncrement:false"`
	AuctionID     string `cbor:"auction_id" gorm:"column:auction_id;type:varchar(64);not null"`
	Seller        string `cbor:"seller" gorm:"column:seller;type:varchar(128);not null"`
	StartingPrice string `cbor:"starting_price" gorm:"column:starting_price;type:varchar(80);not null"`
	HighestBid    string `cbor:"highest_bid" gorm:"column:highest_bid;type:varchar(80);not null"`
	HighestBidder string `cbor:"highest_bidder" gorm:"column:highest_bidder;type:varchar(128)"`
	EndTime       int64  `cbor:"end_time" gorm:"column:end_time;not null"`
	Status        int32  `cbor:"status" gorm:"column:status;index;not null"`
	BidCount      int    `cbor:"bid_count" gorm:"column:bid_count;not null"`
	CreateTime    int64  `cbor:"create_time" gorm:"column:create_time;not null"`
	CloseTime     int64  `cbor:"close_time" gorm:"column:close_time"`
	UpdateTime    int64  `cbor:"update_time" gorm:"column:update_time"`
}

// TableName is the SQL table used by SQLStore.
func (auctionRow) TableName() string {
	return "auctions"
}

func toRow(r core.AuctionRecord) auctionRow {
	return auctionRow{
		AssetID:       uint64(r.AssetID),
		AuctionID:     r.ID,
		Seller:        string(r.Seller),
		StartingPrice: core.FormatAmount(r.StartingPrice),
		HighestBid:    core.FormatAmount(r.HighestBid),
		HighestBidder: string(r.HighestBidder),
		EndTime:       r.EndTime.UnixMilli(),
		Status:        int32(r.Status),
		BidCount:      r.BidCount,
		CreateTime:    r.CreatedAt.UnixMilli(),
		CloseTime:     unixMilliOrZero(r.ClosedAt),
		UpdateTime:    time.Now().UnixMilli(),
	}
}

func (row auctionRow) record() (core.AuctionRecord, error) {
	start, err := core.ParseAmount(row.StartingPrice)
	if err != nil {
		return core.AuctionRecord{}, errors.Wrapf(err, "asset %d starting price", row.AssetID)
	}
	bid, err := core.ParseAmount(row.HighestBid)
	if err != nil {
		return core.AuctionRecord{}, errors.Wrapf(err, "asset %d highest bid", row.AssetID)
	}
	r := core.AuctionRecord{
		ID:            row.AuctionID,
		AssetID:       core.AssetID(row.AssetID),
		Seller:        core.Address(row.Seller),
		StartingPrice: start,
		HighestBid:    bid,
		HighestBidder: core.Address(row.HighestBidder),
		EndTime:       time.UnixMilli(row.EndTime).UTC(),
		Status:        core.Status(row.Status),
		BidCount:      row.BidCount,
		CreatedAt:     time.UnixMilli(row.CreateTime).UTC(),
	}
	if row.CloseTime != 0 {
		r.ClosedAt = time.UnixMilli(row.CloseTime).UTC()
	}
	return r, nil
}

func unixMilliOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
