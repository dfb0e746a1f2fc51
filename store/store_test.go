package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/auctionhouse/core"
)

func sampleRecord(asset core.AssetID) core.AuctionRecord {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	price, _ := core.ParseAmount("1000000000000000000000")
	return core.AuctionRecord{
		ID:            "auction-1",
		AssetID:       asset,
		Seller:        "creator",
		StartingPrice: price,
		EndTime:       created.Add(10 * time.Second),
		Status:        core.StatusOpen,
		CreatedAt:     created,
	}
}

func TestRowConversion(t *testing.T) {
	r := sampleRecord(3)
	r.HighestBid = core.AmountFromUint64(103)
	r.HighestBidder = "bidder-x"
	r.BidCount = 2
	r.Status = core.StatusSettled
	r.ClosedAt = r.EndTime.Add(time.Second)

	back, err := toRow(r).record()
	assert.NoError(t, err)
	check.Equal(t, r, back)

	open := sampleRecord(4)
	back, err = toRow(open).record()
	assert.NoError(t, err)
	check.True(t, back.ClosedAt.IsZero())
}

func TestRowConversion_RejectsBadAmount(t *testing.T) {
	row := toRow(sampleRecord(1))
	row.HighestBid = "-5"
	_, err := row.record()
	check.Error(t, err)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "auctions.cbor")

	s, err := NewFileStore(path)
	assert.NoError(t, err)
	records, err := s.LoadAuctions(ctx)
	assert.NoError(t, err)
	check.Equal(t, 0, len(records))

	first := sampleRecord(2)
	second := sampleRecord(1)
	assert.NoError(t, s.SaveAuction(ctx, first))
	assert.NoError(t, s.SaveAuction(ctx, second))

	first.HighestBid = core.AmountFromUint64(5)
	first.HighestBidder = "bidder"
	first.BidCount = 1
	assert.NoError(t, s.SaveAuction(ctx, first))
	assert.NoError(t, s.Close())

	reopened, err := NewFileStore(path)
	assert.NoError(t, err)
	records, err = reopened.LoadAuctions(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(records))
	check.Equal(t, second, records[0])
	check.Equal(t, first, records[1])

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	assert.NoError(t, err)
	check.Equal(t, 0, len(matches))
}

func TestFileStore_CorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auctions.cbor")
	assert.NoError(t, os.WriteFile(path, []byte("not cbor"), 0o600))

	_, err := NewFileStore(path)
	check.Error(t, err)
}

func TestFileStore_CancelledContext(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "auctions.cbor"))
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	check.Error(t, s.SaveAuction(ctx, sampleRecord(1)))

	records, err := s.LoadAuctions(context.Background())
	assert.NoError(t, err)
	check.Equal(t, 0, len(records))
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{Driver: DriverNone})
	assert.NoError(t, err)
	check.True(t, s == nil)

	s, err = Open(Config{Driver: DriverFile, Path: filepath.Join(t.TempDir(), "a.cbor")})
	assert.NoError(t, err)
	check.NotNil(t, s)

	_, err = Open(Config{Driver: "redis"})
	check.Error(t, err)

	_, err = Open(Config{Driver: DriverMySQL})
	check.Error(t, err)
}

// TestSQLStore runs against a real MySQL server when AUCTION_TEST_MYSQL_DSN
// is set.
func TestSQLStore(t *testing.T) {
	dsn := os.Getenv("AUCTION_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("AUCTION_TEST_MYSQL_DSN not set")
	}
	ctx := context.Background()

	s, err := NewSQLStore(dsn)
	assert.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.db.Exec("DELETE FROM auctions").Error)

	r := sampleRecord(1)
	assert.NoError(t, s.SaveAuction(ctx, r))
	r.HighestBid = core.AmountFromUint64(42)
	r.HighestBidder = "bidder"
	r.BidCount = 1
	assert.NoError(t, s.SaveAuction(ctx, r))

	records, err := s.LoadAuctions(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(records))
	check.Equal(t, r, records[0])
}
