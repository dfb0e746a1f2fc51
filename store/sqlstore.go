package store

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/cloudx-io/auctionhouse/core"
)

// SQLStore keeps one row per asset in the auctions table.
type SQLStore struct {
	db *gorm.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore connects to MySQL and migrates the auctions table.
func NewSQLStore(dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, errors.New("mysql dsn is required")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed on open mysql")
	}
	return NewSQLStoreWithDB(db)
}

// NewSQLStoreWithDB uses an existing gorm connection.
func NewSQLStoreWithDB(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&auctionRow{}); err != nil {
		return nil, errors.Wrap(err, "failed on migrate auctions table")
	}
	return &SQLStore{db: db}, nil
}

// SaveAuction upserts the record keyed by asset id.
func (s *SQLStore) SaveAuction(ctx context.Context, record core.AuctionRecord) error {
	row := toRow(record)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return errors.Wrapf(err, "failed on save auction for asset %d", record.AssetID)
	}
	return nil
}

// LoadAuctions returns all stored records ordered by asset id.
func (s *SQLStore) LoadAuctions(ctx context.Context) ([]core.AuctionRecord, error) {
	var rows []auctionRow
	err := s.db.WithContext(ctx).
		Order("asset_id").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed on load auctions")
	}
	out := make([]core.AuctionRecord, 0, len(rows))
	for _, row := range rows {
		r, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed on get sql db")
	}
	return sqlDB.Close()
}
