package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/cloudx-io/auctionhouse/core"
)

const snapshotVersion = 1

type snapshot struct {
	Version  int          `cbor:"version"`
	Auctions []auctionRow `cbor:"auctions"`
}

// FileStore keeps the auction table in a single CBOR file. Every save
// rewrites the file through a temporary file and a rename.
type FileStore struct {
	mu   sync.Mutex
	path string
	rows map[uint64]auctionRow
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens the snapshot at path, creating its directory if needed.
// A missing file is an empty table.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed on create store directory")
	}
	s := &FileStore{path: path, rows: make(map[uint64]auctionRow)}
	rows, err := s.read()
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		s.rows[row.AssetID] = row
	}
	return s, nil
}

func (s *FileStore) read() ([]auctionRow, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed on read snapshot")
	}
	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "failed on decode snapshot")
	}
	if snap.Version != snapshotVersion {
		return nil, errors.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return snap.Auctions, nil
}

// SaveAuction replaces the stored record for the asset and flushes the file.
// On failure the in-memory table is left as it was.
func (s *FileStore) SaveAuction(ctx context.Context, record core.AuctionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row := toRow(record)
	prev, had := s.rows[row.AssetID]
	s.rows[row.AssetID] = row
	if err := s.flush(); err != nil {
		if had {
			s.rows[row.AssetID] = prev
		} else {
			delete(s.rows, row.AssetID)
		}
		return err
	}
	return nil
}

func (s *FileStore) flush() error {
	snap := snapshot{Version: snapshotVersion, Auctions: make([]auctionRow, 0, len(s.rows))}
	for _, row := range s.rows {
		snap.Auctions = append(snap.Auctions, row)
	}
	sort.Slice(snap.Auctions, func(i, j int) bool {
		return snap.Auctions[i].AssetID < snap.Auctions[j].AssetID
	})
	data, err := cbor.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "failed on encode snapshot")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed on create temp snapshot")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed on write snapshot")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed on sync snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed on close snapshot")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, "failed on replace snapshot")
	}
	return nil
}

// LoadAuctions returns all stored records ordered by asset id.
func (s *FileStore) LoadAuctions(ctx context.Context) ([]core.AuctionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.AuctionRecord, 0, len(s.rows))
	for _, row := range s.rows {
		r, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out, nil
}

func (s *FileStore) Close() error { return nil }
