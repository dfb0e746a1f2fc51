// Package nft is an in-memory registry of unique assets with custody
// transfers and holder-approved operators.
package nft

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/cloudx-io/auctionhouse/core"
)

// Asset is the descriptive data attached to a minted asset.
type Asset struct {
	ID       core.AssetID
	Name     string
	URI      string
	Metadata map[string]string
	Creator  core.Address
	MintedAt time.Time
}

// Registry tracks which account holds each asset. Only the minter may mint.
type Registry struct {
	mu sync.RWMutex

	name      string
	symbol    string
	minter    core.Address
	lastID    core.AssetID
	assets    map[core.AssetID]*Asset
	holders   map[core.AssetID]core.Address
	operators map[core.Address]map[core.Address]struct{}
	journals  map[*custodyJournal]struct{}
	clock     func() time.Time
}

var (
	_ core.AssetRegistry    = (*Registry)(nil)
	_ core.OperatorRegistry = (*Registry)(nil)
	_ core.Checkpointer     = (*Registry)(nil)
)

// New creates an empty collection.
func New(name, symbol string, minter core.Address) (*Registry, error) {
	if minter.IsZero() {
		return nil, errors.Wrap(core.ErrInvalidParameters, "minter is required")
	}
	return &Registry{
		name:      name,
		symbol:    symbol,
		minter:    minter,
		assets:    make(map[core.AssetID]*Asset),
		holders:   make(map[core.AssetID]core.Address),
		operators: make(map[core.Address]map[core.Address]struct{}),
		journals:  make(map[*custodyJournal]struct{}),
		clock:     time.Now,
	}, nil
}

func (r *Registry) Name() string         { return r.name }
func (r *Registry) Symbol() string       { return r.symbol }
func (r *Registry) Minter() core.Address { return r.minter }

// Mint creates a new asset held by to and returns its id. Ids start at 1.
func (r *Registry) Mint(_ context.Context, caller, to core.Address, name, uri string, metadata map[string]string) (core.AssetID, error) {
	if to.IsZero() {
		return 0, errors.Wrap(core.ErrInvalidParameters, "mint to empty address")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.minter {
		return 0, errors.Wrapf(core.ErrNotAuthorized, "%s is not the minter", caller)
	}
	r.lastID++
	id := r.lastID
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	r.assets[id] = &Asset{
		ID:       id,
		Name:     name,
		URI:      uri,
		Metadata: md,
		Creator:  to,
		MintedAt: r.clock(),
	}
	r.holders[id] = to
	return id, nil
}

// OwnerOf returns the current holder of id.
func (r *Registry) OwnerOf(_ context.Context, id core.AssetID) (core.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	holder, ok := r.holders[id]
	if !ok {
		return "", errors.Wrapf(core.ErrInvalidParameters, "unknown asset %d", id)
	}
	return holder, nil
}

// TransferCustody moves id from its current holder to to. It fails with
// core.ErrNotCustodyHolder when from does not hold the asset.
func (r *Registry) TransferCustody(_ context.Context, id core.AssetID, from, to core.Address) error {
	if to.IsZero() {
		return errors.Wrap(core.ErrInvalidParameters, "transfer to empty address")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	holder, ok := r.holders[id]
	if !ok {
		return errors.Wrapf(core.ErrInvalidParameters, "unknown asset %d", id)
	}
	if holder != from {
		return errors.Wrapf(core.ErrNotCustodyHolder, "asset %d: %s is not the current holder", id, from)
	}
	r.holders[id] = to
	for j := range r.journals {
		j.moves = append(j.moves, custodyMove{id: id, from: from, to: to})
	}
	return nil
}

// SetOperator lets operator list holder's assets, or revokes that right.
func (r *Registry) SetOperator(_ context.Context, holder, operator core.Address, approved bool) error {
	if holder.IsZero() || operator.IsZero() || holder == operator {
		return errors.Wrap(core.ErrInvalidParameters, "operator must differ from holder")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ops, ok := r.operators[holder]
	if !approved {
		if ok {
			delete(ops, operator)
		}
		return nil
	}
	if !ok {
		ops = make(map[core.Address]struct{})
		r.operators[holder] = ops
	}
	ops[operator] = struct{}{}
	return nil
}

// IsOperator reports whether operator may act for holder.
func (r *Registry) IsOperator(_ context.Context, holder, operator core.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.operators[holder][operator]
	return ok, nil
}

// Asset returns a copy of the asset's descriptive data.
func (r *Registry) Asset(id core.AssetID) (Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	if !ok {
		return Asset{}, errors.Wrapf(core.ErrInvalidParameters, "unknown asset %d", id)
	}
	out := *a
	out.Metadata = make(map[string]string, len(a.Metadata))
	for k, v := range a.Metadata {
		out.Metadata[k] = v
	}
	return out, nil
}

// TotalSupply returns the number of minted assets.
func (r *Registry) TotalSupply() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}

type custodyMove struct {
	id       core.AssetID
	from, to core.Address
}

// custodyJournal records custody transfers made after a Checkpoint.
type custodyJournal struct {
	r     *Registry
	moves []custodyMove
}

// Checkpoint starts journaling custody transfers. Mints and operator grants
// are not journaled and survive a revert.
func (r *Registry) Checkpoint() core.Journal {
	j := &custodyJournal{r: r}
	r.mu.Lock()
	r.journals[j] = struct{}{}
	r.mu.Unlock()
	return j
}

func (j *custodyJournal) Release() {
	j.r.mu.Lock()
	defer j.r.mu.Unlock()
	delete(j.r.journals, j)
	j.moves = nil
}

// Revert hands each journaled asset back to its previous holder, newest
// first. An asset that has since left the recorded recipient is reported and
// left where it is.
func (j *custodyJournal) Revert() error {
	r := j.r
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.journals, j)

	var failed error
	for i := len(j.moves) - 1; i >= 0; i-- {
		m := j.moves[i]
		if r.holders[m.id] != m.to {
			if failed == nil {
				failed = errors.Wrapf(core.ErrNotCustodyHolder, "revert asset %d: held by %s, not %s",
					m.id, r.holders[m.id], m.to)
			}
			continue
		}
		r.holders[m.id] = m.from
	}
	j.moves = nil
	return failed
}
