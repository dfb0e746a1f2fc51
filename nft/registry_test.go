package nft

import (
	"context"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/pkg/errors"

	"github.com/cloudx-io/auctionhouse/core"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New("art collection #1", "AC1", "minter")
	assert.NoError(t, err)
	return r
}

func TestMint(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	check.Equal(t, "AC1", r.Symbol())

	_, err := r.Mint(ctx, "creator", "creator", "x", "", nil)
	check.True(t, errors.Is(err, core.ErrNotAuthorized))

	md := map[string]string{"royalty": "10"}
	id, err := r.Mint(ctx, "minter", "creator", "test NFT token", "ipfs://one", md)
	assert.NoError(t, err)
	check.Equal(t, core.AssetID(1), id)

	id2, err := r.Mint(ctx, "minter", "creator", "second", "ipfs://two", nil)
	assert.NoError(t, err)
	check.Equal(t, core.AssetID(2), id2)
	check.Equal(t, 2, r.TotalSupply())

	holder, err := r.OwnerOf(ctx, id)
	assert.NoError(t, err)
	check.Equal(t, core.Address("creator"), holder)

	md["royalty"] = "99"
	asset, err := r.Asset(id)
	assert.NoError(t, err)
	check.Equal(t, "test NFT token", asset.Name)
	check.Equal(t, "ipfs://one", asset.URI)
	check.Equal(t, "10", asset.Metadata["royalty"])
	check.Equal(t, core.Address("creator"), asset.Creator)

	_, err = r.Asset(42)
	check.True(t, errors.Is(err, core.ErrInvalidParameters))
	_, err = r.Mint(ctx, "minter", "", "x", "", nil)
	check.True(t, errors.Is(err, core.ErrInvalidParameters))
}

func TestTransferCustody(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	id, err := r.Mint(ctx, "minter", "creator", "a", "", nil)
	assert.NoError(t, err)

	err = r.TransferCustody(ctx, id, "mallory", "mallory")
	check.True(t, errors.Is(err, core.ErrNotCustodyHolder))

	assert.NoError(t, r.TransferCustody(ctx, id, "creator", "house"))
	holder, _ := r.OwnerOf(ctx, id)
	check.Equal(t, core.Address("house"), holder)

	err = r.TransferCustody(ctx, id, "creator", "bob")
	check.True(t, errors.Is(err, core.ErrNotCustodyHolder))

	err = r.TransferCustody(ctx, 99, "house", "bob")
	check.True(t, errors.Is(err, core.ErrInvalidParameters))

	err = r.TransferCustody(ctx, id, "house", "")
	check.True(t, errors.Is(err, core.ErrInvalidParameters))
}

func TestOperators(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	ok, err := r.IsOperator(ctx, "creator", "agent")
	assert.NoError(t, err)
	check.False(t, ok)

	assert.NoError(t, r.SetOperator(ctx, "creator", "agent", true))
	ok, _ = r.IsOperator(ctx, "creator", "agent")
	check.True(t, ok)
	ok, _ = r.IsOperator(ctx, "agent", "creator")
	check.False(t, ok)

	assert.NoError(t, r.SetOperator(ctx, "creator", "agent", false))
	ok, _ = r.IsOperator(ctx, "creator", "agent")
	check.False(t, ok)

	check.True(t, errors.Is(r.SetOperator(ctx, "creator", "creator", true), core.ErrInvalidParameters))
}

func TestCheckpoint(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	id, err := r.Mint(ctx, "minter", "creator", "a", "", nil)
	assert.NoError(t, err)

	journal := r.Checkpoint()
	assert.NoError(t, r.TransferCustody(ctx, id, "creator", "house"))
	assert.NoError(t, r.SetOperator(ctx, "creator", "agent", true))
	minted, err := r.Mint(ctx, "minter", "bob", "b", "", nil)
	assert.NoError(t, err)
	assert.NoError(t, journal.Revert())

	holder, _ := r.OwnerOf(ctx, id)
	check.Equal(t, core.Address("creator"), holder)

	// Grants and mints made while the journal was open are kept.
	ok, _ := r.IsOperator(ctx, "creator", "agent")
	check.True(t, ok)
	holder, err = r.OwnerOf(ctx, minted)
	assert.NoError(t, err)
	check.Equal(t, core.Address("bob"), holder)

	// Transfers after a revert are no longer recorded.
	assert.NoError(t, r.TransferCustody(ctx, id, "creator", "house"))
	assert.NoError(t, journal.Revert())
	holder, _ = r.OwnerOf(ctx, id)
	check.Equal(t, core.Address("house"), holder)
}

func TestCheckpoint_Release(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	id, err := r.Mint(ctx, "minter", "creator", "a", "", nil)
	assert.NoError(t, err)

	journal := r.Checkpoint()
	assert.NoError(t, r.TransferCustody(ctx, id, "creator", "house"))
	journal.Release()
	assert.NoError(t, journal.Revert())

	holder, _ := r.OwnerOf(ctx, id)
	check.Equal(t, core.Address("house"), holder)
}

func TestCheckpoint_RevertAfterCustodyMovedOn(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	id, err := r.Mint(ctx, "minter", "creator", "a", "", nil)
	assert.NoError(t, err)

	journal := r.Checkpoint()
	assert.NoError(t, r.TransferCustody(ctx, id, "creator", "house"))
	journal.Release()
	journal = r.Checkpoint()
	assert.NoError(t, r.TransferCustody(ctx, id, "house", "winner"))
	other := r.Checkpoint()
	assert.NoError(t, r.TransferCustody(ctx, id, "winner", "collector"))
	other.Release()

	err = journal.Revert()
	check.True(t, errors.Is(err, core.ErrNotCustodyHolder))
	holder, _ := r.OwnerOf(ctx, id)
	check.Equal(t, core.Address("collector"), holder)
}
