package service

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cloudx-io/auctionhouse/auctionapi"
	"github.com/cloudx-io/auctionhouse/core"
)

var (
	errNoToken    = errors.Wrap(core.ErrInvalidParameters, "token operations are not enabled")
	errNoRegistry = errors.Wrap(core.ErrInvalidParameters, "asset operations are not enabled")
)

func (s *AuctionService) mintTokens(ctx context.Context, req auctionapi.Request) (auctionapi.Response, error) {
	if s.token == nil {
		return auctionapi.Response{}, errNoToken
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return auctionapi.Response{}, err
	}
	to := core.Address(req.Account)
	if err := s.token.Mint(ctx, core.Address(req.Caller), to, amount); err != nil {
		return auctionapi.Response{}, err
	}
	return s.balanceResponse(ctx, req.Type, to)
}

// approve authorizes Spender, or the escrow account when Spender is empty, to
// move Amount of the caller's tokens.
func (s *AuctionService) approve(ctx context.Context, req auctionapi.Request) (auctionapi.Response, error) {
	if s.token == nil {
		return auctionapi.Response{}, errNoToken
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return auctionapi.Response{}, err
	}
	spender := core.Address(req.Spender)
	if spender.IsZero() {
		spender = s.engine.Escrow()
	}
	holder := core.Address(req.Caller)
	if err := s.token.Approve(ctx, holder, spender, amount); err != nil {
		return auctionapi.Response{}, err
	}
	allowance := s.token.Allowance(holder, spender)
	return auctionapi.Response{Type: req.Type, Balance: core.FormatAmount(allowance)}, nil
}

func (s *AuctionService) balanceOf(ctx context.Context, req auctionapi.Request) (auctionapi.Response, error) {
	if s.token == nil {
		return auctionapi.Response{}, errNoToken
	}
	account := core.Address(req.Account)
	if account.IsZero() {
		account = core.Address(req.Caller)
	}
	return s.balanceResponse(ctx, req.Type, account)
}

func (s *AuctionService) balanceResponse(ctx context.Context, typ string, account core.Address) (auctionapi.Response, error) {
	balance, err := s.token.BalanceOf(ctx, account)
	if err != nil {
		return auctionapi.Response{}, err
	}
	return auctionapi.Response{Type: typ, Balance: core.FormatAmount(balance)}, nil
}

// mintAsset mints to Account, or to the caller when Account is empty.
func (s *AuctionService) mintAsset(ctx context.Context, req auctionapi.Request) (auctionapi.Response, error) {
	if s.assets == nil {
		return auctionapi.Response{}, errNoRegistry
	}
	to := core.Address(req.Account)
	if to.IsZero() {
		to = core.Address(req.Caller)
	}
	id, err := s.assets.Mint(ctx, core.Address(req.Caller), to, req.Name, req.URI, req.Metadata)
	if err != nil {
		return auctionapi.Response{}, err
	}
	return auctionapi.Response{Type: req.Type, AssetID: uint64(id), Owner: string(to)}, nil
}

func (s *AuctionService) setOperator(ctx context.Context, req auctionapi.Request) (auctionapi.Response, error) {
	if s.assets == nil {
		return auctionapi.Response{}, errNoRegistry
	}
	err := s.assets.SetOperator(ctx, core.Address(req.Caller), core.Address(req.Operator), req.Approved)
	if err != nil {
		return auctionapi.Response{}, err
	}
	return auctionapi.Response{Type: req.Type}, nil
}

func (s *AuctionService) ownerOf(ctx context.Context, req auctionapi.Request) (auctionapi.Response, error) {
	if s.assets == nil {
		return auctionapi.Response{}, errNoRegistry
	}
	owner, err := s.assets.OwnerOf(ctx, core.AssetID(req.AssetID))
	if err != nil {
		return auctionapi.Response{}, err
	}
	return auctionapi.Response{Type: req.Type, AssetID: req.AssetID, Owner: string(owner)}, nil
}
