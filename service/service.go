// Package service maps auction house requests onto the engine and its
// collaborators. It is shared by the socket server and the HTTP gateway.
package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/auctionapi"
	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/nft"
	"github.com/cloudx-io/auctionhouse/receipt"
	"github.com/cloudx-io/auctionhouse/token"
)

// maxDurationSeconds is the longest duration a time.Duration can carry.
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

// AuctionService dispatches requests by type.
type AuctionService struct {
	engine   *core.AuctionEngine
	token    *token.Ledger
	assets   *nft.Registry
	receipts *receipt.Issuer
	log      *zap.Logger
	clock    func() time.Time
}

type Option func(*AuctionService)

// WithToken enables the devnet token operations on ledger.
func WithToken(ledger *token.Ledger) Option {
	return func(s *AuctionService) { s.token = ledger }
}

// WithRegistry enables the devnet asset operations on registry.
func WithRegistry(registry *nft.Registry) Option {
	return func(s *AuctionService) { s.assets = registry }
}

// WithReceipts attaches a signed receipt to every finish and cancel response.
func WithReceipts(issuer *receipt.Issuer) Option {
	return func(s *AuctionService) { s.receipts = issuer }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *AuctionService) {
		if log != nil {
			s.log = log
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *AuctionService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(engine *core.AuctionEngine, opts ...Option) (*AuctionService, error) {
	if engine == nil {
		return nil, errors.New("auction engine is required")
	}
	s := &AuctionService{
		engine: engine,
		log:    zap.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ReceiptPublicKey returns the PEM key receipts are signed with, if receipts
// are enabled.
func (s *AuctionService) ReceiptPublicKey() (string, bool) {
	if s.receipts == nil {
		return "", false
	}
	return s.receipts.PublicKeyPEM(), true
}

// Handle executes one request. Failures are reported in the response, never
// as a Go error.
func (s *AuctionService) Handle(ctx context.Context, req auctionapi.Request) auctionapi.Response {
	start := s.clock()

	resp, err := s.dispatch(ctx, req)
	if err != nil {
		resp = failure(req, err)
		s.log.Info("Request failed",
			zap.String("type", req.Type),
			zap.String("request_id", req.RequestID),
			zap.String("code", resp.Code),
			zap.Error(err))
	} else {
		resp.Success = true
		resp.RequestID = req.RequestID
	}

	end := s.clock()
	resp.ProcessingTime = end.Sub(start).Milliseconds()
	resp.Timestamp = end.Unix()
	return resp
}

func failure(req auctionapi.Request, err error) auctionapi.Response {
	return auctionapi.Response{
		Type:      auctionapi.TypeError,
		RequestID: req.RequestID,
		Success:   false,
		Code:      core.Code(err),
		Message:   err.Error(),
	}
}

func (s *AuctionService) dispatch(ctx context.Context, req auctionapi.Request) (auctionapi.Response, error) {
	switch req.Type {
	case auctionapi.TypePing:
		return auctionapi.Response{Type: auctionapi.TypePong, Message: "auction house is healthy"}, nil
	case auctionapi.TypeCreateAuction:
		return s.createAuction(ctx, req)
	case auctionapi.TypeBid:
		return s.bid(ctx, req)
	case auctionapi.TypeFinishAuction:
		return s.finishAuction(ctx, req)
	case auctionapi.TypeCancelAuction:
		return s.cancelAuction(ctx, req)
	case auctionapi.TypeGetAuction:
		return s.getAuction(req)
	case auctionapi.TypeGetTreasury:
		view := auctionapi.NewTreasuryView(s.engine.FeeConfig())
		return auctionapi.Response{Type: req.Type, Treasury: &view}, nil
	case auctionapi.TypeMintTokens:
		return s.mintTokens(ctx, req)
	case auctionapi.TypeApprove:
		return s.approve(ctx, req)
	case auctionapi.TypeBalanceOf:
		return s.balanceOf(ctx, req)
	case auctionapi.TypeMintAsset:
		return s.mintAsset(ctx, req)
	case auctionapi.TypeSetOperator:
		return s.setOperator(ctx, req)
	case auctionapi.TypeOwnerOf:
		return s.ownerOf(ctx, req)
	default:
		return auctionapi.Response{}, errors.Wrapf(core.ErrInvalidParameters, "unknown request type %q", req.Type)
	}
}

func (s *AuctionService) createAuction(ctx context.Context, req auctionapi.Request) (auctionapi.Response, error) {
	price, err := core.ParseAmount(req.StartingPrice)
	if err != nil {
		return auctionapi.Response{}, err
	}
	if req.DurationSeconds < 0 || req.DurationSeconds > maxDurationSeconds {
		return auctionapi.Response{}, errors.Wrapf(core.ErrInvalidParameters,
			"duration %d seconds out of range", req.DurationSeconds)
	}
	duration := time.Duration(req.DurationSeconds) * time.Second
	record, err := s.engine.CreateAuction(ctx, core.Address(req.Caller), core.AssetID(req.AssetID), price, duration)
	if err != nil {
		return auctionapi.Response{}, err
	}
	view := auctionapi.NewAuctionView(record)
	return auctionapi.Response{Type: req.Type, Auction: &view, AssetID: req.AssetID}, nil
}

func (s *AuctionService) bid(ctx context.Context, req auctionapi.Request) (auctionapi.Response, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return auctionapi.Response{}, err
	}
	record, err := s.engine.Bid(ctx, core.Address(req.Caller), core.AssetID(req.AssetID), amount)
	if err != nil {
		return auctionapi.Response{}, err
	}
	view := auctionapi.NewAuctionView(record)
	return auctionapi.Response{Type: req.Type, Auction: &view, AssetID: req.AssetID}, nil
}

func (s *AuctionService) finishAuction(ctx context.Context, req auctionapi.Request) (auctionapi.Response, error) {
	settlement, err := s.engine.FinishAuction(ctx, core.AssetID(req.AssetID))
	if err != nil {
		return auctionapi.Response{}, err
	}
	return s.settled(req, settlement), nil
}

func (s *AuctionService) cancelAuction(ctx context.Context, req auctionapi.Request) (auctionapi.Response, error) {
	settlement, err := s.engine.CancelAuction(ctx, core.Address(req.Caller), core.AssetID(req.AssetID))
	if err != nil {
		return auctionapi.Response{}, err
	}
	return s.settled(req, settlement), nil
}

// settled builds the response for a closed auction. The settlement is final
// at this point, so a receipt failure is reported in Message only.
func (s *AuctionService) settled(req auctionapi.Request, settlement core.Settlement) auctionapi.Response {
	auction := auctionapi.NewAuctionView(settlement.Record)
	view := auctionapi.NewSettlementView(settlement)
	resp := auctionapi.Response{
		Type:       req.Type,
		Auction:    &auction,
		Settlement: &view,
		AssetID:    req.AssetID,
	}
	if s.receipts == nil {
		return resp
	}
	signed, err := s.receipts.Issue(settlement)
	if err != nil {
		s.log.Error("Receipt issuance failed",
			zap.String("auction", settlement.Record.ID),
			zap.Uint64("asset", req.AssetID),
			zap.Error(err))
		resp.Message = fmt.Sprintf("receipt unavailable: %v", err)
		return resp
	}
	resp.Receipt = signed
	return resp
}

func (s *AuctionService) getAuction(req auctionapi.Request) (auctionapi.Response, error) {
	id := core.AssetID(req.AssetID)
	record, err := s.engine.Auction(id)
	if err != nil {
		return auctionapi.Response{}, err
	}
	view := auctionapi.NewAuctionView(record)
	return auctionapi.Response{
		Type:    req.Type,
		Auction: &view,
		History: auctionapi.NewAuctionViews(s.engine.History(id)),
		AssetID: req.AssetID,
	}, nil
}
