package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// AuctionEngine runs English auctions for assets held in an AssetRegistry and
// paid for in a FungibleLedger token. While an auction is open the engine's
// escrow account holds both the asset and the current highest bid.
//
// All operations are serialized: one completes, including its collaborator
// calls, before the next begins.
type AuctionEngine struct {
	mu sync.RWMutex

	ledger    *AuctionLedger
	funds     FungibleLedger
	custody   AssetRegistry
	escrow    Address
	clock     Clock
	log       *zap.Logger
	persister Persister
	admins    map[Address]struct{}
	newID     func() string
}

// EngineOption configures an AuctionEngine.
type EngineOption func(*AuctionEngine)

// WithClock overrides the time source used for end times and expiry checks.
func WithClock(clock Clock) EngineOption {
	return func(e *AuctionEngine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(log *zap.Logger) EngineOption {
	return func(e *AuctionEngine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithPersister makes every committed record change go through p first.
func WithPersister(p Persister) EngineOption {
	return func(e *AuctionEngine) {
		e.persister = p
	}
}

// WithAdmins lists accounts allowed to cancel any auction without bids.
func WithAdmins(admins ...Address) EngineOption {
	return func(e *AuctionEngine) {
		for _, a := range admins {
			if !a.IsZero() {
				e.admins[a] = struct{}{}
			}
		}
	}
}

// WithIDGenerator replaces the generator of auction record ids.
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *AuctionEngine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// NewAuctionEngine creates an engine with an empty auction table. The escrow
// account is funds.Account().
func NewAuctionEngine(fees FeeConfig, funds FungibleLedger, custody AssetRegistry, opts ...EngineOption) (*AuctionEngine, error) {
	if err := fees.Validate(); err != nil {
		return nil, err
	}
	if funds == nil || custody == nil {
		return nil, errors.Wrap(ErrInvalidParameters, "token ledger and asset registry are required")
	}
	escrow := funds.Account()
	if escrow.IsZero() {
		return nil, errors.Wrap(ErrInvalidParameters, "escrow account is required")
	}

	e := &AuctionEngine{
		ledger:  NewAuctionLedger(fees),
		funds:   funds,
		custody: custody,
		escrow:  escrow,
		clock:   time.Now,
		log:     zap.NewNop(),
		admins:  make(map[Address]struct{}),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Escrow returns the account that holds assets and bids of open auctions.
func (e *AuctionEngine) Escrow() Address {
	return e.escrow
}

// CreateAuction lists assetID for sale. The caller must hold custody of the
// asset or be an operator of the holder; the holder becomes the seller.
// duration is truncated to whole seconds and must be at least one second.
func (e *AuctionEngine) CreateAuction(ctx context.Context, caller Address, assetID AssetID, startingPrice Amount, duration time.Duration) (AuctionRecord, error) {
	if caller.IsZero() {
		return AuctionRecord{}, errors.Wrap(ErrInvalidParameters, "caller is required")
	}
	if startingPrice.IsZero() {
		return AuctionRecord{}, errors.Wrap(ErrInvalidParameters, "starting price must be positive")
	}
	duration = duration.Truncate(time.Second)
	if duration <= 0 {
		return AuctionRecord{}, errors.Wrap(ErrInvalidParameters, "duration must be at least one second")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ledger.CanInsert(assetID); err != nil {
		return AuctionRecord{}, err
	}

	holder, err := e.custody.OwnerOf(ctx, assetID)
	if err != nil {
		return AuctionRecord{}, errors.Wrapf(err, "owner of asset %d", assetID)
	}
	if err := e.authorizeListing(ctx, holder, caller, assetID); err != nil {
		return AuctionRecord{}, err
	}

	now := e.clock()
	record := AuctionRecord{
		ID:            e.newID(),
		AssetID:       assetID,
		Seller:        holder,
		StartingPrice: startingPrice,
		EndTime:       now.Add(duration),
		Status:        StatusOpen,
		CreatedAt:     now,
	}

	tx := beginTxn(e.funds, e.custody)
	if err := e.custody.TransferCustody(ctx, assetID, holder, e.escrow); err != nil {
		return AuctionRecord{}, tx.rollback(ctx, e.log, errors.Wrapf(err, "escrow asset %d", assetID))
	}
	tx.movedCustody("return asset to seller", func(ctx context.Context) error {
		return e.custody.TransferCustody(ctx, assetID, e.escrow, holder)
	})

	if err := e.persist(ctx, record); err != nil {
		return AuctionRecord{}, tx.rollback(ctx, e.log, err)
	}
	if err := e.ledger.Insert(record); err != nil {
		return AuctionRecord{}, tx.rollback(ctx, e.log, err)
	}
	tx.commit()

	e.log.Info("Auction created",
		zap.Uint64("asset", uint64(assetID)),
		zap.String("auction", record.ID),
		zap.String("seller", string(holder)),
		zap.String("starting_price", FormatAmount(startingPrice)),
		zap.Time("end_time", record.EndTime))
	return record, nil
}

func (e *AuctionEngine) authorizeListing(ctx context.Context, holder, caller Address, assetID AssetID) error {
	if holder == caller {
		return nil
	}
	if ops, ok := e.custody.(OperatorRegistry); ok {
		approved, err := ops.IsOperator(ctx, holder, caller)
		if err != nil {
			return errors.Wrapf(err, "operator check for asset %d", assetID)
		}
		if approved {
			return nil
		}
	}
	return errors.Wrapf(ErrNotCustodyHolder, "asset %d is held by %s, not %s", assetID, holder, caller)
}

// Bid places amount on the open auction for assetID. The amount is pulled from
// bidder into escrow and the displaced highest bidder, if any, is refunded.
func (e *AuctionEngine) Bid(ctx context.Context, bidder Address, assetID AssetID, amount Amount) (AuctionRecord, error) {
	if bidder.IsZero() {
		return AuctionRecord{}, errors.Wrap(ErrInvalidParameters, "bidder is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if bidder == e.escrow {
		return AuctionRecord{}, errors.Wrap(ErrNotAuthorized, "escrow account cannot bid")
	}

	current, err := e.ledger.Get(assetID)
	if err != nil {
		return AuctionRecord{}, err
	}
	if !current.IsOpen() {
		return AuctionRecord{}, errors.Wrapf(ErrAuctionNotOpen, "asset %d is %s", assetID, current.Status)
	}
	if current.Expired(e.clock()) {
		return AuctionRecord{}, errors.Wrapf(ErrAuctionExpired, "asset %d ended at %s", assetID, current.EndTime.Format(time.RFC3339))
	}
	if !BidMeetsMinimum(&current, amount) {
		minimum := current.MinimumBid()
		return AuctionRecord{}, errors.Wrapf(ErrBidTooLow, "asset %d: bid %s, minimum %s",
			assetID, FormatAmount(amount), FormatAmount(minimum))
	}

	next, err := e.ledger.Prepare(assetID, func(r *AuctionRecord) error {
		r.HighestBid = amount
		r.HighestBidder = bidder
		r.BidCount++
		return nil
	})
	if err != nil {
		return AuctionRecord{}, err
	}

	tx := beginTxn(e.funds, e.custody)
	if err := e.funds.Pull(ctx, bidder, amount); err != nil {
		return AuctionRecord{}, tx.rollback(ctx, e.log, errors.Wrapf(err, "pull bid from %s", bidder))
	}
	tx.movedFunds("refund new bid", func(ctx context.Context) error {
		return e.funds.Transfer(ctx, e.escrow, bidder, amount)
	})

	if current.HasBid() {
		prior, priorAmount := current.HighestBidder, current.HighestBid
		if err := e.funds.Transfer(ctx, e.escrow, prior, priorAmount); err != nil {
			return AuctionRecord{}, tx.rollback(ctx, e.log, errors.Wrapf(err, "refund %s", prior))
		}
		tx.movedFunds("reclaim refund", func(ctx context.Context) error {
			return e.funds.Pull(ctx, prior, priorAmount)
		})
	}

	if err := e.persist(ctx, next); err != nil {
		return AuctionRecord{}, tx.rollback(ctx, e.log, err)
	}
	if _, err := e.ledger.Update(assetID, replaceWith(next)); err != nil {
		return AuctionRecord{}, tx.rollback(ctx, e.log, err)
	}
	tx.commit()

	e.log.Info("Bid accepted",
		zap.Uint64("asset", uint64(assetID)),
		zap.String("bidder", string(bidder)),
		zap.String("amount", FormatAmount(amount)),
		zap.Int("bid_count", next.BidCount))
	return next, nil
}

// FinishAuction closes an expired auction. Anyone may call it. With a bid the
// asset goes to the highest bidder and the bid is split between treasury and
// seller; without one the asset returns to the seller and the auction is
// cancelled.
func (e *AuctionEngine) FinishAuction(ctx context.Context, assetID AssetID) (Settlement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.ledger.Get(assetID)
	if err != nil {
		return Settlement{}, err
	}
	if !current.IsOpen() {
		return Settlement{}, errors.Wrapf(ErrAuctionNotOpen, "asset %d is %s", assetID, current.Status)
	}
	now := e.clock()
	if !current.Expired(now) {
		return Settlement{}, errors.Wrapf(ErrAuctionNotExpired, "asset %d ends at %s", assetID, current.EndTime.Format(time.RFC3339))
	}

	if !current.HasBid() {
		return e.returnToSeller(ctx, current, now)
	}

	fees := e.ledger.Fees()
	fee, proceeds, err := fees.SplitProceeds(current.HighestBid)
	if err != nil {
		return Settlement{}, err
	}
	next, err := e.ledger.Prepare(assetID, func(r *AuctionRecord) error {
		r.Status = StatusSettled
		r.ClosedAt = now
		return nil
	})
	if err != nil {
		return Settlement{}, err
	}

	tx := beginTxn(e.funds, e.custody)
	if !fee.IsZero() {
		if err := e.funds.Transfer(ctx, e.escrow, fees.Treasury, fee); err != nil {
			return Settlement{}, tx.rollback(ctx, e.log, errors.Wrap(err, "pay treasury"))
		}
		tx.movedFunds("reclaim fee", func(ctx context.Context) error {
			return e.funds.Transfer(ctx, fees.Treasury, e.escrow, fee)
		})
	}
	if !proceeds.IsZero() {
		if err := e.funds.Transfer(ctx, e.escrow, current.Seller, proceeds); err != nil {
			return Settlement{}, tx.rollback(ctx, e.log, errors.Wrap(err, "pay seller"))
		}
		tx.movedFunds("reclaim proceeds", func(ctx context.Context) error {
			return e.funds.Transfer(ctx, current.Seller, e.escrow, proceeds)
		})
	}
	winner := current.HighestBidder
	if err := e.custody.TransferCustody(ctx, assetID, e.escrow, winner); err != nil {
		return Settlement{}, tx.rollback(ctx, e.log, errors.Wrapf(err, "deliver asset %d", assetID))
	}
	tx.movedCustody("reclaim asset", func(ctx context.Context) error {
		return e.custody.TransferCustody(ctx, assetID, winner, e.escrow)
	})

	if err := e.persist(ctx, next); err != nil {
		return Settlement{}, tx.rollback(ctx, e.log, err)
	}
	if _, err := e.ledger.Update(assetID, replaceWith(next)); err != nil {
		return Settlement{}, tx.rollback(ctx, e.log, err)
	}
	tx.commit()

	e.log.Info("Auction settled",
		zap.Uint64("asset", uint64(assetID)),
		zap.String("auction", next.ID),
		zap.String("winner", string(winner)),
		zap.String("price", FormatAmount(next.HighestBid)),
		zap.String("fee", FormatAmount(fee)),
		zap.String("seller_proceeds", FormatAmount(proceeds)))

	return Settlement{
		Record:         next,
		Winner:         winner,
		Price:          next.HighestBid,
		Fee:            fee,
		SellerProceeds: proceeds,
		Treasury:       fees.Treasury,
	}, nil
}

// CancelAuction closes an auction that has no bids and returns the asset to
// the seller. Only the seller or an administrator may cancel.
func (e *AuctionEngine) CancelAuction(ctx context.Context, caller Address, assetID AssetID) (Settlement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.ledger.Get(assetID)
	if err != nil {
		return Settlement{}, err
	}
	if !current.IsOpen() {
		return Settlement{}, errors.Wrapf(ErrAuctionNotOpen, "asset %d is %s", assetID, current.Status)
	}
	if !e.mayCancel(caller, &current) {
		return Settlement{}, errors.Wrapf(ErrNotAuthorized, "%s cannot cancel auction for asset %d", caller, assetID)
	}
	if current.HasBid() {
		return Settlement{}, errors.Wrapf(ErrAuctionHasBids, "asset %d has %d bids", assetID, current.BidCount)
	}
	return e.returnToSeller(ctx, current, e.clock())
}

func (e *AuctionEngine) mayCancel(caller Address, record *AuctionRecord) bool {
	if caller.IsZero() {
		return false
	}
	if caller == record.Seller {
		return true
	}
	_, admin := e.admins[caller]
	return admin
}

// returnToSeller cancels an open auction without bids.
func (e *AuctionEngine) returnToSeller(ctx context.Context, current AuctionRecord, now time.Time) (Settlement, error) {
	assetID := current.AssetID
	next, err := e.ledger.Prepare(assetID, func(r *AuctionRecord) error {
		r.Status = StatusCancelled
		r.ClosedAt = now
		return nil
	})
	if err != nil {
		return Settlement{}, err
	}

	tx := beginTxn(e.funds, e.custody)
	if err := e.custody.TransferCustody(ctx, assetID, e.escrow, current.Seller); err != nil {
		return Settlement{}, tx.rollback(ctx, e.log, errors.Wrapf(err, "return asset %d", assetID))
	}
	tx.movedCustody("reclaim asset", func(ctx context.Context) error {
		return e.custody.TransferCustody(ctx, assetID, current.Seller, e.escrow)
	})

	if err := e.persist(ctx, next); err != nil {
		return Settlement{}, tx.rollback(ctx, e.log, err)
	}
	if _, err := e.ledger.Update(assetID, replaceWith(next)); err != nil {
		return Settlement{}, tx.rollback(ctx, e.log, err)
	}
	tx.commit()

	e.log.Info("Auction cancelled",
		zap.Uint64("asset", uint64(assetID)),
		zap.String("auction", next.ID),
		zap.String("seller", string(next.Seller)))

	return Settlement{
		Record:   next,
		Treasury: e.ledger.Treasury(),
	}, nil
}

func (e *AuctionEngine) persist(ctx context.Context, record AuctionRecord) error {
	if e.persister == nil {
		return nil
	}
	if err := e.persister.SaveAuction(ctx, record); err != nil {
		return errors.Wrapf(err, "persist auction for asset %d", record.AssetID)
	}
	return nil
}

func replaceWith(next AuctionRecord) func(*AuctionRecord) error {
	return func(r *AuctionRecord) error {
		*r = next
		return nil
	}
}

// IsAuction reports whether an auction was ever created for assetID.
func (e *AuctionEngine) IsAuction(assetID AssetID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Exists(assetID)
}

// IsAuctionOpen reports whether the current auction for assetID is open.
func (e *AuctionEngine) IsAuctionOpen(assetID AssetID) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.IsOpen(assetID)
}

// GetStartingPrice returns the starting price of the current auction for assetID.
func (e *AuctionEngine) GetStartingPrice(assetID AssetID) (Amount, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.StartingPrice(assetID)
}

// GetLastBid returns the highest bid and bidder of the current auction for
// assetID. The bidder is empty if nobody has bid.
func (e *AuctionEngine) GetLastBid(assetID AssetID) (Amount, Address, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.LastBid(assetID)
}

// GetTreasury returns the account that receives settlement fees.
func (e *AuctionEngine) GetTreasury() Address {
	return e.ledger.Treasury()
}

// FeeConfig returns the immutable fee configuration.
func (e *AuctionEngine) FeeConfig() FeeConfig {
	return e.ledger.Fees()
}

// Auction returns the current record for assetID.
func (e *AuctionEngine) Auction(assetID AssetID) (AuctionRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Get(assetID)
}

// History returns earlier closed auctions of assetID, oldest first.
func (e *AuctionEngine) History(assetID AssetID) []AuctionRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.History(assetID)
}

// Snapshot returns all current records ordered by asset id.
func (e *AuctionEngine) Snapshot() []AuctionRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Snapshot()
}

// Restore replaces the auction table with persisted records. Every open
// record's asset must be in escrow custody and the escrow must hold at least
// the sum of the open highest bids; otherwise nothing is restored.
func (e *AuctionEngine) Restore(ctx context.Context, records []AuctionRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.verifyEscrowHoldings(ctx, records); err != nil {
		return err
	}
	if err := e.ledger.Restore(records); err != nil {
		return err
	}
	e.log.Info("Auction table restored", zap.Int("records", len(records)))
	return nil
}

func (e *AuctionEngine) verifyEscrowHoldings(ctx context.Context, records []AuctionRecord) error {
	var owed Amount
	for i := range records {
		r := &records[i]
		if r.Status != StatusOpen {
			continue
		}
		holder, err := e.custody.OwnerOf(ctx, r.AssetID)
		if err != nil {
			return errors.Wrapf(ErrInvalidParameters, "restore auction %s: asset %d: %v", r.ID, r.AssetID, err)
		}
		if holder != e.escrow {
			return errors.Wrapf(ErrInvalidParameters, "restore auction %s: asset %d held by %q, not escrow",
				r.ID, r.AssetID, holder)
		}
		if _, overflow := owed.AddOverflow(&owed, &r.HighestBid); overflow {
			return errors.Wrap(ErrInvalidParameters, "restore: open bids overflow")
		}
	}
	if owed.IsZero() {
		return nil
	}
	held, err := e.funds.BalanceOf(ctx, e.escrow)
	if err != nil {
		return errors.Wrapf(ErrInvalidParameters, "restore: escrow balance: %v", err)
	}
	if held.Lt(&owed) {
		return errors.Wrapf(ErrInvalidParameters, "restore: escrow holds %s, open bids need %s",
			FormatAmount(held), FormatAmount(owed))
	}
	return nil
}
