package bidding

import (
	"context"
	"fmt"
	"time"

	"auction-market/internal/locker"
	"auction-market/internal/marketerrors"
	"auction-market/internal/metrics"
	"auction-market/internal/models"
	"auction-market/internal/repository"
	"auction-market/internal/retry"
	"auction-market/utils"

	"github.com/shopspring/decimal"
)

// Options tunes the bidding service; the zero value is usable.
type Options struct {
	Retry   retry.Policy
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// BiddingService defines the business logic for auction bidding. It is the
// only writer of an auction's current price and bid count.
type BiddingService struct {
	repo    repository.AuctionDB
	locks   locker.Locker
	policy  retry.Policy
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, locks locker.Locker, opts Options) *BiddingService {
	if locks == nil {
		locks = locker.NewLocal()
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &BiddingService{
		repo:    repo,
		locks:   locks,
		policy:  opts.Retry,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
}

// PlaceBid validates a bid against the auction as it stands and, if it
// clears, admits it as the auction's only active bid. Admission on one
// auction is serialized by the auction lock and committed with a
// version-conditioned write, so two bidders racing past the same price can
// never both become active.
func (s *BiddingService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (placed models.PlacedBid, err error) {
	defer func() {
		outcome := "admitted"
		if err != nil {
			outcome = marketerrors.Code(err)
		}
		s.metrics.BidOutcome(outcome)
	}()

	if bidderID == "" {
		return models.PlacedBid{}, fmt.Errorf("service: %w - bidder required", marketerrors.ErrUnauthenticated)
	}
	if auctionID == "" {
		return models.PlacedBid{}, fmt.Errorf("service: %w - missing auctionID", marketerrors.ErrInvalidInput)
	}
	if err := models.CheckAmount(amount); err != nil {
		return models.PlacedBid{}, fmt.Errorf("service: bid amount: %w", err)
	}
	if !amount.IsPositive() {
		return models.PlacedBid{}, fmt.Errorf("service: %w - non-positive bid amount %s", marketerrors.ErrInvalidInput, amount)
	}

	unlock, err := s.locks.Lock(ctx, locker.AuctionKey(auctionID))
	if err != nil {
		return models.PlacedBid{}, fmt.Errorf("service: failed to lock auction %s: %w", auctionID, err)
	}
	defer unlock()

	onConflict := func(attempt int) {
		s.metrics.ConflictRetry("auction")
		utils.Warn("Bid admission conflict, retrying", map[string]any{"auction_id": auctionID, "bidder_id": bidderID, "attempt": attempt})
	}

	err = retry.Do(ctx, s.policy, onConflict, func(ctx context.Context) error {
		a, err := s.repo.GetAuction(ctx, auctionID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := s.validateBid(a, bidderID, amount, now); err != nil {
			return err
		}

		bid := models.Bid{
			BidID:     utils.GenerateID(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			State:     models.BidActive,
			CreatedAt: now,
		}
		updated, err := s.repo.AdmitBid(ctx, bid, a.Version)
		if err != nil {
			return err
		}
		placed = models.PlacedBid{Bid: bid, Auction: updated}
		return nil
	})
	if err != nil {
		return models.PlacedBid{}, fmt.Errorf("service: failed to place bid on auction %s by user %s: %w", auctionID, bidderID, err)
	}

	utils.Info("Bid admitted", map[string]any{
		"auction_id": auctionID,
		"bid_id":     placed.Bid.BidID,
		"bidder_id":  bidderID,
		"amount":     amount.String(),
		"bid_count":  placed.Auction.BidCount,
	})
	return placed, nil
}

// validateBid applies the admission rules in order: lifecycle state, time
// window, seller self-bidding, price and increment.
func (s *BiddingService) validateBid(a models.Auction, bidderID string, amount decimal.Decimal, now time.Time) error {
	if a.State != models.AuctionActive {
		return fmt.Errorf("%w - auction is %s", marketerrors.ErrInvalidState, a.State)
	}
	if !a.InWindow(now) {
		return fmt.Errorf("%w - bidding runs from %s to %s", marketerrors.ErrOutsideWindow,
			a.StartTime.Format(time.RFC3339), a.EndTime.Format(time.RFC3339))
	}
	if a.SellerID == bidderID {
		return fmt.Errorf("%w - sellers cannot bid on their own auction", marketerrors.ErrUnauthorized)
	}
	if amount.LessThanOrEqual(a.CurrentPrice) {
		return fmt.Errorf("%w - current price is %s", marketerrors.ErrBidTooLow, a.CurrentPrice)
	}
	if amount.Sub(a.CurrentPrice).LessThan(a.MinIncrement) {
		return fmt.Errorf("%w - minimum next bid is %s", marketerrors.ErrIncrementTooSmall, a.CurrentPrice.Add(a.MinIncrement))
	}
	return nil
}

// GetBid returns a single bid
func (s *BiddingService) GetBid(ctx context.Context, bidID string) (models.Bid, error) {
	if bidID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty bid ID", marketerrors.ErrInvalidInput)
	}

	bid, err := s.repo.GetBid(ctx, bidID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get bid %s: %w", bidID, err)
	}
	return bid, nil
}

// ListBidsForAuction returns all bids for a specific auction in placement order
func (s *BiddingService) ListBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", marketerrors.ErrInvalidInput)
	}

	bids, err := s.repo.ListBids(ctx, models.BidFilter{AuctionID: auctionID})
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// ListBidsByBidder returns every bid a user has placed
func (s *BiddingService) ListBidsByBidder(ctx context.Context, bidderID string) ([]models.Bid, error) {
	if bidderID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", marketerrors.ErrInvalidInput)
	}

	bids, err := s.repo.ListBids(ctx, models.BidFilter{BidderID: bidderID})
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for user %s: %w", bidderID, err)
	}
	return bids, nil
}

// UpdateBidState is an administrative override of a bid's state. Any
// authenticated actor may use it; the store still refuses a second active
// bid on the same auction.
func (s *BiddingService) UpdateBidState(ctx context.Context, actor, bidID string, state models.BidState) (models.Bid, error) {
	if actor == "" {
		return models.Bid{}, fmt.Errorf("service: %w", marketerrors.ErrUnauthenticated)
	}
	if bidID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty bid ID", marketerrors.ErrInvalidInput)
	}
	if !state.Valid() {
		return models.Bid{}, fmt.Errorf("service: %w - unknown bid state %q", marketerrors.ErrInvalidInput, state)
	}

	current, err := s.repo.GetBid(ctx, bidID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get bid %s: %w", bidID, err)
	}

	unlock, err := s.locks.Lock(ctx, locker.AuctionKey(current.AuctionID))
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to lock auction %s: %w", current.AuctionID, err)
	}
	defer unlock()

	bid, err := s.repo.SetBidState(ctx, bidID, state)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to set bid %s to %s: %w", bidID, state, err)
	}

	utils.Warn("Bid state overridden", map[string]any{"bid_id": bidID, "auction_id": bid.AuctionID, "actor": actor, "from": current.State, "to": state})
	return bid, nil
}
