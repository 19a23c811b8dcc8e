package auction

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
	"auction-market/internal/settlement"
	"auction-market/utils"
)

// Options tunes the lifecycle service; the zero value is usable.
type Options struct {
	Retry     retry.Policy
	Metrics   *metrics.Metrics
	Now       func() time.Time
	Publisher settlement.Publisher

	// AllowPrebidEdits relaxes the edit rule to "active, no bids, not started".
	AllowPrebidEdits bool
}

// AuctionService owns the auction lifecycle: creation, edits, cancellation
// and finalization. It is the only writer of an auction's state and winner.
type AuctionService struct {
	repo      repository.AuctionDB
	sales     repository.SaleDB
	locks     locker.Locker
	policy    retry.Policy
	metrics   *metrics.Metrics
	now       func() time.Time
	publisher settlement.Publisher
	prebid    bool
}

// NewAuctionService creates a new AuctionService instance
func NewAuctionService(repo repository.AuctionDB, sales repository.SaleDB, locks locker.Locker, opts Options) *AuctionService {
	if locks == nil {
		locks = locker.NewLocal()
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Publisher == nil {
		opts.Publisher = settlement.LogPublisher{}
	}
	return &AuctionService{
		repo:      repo,
		sales:     sales,
		locks:     locks,
		policy:    opts.Retry,
		metrics:   opts.Metrics,
		now:       opts.Now,
		publisher: opts.Publisher,
		prebid:    opts.AllowPrebidEdits,
	}
}

// CreateAuction opens a new auction owned by actor
func (s *AuctionService) CreateAuction(ctx context.Context, actor string, in models.NewAuction) (models.Auction, error) {
	if actor == "" {
		return models.Auction{}, fmt.Errorf("auction: create: %w", marketerrors.ErrUnauthenticated)
	}
	if err := in.Validate(); err != nil {
		return models.Auction{}, fmt.Errorf("auction: create: %w", err)
	}

	a := models.Auction{
		AuctionID:    utils.GenerateID(),
		ProductID:    in.ProductID,
		SellerID:     actor,
		InitialPrice: in.InitialPrice,
		CurrentPrice: in.InitialPrice,
		MinIncrement: in.MinIncrement,
		ReservePrice: in.ReservePrice,
		StartTime:    in.StartTime.UTC(),
		EndTime:      in.EndTime.UTC(),
		State:        models.AuctionActive,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateAuction(ctx, a); err != nil {
		return models.Auction{}, fmt.Errorf("auction: failed to create auction for product %s: %w", in.ProductID, err)
	}

	s.metrics.AuctionTransition(string(models.AuctionActive))
	utils.Info("Auction created", map[string]any{"auction_id": a.AuctionID, "seller_id": actor, "product_id": a.ProductID})
	return a, nil
}

// GetAuction returns a single auction
func (s *AuctionService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("auction: %w - empty auction ID", marketerrors.ErrInvalidInput)
	}
	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("auction: failed to get auction %s: %w", auctionID, err)
	}
	return a, nil
}

// ListAuctions returns the auctions matching filter
func (s *AuctionService) ListAuctions(ctx context.Context, filter models.AuctionFilter) ([]models.Auction, error) {
	if filter.State != "" && !filter.State.Valid() {
		return nil, fmt.Errorf("auction: %w - unknown state %q", marketerrors.ErrInvalidInput, filter.State)
	}
	auctions, err := s.repo.ListAuctions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("auction: failed to list auctions: %w", err)
	}
	return auctions, nil
}

// ListSales returns the sales recorded at finalization
func (s *AuctionService) ListSales(ctx context.Context, filter models.SaleFilter) ([]models.Sale, error) {
	sales, err := s.sales.ListSales(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("auction: failed to list sales: %w", err)
	}
	return sales, nil
}

// UpdateAuction applies patch to the seller's auction. Active auctions are
// immutable unless pre-bid edits are enabled, in which case edits are allowed
// until the first bid or the start time, whichever comes first.
func (s *AuctionService) UpdateAuction(ctx context.Context, actor, auctionID string, patch models.AuctionPatch) (models.Auction, error) {
	if patch.IsEmpty() {
		return models.Auction{}, fmt.Errorf("auction: update %s: %w - nothing to change", auctionID, marketerrors.ErrInvalidInput)
	}
	if err := patch.CheckAmounts(); err != nil {
		return models.Auction{}, fmt.Errorf("auction: update %s: %w", auctionID, err)
	}

	var updated models.Auction
	err := s.mutate(ctx, actor, auctionID, "update", func(ctx context.Context, a models.Auction) error {
		if err := s.checkEditable(a); err != nil {
			return err
		}
		next, err := patch.Apply(a)
		if err != nil {
			return err
		}
		updated, err = s.repo.UpdateAuction(ctx, next, a.Version)
		return err
	})
	if err != nil {
		return models.Auction{}, err
	}

	utils.Info("Auction updated", map[string]any{"auction_id": auctionID, "seller_id": actor})
	return updated, nil
}

func (s *AuctionService) checkEditable(a models.Auction) error {
	if a.State.Terminal() {
		return fmt.Errorf("%w - auction is %s", marketerrors.ErrInvalidState, a.State)
	}
	if !s.prebid {
		return fmt.Errorf("%w - active auctions cannot be edited", marketerrors.ErrInvalidState)
	}
	if a.BidCount > 0 {
		return fmt.Errorf("%w - auction already has %d bids", marketerrors.ErrInvalidState, a.BidCount)
	}
	if !s.now().Before(a.StartTime) {
		return fmt.Errorf("%w - auction already started", marketerrors.ErrInvalidState)
	}
	return nil
}

// Cancel closes an active auction without a winner
func (s *AuctionService) Cancel(ctx context.Context, actor, auctionID string) (models.Auction, error) {
	var cancelled models.Auction
	err := s.mutate(ctx, actor, auctionID, "cancel", func(ctx context.Context, a models.Auction) error {
		if a.State != models.AuctionActive {
			return fmt.Errorf("%w - auction is %s", marketerrors.ErrInvalidState, a.State)
		}
		next := a
		next.State = models.AuctionCancelled
		var err error
		cancelled, err = s.repo.UpdateAuction(ctx, next, a.Version)
		return err
	})
	if err != nil {
		return models.Auction{}, err
	}

	s.metrics.AuctionTransition(string(models.AuctionCancelled))
	utils.Info("Auction cancelled", map[string]any{"auction_id": auctionID, "seller_id": actor})
	return cancelled, nil
}

// Finalize closes an active auction. The winner is the leading active bid;
// winnerCandidate, when given, must name that bid's bidder. An auction with no
// bids, or whose leading bid misses the reserve, closes without a winner.
func (s *AuctionService) Finalize(ctx context.Context, actor, auctionID, winnerCandidate string) (models.Settlement, error) {
	var result models.Settlement
	err := s.mutate(ctx, actor, auctionID, "finalize", func(ctx context.Context, a models.Auction) error {
		if a.State != models.AuctionActive {
			return fmt.Errorf("%w - auction is %s", marketerrors.ErrInvalidState, a.State)
		}

		bids, err := s.repo.ListBids(ctx, models.BidFilter{AuctionID: a.AuctionID, State: models.BidActive})
		if err != nil {
			return err
		}
		winner := settlement.Resolve(a, bids).Winner()

		if winnerCandidate != "" && (winner == nil || winner.BidderID != winnerCandidate) {
			leading := "none"
			if winner != nil {
				leading = winner.BidderID
			}
			return fmt.Errorf("%w - candidate %s, leading bidder %s", marketerrors.ErrWinnerMismatch, winnerCandidate, leading)
		}

		next := a
		next.State = models.AuctionFinalized
		var (
			winningBidID string
			sale         *models.Sale
		)
		if winner != nil {
			next.WinnerID = winner.BidderID
			winningBidID = winner.BidID
			rec := settlement.NewSale(a, *winner, s.now())
			sale = &rec
		}

		final, err := s.repo.FinalizeAuction(ctx, next, a.Version, winningBidID, sale)
		if err != nil {
			return err
		}
		result = models.Settlement{Auction: final, Sale: sale}
		return nil
	})
	if err != nil {
		return models.Settlement{}, err
	}

	s.metrics.AuctionTransition(string(models.AuctionFinalized))
	fields := map[string]any{"auction_id": auctionID, "seller_id": result.Auction.SellerID}
	if result.Sale != nil {
		fields["winner_id"] = result.Sale.WinnerID
		fields["amount"] = result.Sale.Amount.String()
	}
	utils.Info("Auction finalized", fields)

	if result.Sale != nil {
		if err := s.publisher.Publish(ctx, *result.Sale); err != nil {
			utils.Error("Failed to hand off sale", map[string]any{"auction_id": auctionID, "sale_id": result.Sale.SaleID, "error": err.Error()})
		}
	}
	return result, nil
}

// ExpireDue finalizes, on behalf of their sellers, every active auction whose
// end time has passed. It returns how many auctions it closed.
func (s *AuctionService) ExpireDue(ctx context.Context) (int, error) {
	active, err := s.repo.ListAuctions(ctx, models.AuctionFilter{State: models.AuctionActive})
	if err != nil {
		return 0, fmt.Errorf("auction: failed to list active auctions: %w", err)
	}

	now := s.now()
	closed := 0
	for _, a := range active {
		if !now.After(a.EndTime) {
			continue
		}
		if _, err := s.Finalize(ctx, a.SellerID, a.AuctionID, ""); err != nil {
			if ctx.Err() != nil {
				return closed, ctx.Err()
			}
			utils.Warn("Failed to finalize expired auction", map[string]any{"auction_id": a.AuctionID, "error": err.Error()})
			continue
		}
		closed++
	}
	return closed, nil
}

// mutate runs fn on the freshest copy of the seller's auction while holding
// the auction lock, retrying conditional-write conflicts.
func (s *AuctionService) mutate(ctx context.Context, actor, auctionID, op string, fn func(context.Context, models.Auction) error) error {
	if actor == "" {
		return fmt.Errorf("auction: %s: %w", op, marketerrors.ErrUnauthenticated)
	}
	if auctionID == "" {
		return fmt.Errorf("auction: %s: %w - empty auction ID", op, marketerrors.ErrInvalidInput)
	}

	unlock, err := s.locks.Lock(ctx, locker.AuctionKey(auctionID))
	if err != nil {
		return fmt.Errorf("auction: %s %s: %w", op, auctionID, err)
	}
	defer unlock()

	onConflict := func(attempt int) {
		s.metrics.ConflictRetry("auction")
		utils.Warn("Auction write conflict, retrying", map[string]any{"auction_id": auctionID, "op": op, "attempt": attempt})
	}

	err = retry.Do(ctx, s.policy, onConflict, func(ctx context.Context) error {
		a, err := s.repo.GetAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		if a.SellerID != actor {
			return fmt.Errorf("%w - %s is not the seller", marketerrors.ErrUnauthorized, actor)
		}
		return fn(ctx, a)
	})
	if err != nil {
		return fmt.Errorf("auction: %s %s: %w", op, auctionID, err)
	}
	return nil
}
