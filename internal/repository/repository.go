package repository

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"auction-market/internal/marketerrors"
	"auction-market/internal/models"
)

// AuctionDB defines the auction and bid storage used by the lifecycle and
// bidding services. Every mutating method is conditional on the auction
// version read by the caller and fails with marketerrors.ErrConflict when the
// stored version moved on.
type AuctionDB interface {
	CreateAuction(ctx context.Context, auction models.Auction) error
	GetAuction(ctx context.Context, auctionID string) (models.Auction, error)
	ListAuctions(ctx context.Context, filter models.AuctionFilter) ([]models.Auction, error)
	UpdateAuction(ctx context.Context, auction models.Auction, expectedVersion int64) (models.Auction, error)

	// AdmitBid stores bid as the auction's only active bid, demotes every
	// previously active bid to superseded, sets the current price to the bid
	// amount and increments the bid count, all as one unit.
	AdmitBid(ctx context.Context, bid models.Bid, expectedVersion int64) (models.Auction, error)

	// FinalizeAuction stores the terminal auction, marks winningBidID (if any)
	// as winning and records sale (if any), all as one unit.
	FinalizeAuction(ctx context.Context, auction models.Auction, expectedVersion int64, winningBidID string, sale *models.Sale) (models.Auction, error)

	GetBid(ctx context.Context, bidID string) (models.Bid, error)
	ListBids(ctx context.Context, filter models.BidFilter) ([]models.Bid, error)

	// SetBidState forces a bid's state. Making a bid active while another bid
	// of the same auction is active fails with marketerrors.ErrInvalidState.
	SetBidState(ctx context.Context, bidID string, state models.BidState) (models.Bid, error)
}

// WalletDB defines account and wallet storage for the ledger.
type WalletDB interface {
	CreateAccount(ctx context.Context, account models.Account) error
	GetAccount(ctx context.Context, accountID string) (models.Account, error)
	UpdateWallet(ctx context.Context, accountID string, wallet models.Wallet, expectedVersion int64) (models.Account, error)
}

// SaleDB exposes the sale records written at settlement.
type SaleDB interface {
	ListSales(ctx context.Context, filter models.SaleFilter) ([]models.Sale, error)
}

type auctionRecord struct {
	mu      sync.Mutex
	auction models.Auction
	bids    []models.Bid
}

type accountRecord struct {
	mu      sync.Mutex
	account models.Account
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB,
// WalletDB and SaleDB. The repo-wide lock only guards the indexes; each
// auction and account carries its own lock, so writes to different
// aggregates never wait on each other.
type MemoryRepo struct {
	mu        sync.RWMutex
	auctions  map[string]*auctionRecord
	accounts  map[string]*accountRecord
	usernames map[string]string // username -> accountID
	emails    map[string]string // email -> accountID

	bidIndex sync.Map // bidID -> *auctionRecord

	salesMu sync.RWMutex
	sales   []models.Sale
}

var (
	_ AuctionDB = (*MemoryRepo)(nil)
	_ WalletDB  = (*MemoryRepo)(nil)
	_ SaleDB    = (*MemoryRepo)(nil)
)

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions:  make(map[string]*auctionRecord),
		accounts:  make(map[string]*accountRecord),
		usernames: make(map[string]string),
		emails:    make(map[string]string),
	}
}

func (r *MemoryRepo) auctionRecord(auctionID string) (*auctionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", auctionID, marketerrors.ErrNotFound)
	}
	return rec, nil
}

// CreateAuction stores a new auction
func (r *MemoryRepo) CreateAuction(_ context.Context, auction models.Auction) error {
	if auction.AuctionID == "" {
		return fmt.Errorf("create auction: empty id: %w", marketerrors.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[auction.AuctionID]; ok {
		return fmt.Errorf("create auction %s: %w", auction.AuctionID, marketerrors.ErrAlreadyExists)
	}
	r.auctions[auction.AuctionID] = &auctionRecord{auction: auction}
	return nil
}

// GetAuction returns the auction with the given id
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (models.Auction, error) {
	rec, err := r.auctionRecord(auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("get auction: %w", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.auction, nil
}

// ListAuctions returns the auctions matching filter, oldest first
func (r *MemoryRepo) ListAuctions(_ context.Context, filter models.AuctionFilter) ([]models.Auction, error) {
	r.mu.RLock()
	recs := make([]*auctionRecord, 0, len(r.auctions))
	for _, rec := range r.auctions {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	auctions := make([]models.Auction, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		a := rec.auction
		rec.mu.Unlock()

		if filter.Matches(a) {
			auctions = append(auctions, a)
		}
	}

	sort.Slice(auctions, func(i, j int) bool {
		if auctions[i].CreatedAt.Equal(auctions[j].CreatedAt) {
			return auctions[i].AuctionID < auctions[j].AuctionID
		}
		return auctions[i].CreatedAt.Before(auctions[j].CreatedAt)
	})
	return auctions, nil
}

// UpdateAuction replaces the auction if its version is still expectedVersion
func (r *MemoryRepo) UpdateAuction(_ context.Context, auction models.Auction, expectedVersion int64) (models.Auction, error) {
	rec, err := r.auctionRecord(auction.AuctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("update auction: %w", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.Version != expectedVersion {
		return models.Auction{}, fmt.Errorf("update auction %s at version %d (stored %d): %w",
			auction.AuctionID, expectedVersion, rec.auction.Version, marketerrors.ErrConflict)
	}

	auction.Version = expectedVersion + 1
	rec.auction = auction
	return auction, nil
}

// AdmitBid records bid as the new leading bid of its auction
func (r *MemoryRepo) AdmitBid(_ context.Context, bid models.Bid, expectedVersion int64) (models.Auction, error) {
	rec, err := r.auctionRecord(bid.AuctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("admit bid %s: %w", bid.BidID, err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.Version != expectedVersion {
		return models.Auction{}, fmt.Errorf("admit bid %s at version %d (stored %d): %w",
			bid.BidID, expectedVersion, rec.auction.Version, marketerrors.ErrConflict)
	}
	if _, dup := r.bidIndex.Load(bid.BidID); dup {
		return models.Auction{}, fmt.Errorf("admit bid %s: %w", bid.BidID, marketerrors.ErrAlreadyExists)
	}

	for i := range rec.bids {
		if rec.bids[i].State == models.BidActive {
			rec.bids[i].State = models.BidSuperseded
		}
	}

	bid.State = models.BidActive
	rec.bids = append(rec.bids, bid)
	r.bidIndex.Store(bid.BidID, rec)

	rec.auction.CurrentPrice = bid.Amount
	rec.auction.BidCount++
	rec.auction.Version++
	return rec.auction, nil
}

// FinalizeAuction stores a terminal auction together with its winning bid and sale
func (r *MemoryRepo) FinalizeAuction(_ context.Context, auction models.Auction, expectedVersion int64, winningBidID string, sale *models.Sale) (models.Auction, error) {
	rec, err := r.auctionRecord(auction.AuctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("finalize auction: %w", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.Version != expectedVersion {
		return models.Auction{}, fmt.Errorf("finalize auction %s at version %d (stored %d): %w",
			auction.AuctionID, expectedVersion, rec.auction.Version, marketerrors.ErrConflict)
	}

	winnerIdx := -1
	if winningBidID != "" {
		for i := range rec.bids {
			if rec.bids[i].BidID == winningBidID {
				winnerIdx = i
				break
			}
		}
		if winnerIdx < 0 {
			return models.Auction{}, fmt.Errorf("finalize auction %s: winning bid %s: %w",
				auction.AuctionID, winningBidID, marketerrors.ErrNotFound)
		}
	}

	if winnerIdx >= 0 {
		for i, b := range rec.bids {
			if i != winnerIdx && b.State == models.BidWinning {
				return models.Auction{}, fmt.Errorf("finalize auction %s: bid %s is already winning: %w",
					auction.AuctionID, b.BidID, marketerrors.ErrInvalidState)
			}
		}
		rec.bids[winnerIdx].State = models.BidWinning
	}
	if sale != nil {
		r.salesMu.Lock()
		r.sales = append(r.sales, *sale)
		r.salesMu.Unlock()
	}

	auction.Version = expectedVersion + 1
	rec.auction = auction
	return auction, nil
}

// GetBid returns the bid with the given id
func (r *MemoryRepo) GetBid(_ context.Context, bidID string) (models.Bid, error) {
	v, ok := r.bidIndex.Load(bidID)
	if !ok {
		return models.Bid{}, fmt.Errorf("get bid %s: %w", bidID, marketerrors.ErrNotFound)
	}
	rec := v.(*auctionRecord)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	for _, b := range rec.bids {
		if b.BidID == bidID {
			return b, nil
		}
	}
	return models.Bid{}, fmt.Errorf("get bid %s: %w", bidID, marketerrors.ErrNotFound)
}

// ListBids returns the bids matching filter in placement order
func (r *MemoryRepo) ListBids(_ context.Context, filter models.BidFilter) ([]models.Bid, error) {
	var recs []*auctionRecord
	if filter.AuctionID != "" {
		rec, err := r.auctionRecord(filter.AuctionID)
		if err != nil {
			return nil, fmt.Errorf("list bids: %w", err)
		}
		recs = []*auctionRecord{rec}
	} else {
		r.mu.RLock()
		for _, rec := range r.auctions {
			recs = append(recs, rec)
		}
		r.mu.RUnlock()
	}

	bids := make([]models.Bid, 0)
	for _, rec := range recs {
		rec.mu.Lock()
		for _, b := range rec.bids {
			if filter.Matches(b) {
				bids = append(bids, b)
			}
		}
		rec.mu.Unlock()
	}

	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].CreatedAt.Before(bids[j].CreatedAt)
	})
	return bids, nil
}

// SetBidState forces the state of a bid
func (r *MemoryRepo) SetBidState(_ context.Context, bidID string, state models.BidState) (models.Bid, error) {
	v, ok := r.bidIndex.Load(bidID)
	if !ok {
		return models.Bid{}, fmt.Errorf("set bid state %s: %w", bidID, marketerrors.ErrNotFound)
	}
	rec := v.(*auctionRecord)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	idx := -1
	for i, b := range rec.bids {
		if b.BidID == bidID {
			idx = i
		} else if exclusiveBidState(state) && b.State == state {
			return models.Bid{}, fmt.Errorf("set bid %s %s while bid %s is %s: %w",
				bidID, state, b.BidID, b.State, marketerrors.ErrInvalidState)
		}
	}
	if idx < 0 {
		return models.Bid{}, fmt.Errorf("set bid state %s: %w", bidID, marketerrors.ErrNotFound)
	}

	rec.bids[idx].State = state
	return rec.bids[idx], nil
}

// exclusiveBidState reports whether at most one bid per auction may be in state.
func exclusiveBidState(state models.BidState) bool {
	return state == models.BidActive || state == models.BidWinning
}

// CreateAccount stores a new account; username and email are unique
func (r *MemoryRepo) CreateAccount(_ context.Context, account models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.AccountID]; ok {
		return fmt.Errorf("create account %s: %w", account.AccountID, marketerrors.ErrAlreadyExists)
	}
	if _, ok := r.usernames[account.Username]; ok {
		return fmt.Errorf("create account: username %q: %w", account.Username, marketerrors.ErrAlreadyExists)
	}
	if _, ok := r.emails[account.Email]; ok {
		return fmt.Errorf("create account: email %q: %w", account.Email, marketerrors.ErrAlreadyExists)
	}

	r.accounts[account.AccountID] = &accountRecord{account: account}
	r.usernames[account.Username] = account.AccountID
	r.emails[account.Email] = account.AccountID
	return nil
}

// GetAccount returns the account with the given id
func (r *MemoryRepo) GetAccount(_ context.Context, accountID string) (models.Account, error) {
	r.mu.RLock()
	rec, ok := r.accounts[accountID]
	r.mu.RUnlock()
	if !ok {
		return models.Account{}, fmt.Errorf("get account %s: %w", accountID, marketerrors.ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.account, nil
}

// UpdateWallet replaces the wallet if the account version is still expectedVersion
func (r *MemoryRepo) UpdateWallet(_ context.Context, accountID string, wallet models.Wallet, expectedVersion int64) (models.Account, error) {
	r.mu.RLock()
	rec, ok := r.accounts[accountID]
	r.mu.RUnlock()
	if !ok {
		return models.Account{}, fmt.Errorf("update wallet %s: %w", accountID, marketerrors.ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.account.Version != expectedVersion {
		return models.Account{}, fmt.Errorf("update wallet %s at version %d (stored %d): %w",
			accountID, expectedVersion, rec.account.Version, marketerrors.ErrConflict)
	}

	rec.account.Wallet = wallet
	rec.account.Version++
	return rec.account, nil
}

// ListSales returns the recorded sales matching filter in settlement order
func (r *MemoryRepo) ListSales(_ context.Context, filter models.SaleFilter) ([]models.Sale, error) {
	r.salesMu.RLock()
	defer r.salesMu.RUnlock()

	sales := make([]models.Sale, 0)
	for _, s := range r.sales {
		if filter.Matches(s) {
			sales = append(sales, s)
		}
	}
	return sales, nil
}
