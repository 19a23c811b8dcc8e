package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a marketplace participant. Identity fields are owned by the
// account collaborator; the wallet is owned by the ledger.
type Account struct {
	AccountID string    `json:"account_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Wallet    Wallet    `json:"wallet"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// AuctionState is the lifecycle phase of an auction.
type AuctionState string

const (
	AuctionActive    AuctionState = "active"
	AuctionFinalized AuctionState = "finalized"
	AuctionCancelled AuctionState = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s AuctionState) Terminal() bool {
	return s == AuctionFinalized || s == AuctionCancelled
}

// Valid reports whether s is a known auction state.
func (s AuctionState) Valid() bool {
	return s == AuctionActive || s.Terminal()
}

// BidState is the standing of a bid within its auction.
type BidState string

const (
	BidActive     BidState = "active"
	BidSuperseded BidState = "superseded"
	BidWinning    BidState = "winning"
)

// Valid reports whether s is a known bid state.
func (s BidState) Valid() bool {
	switch s {
	case BidActive, BidSuperseded, BidWinning:
		return true
	}
	return false
}

// Auction is a timed sale of a single product by its seller
type Auction struct {
	AuctionID    string              `json:"auction_id"`
	ProductID    string              `json:"product_id"`
	SellerID     string              `json:"seller_id"`
	InitialPrice decimal.Decimal     `json:"initial_price"`
	CurrentPrice decimal.Decimal     `json:"current_price"`
	MinIncrement decimal.Decimal     `json:"min_increment"`
	ReservePrice decimal.NullDecimal `json:"reserve_price"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      time.Time           `json:"end_time"`
	State        AuctionState        `json:"state"`
	WinnerID     string              `json:"winner_id,omitempty"`
	BidCount     int64               `json:"bid_count"`
	Version      int64               `json:"version"`
	CreatedAt    time.Time           `json:"created_at"`
}

// InWindow reports whether t falls inside [StartTime, EndTime].
func (a Auction) InWindow(t time.Time) bool {
	return !t.Before(a.StartTime) && !t.After(a.EndTime)
}

// Bid represents a user's bid on an auction
type Bid struct {
	BidID     string          `json:"bid_id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	State     BidState        `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

// Outranks reports whether b leads over other: higher amount first, earlier
// bid on equal amounts.
func (b Bid) Outranks(other Bid) bool {
	if c := b.Amount.Cmp(other.Amount); c != 0 {
		return c > 0
	}
	return b.CreatedAt.Before(other.CreatedAt)
}

// PlacedBid is an admitted bid together with the auction as it stands after
// admission.
type PlacedBid struct {
	Bid     Bid     `json:"bid"`
	Auction Auction `json:"auction"`
}

// SaleState tracks the sale once it is handed to the sales collaborator.
type SaleState string

const SalePending SaleState = "pending"

// Sale is the settlement handoff produced when an auction finalizes with a
// winner.
type Sale struct {
	SaleID    string          `json:"sale_id"`
	AuctionID string          `json:"auction_id"`
	ProductID string          `json:"product_id"`
	SellerID  string          `json:"seller_id"`
	WinnerID  string          `json:"winner_id"`
	Amount    decimal.Decimal `json:"amount"`
	State     SaleState       `json:"state"`
	Timestamp time.Time       `json:"timestamp"`
}

// Settlement is the outcome of finalizing an auction. Sale is nil when the
// auction closed without a winner.
type Settlement struct {
	Auction Auction `json:"auction"`
	Sale    *Sale   `json:"sale,omitempty"`
}

// AuctionFilter selects auctions; zero fields match everything.
type AuctionFilter struct {
	State    AuctionState
	SellerID string
	WinnerID string
}

// Matches reports whether a satisfies every set field of f.
func (f AuctionFilter) Matches(a Auction) bool {
	if f.State != "" && a.State != f.State {
		return false
	}
	if f.SellerID != "" && a.SellerID != f.SellerID {
		return false
	}
	if f.WinnerID != "" && a.WinnerID != f.WinnerID {
		return false
	}
	return true
}

// BidFilter selects bids; zero fields match everything.
type BidFilter struct {
	AuctionID string
	BidderID  string
	State     BidState
}

func (f BidFilter) Matches(b Bid) bool {
	if f.AuctionID != "" && b.AuctionID != f.AuctionID {
		return false
	}
	if f.BidderID != "" && b.BidderID != f.BidderID {
		return false
	}
	if f.State != "" && b.State != f.State {
		return false
	}
	return true
}

// SaleFilter selects sales; zero fields match everything.
type SaleFilter struct {
	AuctionID string
	SellerID  string
	WinnerID  string
}

func (f SaleFilter) Matches(s Sale) bool {
	if f.AuctionID != "" && s.AuctionID != f.AuctionID {
		return false
	}
	if f.SellerID != "" && s.SellerID != f.SellerID {
		return false
	}
	if f.WinnerID != "" && s.WinnerID != f.WinnerID {
		return false
	}
	return true
}
