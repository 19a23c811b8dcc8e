package helpers

import (
	"time"

	model "auction-market/internal/models"

	"github.com/shopspring/decimal"
)

// Amounts travel as decimal strings ("105.50"); decimal.Decimal also accepts
// bare JSON numbers. Positivity is checked by the services, not by binding.

// Request DTOs
type OpenAccountRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type PlaceBidRequest struct {
	AuctionID string          `json:"auction_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

type CreateAuctionRequest struct {
	ProductID    string           `json:"product_id" binding:"required"`
	InitialPrice decimal.Decimal  `json:"initial_price"`
	MinIncrement decimal.Decimal  `json:"min_increment"`
	ReservePrice *decimal.Decimal `json:"reserve_price,omitempty"`
	StartTime    time.Time        `json:"start_time" binding:"required"`
	EndTime      time.Time        `json:"end_time" binding:"required"`
}

// ToModel converts the request into the service input.
func (r CreateAuctionRequest) ToModel() model.NewAuction {
	in := model.NewAuction{
		ProductID:    r.ProductID,
		InitialPrice: r.InitialPrice,
		MinIncrement: r.MinIncrement,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
	}
	if r.ReservePrice != nil {
		in.ReservePrice = decimal.NewNullDecimal(*r.ReservePrice)
	}
	return in
}

type UpdateAuctionRequest struct {
	InitialPrice *decimal.Decimal `json:"initial_price,omitempty"`
	MinIncrement *decimal.Decimal `json:"min_increment,omitempty"`
	ReservePrice *decimal.Decimal `json:"reserve_price,omitempty"`
	StartTime    *time.Time       `json:"start_time,omitempty"`
	EndTime      *time.Time       `json:"end_time,omitempty"`
}

func (r UpdateAuctionRequest) ToPatch() model.AuctionPatch {
	return model.AuctionPatch{
		InitialPrice: r.InitialPrice,
		MinIncrement: r.MinIncrement,
		ReservePrice: r.ReservePrice,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
	}
}

// FinalizeRequest optionally names the expected winner.
type FinalizeRequest struct {
	WinnerID string `json:"winner_id"`
}

type UpdateBidStateRequest struct {
	State string `json:"state" binding:"required"`
}

// Response DTOs
type AccountResponse struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

func NewAccountResponse(a model.Account) AccountResponse {
	return AccountResponse{
		AccountID: a.AccountID,
		Username:  a.Username,
		Email:     a.Email,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type WalletResponse struct {
	AccountID        string          `json:"account_id"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	HeldBalance      decimal.Decimal `json:"held_balance"`
}

func NewWalletResponse(accountID string, w model.Wallet) WalletResponse {
	return WalletResponse{
		AccountID:        accountID,
		AvailableBalance: w.Available,
		HeldBalance:      w.Held,
	}
}

type BidResponse struct {
	BidID     string          `json:"bid_id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	State     string          `json:"state"`
	CreatedAt string          `json:"created_at"`
}

func NewBidResponse(b model.Bid) BidResponse {
	return BidResponse{
		BidID:     b.BidID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    b.Amount,
		State:     string(b.State),
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// PlacedBidResponse is a bid plus the auction figures it moved.
type PlacedBidResponse struct {
	BidResponse
	CurrentPrice decimal.Decimal `json:"current_price"`
	BidCount     int64           `json:"bid_count"`
}

func NewPlacedBidResponse(p model.PlacedBid) PlacedBidResponse {
	return PlacedBidResponse{
		BidResponse:  NewBidResponse(p.Bid),
		CurrentPrice: p.Auction.CurrentPrice,
		BidCount:     p.Auction.BidCount,
	}
}

func NewBidResponses(bids []model.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, NewBidResponse(b))
	}
	return out
}
