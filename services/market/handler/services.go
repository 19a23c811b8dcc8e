package handler

//go:generate mockgen -source=services.go -destination=mock_services.go -package=handler

import (
	"context"

	model "auction-market/internal/models"

	"github.com/shopspring/decimal"
)

type LedgerServiceInterface interface {
	OpenAccount(ctx context.Context, username, email string) (model.Account, error)
	GetWallet(ctx context.Context, actor, accountID string) (model.Wallet, error)
	Deposit(ctx context.Context, actor string, amount decimal.Decimal) (model.Wallet, error)
	Withdraw(ctx context.Context, actor string, amount decimal.Decimal) (model.Wallet, error)
	Hold(ctx context.Context, actor string, amount decimal.Decimal) (model.Wallet, error)
	Release(ctx context.Context, actor string, amount decimal.Decimal) (model.Wallet, error)
}

type AuctionServiceInterface interface {
	CreateAuction(ctx context.Context, actor string, in model.NewAuction) (model.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	ListAuctions(ctx context.Context, filter model.AuctionFilter) ([]model.Auction, error)
	ListSales(ctx context.Context, filter model.SaleFilter) ([]model.Sale, error)
	UpdateAuction(ctx context.Context, actor, auctionID string, patch model.AuctionPatch) (model.Auction, error)
	Cancel(ctx context.Context, actor, auctionID string) (model.Auction, error)
	Finalize(ctx context.Context, actor, auctionID, winnerCandidate string) (model.Settlement, error)
}

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (model.PlacedBid, error)
	GetBid(ctx context.Context, bidID string) (model.Bid, error)
	ListBidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	ListBidsByBidder(ctx context.Context, bidderID string) ([]model.Bid, error)
	UpdateBidState(ctx context.Context, actor, bidID string, state model.BidState) (model.Bid, error)
}
