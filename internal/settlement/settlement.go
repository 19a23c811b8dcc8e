package settlement

import (
	"context"
	"time"

	"auction-market/internal/models"
	"auction-market/utils"
)

// Outcome is the result of resolving an auction's bids at finalization.
type Outcome struct {
	// Leading is the highest active bid, nil when the auction has none.
	Leading *models.Bid
	// ReserveMet is false when a reserve price is set and Leading falls short.
	ReserveMet bool
}

// Winner returns the winning bid, or nil when the auction closes unsold.
func (o Outcome) Winner() *models.Bid {
	if o.Leading == nil || !o.ReserveMet {
		return nil
	}
	return o.Leading
}

// Resolve picks the leading active bid (highest amount, earliest on ties) and
// checks it against the reserve price.
func Resolve(a models.Auction, bids []models.Bid) Outcome {
	var leading *models.Bid
	for i := range bids {
		b := bids[i]
		if b.AuctionID != a.AuctionID || b.State != models.BidActive {
			continue
		}
		if leading == nil || b.Outranks(*leading) {
			leading = &b
		}
	}

	out := Outcome{Leading: leading}
	if leading != nil {
		out.ReserveMet = !a.ReservePrice.Valid || leading.Amount.GreaterThanOrEqual(a.ReservePrice.Decimal)
	}
	return out
}

// NewSale builds the handoff record for a won auction.
func NewSale(a models.Auction, winning models.Bid, at time.Time) models.Sale {
	return models.Sale{
		SaleID:    utils.GenerateID(),
		AuctionID: a.AuctionID,
		ProductID: a.ProductID,
		SellerID:  a.SellerID,
		WinnerID:  winning.BidderID,
		Amount:    winning.Amount,
		State:     models.SalePending,
		Timestamp: at.UTC(),
	}
}

// Publisher hands a sale to the sales and payment collaborators. It runs
// after the sale is recorded, so a failed publish never undoes finalization.
type Publisher interface {
	Publish(ctx context.Context, sale models.Sale) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, sale models.Sale) error

func (f PublisherFunc) Publish(ctx context.Context, sale models.Sale) error {
	return f(ctx, sale)
}

// LogPublisher records the handoff in the structured log.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, sale models.Sale) error {
	utils.Info("Sale handed off", map[string]any{
		"sale_id":    sale.SaleID,
		"auction_id": sale.AuctionID,
		"product_id": sale.ProductID,
		"seller_id":  sale.SellerID,
		"winner_id":  sale.WinnerID,
		"amount":     sale.Amount.String(),
		"timestamp":  sale.Timestamp.Format(time.RFC3339Nano),
	})
	return nil
}
