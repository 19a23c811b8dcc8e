package models

import (
	"fmt"
	"time"

	"auction-market/internal/marketerrors"

	"github.com/shopspring/decimal"
)

// NewAuction carries the seller-supplied fields of an auction to create.
type NewAuction struct {
	ProductID    string
	InitialPrice decimal.Decimal
	MinIncrement decimal.Decimal
	ReservePrice decimal.NullDecimal
	StartTime    time.Time
	EndTime      time.Time
}

// Validate checks the price and timing rules shared with AuctionPatch.
func (n NewAuction) Validate() error {
	if n.ProductID == "" {
		return fmt.Errorf("missing product id: %w", marketerrors.ErrInvalidInput)
	}
	return validateTerms(n.InitialPrice, n.MinIncrement, n.ReservePrice, n.StartTime, n.EndTime)
}

// AuctionPatch is a partial update: nil fields are left untouched.
type AuctionPatch struct {
	InitialPrice *decimal.Decimal
	MinIncrement *decimal.Decimal
	ReservePrice *decimal.Decimal
	StartTime    *time.Time
	EndTime      *time.Time
}

// CheckAmounts validates the magnitude of every price the patch sets, so it
// can run before the auction is locked.
func (p AuctionPatch) CheckAmounts() error {
	for _, d := range []*decimal.Decimal{p.InitialPrice, p.MinIncrement, p.ReservePrice} {
		if d == nil {
			continue
		}
		if err := CheckAmount(*d); err != nil {
			return err
		}
	}
	return nil
}

// IsEmpty reports whether the patch sets no field.
func (p AuctionPatch) IsEmpty() bool {
	return p.InitialPrice == nil && p.MinIncrement == nil && p.ReservePrice == nil &&
		p.StartTime == nil && p.EndTime == nil
}

// Apply returns a copy of a with the set fields replaced. The result is
// validated as a whole so that, for example, moving only EndTime before the
// existing StartTime is rejected.
func (p AuctionPatch) Apply(a Auction) (Auction, error) {
	if p.IsEmpty() {
		return a, fmt.Errorf("empty auction patch: %w", marketerrors.ErrInvalidInput)
	}
	if p.InitialPrice != nil {
		a.InitialPrice = *p.InitialPrice
		if a.BidCount == 0 {
			a.CurrentPrice = *p.InitialPrice
		}
	}
	if p.MinIncrement != nil {
		a.MinIncrement = *p.MinIncrement
	}
	if p.ReservePrice != nil {
		a.ReservePrice = decimal.NewNullDecimal(*p.ReservePrice)
	}
	if p.StartTime != nil {
		a.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		a.EndTime = *p.EndTime
	}
	if err := validateTerms(a.InitialPrice, a.MinIncrement, a.ReservePrice, a.StartTime, a.EndTime); err != nil {
		return a, err
	}
	return a, nil
}

func validateTerms(initial, increment decimal.Decimal, reserve decimal.NullDecimal, start, end time.Time) error {
	if err := checkPrices(initial, increment, reserve); err != nil {
		return err
	}
	if !initial.IsPositive() {
		return fmt.Errorf("initial price %s must be positive: %w", initial, marketerrors.ErrInvalidInput)
	}
	if increment.IsNegative() {
		return fmt.Errorf("min increment %s must not be negative: %w", increment, marketerrors.ErrInvalidInput)
	}
	if reserve.Valid && reserve.Decimal.IsNegative() {
		return fmt.Errorf("reserve price %s must not be negative: %w", reserve.Decimal, marketerrors.ErrInvalidInput)
	}
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("start and end time are required: %w", marketerrors.ErrInvalidInput)
	}
	if !start.Before(end) {
		return fmt.Errorf("start time %s must be before end time %s: %w",
			start.Format(time.RFC3339), end.Format(time.RFC3339), marketerrors.ErrInvalidInput)
	}
	return nil
}

func checkPrices(initial, increment decimal.Decimal, reserve decimal.NullDecimal) error {
	if err := CheckAmount(initial); err != nil {
		return fmt.Errorf("initial price: %w", err)
	}
	if err := CheckAmount(increment); err != nil {
		return fmt.Errorf("min increment: %w", err)
	}
	if reserve.Valid {
		if err := CheckAmount(reserve.Decimal); err != nil {
			return fmt.Errorf("reserve price: %w", err)
		}
	}
	return nil
}
