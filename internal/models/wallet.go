package models

import (
	"fmt"

	"auction-market/internal/marketerrors"

	"github.com/shopspring/decimal"
)

// Wallet holds an account's spendable and earmarked funds. Both balances are
// never negative; every transition below fails rather than clamp.
type Wallet struct {
	Available decimal.Decimal `json:"available_balance"`
	Held      decimal.Decimal `json:"held_balance"`
}

// Total is the sum of available and held funds.
func (w Wallet) Total() decimal.Decimal {
	return w.Available.Add(w.Held)
}

// Deposit credits amount to the available balance.
func (w Wallet) Deposit(amount decimal.Decimal) (Wallet, error) {
	if err := requirePositive(amount); err != nil {
		return w, err
	}
	w.Available = w.Available.Add(amount)
	return w, nil
}

// Withdraw debits amount from the available balance.
func (w Wallet) Withdraw(amount decimal.Decimal) (Wallet, error) {
	if err := requirePositive(amount); err != nil {
		return w, err
	}
	if amount.GreaterThan(w.Available) {
		return w, fmt.Errorf("withdraw %s from available %s: %w", amount, w.Available, marketerrors.ErrInsufficientFunds)
	}
	w.Available = w.Available.Sub(amount)
	return w, nil
}

// Hold moves amount from available to held.
func (w Wallet) Hold(amount decimal.Decimal) (Wallet, error) {
	if err := requirePositive(amount); err != nil {
		return w, err
	}
	if amount.GreaterThan(w.Available) {
		return w, fmt.Errorf("hold %s from available %s: %w", amount, w.Available, marketerrors.ErrInsufficientFunds)
	}
	w.Available = w.Available.Sub(amount)
	w.Held = w.Held.Add(amount)
	return w, nil
}

// Release moves amount from held back to available.
func (w Wallet) Release(amount decimal.Decimal) (Wallet, error) {
	if err := requirePositive(amount); err != nil {
		return w, err
	}
	if amount.GreaterThan(w.Held) {
		return w, fmt.Errorf("release %s from held %s: %w", amount, w.Held, marketerrors.ErrInsufficientHeld)
	}
	w.Held = w.Held.Sub(amount)
	w.Available = w.Available.Add(amount)
	return w, nil
}

// Amounts must fit NUMERIC(38,18): at most 18 fractional digits and 20
// integer digits.
const (
	MaxAmountScale         = 18
	MaxAmountIntegerDigits = 20
)

// CheckAmount rejects amounts outside the fixed-point range money is stored
// in. Only the exponent and coefficient length are inspected; the amount is
// never rescaled.
func CheckAmount(amount decimal.Decimal) error {
	exp := int64(amount.Exponent())
	if exp < -MaxAmountScale {
		return fmt.Errorf("amount has more than %d fractional digits: %w", MaxAmountScale, marketerrors.ErrInvalidInput)
	}
	if int64(amount.NumDigits())+exp > MaxAmountIntegerDigits {
		return fmt.Errorf("amount has more than %d integer digits: %w", MaxAmountIntegerDigits, marketerrors.ErrInvalidInput)
	}
	return nil
}

func requirePositive(amount decimal.Decimal) error {
	if err := CheckAmount(amount); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("amount %s must be positive: %w", amount, marketerrors.ErrInvalidInput)
	}
	return nil
}
