package marketerrors

import "errors"

// Repository-level errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict is returned by conditional writes whose expected version no
	// longer matches, and by services once their retry budget is spent.
	ErrConflict = errors.New("concurrent modification conflict")
)

// Access errors
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrUnauthorized    = errors.New("actor not allowed to perform this action")
)

// business logic errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidState      = errors.New("invalid state for this operation")
	ErrOutsideWindow     = errors.New("auction is outside its bidding window")
	ErrBidTooLow         = errors.New("bid amount too low")
	ErrIncrementTooSmall = errors.New("bid increment below minimum")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInsufficientHeld  = errors.New("insufficient held funds")
	ErrWinnerMismatch    = errors.New("winner does not hold the leading bid")
)

// Stable codes exposed to clients.
const (
	CodeUnauthenticated   = "unauthenticated"
	CodeUnauthorized      = "unauthorized"
	CodeNotFound          = "not_found"
	CodeInvalidState      = "invalid_state"
	CodeOutsideWindow     = "outside_window"
	CodeBidTooLow         = "bid_too_low"
	CodeIncrementTooSmall = "increment_too_small"
	CodeInsufficientFunds = "insufficient_funds"
	CodeInsufficientHeld  = "insufficient_held"
	CodeAlreadyExists     = "already_exists"
	CodeConflict          = "conflict"
	CodeInvalidInput      = "invalid_input"
	CodeWinnerMismatch    = "winner_mismatch"
	CodeInternal          = "internal"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrUnauthenticated, CodeUnauthenticated},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrNotFound, CodeNotFound},
	{ErrInvalidState, CodeInvalidState},
	{ErrOutsideWindow, CodeOutsideWindow},
	{ErrBidTooLow, CodeBidTooLow},
	{ErrIncrementTooSmall, CodeIncrementTooSmall},
	{ErrInsufficientFunds, CodeInsufficientFunds},
	{ErrInsufficientHeld, CodeInsufficientHeld},
	{ErrAlreadyExists, CodeAlreadyExists},
	{ErrConflict, CodeConflict},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrWinnerMismatch, CodeWinnerMismatch},
}

// Code returns the stable client-facing code for err, or CodeInternal when err
// is not part of the taxonomy.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
