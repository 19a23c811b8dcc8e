package helpers

import (
	"errors"
	"fmt"
	"net/http"

	"auction-market/internal/marketerrors"
	model "auction-market/internal/models"
	"auction-market/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ActorKey is the gin context key holding the authenticated account id.
const ActorKey = "actor"

// Actor returns the authenticated account id, or "" for anonymous requests.
func Actor(c *gin.Context) string {
	return c.GetString(ActorKey)
}

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %v: %w", err, marketerrors.ErrInvalidInput)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, marketerrors.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, marketerrors.ErrUnauthorized):
		return http.StatusForbidden, "not allowed"
	case errors.Is(err, marketerrors.ErrNotFound):
		return http.StatusNotFound, "resource not found"
	case errors.Is(err, marketerrors.ErrInvalidInput):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, marketerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, marketerrors.ErrIncrementTooSmall):
		return http.StatusConflict, "bid increment too small"
	case errors.Is(err, marketerrors.ErrInvalidState):
		return http.StatusConflict, "invalid state for this operation"
	case errors.Is(err, marketerrors.ErrWinnerMismatch):
		return http.StatusConflict, "winner does not hold the leading bid"
	case errors.Is(err, marketerrors.ErrAlreadyExists):
		return http.StatusConflict, "resource already exists"
	case errors.Is(err, marketerrors.ErrConflict):
		return http.StatusConflict, "concurrent modification, retry"
	case errors.Is(err, marketerrors.ErrOutsideWindow):
		return http.StatusUnprocessableEntity, "auction is not open for bidding"
	case errors.Is(err, marketerrors.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "insufficient funds"
	case errors.Is(err, marketerrors.ErrInsufficientHeld):
		return http.StatusUnprocessableEntity, "insufficient held funds"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondError maps err, writes the error envelope and logs the failure.
func RespondError(c *gin.Context, handlerName, action string, err error, fields map[string]any) {
	status, message := MapErrorToHTTP(err)
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)

	if fields == nil {
		fields = map[string]any{}
	}
	fields["handler"] = handlerName
	fields["error"] = err.Error()
	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": failed to "+action, fields)
		return
	}
	utils.Warn(handlerName+": failed to "+action, fields)
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}

// LogAmount renders an amount for a log field, or a placeholder when it is
// outside the storable range.
func LogAmount(d decimal.Decimal) string {
	if model.CheckAmount(d) != nil {
		return "out_of_range"
	}
	return d.String()
}
