package handler

import (
	"context"
	"net/http"

	model "auction-market/internal/models"
	"auction-market/services/market/helpers"
	"auction-market/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type AccountHandler struct {
	service LedgerServiceInterface
}

func NewAccountHandler(service LedgerServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// OpenAccountHandler handles POST /accounts
func (h *AccountHandler) OpenAccountHandler(c *gin.Context) {
	var req helpers.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "OpenAccountHandler", err)
		return
	}

	account, err := h.service.OpenAccount(c.Request.Context(), req.Username, req.Email)
	if err != nil {
		helpers.RespondError(c, "OpenAccountHandler", "open account", err, map[string]any{
			"username": req.Username,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewAccountResponse(account), "account opened successfully")
	helpers.LogSuccess("OpenAccountHandler", "account opened successfully", map[string]any{
		"account_id": account.AccountID,
		"username":   account.Username,
	})
}

// GetWalletHandler handles GET /accounts/:account_id/wallet
func (h *AccountHandler) GetWalletHandler(c *gin.Context) {
	accountID := c.Param("account_id")
	wallet, err := h.service.GetWallet(c.Request.Context(), helpers.Actor(c), accountID)
	if err != nil {
		helpers.RespondError(c, "GetWalletHandler", "read wallet", err, map[string]any{"account_id": accountID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewWalletResponse(accountID, wallet), "wallet retrieved successfully")
}

// DepositHandler handles POST /wallet/deposit
func (h *AccountHandler) DepositHandler(c *gin.Context) {
	h.walletOp(c, "DepositHandler", "deposit", h.service.Deposit)
}

// WithdrawHandler handles POST /wallet/withdraw
func (h *AccountHandler) WithdrawHandler(c *gin.Context) {
	h.walletOp(c, "WithdrawHandler", "withdraw", h.service.Withdraw)
}

// HoldHandler handles POST /wallet/hold
func (h *AccountHandler) HoldHandler(c *gin.Context) {
	h.walletOp(c, "HoldHandler", "hold", h.service.Hold)
}

// ReleaseHandler handles POST /wallet/release
func (h *AccountHandler) ReleaseHandler(c *gin.Context) {
	h.walletOp(c, "ReleaseHandler", "release", h.service.Release)
}

type walletFunc func(ctx context.Context, actor string, amount decimal.Decimal) (model.Wallet, error)

// walletOp runs one ledger operation against the caller's own wallet.
func (h *AccountHandler) walletOp(c *gin.Context, handlerName, op string, fn walletFunc) {
	var req helpers.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, handlerName, err)
		return
	}

	actor := helpers.Actor(c)
	wallet, err := fn(c.Request.Context(), actor, req.Amount)
	if err != nil {
		helpers.RespondError(c, handlerName, op, err, map[string]any{
			"account_id": actor,
			"amount":     helpers.LogAmount(req.Amount),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewWalletResponse(actor, wallet), op+" applied successfully")
	helpers.LogSuccess(handlerName, op+" applied successfully", map[string]any{
		"account_id": actor,
		"amount":     req.Amount.String(),
	})
}
