package handler

import (
	"errors"
	"io"
	"net/http"

	model "auction-market/internal/models"
	"auction-market/services/market/helpers"
	"auction-market/utils"

	"github.com/gin-gonic/gin"
)

type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	actor := helpers.Actor(c)
	auction, err := h.service.CreateAuction(c.Request.Context(), actor, req.ToModel())
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", "create auction", err, map[string]any{
			"seller_id":  actor,
			"product_id": req.ProductID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, auction, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"seller_id":  auction.SellerID,
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionHandler", "read auction", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction retrieved successfully")
}

// ListAuctionsHandler handles GET /auctions?state=&seller_id=&winner_id=
func (h *AuctionHandler) ListAuctionsHandler(c *gin.Context) {
	filter := model.AuctionFilter{
		State:    model.AuctionState(c.Query("state")),
		SellerID: c.Query("seller_id"),
		WinnerID: c.Query("winner_id"),
	}
	auctions, err := h.service.ListAuctions(c.Request.Context(), filter)
	if err != nil {
		helpers.RespondError(c, "ListAuctionsHandler", "list auctions", err, map[string]any{"state": string(filter.State)})
		return
	}

	if auctions == nil {
		auctions = []model.Auction{}
	}

	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
	helpers.LogSuccess("ListAuctionsHandler", "auctions retrieved successfully", map[string]any{
		"count": len(auctions),
	})
}

// UpdateAuctionHandler handles PATCH /auctions/:auction_id
func (h *AuctionHandler) UpdateAuctionHandler(c *gin.Context) {
	var req helpers.UpdateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateAuctionHandler", err)
		return
	}

	auctionID := c.Param("auction_id")
	auction, err := h.service.UpdateAuction(c.Request.Context(), helpers.Actor(c), auctionID, req.ToPatch())
	if err != nil {
		helpers.RespondError(c, "UpdateAuctionHandler", "update auction", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction updated successfully")
	helpers.LogSuccess("UpdateAuctionHandler", "auction updated successfully", map[string]any{
		"auction_id": auctionID,
		"version":    auction.Version,
	})
}

// CancelAuctionHandler handles POST /auctions/:auction_id/cancel
func (h *AuctionHandler) CancelAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.Cancel(c.Request.Context(), helpers.Actor(c), auctionID)
	if err != nil {
		helpers.RespondError(c, "CancelAuctionHandler", "cancel auction", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction cancelled successfully")
	helpers.LogSuccess("CancelAuctionHandler", "auction cancelled successfully", map[string]any{"auction_id": auctionID})
}

// FinalizeAuctionHandler handles POST /auctions/:auction_id/finalize. The
// body is optional; when it names a winner the service verifies it.
func (h *AuctionHandler) FinalizeAuctionHandler(c *gin.Context) {
	var req helpers.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		helpers.HandleBindError(c, "FinalizeAuctionHandler", err)
		return
	}

	auctionID := c.Param("auction_id")
	settlement, err := h.service.Finalize(c.Request.Context(), helpers.Actor(c), auctionID, req.WinnerID)
	if err != nil {
		helpers.RespondError(c, "FinalizeAuctionHandler", "finalize auction", err, map[string]any{
			"auction_id": auctionID,
			"winner_id":  req.WinnerID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, settlement, "auction finalized successfully")
	helpers.LogSuccess("FinalizeAuctionHandler", "auction finalized successfully", map[string]any{
		"auction_id": auctionID,
		"winner_id":  settlement.Auction.WinnerID,
	})
}

// ListAuctionSalesHandler handles GET /auctions/:auction_id/sales
func (h *AuctionHandler) ListAuctionSalesHandler(c *gin.Context) {
	h.listSales(c, "ListAuctionSalesHandler", model.SaleFilter{AuctionID: c.Param("auction_id")})
}

// ListSalesHandler handles GET /sales?seller_id=&winner_id=
func (h *AuctionHandler) ListSalesHandler(c *gin.Context) {
	h.listSales(c, "ListSalesHandler", model.SaleFilter{
		SellerID: c.Query("seller_id"),
		WinnerID: c.Query("winner_id"),
	})
}

func (h *AuctionHandler) listSales(c *gin.Context, handlerName string, filter model.SaleFilter) {
	sales, err := h.service.ListSales(c.Request.Context(), filter)
	if err != nil {
		helpers.RespondError(c, handlerName, "list sales", err, map[string]any{"auction_id": filter.AuctionID})
		return
	}

	if sales == nil {
		sales = []model.Sale{}
	}

	utils.JSONResponse(c, http.StatusOK, sales, "sales retrieved successfully")
	helpers.LogSuccess(handlerName, "sales retrieved successfully", map[string]any{"count": len(sales)})
}
