package handler

import (
	"net/http"

	model "auction-market/internal/models"
	"auction-market/services/market/helpers"
	"auction-market/utils"

	"github.com/gin-gonic/gin"
)

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// RecordBidHandler handles POST /bids; the bidder is the authenticated actor.
func (h *BiddingHandler) RecordBidHandler(c *gin.Context) {
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RecordBidHandler", err)
		return
	}

	bidder := helpers.Actor(c)
	placed, err := h.service.PlaceBid(c.Request.Context(), req.AuctionID, bidder, req.Amount)
	if err != nil {
		helpers.RespondError(c, "RecordBidHandler", "record bid", err, map[string]any{
			"auction_id": req.AuctionID,
			"bidder_id":  bidder,
			"amount":     helpers.LogAmount(req.Amount),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewPlacedBidResponse(placed), "bid recorded successfully")
	helpers.LogSuccess("RecordBidHandler", "bid recorded successfully", map[string]any{
		"bid_id":     placed.Bid.BidID,
		"auction_id": placed.Bid.AuctionID,
		"bidder_id":  bidder,
		"amount":     placed.Bid.Amount.String(),
	})
}

// GetBidHandler handles GET /bids/:bid_id
func (h *BiddingHandler) GetBidHandler(c *gin.Context) {
	bidID := c.Param("bid_id")
	bid, err := h.service.GetBid(c.Request.Context(), bidID)
	if err != nil {
		helpers.RespondError(c, "GetBidHandler", "read bid", err, map[string]any{"bid_id": bidID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "bid retrieved successfully")
}

// GetBidsByAuctionHandler handles GET /auctions/:auction_id/bids
func (h *BiddingHandler) GetBidsByAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.ListBidsForAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetBidsByAuctionHandler", "list bids", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponses(bids), "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByAuctionHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(bids),
	})
}

// GetBidsByUserHandler handles GET /users/:user_id/bids
func (h *BiddingHandler) GetBidsByUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	bids, err := h.service.ListBidsByBidder(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "GetBidsByUserHandler", "list bids", err, map[string]any{"user_id": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponses(bids), "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByUserHandler", "bids retrieved successfully", map[string]any{
		"user_id": userID,
		"count":   len(bids),
	})
}

// UpdateBidStateHandler handles PATCH /bids/:bid_id/state
func (h *BiddingHandler) UpdateBidStateHandler(c *gin.Context) {
	var req helpers.UpdateBidStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateBidStateHandler", err)
		return
	}

	bidID := c.Param("bid_id")
	bid, err := h.service.UpdateBidState(c.Request.Context(), helpers.Actor(c), bidID, model.BidState(req.State))
	if err != nil {
		helpers.RespondError(c, "UpdateBidStateHandler", "update bid state", err, map[string]any{
			"bid_id": bidID,
			"state":  req.State,
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "bid state updated successfully")
	helpers.LogSuccess("UpdateBidStateHandler", "bid state updated successfully", map[string]any{
		"bid_id": bidID,
		"state":  string(bid.State),
	})
}
