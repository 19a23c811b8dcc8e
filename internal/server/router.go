package server

import (
	"auction-market/internal/metrics"
	handler "auction-market/services/market/handler"

	"github.com/gin-gonic/gin"
)

// Services are the domain services the HTTP layer exposes.
type Services struct {
	Ledger   handler.LedgerServiceInterface
	Auctions handler.AuctionServiceInterface
	Bidding  handler.BiddingServiceInterface
}

// Options configures cross-cutting router behaviour.
type Options struct {
	JWTSecret string
	// Metrics is optional; a nil value disables /metrics.
	Metrics *metrics.Metrics
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(svc Services, opts Options) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging
	if opts.Metrics != nil {
		router.Use(MetricsMiddleware(opts.Metrics))
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	api := router.Group("", ActorMiddleware([]byte(opts.JWTSecret)))

	accountHandler := handler.NewAccountHandler(svc.Ledger)
	auctionHandler := handler.NewAuctionHandler(svc.Auctions)
	biddingHandler := handler.NewBiddingHandler(svc.Bidding)

	accounts := api.Group("/accounts")
	{
		accounts.POST("", accountHandler.OpenAccountHandler)
		accounts.GET("/:account_id/wallet", accountHandler.GetWalletHandler)
	}

	wallet := api.Group("/wallet")
	{
		wallet.POST("/deposit", accountHandler.DepositHandler)
		wallet.POST("/withdraw", accountHandler.WithdrawHandler)
		wallet.POST("/hold", accountHandler.HoldHandler)
		wallet.POST("/release", accountHandler.ReleaseHandler)
	}

	auctions := api.Group("/auctions")
	{
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.GET("", auctionHandler.ListAuctionsHandler)
		auctions.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		auctions.PATCH("/:auction_id", auctionHandler.UpdateAuctionHandler)
		auctions.POST("/:auction_id/cancel", auctionHandler.CancelAuctionHandler)
		auctions.POST("/:auction_id/finalize", auctionHandler.FinalizeAuctionHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsByAuctionHandler)
		auctions.GET("/:auction_id/sales", auctionHandler.ListAuctionSalesHandler)
	}

	bids := api.Group("/bids")
	{
		bids.POST("", biddingHandler.RecordBidHandler)
		bids.GET("/:bid_id", biddingHandler.GetBidHandler)
		bids.PATCH("/:bid_id/state", biddingHandler.UpdateBidStateHandler)
	}

	api.GET("/sales", auctionHandler.ListSalesHandler)

	users := api.Group("/users")
	{
		users.GET("/:user_id/bids", biddingHandler.GetBidsByUserHandler)
	}

	return router
}
