package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"auction-market/internal/marketerrors"
	model "auction-market/internal/models"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func sampleAuction(id string) model.Auction {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	return model.Auction{
		AuctionID:    id,
		ProductID:    "prod-1",
		SellerID:     "seller",
		InitialPrice: dec("100"),
		CurrentPrice: dec("100"),
		MinIncrement: dec("5"),
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
		State:        model.AuctionActive,
		Version:      1,
	}
}

// Test CreateAuctionHandler
func TestCreateAuctionHandler(t *testing.T) {
	validBody := `{"product_id":"prod-1","initial_price":"100","min_increment":"5","reserve_price":"150",` +
		`"start_time":"2026-01-01T10:00:00Z","end_time":"2026-01-01T11:00:00Z"}`

	tests := []struct {
		name           string
		actor          string
		requestBody    string
		mockSetup      func(m *MockAuctionServiceInterface)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:        "success",
			actor:       "seller",
			requestBody: validBody,
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().CreateAuction(gomock.Any(), "seller", gomock.Any()).
					DoAndReturn(func(_ context.Context, _ string, in model.NewAuction) (model.Auction, error) {
						if in.ProductID != "prod-1" || !in.InitialPrice.Equal(dec("100")) ||
							!in.ReservePrice.Valid || !in.ReservePrice.Decimal.Equal(dec("150")) ||
							in.EndTime.Sub(in.StartTime) != time.Hour {
							return model.Auction{}, fmt.Errorf("unexpected input %+v", in)
						}
						return sampleAuction("auc-1"), nil
					})
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing_times",
			actor:          "seller",
			requestBody:    `{"product_id":"prod-1","initial_price":"100","min_increment":"5"}`,
			mockSetup:      func(m *MockAuctionServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   marketerrors.CodeInvalidInput,
		},
		{
			name:        "service_rejects_terms",
			actor:       "seller",
			requestBody: validBody,
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().CreateAuction(gomock.Any(), "seller", gomock.Any()).
					Return(model.Auction{}, fmt.Errorf("auction: %w - start must precede end", marketerrors.ErrInvalidInput))
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   marketerrors.CodeInvalidInput,
		},
		{
			name:        "anonymous",
			requestBody: validBody,
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().CreateAuction(gomock.Any(), "", gomock.Any()).
					Return(model.Auction{}, marketerrors.ErrUnauthenticated)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   marketerrors.CodeUnauthenticated,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			mockService := NewMockAuctionServiceInterface(ctrl)
			tc.mockSetup(mockService)

			router := newTestRouter(tc.actor)
			router.POST("/auctions", NewAuctionHandler(mockService).CreateAuctionHandler)

			status, resp := doRequest(t, router, http.MethodPost, "/auctions", tc.requestBody)

			require.Equal(t, tc.expectedStatus, status, resp)
			if tc.expectedCode != "" {
				require.Equal(t, tc.expectedCode, resp["code"])
				return
			}
			data := resp["data"].(map[string]any)
			require.Equal(t, "auc-1", data["auction_id"])
			require.Equal(t, "active", data["state"])
			require.Equal(t, "100", data["current_price"])
		})
	}
}

// Test ListAuctionsHandler
func TestListAuctionsHandler(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		filter         model.AuctionFilter
		result         []model.Auction
		serviceErr     error
		expectedStatus int
		expectedCount  int
	}{
		{
			name:           "all",
			result:         []model.Auction{sampleAuction("a"), sampleAuction("b")},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name:           "active_by_seller",
			query:          "?state=active&seller_id=seller",
			filter:         model.AuctionFilter{State: model.AuctionActive, SellerID: "seller"},
			result:         []model.Auction{sampleAuction("a")},
			expectedStatus: http.StatusOK,
			expectedCount:  1,
		},
		{
			name:           "by_winner_none",
			query:          "?winner_id=bob",
			filter:         model.AuctionFilter{WinnerID: "bob"},
			expectedStatus: http.StatusOK,
			expectedCount:  0,
		},
		{
			name:           "bad_state",
			query:          "?state=open",
			filter:         model.AuctionFilter{State: "open"},
			serviceErr:     fmt.Errorf("auction: %w - unknown state open", marketerrors.ErrInvalidInput),
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			mockService := NewMockAuctionServiceInterface(ctrl)
			mockService.EXPECT().ListAuctions(gomock.Any(), tc.filter).Return(tc.result, tc.serviceErr)

			router := newTestRouter("")
			router.GET("/auctions", NewAuctionHandler(mockService).ListAuctionsHandler)

			status, resp := doRequest(t, router, http.MethodGet, "/auctions"+tc.query, nil)

			require.Equal(t, tc.expectedStatus, status)
			if status != http.StatusOK {
				return
			}
			require.Len(t, resp["data"].([]any), tc.expectedCount)
		})
	}
}

// Test GetAuctionHandler, CancelAuctionHandler and UpdateAuctionHandler
func TestAuctionMutationHandlers(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		requestBody    string
		mockSetup      func(m *MockAuctionServiceInterface)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:   "get_found",
			method: http.MethodGet,
			path:   "/auctions/auc-1",
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().GetAuction(gomock.Any(), "auc-1").Return(sampleAuction("auc-1"), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "get_missing",
			method: http.MethodGet,
			path:   "/auctions/nope",
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().GetAuction(gomock.Any(), "nope").
					Return(model.Auction{}, fmt.Errorf("auction: %w - nope", marketerrors.ErrNotFound))
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   marketerrors.CodeNotFound,
		},
		{
			name:   "cancel_by_seller",
			method: http.MethodPost,
			path:   "/auctions/auc-1/cancel",
			mockSetup: func(m *MockAuctionServiceInterface) {
				a := sampleAuction("auc-1")
				a.State = model.AuctionCancelled
				m.EXPECT().Cancel(gomock.Any(), "seller", "auc-1").Return(a, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "cancel_terminal",
			method: http.MethodPost,
			path:   "/auctions/auc-1/cancel",
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().Cancel(gomock.Any(), "seller", "auc-1").
					Return(model.Auction{}, fmt.Errorf("auction: %w - already finalized", marketerrors.ErrInvalidState))
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   marketerrors.CodeInvalidState,
		},
		{
			name:        "patch_end_time",
			method:      http.MethodPatch,
			path:        "/auctions/auc-1",
			requestBody: `{"end_time":"2026-01-02T10:00:00Z"}`,
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().UpdateAuction(gomock.Any(), "seller", "auc-1", gomock.Any()).
					DoAndReturn(func(_ context.Context, _, _ string, p model.AuctionPatch) (model.Auction, error) {
						if p.EndTime == nil || p.InitialPrice != nil || p.StartTime != nil {
							return model.Auction{}, errors.New("unexpected patch")
						}
						a := sampleAuction("auc-1")
						a.EndTime = *p.EndTime
						return a, nil
					})
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:        "patch_while_active",
			method:      http.MethodPatch,
			path:        "/auctions/auc-1",
			requestBody: `{"min_increment":"10"}`,
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().UpdateAuction(gomock.Any(), "seller", "auc-1", gomock.Any()).
					Return(model.Auction{}, fmt.Errorf("auction: %w", marketerrors.ErrInvalidState))
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   marketerrors.CodeInvalidState,
		},
		{
			name:           "patch_bad_json",
			method:         http.MethodPatch,
			path:           "/auctions/auc-1",
			requestBody:    `{"min_increment":}`,
			mockSetup:      func(m *MockAuctionServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   marketerrors.CodeInvalidInput,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			mockService := NewMockAuctionServiceInterface(ctrl)
			tc.mockSetup(mockService)

			h := NewAuctionHandler(mockService)
			router := newTestRouter("seller")
			router.GET("/auctions/:auction_id", h.GetAuctionHandler)
			router.PATCH("/auctions/:auction_id", h.UpdateAuctionHandler)
			router.POST("/auctions/:auction_id/cancel", h.CancelAuctionHandler)

			var body any
			if tc.requestBody != "" {
				body = tc.requestBody
			}
			status, resp := doRequest(t, router, tc.method, tc.path, body)

			require.Equal(t, tc.expectedStatus, status)
			if tc.expectedCode != "" {
				require.Equal(t, tc.expectedCode, resp["code"])
				return
			}
			require.Equal(t, "auc-1", resp["data"].(map[string]any)["auction_id"])
		})
	}
}

// Test FinalizeAuctionHandler
func TestFinalizeAuctionHandler(t *testing.T) {
	sold := sampleAuction("auc-1")
	sold.State = model.AuctionFinalized
	sold.WinnerID = "bob"
	sold.CurrentPrice = dec("180")
	sale := &model.Sale{
		SaleID:    "sale-1",
		AuctionID: "auc-1",
		SellerID:  "seller",
		WinnerID:  "bob",
		Amount:    dec("180"),
		State:     model.SalePending,
	}

	unsold := sampleAuction("auc-1")
	unsold.State = model.AuctionFinalized

	tests := []struct {
		name           string
		requestBody    any
		winner         string
		settlement     model.Settlement
		serviceErr     error
		expectedStatus int
		expectedCode   string
		expectSale     bool
	}{
		{
			name:           "no_body_derives_winner",
			settlement:     model.Settlement{Auction: sold, Sale: sale},
			expectedStatus: http.StatusOK,
			expectSale:     true,
		},
		{
			name:           "named_winner_matches",
			requestBody:    `{"winner_id":"bob"}`,
			winner:         "bob",
			settlement:     model.Settlement{Auction: sold, Sale: sale},
			expectedStatus: http.StatusOK,
			expectSale:     true,
		},
		{
			name:           "reserve_not_met",
			settlement:     model.Settlement{Auction: unsold},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "named_winner_mismatch",
			requestBody:    `{"winner_id":"carol"}`,
			winner:         "carol",
			serviceErr:     fmt.Errorf("auction: %w - carol", marketerrors.ErrWinnerMismatch),
			expectedStatus: http.StatusConflict,
			expectedCode:   marketerrors.CodeWinnerMismatch,
		},
		{
			name:           "not_seller",
			serviceErr:     fmt.Errorf("auction: %w", marketerrors.ErrUnauthorized),
			expectedStatus: http.StatusForbidden,
			expectedCode:   marketerrors.CodeUnauthorized,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			mockService := NewMockAuctionServiceInterface(ctrl)
			mockService.EXPECT().Finalize(gomock.Any(), "seller", "auc-1", tc.winner).Return(tc.settlement, tc.serviceErr)

			router := newTestRouter("seller")
			router.POST("/auctions/:auction_id/finalize", NewAuctionHandler(mockService).FinalizeAuctionHandler)

			status, resp := doRequest(t, router, http.MethodPost, "/auctions/auc-1/finalize", tc.requestBody)

			require.Equal(t, tc.expectedStatus, status)
			if tc.expectedCode != "" {
				require.Equal(t, tc.expectedCode, resp["code"])
				return
			}
			data := resp["data"].(map[string]any)
			require.Equal(t, "finalized", data["auction"].(map[string]any)["state"])
			if tc.expectSale {
				require.Equal(t, "180", data["sale"].(map[string]any)["amount"])
			} else {
				require.NotContains(t, data, "sale")
			}
		})
	}
}

// Test the sales listings
func TestListSalesHandlers(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := NewMockAuctionServiceInterface(ctrl)

	sale := model.Sale{SaleID: "s1", AuctionID: "auc-1", SellerID: "seller", WinnerID: "bob", Amount: decimal.NewFromInt(10)}
	mockService.EXPECT().ListSales(gomock.Any(), model.SaleFilter{AuctionID: "auc-1"}).Return([]model.Sale{sale}, nil)
	mockService.EXPECT().ListSales(gomock.Any(), model.SaleFilter{WinnerID: "bob"}).Return(nil, nil)

	h := NewAuctionHandler(mockService)
	router := newTestRouter("")
	router.GET("/auctions/:auction_id/sales", h.ListAuctionSalesHandler)
	router.GET("/sales", h.ListSalesHandler)

	status, resp := doRequest(t, router, http.MethodGet, "/auctions/auc-1/sales", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp["data"].([]any), 1)

	status, resp = doRequest(t, router, http.MethodGet, "/sales?winner_id=bob", nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, resp["data"].([]any))
}
