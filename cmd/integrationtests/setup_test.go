package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	auction "auction-market/internal/auctionService"
	bidding "auction-market/internal/biddingService"
	ledger "auction-market/internal/ledgerService"
	"auction-market/internal/locker"
	"auction-market/internal/metrics"
	model "auction-market/internal/models"
	"auction-market/internal/repository"
	"auction-market/internal/server"
	"auction-market/internal/settlement"
	"auction-market/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("integration-secret")

func init() {
	utils.SetLevel("panic")
}

// TestEnv is a fully wired in-memory marketplace behind the HTTP router.
type TestEnv struct {
	Router *gin.Engine
	Repo   *repository.MemoryRepo
	// Sales collects every sale handed to the settlement publisher.
	Sales chan model.Sale
}

// SetupTestRouter initializes the router with in-memory repository for integration testing.
func SetupTestRouter(t *testing.T) *TestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryRepo()
	locks := locker.NewLocal()
	m := metrics.New(prometheus.NewRegistry())
	sales := make(chan model.Sale, 16)

	router := server.SetupRouter(server.Services{
		Ledger: ledger.NewLedgerService(repo, locks, ledger.Options{Metrics: m}),
		Auctions: auction.NewAuctionService(repo, repo, locks, auction.Options{
			Metrics: m,
			Publisher: settlement.PublisherFunc(func(_ context.Context, sale model.Sale) error {
				sales <- sale
				return nil
			}),
		}),
		Bidding: bidding.NewBiddingService(repo, locks, bidding.Options{Metrics: m}),
	}, server.Options{JWTSecret: string(testSecret), Metrics: m})

	return &TestEnv{Router: router, Repo: repo, Sales: sales}
}

// ExecuteRequestAndParse executes an HTTP request on the given router and
// parses the response envelope. token may be empty for anonymous calls.
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url, token string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		var err error
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp, w
}

// Data returns the envelope's data object.
func Data(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", resp)
	return data
}

// OpenFundedAccount opens an account, deposits funds when non-empty and
// returns the account id with a bearer token for it.
func (e *TestEnv) OpenFundedAccount(t *testing.T, username, funds string) (string, string) {
	t.Helper()

	resp, w := ExecuteRequestAndParse(t, e.Router, http.MethodPost, "/accounts", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, resp)
	accountID := Data(t, resp)["account_id"].(string)

	token, err := server.SignActorToken(testSecret, accountID, time.Hour)
	require.NoError(t, err)

	if funds != "" {
		resp, w = ExecuteRequestAndParse(t, e.Router, http.MethodPost, "/wallet/deposit", token, map[string]string{"amount": funds})
		require.Equal(t, http.StatusOK, w.Code, resp)
	}
	return accountID, token
}

// CreateAuction opens an auction for the seller behind token and returns its id.
func (e *TestEnv) CreateAuction(t *testing.T, token string, body map[string]any) string {
	t.Helper()

	req := map[string]any{
		"product_id":    "prod-1",
		"initial_price": "100",
		"min_increment": "5",
		"start_time":    time.Now().Add(-time.Minute).UTC().Format(time.RFC3339Nano),
		"end_time":      time.Now().Add(time.Hour).UTC().Format(time.RFC3339Nano),
	}
	for k, v := range body {
		req[k] = v
	}

	resp, w := ExecuteRequestAndParse(t, e.Router, http.MethodPost, "/auctions", token, req)
	require.Equal(t, http.StatusCreated, w.Code, resp)
	return Data(t, resp)["auction_id"].(string)
}
