package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"auction-market/services/market/helpers"
	"auction-market/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetLevel("panic")
}

// newTestRouter returns a router that authenticates every request as actor.
func newTestRouter(actor string) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if actor != "" {
			c.Set(helpers.ActorKey, actor)
		}
		c.Next()
	})
	return router
}

// doRequest sends body (a raw string or a value to marshal) and decodes the
// JSON envelope.
func doRequest(t *testing.T, router *gin.Engine, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case string:
		reqBody = []byte(v)
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

type decimalMatcher struct{ want decimal.Decimal }

// decEq matches a decimal.Decimal by value, so "100" matches "100.00".
func decEq(s string) gomock.Matcher {
	return decimalMatcher{want: decimal.RequireFromString(s)}
}

func (m decimalMatcher) Matches(x any) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalMatcher) String() string {
	return fmt.Sprintf("is decimal %s", m.want)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
