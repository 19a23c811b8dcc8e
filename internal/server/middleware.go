package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"auction-market/internal/marketerrors"
	"auction-market/internal/metrics"
	"auction-market/services/market/helpers"
	"auction-market/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	utils.Info("HTTP Request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
		"actor":   helpers.Actor(c),
	})
}

// MetricsMiddleware counts requests per route template and status.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// ActorMiddleware resolves the caller from an HS256 bearer token whose subject
// is the account id. Requests without an Authorization header pass through
// anonymously; the services reject them where an actor is required. A header
// that is present but does not verify ends the request with 401.
func ActorMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		actor, err := parseActor(header, secret)
		if err != nil {
			utils.JSONError(c, http.StatusUnauthorized, err, "invalid credentials")
			utils.Warn("ActorMiddleware: rejected token", map[string]any{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			c.Abort()
			return
		}

		c.Set(helpers.ActorKey, actor)
		c.Next()
	}
}

func parseActor(header string, secret []byte) (string, error) {
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
		return "", fmt.Errorf("malformed authorization header: %w", marketerrors.ErrUnauthenticated)
	}
	if len(secret) == 0 {
		return "", fmt.Errorf("token verification is not configured: %w", marketerrors.ErrUnauthenticated)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("invalid token: %v: %w", err, marketerrors.ErrUnauthenticated)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("token carries no subject: %w", marketerrors.ErrUnauthenticated)
	}
	return claims.Subject, nil
}

// SignActorToken issues a token ActorMiddleware accepts. Token issuance belongs
// to the identity provider; this is used by tests and local tooling.
func SignActorToken(secret []byte, accountID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
