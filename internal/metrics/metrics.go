package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the marketplace counters. A nil *Metrics is valid and records
// nothing, so services can be built without instrumentation.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	bids           *prometheus.CounterVec
	walletOps      *prometheus.CounterVec
	auctionChanges *prometheus.CounterVec
	conflicts      *prometheus.CounterVec
}

// New registers the counters on reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "market",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"method", "route"}),
		bids: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "bidding",
			Name:      "bids_total",
			Help:      "Bid submissions by outcome code",
		}, []string{"outcome"}),
		walletOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Wallet operations by kind and outcome code",
		}, []string{"op", "outcome"}),
		auctionChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "auction",
			Name:      "transitions_total",
			Help:      "Auction lifecycle transitions by target state",
		}, []string{"state"}),
		conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "store",
			Name:      "conflict_retries_total",
			Help:      "Conditional writes retried after a version conflict",
		}, []string{"aggregate"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// BidOutcome counts a bid submission; outcome is "admitted" or an error code.
func (m *Metrics) BidOutcome(outcome string) {
	if m == nil {
		return
	}
	m.bids.WithLabelValues(outcome).Inc()
}

func (m *Metrics) WalletOp(op, outcome string) {
	if m == nil {
		return
	}
	m.walletOps.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) AuctionTransition(state string) {
	if m == nil {
		return
	}
	m.auctionChanges.WithLabelValues(state).Inc()
}

// ConflictRetry counts one retry of a write on aggregate ("auction" or "account").
func (m *Metrics) ConflictRetry(aggregate string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(aggregate).Inc()
}
