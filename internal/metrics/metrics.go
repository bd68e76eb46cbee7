package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StockMovementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_stock_movements_total",
		Help: "Total number of stock movements appended",
	}, []string{"type"})

	StockMovementsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_stock_movements_rejected_total",
		Help: "Total number of stock movements rejected",
	}, []string{"reason"})

	StockAppendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_stock_append_latency_seconds",
		Help:    "Latency of stock movement append including replay",
		Buckets: prometheus.DefBuckets,
	})

	StockStateCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_stock_state_cache_total",
		Help: "Stock state lookups by cache result",
	}, []string{"result"})

	StockLedgerDrift = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_stock_drift_total",
		Help: "Total number of stock movements whose snapshot disagrees with replay",
	})

	TokenTransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_token_transactions_total",
		Help: "Total number of token transactions written",
	}, []string{"type"})

	OrderUnlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_order_unlocks_total",
		Help: "Order unlock attempts by outcome",
	}, []string{"outcome"})

	PurchaseRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_token_purchase_requests_total",
		Help: "Token purchase requests by status transition",
	}, []string{"status"})

	PricingQuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_pricing_quotes_total",
		Help: "Pricing quotes by promotion outcome",
	}, []string{"promotion"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
