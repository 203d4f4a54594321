// Package metrics provides Prometheus metrics for the TCG Portfolio backend.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tcg_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Price Sync Metrics
	PriceUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_price_updates_total",
			Help: "Total number of card price records written by the sync worker",
		},
	)

	PriceUpdatesToday = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_price_updates_today",
			Help: "Number of cards updated today (resets at midnight)",
		},
	)

	PriceQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_price_queue_size",
			Help: "Number of cards waiting in the priority refresh queue",
		},
	)

	PriceBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcg_price_batch_duration_seconds",
			Help:    "Time taken to process a price update batch",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	PriceUnmatchedCards = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_price_unmatched_cards",
			Help: "Collection cards the sync could not match to a feed card",
		},
	)

	PriceMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_price_matches_total",
			Help: "Feed cards matched to catalog cards by match strategy",
		},
		[]string{"strategy"}, // "tcgplayer_id", "number", "fuzzy_name"
	)

	// Price Feed API Metrics
	PriceFeedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_price_feed_requests_total",
			Help: "Total number of price feed API requests made",
		},
		[]string{"result"}, // "ok", "http_error", "network", "decode"
	)

	PriceFeedLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcg_price_feed_latency_seconds",
			Help:    "Price feed API call latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// Pricing Core Metrics
	PriceExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_price_extractions_total",
			Help: "Market price extractions by outcome",
		},
		[]string{"status"}, // "ok", "empty", "malformed", "oversized"
	)

	PriceResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_price_resolutions_total",
			Help: "Collection price resolutions by the rule that produced them",
		},
		[]string{"source"}, // "exact", "current_market", "market_average", "none"
	)

	PriceCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_price_cache_lookups_total",
			Help: "Price record cache lookups",
		},
		[]string{"result"}, // "hit", "miss"
	)

	// Collection Metrics
	CollectionCardsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_collection_cards_total",
			Help: "Total number of cards in collection",
		},
	)

	CollectionValueUSD = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_collection_value_usd",
			Help: "Total estimated value of collection in USD",
		},
	)

	CollectionUnpricedItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_collection_unpriced_items",
			Help: "Collection entries without a resolvable price",
		},
	)

	// Card Database Metrics
	CardDatabaseSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_card_database_size",
			Help: "Number of unique cards in the database",
		},
	)

	// Snapshot Metrics
	SnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_snapshots_total",
			Help: "Collection value snapshots taken",
		},
		[]string{"result"}, // "success", "failed"
	)
)

// UpdateCollectionMetrics publishes the latest collection totals
func UpdateCollectionMetrics(totalCards int, totalValue float64, unpriced int) {
	CollectionCardsTotal.Set(float64(totalCards))
	CollectionValueUSD.Set(totalValue)
	CollectionUnpricedItems.Set(float64(unpriced))
}
