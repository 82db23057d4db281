// Package metrics provides Prometheus metrics for the poster oracle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PricePostsTotal is a counter of prices stored by price models.
	PricePostsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_posts_total",
			Help: "Total number of prices stored by a price model",
		},
		[]string{"model", "asset"},
	)

	// PriceClampsTotal is a counter of posts clamped to the anchor swing band.
	PriceClampsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_clamps_total",
			Help: "Total number of posted prices clamped to the anchor band",
		},
		[]string{"model", "asset", "bound"},
	)

	// AnchorRollsTotal is a counter of anchor updates.
	AnchorRollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anchor_rolls_total",
			Help: "Total number of anchor updates",
		},
		[]string{"model", "reason"},
	)

	// AssetPrice is a gauge of the last stored price per asset.
	AssetPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asset_price",
			Help: "Last stored price of an asset",
		},
		[]string{"model", "asset"},
	)

	// OracleReadsTotal is a counter of oracle price reads by outcome.
	OracleReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_reads_total",
			Help: "Total number of oracle price reads",
		},
		[]string{"outcome"},
	)

	// ConfigCommandsTotal is a counter of model configuration commands.
	ConfigCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "config_commands_total",
			Help: "Total number of configuration commands executed",
		},
		[]string{"command", "status"},
	)

	// FeedQuotesTotal is a counter of external feed quotes.
	FeedQuotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_quotes_total",
			Help: "Total number of quotes requested from external feeds",
		},
		[]string{"feed", "status"},
	)

	// FeedQuoteDuration is a histogram of feed quote latencies.
	FeedQuoteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_quote_duration_seconds",
			Help:    "Latency of external feed quotes",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"feed"},
	)

	// FeedOutliersTotal is a counter of source quotes rejected by aggregate feeds.
	FeedOutliersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_outliers_total",
			Help: "Total number of source quotes rejected as outliers",
		},
		[]string{"feed", "source"},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)

	// PosterRoundsTotal is a counter of poster loop rounds.
	PosterRoundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poster_rounds_total",
			Help: "Total number of poster rounds",
		},
		[]string{"status"},
	)

	// PosterSkipsTotal is a counter of assets skipped because readyToUpdate was false.
	PosterSkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poster_skips_total",
			Help: "Total number of asset updates skipped by the poster",
		},
		[]string{"asset"},
	)

	// PosterRoundDuration is a histogram of poster round durations.
	PosterRoundDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poster_round_duration_seconds",
			Help:    "Duration of poster rounds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Init initializes Prometheus metrics registry.
func Init() {
	prometheus.MustRegister(
		PricePostsTotal,
		PriceClampsTotal,
		AnchorRollsTotal,
		AssetPrice,
		OracleReadsTotal,
		ConfigCommandsTotal,
		FeedQuotesTotal,
		FeedQuoteDuration,
		FeedOutliersTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		PosterRoundsTotal,
		PosterSkipsTotal,
		PosterRoundDuration,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr string) error {
	return NewServer(addr, "/metrics").ListenAndServe()
}

// NewServer returns the metrics HTTP server without starting it.
func NewServer(addr, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// RecordPricePost records a stored price.
func RecordPricePost(model, asset string, price float64) {
	PricePostsTotal.WithLabelValues(model, asset).Inc()
	AssetPrice.WithLabelValues(model, asset).Set(price)
}

// RecordClamp records a post clamped to the "min" or "max" bound.
func RecordClamp(model, asset, bound string) {
	PriceClampsTotal.WithLabelValues(model, asset, bound).Inc()
}

// RecordAnchorRoll records an anchor update ("period" or "pending").
func RecordAnchorRoll(model, reason string) {
	AnchorRollsTotal.WithLabelValues(model, reason).Inc()
}

// RecordOracleRead records a read outcome ("ok", "stale", "paused", "no_model").
func RecordOracleRead(outcome string) {
	OracleReadsTotal.WithLabelValues(outcome).Inc()
}

// RecordCommand records an executed configuration command.
func RecordCommand(command string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ConfigCommandsTotal.WithLabelValues(command, status).Inc()
}

// RecordFeedQuote records an external feed quote.
func RecordFeedQuote(feed string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	FeedQuotesTotal.WithLabelValues(feed, status).Inc()
	FeedQuoteDuration.WithLabelValues(feed).Observe(duration.Seconds())
}

// RecordOutlierRejection records a source quote dropped by an aggregate feed.
func RecordOutlierRejection(feed, source string) {
	FeedOutliersTotal.WithLabelValues(feed, source).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordPosterRound records a completed poster round.
func RecordPosterRound(status string, duration time.Duration) {
	PosterRoundsTotal.WithLabelValues(status).Inc()
	PosterRoundDuration.Observe(duration.Seconds())
}

// RecordPosterSkip records an asset skipped by the poster.
func RecordPosterSkip(asset string) {
	PosterSkipsTotal.WithLabelValues(asset).Inc()
}
