// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	harvesterCandidatesTotal        *prometheus.CounterVec
	harvesterRejectionsTotal        *prometheus.CounterVec
	harvesterRacesAcceptedTotal     prometheus.Counter
	harvesterFetchDurationSeconds   *prometheus.HistogramVec
	harvesterBatchDurationSeconds   prometheus.Histogram
	harvesterRateLimitDelaysSeconds prometheus.Histogram
	harvesterLastRunRaces           prometheus.Gauge
	httpRequestsTotal               *prometheus.CounterVec
	httpRequestDurationSeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvesterCandidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_candidates_total",
				Help: "Total number of candidate race pages fetched, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		harvesterRejectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_rejections_total",
				Help: "Total number of candidates dropped, labeled by the check that dropped them.",
			},
			[]string{"reason"},
		)

		harvesterRacesAcceptedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_races_accepted_total",
				Help: "Total number of races accepted into the dataset.",
			},
		)

		harvesterFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_fetch_duration_seconds",
				Help:    "Histogram of candidate page fetch latencies, labeled by outcome.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"outcome"},
		)

		harvesterBatchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_batch_duration_seconds",
				Help:    "Histogram of wall time spent settling one batch.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20},
			},
		)

		harvesterRateLimitDelaysSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_rate_limit_delays_seconds",
				Help:    "Histogram of outbound rate limit wait durations.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
		)

		harvesterLastRunRaces = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_last_run_races",
				Help: "Number of races in the most recent dataset.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one candidate fetch.
func ObserveFetch(outcome string, duration time.Duration) {
	Init()
	harvesterCandidatesTotal.WithLabelValues(outcome).Inc()
	harvesterFetchDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveRejection increments the rejection counter for reason.
func ObserveRejection(reason string) {
	Init()
	harvesterRejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveAccepted increments the accepted race counter.
func ObserveAccepted() {
	Init()
	harvesterRacesAcceptedTotal.Inc()
}

// ObserveBatch records how long a batch took to settle.
func ObserveBatch(duration time.Duration) {
	Init()
	harvesterBatchDurationSeconds.Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(duration time.Duration) {
	Init()
	harvesterRateLimitDelaysSeconds.Observe(duration.Seconds())
}

// SetLastRunRaces sets the dataset size gauge.
func SetLastRunRaces(n int) {
	Init()
	harvesterLastRunRaces.Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Push sends the default registry to a Prometheus Pushgateway. A batch job has no scrape window,
// so this is the only way its counters leave the process.
func Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
