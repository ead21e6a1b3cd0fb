package metrics

import (
	"database/sql"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stream outcomes used as the "outcome" label.
const (
	OutcomeCompleted    = "completed"
	OutcomeBackendError = "backend_error"
	OutcomeUnreachable  = "unreachable"
	OutcomeTimeout      = "timeout"
	OutcomeUnexpected   = "unexpected"
	OutcomeCancelled    = "cancelled"
)

var (
	adviceStreamsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advice_streams_started_total",
		Help: "Total advice streams started",
	})

	adviceStreamsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advice_streams_finished_total",
		Help: "Total advice streams finished, by outcome",
	}, []string{"outcome"})

	recommendationsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advice_recommendations_emitted_total",
		Help: "Recommendations sent to clients, by category",
	}, []string{"category"})

	recommendationsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advice_recommendations_skipped_total",
		Help: "Backend recommendations dropped during normalization",
	})

	adviceStreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "advice_stream_duration_seconds",
		Help:    "Advice stream duration in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	})

	homesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homes_created_total",
		Help: "Home profiles created",
	})

	homeCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "home_cache_lookups_total",
		Help: "Home cache lookups, by cache and result",
	}, []string{"cache", "result"})
)

// IncAdviceStarted increments the started counter.
func IncAdviceStarted() {
	adviceStreamsStarted.Inc()
}

// ObserveAdviceFinished records the outcome and duration of one stream.
func ObserveAdviceFinished(outcome string, d time.Duration) {
	adviceStreamsFinished.WithLabelValues(outcome).Inc()
	if d < 0 {
		d = 0
	}
	adviceStreamDuration.Observe(d.Seconds())
}

// IncRecommendationEmitted counts one emitted recommendation.
func IncRecommendationEmitted(category string) {
	recommendationsEmitted.WithLabelValues(category).Inc()
}

// IncRecommendationSkipped counts one recommendation dropped by normalization.
func IncRecommendationSkipped() {
	recommendationsSkipped.Inc()
}

// IncHomesCreated increments the homes created counter.
func IncHomesCreated() {
	homesCreated.Inc()
}

// ObserveCacheLookup records a cache hit or miss.
func ObserveCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	homeCacheLookups.WithLabelValues(cache, result).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RegisterDBStats exposes database/sql pool statistics for db under the given
// name. Registering the same name twice is not an error.
func RegisterDBStats(db *sql.DB, name string) error {
	err := prometheus.Register(collectors.NewDBStatsCollector(db, name))
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}
