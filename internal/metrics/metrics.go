package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lamim/storyteller/pkg/models"
)

// Attempt outcomes
const (
	OutcomeAccepted = "accepted"
	OutcomeSimilar  = "similar"
	OutcomeShort    = "short"
	OutcomeRefusal  = "refusal"
	OutcomeError    = "error"
)

// Story results
const (
	ResultAccepted = "accepted"
	ResultFallback = "fallback"
	ResultFailed   = "failed"
)

var (
	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyteller_api_request_duration_seconds",
			Help:    "Generation request duration in seconds by model",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~256s
		},
		[]string{"model", "status"},
	)

	rateLimiterWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyteller_rate_limiter_wait_duration_seconds",
			Help:    "Rate limiter wait duration in seconds by model",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
		[]string{"model"},
	)

	generationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyteller_generation_attempts_total",
			Help: "Generation attempts by outcome",
		},
		[]string{"outcome"},
	)

	storiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyteller_stories_total",
			Help: "Story requests by final result",
		},
		[]string{"result"},
	)

	attemptsPerStory = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storyteller_attempts_per_story",
			Help:    "Generation attempts needed per story request",
			Buckets: prometheus.LinearBuckets(1, 1, 5),
		},
	)

	similarityRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storyteller_similarity_ratio",
			Help:    "Shingle overlap ratio against the session corpus",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	revisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyteller_revisions_total",
			Help: "Revision requests by outcome",
		},
		[]string{"outcome"},
	)

	exportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyteller_exports_total",
			Help: "Document exports by format and status",
		},
		[]string{"format", "status"},
	)
)

// Collector records Prometheus metrics and keeps per-session counters.
// A nil *Collector is valid and records nothing.
type Collector struct {
	logger *slog.Logger
	mu     sync.Mutex
	stats  models.SessionStats
}

// NewCollector creates a new metrics collector for one session
func NewCollector(sessionID string, logger *slog.Logger) *Collector {
	return &Collector{
		logger: logger,
		stats: models.SessionStats{
			SessionID: sessionID,
			StartTime: time.Now(),
		},
	}
}

// RecordAPIRequest records an API request duration
func (c *Collector) RecordAPIRequest(model string, duration time.Duration, success bool) {
	if c == nil {
		return
	}
	apiRequestDuration.WithLabelValues(model, status(success)).Observe(duration.Seconds())
}

// RecordRateLimiterWait records rate limiter wait time
func (c *Collector) RecordRateLimiterWait(model string, duration time.Duration) {
	if c == nil {
		return
	}
	rateLimiterWaitDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordAttempt counts one generation attempt inside the retry loop
func (c *Collector) RecordAttempt(outcome string) {
	if c == nil {
		return
	}
	generationAttempts.WithLabelValues(outcome).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.GenerationAttempts++
	switch outcome {
	case OutcomeSimilar:
		c.stats.RejectedSimilar++
	case OutcomeShort, OutcomeRefusal:
		c.stats.RejectedDegenerate++
	case OutcomeError:
		c.stats.GenerationErrors++
	}
}

// RecordSimilarity observes an overlap ratio computed by the uniqueness check
func (c *Collector) RecordSimilarity(ratio float64) {
	if c == nil {
		return
	}
	similarityRatio.Observe(ratio)
}

// RecordStory records the final result of one story request
func (c *Collector) RecordStory(result string, attempts int) {
	if c == nil {
		return
	}
	storiesTotal.WithLabelValues(result).Inc()
	attemptsPerStory.Observe(float64(attempts))

	c.mu.Lock()
	defer c.mu.Unlock()
	switch result {
	case ResultAccepted:
		c.stats.StoriesGenerated++
	case ResultFallback:
		c.stats.StoriesGenerated++
		c.stats.Fallbacks++
	}
}

// RecordRevision records one revision round
func (c *Collector) RecordRevision(outcome string) {
	if c == nil {
		return
	}
	revisionsTotal.WithLabelValues(outcome).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	switch outcome {
	case OutcomeAccepted:
		c.stats.RevisionsAccepted++
	case OutcomeSimilar, OutcomeShort, OutcomeRefusal:
		c.stats.RevisionsRejected++
	case OutcomeError:
		c.stats.GenerationErrors++
	}
}

// RecordExport records a document export
func (c *Collector) RecordExport(format string, success bool) {
	if c == nil {
		return
	}
	exportsTotal.WithLabelValues(format, status(success)).Inc()

	if success {
		c.mu.Lock()
		c.stats.Exports++
		c.mu.Unlock()
	}
}

// Stats returns a snapshot of the session counters
func (c *Collector) Stats() models.SessionStats {
	if c == nil {
		return models.SessionStats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Summary returns a one-line human-readable session summary
func (c *Collector) Summary() string {
	s := c.Stats()
	return fmt.Sprintf("%d stories (%d best-effort), %d attempts, %d rejected as similar, %d rejected as short or refused, %d revisions kept, %d exports, %s elapsed",
		s.StoriesGenerated, s.Fallbacks, s.GenerationAttempts, s.RejectedSimilar,
		s.RejectedDegenerate, s.RevisionsAccepted, s.Exports,
		time.Since(s.StartTime).Round(time.Second))
}

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", "error", err)
		}
	}()

	logger.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
