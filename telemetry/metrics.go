// Package telemetry provides Prometheus metrics, OpenTelemetry tracing, and
// correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// DispatchesTotal counts dispatches by terminal outcome (no_command,
	// unknown, denied, on_cooldown, completed, failed).
	DispatchesTotal *prometheus.CounterVec

	// RepliesTotal counts outbound replies per platform (twitch, discord).
	RepliesTotal *prometheus.CounterVec

	// CooldownRejections counts dispatches rejected by the rate limiter.
	CooldownRejections prometheus.Counter
	// PermissionDenials counts dispatches rejected by the permission check.
	PermissionDenials prometheus.Counter
	// HandlerPanics counts recovered handler panics.
	HandlerPanics prometheus.Counter
	// StoreErrors counts persistence gateway failures seen by dispatch.
	StoreErrors prometheus.Counter

	// HandlerDuration observes handler execution time in seconds.
	HandlerDuration prometheus.Observer

	// CooldownEntriesGauge tracks the limiter's live entry count.
	CooldownEntriesGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		DispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_dispatches_total",
			Help: "Command dispatches by terminal outcome",
		}, []string{"outcome"})
		RepliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_replies_total",
			Help: "Replies sent back to the chat transport",
		}, []string{"platform"})
		CooldownRejections = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_cooldown_rejections_total", Help: "Dispatches rejected because a cooldown scope was active"})
		PermissionDenials = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_permission_denials_total", Help: "Dispatches rejected by the permission check"})
		HandlerPanics = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_handler_panics_total", Help: "Handler panics recovered by the dispatcher"})
		StoreErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_store_errors_total", Help: "Persistence gateway errors observed during dispatch"})
		HandlerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bot_handler_duration_seconds",
			Help:    "Handler execution duration seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		})
		CooldownEntriesGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_cooldown_entries", Help: "Live cooldown map entries"})
	})
}

// RecordOutcome bumps the dispatch counter for a terminal outcome.
func RecordOutcome(outcome string) {
	if DispatchesTotal != nil {
		DispatchesTotal.WithLabelValues(outcome).Inc()
	}
}

// RecordReply bumps the reply counter for a platform.
func RecordReply(platform string) {
	if RepliesTotal != nil {
		RepliesTotal.WithLabelValues(platform).Inc()
	}
}

// SetCooldownEntries records the limiter's current entry count.
func SetCooldownEntries(n int) {
	if CooldownEntriesGauge != nil {
		CooldownEntriesGauge.Set(float64(n))
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
