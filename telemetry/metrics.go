// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	PollCycles         prometheus.Counter
	PollCyclesSkipped  prometheus.Counter
	WentLive           prometheus.Counter
	WentOffline        prometheus.Counter
	ProbeErrors        prometheus.Counter
	RegistryWrites     prometheus.Counter
	NotificationsSent  prometheus.Counter
	SideEffectFailures prometheus.Counter

	// Histograms (seconds)
	CycleDuration prometheus.Observer

	// Gauges
	TrackedStreamersGauge prometheus.Gauge
	LiveStreamersGauge    prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		PollCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_poll_cycles_total", Help: "Number of completed reconciliation cycles"})
		PollCyclesSkipped = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_poll_cycles_skipped_total", Help: "Number of cycles skipped (empty registry or token failure)"})
		WentLive = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_transitions_live_total", Help: "Number of OFFLINE->LIVE transitions detected"})
		WentOffline = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_transitions_offline_total", Help: "Number of LIVE->OFFLINE transitions detected"})
		ProbeErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_probe_errors_total", Help: "Number of stream-status probes that failed and were treated as offline"})
		RegistryWrites = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_registry_writes_total", Help: "Number of registry persistence writes"})
		NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_notifications_sent_total", Help: "Number of live notifications posted"})
		SideEffectFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_side_effect_failures_total", Help: "Number of failed role mutations or notification posts"})
		CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "herald_poll_cycle_duration_seconds", Help: "Reconciliation cycle duration seconds", Buckets: prometheus.DefBuckets})
		TrackedStreamersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "herald_tracked_streamers", Help: "Current number of tracked streamers across all guilds"})
		LiveStreamersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "herald_live_streamers", Help: "Current number of streamers whose persisted state is live"})
	})
}

// SetTrackedStreamers records the registry size observed in the latest cycle.
func SetTrackedStreamers(n int) {
	if TrackedStreamersGauge != nil {
		TrackedStreamersGauge.Set(float64(n))
	}
}

// SetLiveStreamers records how many streamers are currently marked live.
func SetLiveStreamers(n int) {
	if LiveStreamersGauge != nil {
		LiveStreamersGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
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
