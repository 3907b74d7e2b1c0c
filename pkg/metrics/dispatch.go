package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records printer dispatch outcomes.
type DispatchMetrics struct {
	attempts  *prometheus.CounterVec
	retries   prometheus.Counter
	exhausted prometheus.Counter
	duration  prometheus.Histogram
	queueLen  prometheus.Gauge
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "print_dispatch_attempts",
		Help: "Printer dispatch attempts by outcome.",
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "print_dispatch_retries",
		Help: "Dispatch attempts placed back on the retry queue.",
	})
	exhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "print_dispatch_exhausted",
		Help: "Dispatches that ran out of retry attempts.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "print_dispatch_duration_seconds",
		Help:    "Duration of printer dispatch calls in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	queueLen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "print_retry_queue_length",
		Help: "Jobs currently waiting on the in-memory retry queue.",
	})
	reg.MustRegister(attempts, retries, exhausted, duration, queueLen)
	return &DispatchMetrics{
		attempts:  attempts,
		retries:   retries,
		exhausted: exhausted,
		duration:  duration,
		queueLen:  queueLen,
	}
}

// IncAttempt records one dispatch attempt with its outcome label.
func (d *DispatchMetrics) IncAttempt(outcome string) {
	if d == nil || d.attempts == nil {
		return
	}
	d.attempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRetry counts a job re-queued for another attempt.
func (d *DispatchMetrics) IncRetry() {
	if d == nil || d.retries == nil {
		return
	}
	d.retries.Inc()
}

// IncExhausted counts a job that used up its retry budget.
func (d *DispatchMetrics) IncExhausted() {
	if d == nil || d.exhausted == nil {
		return
	}
	d.exhausted.Inc()
}

// ObserveDispatch records the wall time of one dispatch call.
func (d *DispatchMetrics) ObserveDispatch(duration time.Duration) {
	if d == nil || d.duration == nil {
		return
	}
	d.duration.Observe(duration.Seconds())
}

// SetQueueLength publishes the current retry queue depth.
func (d *DispatchMetrics) SetQueueLength(n int) {
	if d == nil || d.queueLen == nil {
		return
	}
	d.queueLen.Set(float64(n))
}
