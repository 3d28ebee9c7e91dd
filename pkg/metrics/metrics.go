// Package metrics exposes the bundle daemon's prometheus gauges and
// counters: daemon throughput, per-link queue depth, and LTP session/segment
// activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Daemon-level bundle statistics (§4.1).
	BundlesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dtnd_bundles_received_total",
		Help: "Total number of bundles received from CLAs or the application API",
	})
	BundlesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dtnd_bundles_delivered_total",
		Help: "Total number of bundles delivered to local registrations",
	})
	BundlesForwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dtnd_bundles_forwarded_total",
		Help: "Total number of bundles forwarded onto a link",
	})
	BundlesExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dtnd_bundles_expired_total",
		Help: "Total number of bundles expired before delivery",
	})
	BundlesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dtnd_bundles_dropped_total",
		Help: "Total number of bundles dropped, by reason",
	}, []string{"reason"})

	EventQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dtnd_event_queue_depth",
		Help: "Current depth of the bundle daemon's event queue",
	})
	EventProcessDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dtnd_event_process_duration_seconds",
		Help:    "Time taken to process one daemon event, by event type",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})

	// Link state (§4.3).
	LinkState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dtnd_link_state",
		Help: "Current link state as an enum value (see link.State)",
	}, []string{"link"})
	LinkQueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dtnd_link_queue_depth",
		Help: "Number of bundles queued for transmission on a link",
	}, []string{"link"})
	LinkInflightDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dtnd_link_inflight_depth",
		Help: "Number of bundles in flight but not yet acknowledged on a link",
	}, []string{"link"})

	// LTP (§4.6).
	LTPSessionsOpen = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dtnd_ltp_sessions_open",
		Help: "Number of live LTP sessions, by role (sender/receiver)",
	}, []string{"role"})
	LTPSegmentsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dtnd_ltp_segments_sent_total",
		Help: "Total LTP segments sent, by segment type",
	}, []string{"segment_type"})
	LTPSegmentsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dtnd_ltp_segments_received_total",
		Help: "Total LTP segments received, by segment type",
	}, []string{"segment_type"})
	LTPRetransmits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dtnd_ltp_retransmits_total",
		Help: "Total number of LTP checkpoint retransmissions",
	})
	LTPSessionsCancelled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dtnd_ltp_sessions_cancelled_total",
		Help: "Total number of LTP sessions cancelled, by reason",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		BundlesReceived,
		BundlesDelivered,
		BundlesForwarded,
		BundlesExpired,
		BundlesDropped,
		EventQueueDepth,
		EventProcessDuration,
		LinkState,
		LinkQueueDepth,
		LinkInflightDepth,
		LTPSessionsOpen,
		LTPSegmentsSent,
		LTPSegmentsReceived,
		LTPRetransmits,
		LTPSessionsCancelled,
	)
}

// Handler returns the Prometheus HTTP handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing an operation and recording it into a
// histogram at the end.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time into histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time into a labeled histogram vec.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
