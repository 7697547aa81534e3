// Package metrics provides Prometheus metrics for tubebot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchAttemptsTotal counts feed fetch attempts by result.
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tubebot",
			Name:      "fetch_attempts_total",
			Help:      "Total number of feed fetch attempts",
		},
		[]string{"result"},
	)

	// CyclesTotal counts poll cycles by mode and result.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tubebot",
			Name:      "cycles_total",
			Help:      "Total number of poll cycles",
		},
		[]string{"mode", "result"},
	)

	// CycleDuration measures how long a cycle took end to end.
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tubebot",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of poll cycles in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"mode"},
	)

	// AnnouncementsTotal counts delivery attempts by category and result.
	AnnouncementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tubebot",
			Name:      "announcements_total",
			Help:      "Total number of announcement deliveries",
		},
		[]string{"category", "result"},
	)

	// SeenItems tracks the size of the persisted seen set.
	SeenItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tubebot",
			Name:      "seen_items",
			Help:      "Number of item ids in the seen store",
		},
	)

	// LastSuccessTimestamp is the unix time of the last successful cycle.
	LastSuccessTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tubebot",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful poll cycle",
		},
	)
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordFetchAttempt records one HTTP fetch+parse attempt.
func RecordFetchAttempt(err error) {
	FetchAttemptsTotal.WithLabelValues(resultLabel(err)).Inc()
}

// RecordAnnouncement records one delivery.
func RecordAnnouncement(category string, err error) {
	AnnouncementsTotal.WithLabelValues(category, resultLabel(err)).Inc()
}

// RecordCycle records a finished cycle.
func RecordCycle(mode string, err error, seconds float64, seen int64, finishedUnix float64) {
	CyclesTotal.WithLabelValues(mode, resultLabel(err)).Inc()
	CycleDuration.WithLabelValues(mode).Observe(seconds)
	if err == nil {
		SeenItems.Set(float64(seen))
		LastSuccessTimestamp.Set(finishedUnix)
	}
}
