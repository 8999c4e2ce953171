// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "daycal"

var (
	RemindersArmed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminders_armed_total",
		Help:      "Reminders armed, including ones restored on startup.",
	})
	RemindersFired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminders_fired_total",
		Help:      "Reminders that transitioned to fired.",
	})
	RemindersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminders_cancelled_total",
		Help:      "Armed reminders cancelled before firing.",
	})
	RemindersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminders_dropped_total",
		Help:      "Persisted reminders dropped on startup because their fire time had passed.",
	})
	ArmFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminder_arm_failures_total",
		Help:      "Reminders that could not be armed.",
	})
	RemindersPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reminders_pending",
		Help:      "Reminders currently armed.",
	})
	DeliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alert_delivery_failures_total",
		Help:      "Alerts a sink failed to deliver.",
	}, []string{"sink"})
	LayoutColumns = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "layout_columns",
		Help:      "Widest column count of each computed day layout.",
		Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 12},
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
