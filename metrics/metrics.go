package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mediahub"

var (
	JobsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_started_total",
		Help:      "Jobs handed to a driver, by kind.",
	}, []string{"kind"})

	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_finished_total",
		Help:      "Jobs that reached a terminal outcome, by kind and outcome.",
	}, []string{"kind", "outcome"})

	JobsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_rejected_total",
		Help:      "Job submissions refused by validation, by kind.",
	}, []string{"kind"})

	JobsRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "jobs_running",
		Help:      "Drivers currently executing, by kind.",
	}, []string{"kind"})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "progress_subscribers",
		Help:      "Registered progress subscribers.",
	})

	EventsPushed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "progress_events_pushed_total",
		Help:      "Progress events queued for a registered subscriber.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "progress_events_dropped_total",
		Help:      "Progress events pushed for a task without a subscriber.",
	})

	EventsCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "progress_events_coalesced_total",
		Help:      "Queued progress events replaced by a newer one before delivery.",
	})
)

// Handler exposes the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
