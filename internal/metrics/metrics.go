package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "woodslot"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "status"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by result (created, rejected, deleted).",
		},
		[]string{"result"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Slot-freed emails by result (sent, failed).",
		},
		[]string{"result"},
	)

	sweeperRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_runs_total",
			Help:      "Scheduled sweeper job runs by job and outcome.",
		},
		[]string{"job", "outcome"},
	)

	eventsRelayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_relayed_total",
			Help:      "Domain events forwarded to the broker by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookings, notifications, sweeperRuns, eventsRelayed)
	})
}

func IncHTTP(endpoint string, status int) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

func IncBooking(result string) {
	bookings.WithLabelValues(result).Inc()
}

func AddNotifications(sent, failed int) {
	if sent > 0 {
		notifications.WithLabelValues("sent").Add(float64(sent))
	}
	if failed > 0 {
		notifications.WithLabelValues("failed").Add(float64(failed))
	}
}

func IncSweeperRun(job string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	sweeperRuns.WithLabelValues(job, outcome).Inc()
}

func IncEventRelayed(result string) {
	eventsRelayed.WithLabelValues(result).Inc()
}
