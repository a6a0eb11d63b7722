package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type EventType string

const (
	EventRequestReceived   EventType = "request_received"
	EventBackendSelected   EventType = "backend_selected"
	EventResponseCompleted EventType = "response_completed"
	EventHealthChanged     EventType = "health_changed"
	EventFailover          EventType = "failover"
)

// Event is one observation emitted by the request path or the health
// checker. Fields beyond Type and Backend are set per event type.
type Event struct {
	Type       EventType
	Timestamp  time.Time
	Backend    string
	Method     string
	StatusCode int
	Duration   time.Duration
	Healthy    bool
}

// instruments holds the prometheus collectors backing the event pipeline.
type instruments struct {
	requestsReceived *prometheus.CounterVec
	selections       *prometheus.CounterVec
	responses        *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	backendUp        *prometheus.GaugeVec
	failovers        prometheus.Counter
}

func newInstruments(reg prometheus.Registerer) *instruments {
	ins := &instruments{
		requestsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_requests_received_total",
				Help: "Requests accepted by the proxy, before backend selection.",
			},
			[]string{"backend"},
		),
		selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_backend_selections_total",
				Help: "Times each backend was selected by the balancing strategy.",
			},
			[]string{"backend"},
		),
		responses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_responses_total",
				Help: "Completed responses by backend, method and status code.",
			},
			[]string{"backend", "method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proxy_request_duration_seconds",
				Help:    "End-to-end request duration per backend.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		backendUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "proxy_backend_up",
				Help: "1 if the backend is healthy, 0 otherwise.",
			},
			[]string{"backend"},
		),
		failovers: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "proxy_failovers_total",
				Help: "Requests retried on another backend after a transport error.",
			},
		),
	}

	reg.MustRegister(
		ins.requestsReceived,
		ins.selections,
		ins.responses,
		ins.duration,
		ins.backendUp,
		ins.failovers,
	)

	return ins
}
