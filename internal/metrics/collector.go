package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector receives events over a buffered channel and records them into a
// private prometheus registry. Producers use non-blocking sends, so a full
// buffer drops events instead of stalling the request path.
type Collector struct {
	eventCh     chan Event
	registry    *prometheus.Registry
	instruments *instruments
	logger      *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		eventCh:     make(chan Event, bufferSize),
		registry:    registry,
		instruments: newInstruments(registry),
		logger:      logger,
	}
}

// EventChannel returns the send side of the event pipeline.
func (c *Collector) EventChannel() chan<- Event {
	return c.eventCh
}

// Emit sends an event without blocking; it is dropped if the buffer is full.
func (c *Collector) Emit(event Event) {
	select {
	case c.eventCh <- event:
	default:
	}
}

// RegisterSessionGauge exposes the sticky-session count as a gauge that is
// sampled at scrape time.
func (c *Collector) RegisterSessionGauge(count func() int) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "proxy_active_sessions",
			Help: "Currently active sticky sessions.",
		},
		func() float64 { return float64(count()) },
	))
}

// Handler returns the prometheus exposition handler for this collector's
// registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Start launches the collector loop.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventRequestReceived:
		c.instruments.requestsReceived.WithLabelValues(event.Backend).Inc()

	case EventBackendSelected:
		c.instruments.selections.WithLabelValues(event.Backend).Inc()

	case EventResponseCompleted:
		c.instruments.responses.WithLabelValues(
			event.Backend,
			event.Method,
			strconv.Itoa(event.StatusCode),
		).Inc()
		c.instruments.duration.WithLabelValues(event.Backend).Observe(event.Duration.Seconds())

	case EventHealthChanged:
		up := 0.0
		if event.Healthy {
			up = 1.0
		}
		c.instruments.backendUp.WithLabelValues(event.Backend).Set(up)

	case EventFailover:
		c.instruments.failovers.Inc()
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}
