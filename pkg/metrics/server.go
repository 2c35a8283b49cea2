package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultNamespace = "speedtest"
	subsystemServer  = "server"
)

// ServerCollector tracks dispatcher activity and exposes it via a dedicated
// Prometheus registry.
type ServerCollector struct {
	registry *prometheus.Registry

	offersSent     prometheus.Counter
	requestsTotal  *prometheus.CounterVec
	bytesSent      *prometheus.CounterVec
	droppedTotal   prometheus.Counter
	activeHandlers prometheus.Gauge
}

func NewServerCollector(namespace string) *ServerCollector {
	if strings.TrimSpace(namespace) == "" {
		namespace = defaultNamespace
	}
	reg := prometheus.NewRegistry()

	c := &ServerCollector{
		registry: reg,
		offersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemServer,
			Name:      "offers_sent_total",
			Help:      "Offer broadcasts emitted.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemServer,
			Name:      "requests_total",
			Help:      "Speed test requests handled, by protocol.",
		}, []string{"proto"}),
		bytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemServer,
			Name:      "bytes_sent_total",
			Help:      "Filler bytes streamed to clients, by protocol.",
		}, []string{"proto"}),
		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemServer,
			Name:      "datagrams_dropped_total",
			Help:      "Datagrams discarded for bad magic, type or length.",
		}),
		activeHandlers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemServer,
			Name:      "active_handlers",
			Help:      "Request handlers currently running.",
		}),
	}

	reg.MustRegister(c.offersSent, c.requestsTotal, c.bytesSent, c.droppedTotal, c.activeHandlers)
	return c
}

func (c *ServerCollector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the exposition endpoint for this collector's registry.
func (c *ServerCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *ServerCollector) ObserveOffer() {
	c.offersSent.Inc()
}

func (c *ServerCollector) ObserveRequest(proto string) {
	c.requestsTotal.WithLabelValues(proto).Inc()
}

func (c *ServerCollector) ObserveBytesSent(proto string, n int) {
	if n <= 0 {
		return
	}
	c.bytesSent.WithLabelValues(proto).Add(float64(n))
}

func (c *ServerCollector) ObserveDrop() {
	c.droppedTotal.Inc()
}

func (c *ServerCollector) HandlerStarted() {
	c.activeHandlers.Inc()
}

func (c *ServerCollector) HandlerFinished() {
	c.activeHandlers.Dec()
}
