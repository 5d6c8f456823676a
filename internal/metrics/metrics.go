package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/giantswarm/browserenv/internal/browser"
	"github.com/giantswarm/browserenv/internal/core"
	"github.com/giantswarm/browserenv/internal/display"
	"github.com/giantswarm/browserenv/internal/netutil"
)

// DefaultNamespace prefixes every metric name when New gets an empty one.
const DefaultNamespace = "browserenv"

// Start failure kinds used as the "kind" label.
const (
	KindNoFreePort = "no_free_port"
	KindDisplay    = "display"
	KindTimeout    = "timeout"
	KindBrowser    = "browser"
	KindOther      = "other"
)

var _ core.Hooks = (*Collector)(nil)

// Collector records pool lifecycle events.
type Collector struct {
	starts        prometheus.Counter
	startFailures *prometheus.CounterVec
	stops         prometheus.Counter
	running       prometheus.Gauge
	startDuration prometheus.Histogram
	displayStarts prometheus.Counter

	registry *prometheus.Registry
}

// New creates a Collector with its metrics registered on a fresh registry.
func New(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		starts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instance_starts_total",
			Help:      "Total number of browser instances that passed the readiness handshake",
		}),
		startFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instance_start_failures_total",
			Help:      "Total number of failed browser starts by failure kind",
		}, []string{"kind"}),
		stops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instance_stops_total",
			Help:      "Total number of browser instances that left the pool",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instances_running",
			Help:      "Number of browser instances currently in the pool",
		}),
		startDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "instance_start_duration_seconds",
			Help:      "Time from spawn until the DevTools endpoint answered",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		displayStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "display_starts_total",
			Help:      "Total number of shared display server starts",
		}),
	}

	c.registry.MustRegister(
		c.starts,
		c.startFailures,
		c.stops,
		c.running,
		c.startDuration,
		c.displayStarts,
	)
	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) OnStarted(_ core.ConnectionInfo, elapsed time.Duration) {
	c.starts.Inc()
	c.running.Inc()
	c.startDuration.Observe(elapsed.Seconds())
}

func (c *Collector) OnStartFailed(_ string, err error) {
	c.startFailures.WithLabelValues(FailureKind(err)).Inc()
}

func (c *Collector) OnStopped(string) {
	c.stops.Inc()
	c.running.Dec()
}

func (c *Collector) OnDisplayStarted(string) {
	c.displayStarts.Inc()
}

// FailureKind maps a Start error to its "kind" label value.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, netutil.ErrNoFreePort):
		return KindNoFreePort
	case errors.Is(err, display.ErrDisplay):
		return KindDisplay
	case errors.Is(err, browser.ErrBrowserTimeout):
		return KindTimeout
	case errors.Is(err, browser.ErrBrowser):
		return KindBrowser
	default:
		return KindOther
	}
}
