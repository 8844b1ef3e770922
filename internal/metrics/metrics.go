// Package metrics exposes playback counters to Prometheus.
//
// All methods are safe to call on a nil *Metrics, so components can take an
// optional metrics handle without guarding every call.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/llehouerou/vidflut/internal/frame"
)

// Config configures the metrics.
type Config struct {
	// Namespace is the metrics namespace (default: "vidflut").
	Namespace string

	// Registry is the Prometheus registry to register with.
	// Default: a fresh registry, served by Handler.
	Registry *prometheus.Registry
}

// Option configures New.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics holds the counters for one run.
type Metrics struct {
	registry *prometheus.Registry

	framesCompressed *prometheus.CounterVec
	framesSent       prometheus.Counter
	pixelsSent       prometheus.Counter
	bytesSent        prometheus.Counter
	lag              prometheus.Gauge
	frameDuration    prometheus.Histogram
}

// New creates and registers the metrics.
func New(opts ...Option) *Metrics {
	cfg := Config{Namespace: "vidflut"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: cfg.Registry,
		framesCompressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "frames_compressed_total",
			Help:      "Frames compressed, by update kind.",
		}, []string{"kind"}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "frames_sent_total",
			Help:      "Frames transmitted to the canvas.",
		}),
		pixelsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "pixels_sent_total",
			Help:      "Pixel writes transmitted to the canvas.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "bytes_sent_total",
			Help:      "Encoded bytes written to the connection.",
		}),
		lag: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "pacing_lag_seconds",
			Help:      "Accumulated frame pacing lag.",
		}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "frame_send_duration_seconds",
			Help:      "Time spent encoding and writing one frame.",
			Buckets:   []float64{.001, .0025, .005, .01, .02, .04, .08, .16, .32},
		}),
	}

	cfg.Registry.MustRegister(
		m.framesCompressed,
		m.framesSent,
		m.pixelsSent,
		m.bytesSent,
		m.lag,
		m.frameDuration,
	)

	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// FrameCompressed records one compressed frame.
func (m *Metrics) FrameCompressed(u frame.Update) {
	if m == nil {
		return
	}
	m.framesCompressed.WithLabelValues(u.Kind().String()).Inc()
}

// FrameSent records one transmitted frame.
func (m *Metrics) FrameSent(pixels, bytes int, took time.Duration) {
	if m == nil {
		return
	}
	m.framesSent.Inc()
	m.pixelsSent.Add(float64(pixels))
	m.bytesSent.Add(float64(bytes))
	m.frameDuration.Observe(took.Seconds())
}

// SetLag records the current pacing lag.
func (m *Metrics) SetLag(lag time.Duration) {
	if m == nil {
		return
	}
	m.lag.Set(lag.Seconds())
}
