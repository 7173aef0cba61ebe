package prometheus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AltairaLabs/PoseKit/logger"
)

const defaultReadHeaderTimeout = 10 * time.Second

// ErrExporterRunning is returned by a second Start.
var ErrExporterRunning = errors.New("metrics exporter already running")

// Exporter serves the PoseKit registry at /metrics and a health check at
// /health.
type Exporter struct {
	addr     string
	registry *prometheus.Registry
	health   func() error

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	closed   bool
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithRegistry serves reg instead of the PoseKit default registry.
func WithRegistry(reg *prometheus.Registry) ExporterOption {
	return func(e *Exporter) {
		e.registry = reg
	}
}

// WithHealthCheck makes /health answer 503 with check's error while check
// fails, e.g. after the telemetry socket gave up reconnecting.
func WithHealthCheck(check func() error) ExporterOption {
	return func(e *Exporter) {
		e.health = check
	}
}

// NewExporter creates an exporter for addr. Without WithRegistry it serves
// every PoseKit metric plus the Go runtime and process collectors.
func NewExporter(addr string, opts ...ExporterOption) *Exporter {
	e := &Exporter{addr: addr}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = defaultRegistry()
	}
	return e
}

func defaultRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(allMetrics...)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Registry returns the served registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler routes /metrics and /health. Requests are traced.
func (e *Exporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("GET /health", e.serveHealth)
	return otelhttp.NewHandler(mux, "posekit.exporter")
}

func (e *Exporter) serveHealth(w http.ResponseWriter, _ *http.Request) {
	if e.health != nil {
		if err := e.health(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	_, _ = io.WriteString(w, "ok")
}

// Start binds addr and serves until Shutdown. It returns
// http.ErrServerClosed once stopped, also when Shutdown ran before Start.
func (e *Exporter) Start() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return http.ErrServerClosed
	}
	if e.server != nil {
		e.mu.Unlock()
		return ErrExporterRunning
	}
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", e.addr, err)
	}
	e.listener = ln
	e.server = &http.Server{
		Handler:           e.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	srv := e.server
	e.mu.Unlock()

	logger.Info("metrics exporter listening", "addr", ln.Addr().String())
	return srv.Serve(ln)
}

// Addr returns the bound address while serving, or "" before Start.
func (e *Exporter) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return ""
	}
	return e.listener.Addr().String()
}

// Shutdown stops the exporter. Later Starts return http.ErrServerClosed.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	srv := e.server
	e.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
