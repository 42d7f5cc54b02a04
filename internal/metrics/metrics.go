// ABOUTME: Prometheus collector for chat session observations
// ABOUTME: Connection state, frame counts, request latency and voice outcomes on a private registry

package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/nexus-chat/internal/audio"
	"github.com/2389/nexus-chat/internal/protocol"
	"github.com/2389/nexus-chat/internal/transport"
)

const (
	namespace = "nexus_chat"

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// latencyBuckets cover fast tool answers up to slow multi-agent turns.
var latencyBuckets = []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120}

// Collector records session metrics. The zero value is not usable; call New.
type Collector struct {
	registry *prometheus.Registry

	connectionOpen prometheus.Gauge
	disconnects    prometheus.Counter
	frames         *prometheus.CounterVec
	requests       *prometheus.HistogramVec
	voice          *prometheus.CounterVec

	last transport.State
}

// New creates a Collector with its own registry. Go runtime and process
// collectors are registered alongside the session metrics.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		connectionOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_open",
			Help:      "1 when the chat WebSocket is open, 0 otherwise.",
		}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Times an open connection was lost.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Server frames received, by frame type.",
		}, []string{"type"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from submit to terminal outcome, by outcome.",
			Buckets:   latencyBuckets,
		}, []string{"outcome"}),
		voice: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_polls_total",
			Help:      "Finished voice polls, by outcome.",
		}, []string{"outcome"}),
		last: transport.StateConnecting,
	}

	c.registry.MustRegister(
		c.connectionOpen,
		c.disconnects,
		c.frames,
		c.requests,
		c.voice,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ConnectionState records a connection lifecycle change. It is called from
// the session loop only, so last needs no lock.
func (c *Collector) ConnectionState(s transport.State) {
	if s == transport.StateOpen {
		c.connectionOpen.Set(1)
	} else {
		c.connectionOpen.Set(0)
	}
	if c.last == transport.StateOpen && s != transport.StateOpen {
		c.disconnects.Inc()
	}
	c.last = s
}

// FrameReceived counts one decoded server frame.
func (c *Collector) FrameReceived(t protocol.Type) {
	c.frames.WithLabelValues(string(t)).Inc()
}

// RequestFinished observes the latency of one completed request.
func (c *Collector) RequestFinished(outcome string, elapsed time.Duration) {
	c.requests.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// VoiceOutcome counts one finished voice poll.
func (c *Collector) VoiceOutcome(s audio.State) {
	c.voice.WithLabelValues(s.String()).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes Handler at path on addr until ctx is done. It returns nil
// after a clean shutdown.
func (c *Collector) Serve(ctx context.Context, addr, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, c.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "addr", ln.Addr().String(), "path", path)
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics shutdown: %w", err)
		}
		return nil
	}
}
