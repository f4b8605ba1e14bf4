// Package metrics provides Prometheus instrumentation.
// All recording methods are safe to call on a nil *Metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"
)

const namespace = "audiowarden"

// Skip results.
const (
	SkipOK                = "ok"
	SkipPlayerUnavailable = "player_unavailable"
	SkipBusError          = "bus_error"
)

// BlocklistReader exposes blocklist sizes per source.
type BlocklistReader interface {
	Sources() []string
	SourceLen(name string) int
}

// Metrics holds the application collectors.
type Metrics struct {
	registry   *prometheus.Registry
	skips      *prometheus.CounterVec
	commands   *prometheus.CounterVec
	snapshots  prometheus.Counter
	reconnects prometheus.Counter
	reloads    *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry.
func New(blocklist BlocklistReader) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skips_total",
			Help:      "Skip requests sent to the player, by result.",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands received on the control socket.",
		}, []string{"command"}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "player_snapshots_total",
			Help:      "Player state transitions observed.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_reconnects_total",
			Help:      "Session bus reconnections.",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocklist_reloads_total",
			Help:      "Blocklist reloads, by source and result.",
		}, []string{"source", "result"}),
	}

	m.registry.MustRegister(
		m.skips, m.commands, m.snapshots, m.reconnects, m.reloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if blocklist != nil {
		m.registry.MustRegister(newBlocklistCollector(blocklist))
	}
	return m
}

// Skip records the result of a skip request.
func (m *Metrics) Skip(result string) {
	if m == nil {
		return
	}
	m.skips.WithLabelValues(result).Inc()
}

// Command records a received command.
func (m *Metrics) Command(name string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name).Inc()
}

// Snapshot records an observed player transition.
func (m *Metrics) Snapshot() {
	if m == nil {
		return
	}
	m.snapshots.Inc()
}

// Reconnect records a session bus reconnection.
func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// Reload records a blocklist reload.
func (m *Metrics) Reload(source string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reloads.WithLabelValues(source, result).Inc()
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("metrics endpoint listening: addr=%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, "metrics server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shutdown metrics server")
	}
	return nil
}

// blocklistCollector reports the blocklist size at scrape time.
type blocklistCollector struct {
	blocklist BlocklistReader
	desc      *prometheus.Desc
}

func newBlocklistCollector(blocklist BlocklistReader) *blocklistCollector {
	return &blocklistCollector{
		blocklist: blocklist,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "blocklist_entries"),
			"Blocked tracks, by source.",
			[]string{"source"}, nil),
	}
}

func (c *blocklistCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *blocklistCollector) Collect(ch chan<- prometheus.Metric) {
	for _, name := range c.blocklist.Sources() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(c.blocklist.SourceLen(name)), name)
	}
}
