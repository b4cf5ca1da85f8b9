// Package metrics registers the service collectors:
//
//	marketgraph_store_operations_total{op,status}
//	marketgraph_notifications_delivered_total{channel}
//	marketgraph_channel_pause_depth{channel}
//	marketgraph_feeds_built_total{resolution}
//	marketgraph_realtime_updates_total{provider,resolution}
//
// plus the go_* and process_* collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketgraph"

// Metrics owns a private registry; all methods are safe on a nil receiver.
type Metrics struct {
	registry        *prometheus.Registry
	storeOps        *prometheus.CounterVec
	delivered       *prometheus.CounterVec
	pauseDepth      *prometheus.GaugeVec
	feedsBuilt      *prometheus.CounterVec
	realtimeUpdates *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Persistence bridge operations by outcome",
		}, []string{"op", "status"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_delivered_total",
			Help:      "Change notifications delivered to observers",
		}, []string{"channel"}),
		pauseDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_pause_depth",
			Help:      "Current pause depth of a notification channel",
		}, []string{"channel"}),
		feedsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feeds_built_total",
			Help:      "Time-series feeds built from storage",
		}, []string{"resolution"}),
		realtimeUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_updates_total",
			Help:      "Real-time price rows accepted from providers",
		}, []string{"provider", "resolution"}),
	}
	m.registry.MustRegister(
		m.storeOps,
		m.delivered,
		m.pauseDepth,
		m.feedsBuilt,
		m.realtimeUpdates,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) StoreOperation(operation string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.storeOps.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) NotificationsDelivered(channel string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.delivered.WithLabelValues(channel).Add(float64(n))
}

func (m *Metrics) PauseDepth(channel string, depth int32) {
	if m == nil {
		return
	}
	m.pauseDepth.WithLabelValues(channel).Set(float64(depth))
}

func (m *Metrics) FeedBuilt(resolution string) {
	if m == nil {
		return
	}
	m.feedsBuilt.WithLabelValues(resolution).Inc()
}

func (m *Metrics) RealTimeUpdate(provider, resolution string, rows int) {
	if m == nil || rows <= 0 {
		return
	}
	m.realtimeUpdates.WithLabelValues(provider, resolution).Add(float64(rows))
}
