// Package metrics provides Prometheus metrics for rawudp.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "rawudp"
)

// Metrics contains all Prometheus metrics for a transport and the loops
// driving it. It satisfies transport.Recorder.
type Metrics struct {
	// Datagram metrics
	DatagramsSent     prometheus.Counter
	DatagramsReceived prometheus.Counter
	DatagramsFiltered prometheus.Counter
	BytesSent         prometheus.Counter
	BytesReceived     prometheus.Counter
	DatagramSize      *prometheus.HistogramVec

	// Error metrics
	Errors *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DatagramsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_sent_total",
			Help:      "Total UDP datagrams handed to the raw socket",
		}),
		DatagramsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_received_total",
			Help:      "Total UDP datagrams decoded from the raw socket",
		}),
		DatagramsFiltered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_filtered_total",
			Help:      "Total received datagrams dropped because they were addressed to another port",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total UDP bytes sent, header included",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total UDP bytes received, header included",
		}),
		DatagramSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "datagram_size_bytes",
			Help:      "UDP datagram size distribution",
			Buckets:   prometheus.ExponentialBuckets(8, 4, 8), // 8B to 128KiB
		}, []string{"direction"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total transport errors by operation and kind",
		}, []string{"op", "kind"}),
	}
}

// RecordSend records a datagram sent.
func (m *Metrics) RecordSend(bytes int) {
	m.DatagramsSent.Inc()
	m.BytesSent.Add(float64(bytes))
	m.DatagramSize.WithLabelValues("send").Observe(float64(bytes))
}

// RecordReceive records a datagram received.
func (m *Metrics) RecordReceive(bytes int) {
	m.DatagramsReceived.Inc()
	m.BytesReceived.Add(float64(bytes))
	m.DatagramSize.WithLabelValues("receive").Observe(float64(bytes))
}

// RecordError records a failed send or receive.
func (m *Metrics) RecordError(op, kind string) {
	m.Errors.WithLabelValues(op, kind).Inc()
}

// RecordFiltered records a datagram dropped by the port filter.
func (m *Metrics) RecordFiltered() {
	m.DatagramsFiltered.Inc()
}
