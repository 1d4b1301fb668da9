package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	if m == nil {
		t.Fatal("NewMetricsWithRegistry returned nil")
	}
	if m.DatagramsSent == nil {
		t.Error("DatagramsSent metric is nil")
	}
	if m.Errors == nil {
		t.Error("Errors metric is nil")
	}
}

func TestRecordSend(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordSend(12)
	m.RecordSend(20)

	if got := testutil.ToFloat64(m.DatagramsSent); got != 2 {
		t.Errorf("DatagramsSent = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BytesSent); got != 32 {
		t.Errorf("BytesSent = %v, want 32", got)
	}
	if got := testutil.CollectAndCount(m.DatagramSize); got != 1 {
		t.Errorf("DatagramSize series = %d, want 1", got)
	}
}

func TestRecordReceive(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordReceive(100)

	if got := testutil.ToFloat64(m.DatagramsReceived); got != 1 {
		t.Errorf("DatagramsReceived = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BytesReceived); got != 100 {
		t.Errorf("BytesReceived = %v, want 100", got)
	}
	if got := testutil.ToFloat64(m.DatagramsSent); got != 0 {
		t.Errorf("DatagramsSent = %v, want 0", got)
	}
}

func TestRecordError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordError("send", "payload_too_large")
	m.RecordError("receive", "truncated")
	m.RecordError("receive", "truncated")

	if got := testutil.ToFloat64(m.Errors.WithLabelValues("receive", "truncated")); got != 2 {
		t.Errorf("Errors{receive,truncated} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Errors.WithLabelValues("send", "payload_too_large")); got != 1 {
		t.Errorf("Errors{send,payload_too_large} = %v, want 1", got)
	}
}

func TestRecordFiltered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordFiltered()

	if got := testutil.ToFloat64(m.DatagramsFiltered); got != 1 {
		t.Errorf("DatagramsFiltered = %v, want 1", got)
	}
}

func TestMetricNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)
	m.RecordSend(8)

	expected := `
# HELP rawudp_datagrams_sent_total Total UDP datagrams handed to the raw socket
# TYPE rawudp_datagrams_sent_total counter
rawudp_datagrams_sent_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "rawudp_datagrams_sent_total"); err != nil {
		t.Errorf("GatherAndCompare() error = %v", err)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetricsWithRegistry(reg)

	defer func() {
		if recover() == nil {
			t.Error("registering twice on one registry should panic")
		}
	}()
	NewMetricsWithRegistry(reg)
}
