package metric

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all node-level metrics (packet counts, queue depth,
// handler/dispatch latency). Namespace "processornode" is shared across
// subsystems so dashboards can group by node regardless of which component
// emitted the sample.
type Metrics struct {
	PacketsReceived  *prometheus.CounterVec
	PacketsSent      *prometheus.CounterVec
	PacketsDropped   *prometheus.CounterVec
	QueueDepth       *prometheus.GaugeVec
	QueueHighWater   *prometheus.GaugeVec
	ResendsTotal     prometheus.Counter
	AcksReceived     prometheus.Counter
	HandlerDuration  *prometheus.HistogramVec
	BadDatagramTotal prometheus.Counter

	highWaterMu sync.Mutex
	highWater   map[string]int
}

// NewMetrics creates a new Metrics instance with all node-level metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		highWater: make(map[string]int),
		PacketsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "processornode",
				Subsystem: "reader",
				Name:      "packets_received_total",
				Help:      "Total number of packets decoded from the socket.",
			},
			[]string{"reader"},
		),
		PacketsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "processornode",
				Subsystem: "writer",
				Name:      "packets_sent_total",
				Help:      "Total number of packets written to the socket.",
			},
			[]string{"writer", "kind"},
		),
		PacketsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "processornode",
				Subsystem: "node",
				Name:      "packets_dropped_total",
				Help:      "Total number of packets dropped (bad datagram, no writer, etc).",
			},
			[]string{"reason"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "processornode",
				Subsystem: "node",
				Name:      "queue_depth",
				Help:      "Current number of packets in a named queue.",
			},
			[]string{"queue"},
		),
		QueueHighWater: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "processornode",
				Subsystem: "node",
				Name:      "queue_high_water",
				Help:      "Largest observed depth of a named queue.",
			},
			[]string{"queue"},
		),
		ResendsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "processornode",
				Subsystem: "writer",
				Name:      "resends_total",
				Help:      "Total number of resend cycles triggered by the resend timer.",
			},
		),
		AcksReceived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "processornode",
				Subsystem: "writer",
				Name:      "acks_received_total",
				Help:      "Total number of Ack packets that removed a sentUnacked entry.",
			},
		),
		HandlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "processornode",
				Subsystem: "handler",
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent running the handler chain for one packet.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"node"},
		),
		BadDatagramTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "processornode",
				Subsystem: "reader",
				Name:      "bad_datagrams_total",
				Help:      "Total number of datagrams that failed to decode as a Packet.",
			},
		),
	}
}

// RecordPacketReceived increments the received-packet counter for a reader.
func (m *Metrics) RecordPacketReceived(reader string) {
	m.PacketsReceived.WithLabelValues(reader).Inc()
}

// RecordPacketSent increments the sent-packet counter for a writer and kind.
func (m *Metrics) RecordPacketSent(writer, kind string) {
	m.PacketsSent.WithLabelValues(writer, kind).Inc()
}

// RecordPacketDropped increments the dropped-packet counter for a reason.
func (m *Metrics) RecordPacketDropped(reason string) {
	m.PacketsDropped.WithLabelValues(reason).Inc()
}

// UpdateQueueDepth records the current depth of a named queue, tracking the
// high-water mark the way ProcessorNode.cpp's updatePackageCountInQueue does.
func (m *Metrics) UpdateQueueDepth(queue string, depth int) {
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))

	m.highWaterMu.Lock()
	if depth > m.highWater[queue] {
		m.highWater[queue] = depth
		m.QueueHighWater.WithLabelValues(queue).Set(float64(depth))
	}
	m.highWaterMu.Unlock()
}

// RecordResend increments the resend-cycle counter.
func (m *Metrics) RecordResend() {
	m.ResendsTotal.Inc()
}

// RecordAckReceived increments the ack-received counter.
func (m *Metrics) RecordAckReceived() {
	m.AcksReceived.Inc()
}

// RecordHandlerDuration records how long the handler chain took for one packet.
func (m *Metrics) RecordHandlerDuration(node string, d time.Duration) {
	m.HandlerDuration.WithLabelValues(node).Observe(d.Seconds())
}

// RecordBadDatagram increments the bad-datagram counter.
func (m *Metrics) RecordBadDatagram() {
	m.BadDatagramTotal.Inc()
}
