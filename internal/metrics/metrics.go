// Package metrics exposes Prometheus counters for the bridge.
package metrics

import (
	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "wake_from_mqtt"

// Recorder holds the bridge counters on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	messagesReceived *prometheus.CounterVec
	messagesHandled  *prometheus.CounterVec
	packetsSent      *prometheus.CounterVec
}

// NewRecorder creates a recorder with Go and process collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		messagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_received_total",
				Help:      "Number of messages received from the pub/sub transport",
			},
			[]string{"transport"},
		),
		messagesHandled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_handled_total",
				Help:      "Number of messages handled, by outcome",
			},
			[]string{"outcome"},
		),
		packetsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "packets_sent_total",
				Help:      "Number of Wake-on-LAN packets sent, by delivery mode",
			},
			[]string{"mode"},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.messagesReceived,
		r.messagesHandled,
		r.packetsSent,
	)

	return r
}

// Registry returns the registry the counters are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// MessageReceived counts an inbound message.
func (r *Recorder) MessageReceived(transport string) {
	r.messagesReceived.WithLabelValues(transport).Inc()
}

// MessageHandled counts a message outcome.
func (r *Recorder) MessageHandled(outcome models.Outcome) {
	r.messagesHandled.WithLabelValues(string(outcome)).Inc()
}

// PacketSent counts a sent magic packet.
func (r *Recorder) PacketSent(mode string) {
	r.packetsSent.WithLabelValues(mode).Inc()
}
