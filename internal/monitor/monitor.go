package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "ctchen222/tictactoe-rooms/monitor"

// Metrics exposes hub and room counters to Prometheus and mirrors the
// command counters to the global OpenTelemetry meter.
type Metrics struct {
	OnlineConnections prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	MessagesReceived  *prometheus.CounterVec
	CommandLatency    *prometheus.HistogramVec
	CommandsRejected  *prometheus.CounterVec
	GamesFinished     *prometheus.CounterVec
	RoomFaults        prometheus.Counter

	gatherer      prometheus.Gatherer
	otelCommands  metric.Int64Counter
	otelLatencyMs metric.Float64Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// means a fresh private registry.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		OnlineConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_connections",
			Help:      "Number of connected clients, bots included",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of live room actors",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Client frames received, by message type",
		}, []string{"type"}),
		CommandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_latency_seconds",
			Help:      "Time a room actor spent processing one command",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}, []string{"op"}),
		CommandsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_rejected_total",
			Help:      "Commands a room actor refused, by op",
		}, []string{"op"}),
		GamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Finished games, by outcome",
		}, []string{"outcome"}),
		RoomFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_faults_total",
			Help:      "Room actors that terminated with a fault",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.OnlineConnections,
		m.ActiveRooms,
		m.MessagesReceived,
		m.CommandLatency,
		m.CommandsRejected,
		m.GamesFinished,
		m.RoomFaults,
	)

	meter := otel.Meter(instrumentationName)
	// The global meter never fails to create instruments; errors only come
	// from invalid names.
	m.otelCommands, _ = meter.Int64Counter("room.commands", metric.WithDescription("Commands processed by room actors"))
	m.otelLatencyMs, _ = meter.Float64Histogram("room.command.duration", metric.WithUnit("ms"))

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) IncOnlineConnections() {
	m.OnlineConnections.Inc()
}

func (m *Metrics) DecOnlineConnections() {
	m.OnlineConnections.Dec()
}

func (m *Metrics) SetActiveRooms(count int) {
	m.ActiveRooms.Set(float64(count))
}

func (m *Metrics) IncMessagesReceived(msgType string) {
	m.MessagesReceived.WithLabelValues(msgType).Inc()
}

// ObserveCommand records one processed command. Safe for concurrent use by
// room actors.
func (m *Metrics) ObserveCommand(op string, elapsed time.Duration, rejected bool) {
	m.CommandLatency.WithLabelValues(op).Observe(elapsed.Seconds())
	if rejected {
		m.CommandsRejected.WithLabelValues(op).Inc()
	}

	attrs := metric.WithAttributes(attribute.String("op", op), attribute.Bool("rejected", rejected))
	m.otelCommands.Add(context.Background(), 1, attrs)
	m.otelLatencyMs.Record(context.Background(), float64(elapsed.Microseconds())/1000, attrs)
}

func (m *Metrics) IncGamesFinished(outcome string) {
	m.GamesFinished.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRoomFaults() {
	m.RoomFaults.Inc()
}
