// Package observability holds the server's Prometheus metrics and the
// localhost debug server.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ionic"

// Metrics with bounded cardinality: labels are packet names, system names,
// error kinds and close causes, never player or connection ids.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "tick",
		Name:      "duration_seconds",
		Help:      "Time spent in one simulation tick.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	tickOverruns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tick",
		Name:      "overruns_total",
		Help:      "Ticks that took longer than the tick interval.",
	})

	systemFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tick",
		Name:      "system_failures_total",
		Help:      "Systems that panicked or returned an error.",
	}, []string{"system"})

	connectionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "net",
		Name:      "connections",
		Help:      "Open connections by protocol state.",
	}, []string{"state"})

	connectionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "net",
		Name:      "connections_closed_total",
		Help:      "Closed connections by cause.",
	}, []string{"cause"})

	packetsIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "net",
		Name:      "packets_received_total",
		Help:      "Decoded inbound packets.",
	}, []string{"packet"})

	protocolErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "net",
		Name:      "protocol_errors_total",
		Help:      "Protocol errors by kind.",
	}, []string{"kind"})

	handlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "handler_errors_total",
		Help:      "Handlers that panicked or returned an error.",
	}, []string{"packet"})

	broadcastsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "broadcast",
		Name:      "messages_total",
		Help:      "Broadcast messages processed.",
	})

	broadcastRecipients = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "broadcast",
		Name:      "deliveries_total",
		Help:      "Broadcast message deliveries to connections.",
	})

	playerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "world",
		Name:      "players",
		Help:      "Players in the world.",
	})

	entityCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "world",
		Name:      "entities",
		Help:      "Live entities in the world.",
	})

	commandsRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "command",
		Name:      "executed_total",
		Help:      "Commands executed by result.",
	}, []string{"result"})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connection_rejected_total",
		Help:      "Connections refused before admission, by reason.",
	}, []string{"reason"})

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "admin",
		Name:      "http_request_duration_seconds",
		Help:      "Admin HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "admin",
		Name:      "http_requests_total",
		Help:      "Admin HTTP requests.",
	}, []string{"method", "endpoint", "status"})

	consoleClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "admin",
		Name:      "console_clients",
		Help:      "Connected console websocket clients.",
	})
)

func RecordTick(d, interval time.Duration) {
	tickDuration.Observe(d.Seconds())
	if d > interval {
		tickOverruns.Inc()
	}
}

func RecordSystemFailure(system string) {
	systemFailures.WithLabelValues(system).Inc()
}

// SetConnections sets the open connection gauge for a state.
func SetConnections(state string, n int) {
	connectionsActive.WithLabelValues(state).Set(float64(n))
}

// RecordConnectionClosed counts a close. cause must be a bounded value such
// as "timeout", "protocol", "eof" or "kicked".
func RecordConnectionClosed(cause string) {
	connectionsClosed.WithLabelValues(cause).Inc()
}

func RecordPacket(name string) {
	packetsIn.WithLabelValues(name).Inc()
}

func RecordProtocolError(kind string) {
	protocolErrors.WithLabelValues(kind).Inc()
}

func RecordHandlerError(packet string) {
	handlerErrors.WithLabelValues(packet).Inc()
}

// RecordBroadcast counts one processed message and its deliveries.
func RecordBroadcast(recipients int) {
	broadcastsSent.Inc()
	broadcastRecipients.Add(float64(recipients))
}

// UpdateWorld sets the player and entity gauges.
func UpdateWorld(players, entities int) {
	playerCount.Set(float64(players))
	entityCount.Set(float64(entities))
}

// RecordCommand counts a command by result: "ok", "unknown" or "error".
func RecordCommand(result string) {
	commandsRun.WithLabelValues(result).Inc()
}

// RecordConnectionRejected counts refused connections. Admin reasons are
// "rate_limit", "auth", "origin", "ws_limit" and "ws_total_limit"; logins
// use "version", "username", "full" and "duplicate".
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records admin HTTP request metrics.
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

func UpdateConsoleClients(n int) {
	consoleClients.Set(float64(n))
}
