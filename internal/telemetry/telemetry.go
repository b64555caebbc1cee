// Package telemetry defines the prometheus collectors exported by trainwatch.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StreamMessages counts decoded metric frames.
	StreamMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trainwatch_stream_messages_total",
			Help: "Total number of metric frames received on the stream",
		},
	)

	// StreamMalformed counts frames dropped because they could not be parsed.
	StreamMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trainwatch_stream_malformed_total",
			Help: "Total number of stream frames dropped as malformed",
		},
	)

	// StreamBusinessErrors counts terminal error frames sent by the server.
	StreamBusinessErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trainwatch_stream_business_errors_total",
			Help: "Total number of error payloads received on the stream",
		},
	)

	// StreamRetries counts scheduled reconnect attempts.
	StreamRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trainwatch_stream_retries_total",
			Help: "Total number of reconnect attempts scheduled",
		},
	)

	// StreamConnections counts transports opened.
	StreamConnections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trainwatch_stream_connections_total",
			Help: "Total number of stream transports opened",
		},
	)

	// StreamState is the numeric connection state (0 idle .. 4 failed).
	StreamState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trainwatch_stream_state",
			Help: "Current stream connection state (0=idle 1=connecting 2=live 3=reconnecting 4=failed)",
		},
	)

	// Notifications counts user-facing notifications by level.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainwatch_notifications_total",
			Help: "Total number of user-facing notifications emitted",
		},
		[]string{"level"},
	)

	// ServerSubscribers is the number of open subscribe streams on the mock service.
	ServerSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trainwatch_server_subscribers",
			Help: "Number of clients subscribed to the metric stream",
		},
	)

	// ServerFrames counts frames written to subscribers.
	ServerFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trainwatch_server_frames_total",
			Help: "Total number of frames written to subscribers",
		},
	)

	// ServerTrainings counts training sessions started on the mock service.
	ServerTrainings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trainwatch_server_trainings_total",
			Help: "Total number of training sessions started",
		},
	)
)

// Handler serves the default registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
