package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transport metrics
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_messages_received_total",
			Help: "Total number of envelopes received from the host",
		},
		[]string{"type"},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_messages_sent_total",
			Help: "Total number of envelopes written to the host",
		},
		[]string{"type"},
	)

	ParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skywatch_parse_errors_total",
			Help: "Total number of inbound lines that failed to parse",
		},
	)

	HandlerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_handler_errors_total",
			Help: "Total number of handler failures caught at dispatch",
		},
		[]string{"type"},
	)

	UnknownMessageTypes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skywatch_unknown_message_types_total",
			Help: "Total number of envelopes with no registered handler",
		},
	)

	HandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skywatch_handler_duration_seconds",
			Help:    "Handler latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"type"},
	)

	// Monitoring metrics
	ReadingsCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_readings_collected_total",
			Help: "Total number of weather readings collected",
		},
		[]string{"source"}, // source: live, simulated
	)

	MonitorCycleErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skywatch_monitor_cycle_errors_total",
			Help: "Total number of monitoring cycles that failed unexpectedly",
		},
	)

	HistorySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skywatch_history_size",
			Help: "Current number of readings held in the history buffer",
		},
	)

	// Alert metrics
	AlertsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_alerts_fired_total",
			Help: "Total number of local alerts fired",
		},
		[]string{"category", "severity"},
	)

	ActiveAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skywatch_active_alerts",
			Help: "Current number of unexpired local alerts",
		},
	)

	AdvisoriesMirrored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skywatch_advisories_mirrored_total",
			Help: "Total number of new upstream advisories broadcast",
		},
	)

	// NOAA client metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_provider_requests_total",
			Help: "Total number of NOAA API requests",
		},
		[]string{"status"}, // status: success, absent, failed, throttled
	)

	// Kafka mirror metrics
	MirrorPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_mirror_published_total",
			Help: "Total number of broadcast envelopes mirrored to Kafka",
		},
		[]string{"status"}, // status: success, failed, dropped
	)

	MirrorPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skywatch_mirror_publish_retries_total",
			Help: "Total number of Kafka mirror publish retries",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
