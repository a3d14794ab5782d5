package observer

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rfid_tag_logger"

var (
	metricsEnabled = true

	// --- Ingestion ---
	TagEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_events_total",
			Help:      "Tag scans handled by the ingestion pipeline, labeled by result (created, throttled, error).",
		},
		[]string{"result"},
	)
	StoreBusyRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_busy_retries_total",
			Help:      "Insert attempts repeated because the store reported write contention.",
		},
	)

	// --- Delivery ---
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook delivery attempts, labeled by outcome and whether a retry was queued.",
		},
		[]string{"outcome", "retry", "status_class"},
	)
	WebhookDeliveryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_delivery_duration_seconds",
			Help:      "Duration of outbound webhook HTTP calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"method", "outcome"},
	)

	// --- Retry sweep ---
	RetrySweepItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_sweep_items_total",
			Help:      "Retry queue items processed by the sweep, labeled by result (delivered, rescheduled, abandoned, error).",
		},
		[]string{"result"},
	)
	RetrySweepDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retry_sweep_duration_seconds",
			Help:      "Duration of a full retry sweep.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	RetrySweepErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_sweep_errors_total",
			Help:      "Sweeps that failed before processing items (e.g. the due-item select).",
		},
	)

	// --- Fan-out ---
	FanoutTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_triggers_total",
			Help:      "Fan-out triggers for new events, labeled by mode and result.",
		},
		[]string{"mode", "result"},
	)
	FanoutMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_messages_total",
			Help:      "Fan-out messages consumed from JetStream, labeled by action taken (ack, nak, term).",
		},
		[]string{"action"},
	)

	// --- Storage / HTTP ---
	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_operation_duration_seconds",
			Help:      "Duration of database operations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"operation", "entity", "status"},
	)
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of API requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// InitMetrics toggles metric collection. Collectors are registered by
// promauto regardless; disabling only stops updates.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// Enabled reports whether metric updates are recorded.
func Enabled() bool {
	return metricsEnabled
}

// IncTagEvent counts one ingestion outcome.
func IncTagEvent(result string) {
	if !metricsEnabled {
		return
	}
	TagEventsTotal.WithLabelValues(result).Inc()
}

// IncStoreBusyRetry counts one repeated insert.
func IncStoreBusyRetry() {
	if !metricsEnabled {
		return
	}
	StoreBusyRetriesTotal.Inc()
}

// ObserveWebhookDelivery records a delivery attempt.
func ObserveWebhookDelivery(method string, status int, success, retryQueued bool, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	retry := "none"
	if retryQueued {
		retry = "queued"
	}
	WebhookDeliveriesTotal.WithLabelValues(outcome, retry, StatusClass(status)).Inc()
	WebhookDeliveryDurationSeconds.WithLabelValues(method, outcome).Observe(duration.Seconds())
}

// IncRetrySweepItem counts one processed queue item.
func IncRetrySweepItem(result string) {
	if !metricsEnabled {
		return
	}
	RetrySweepItemsTotal.WithLabelValues(result).Inc()
}

// ObserveRetrySweep records the duration of a sweep, counting it as failed
// when err is non-nil.
func ObserveRetrySweep(duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	RetrySweepDurationSeconds.Observe(duration.Seconds())
	if err != nil {
		RetrySweepErrorsTotal.Inc()
	}
}

// IncFanoutTrigger counts a fan-out trigger.
func IncFanoutTrigger(mode string, err error) {
	if !metricsEnabled {
		return
	}
	FanoutTriggersTotal.WithLabelValues(mode, resultLabel(err)).Inc()
}

// IncFanoutMessage counts a consumed fan-out message by the action taken.
func IncFanoutMessage(action string) {
	if !metricsEnabled {
		return
	}
	FanoutMessagesTotal.WithLabelValues(action).Inc()
}

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, resultLabel(err)).Observe(duration.Seconds())
}

// ObserveHTTPRequest records an API request.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestDurationSeconds.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// StatusClass buckets an HTTP status into "2xx".."5xx", or "none" for 0.
func StatusClass(status int) string {
	if status <= 0 {
		return "none"
	}
	return strconv.Itoa(status/100) + "xx"
}

// SanitizeErrorType maps an error string onto a small set of categories.
func SanitizeErrorType(errStr string) string {
	if errStr == "" || errStr == "none" {
		return "none"
	}
	errStr = strings.ToLower(errStr)
	switch {
	case strings.Contains(errStr, "store busy"), strings.Contains(errStr, "lock"):
		return "contention"
	case strings.Contains(errStr, "database"), strings.Contains(errStr, "sql"), strings.Contains(errStr, "constraint"):
		return "database"
	case strings.Contains(errStr, "validation failed"), strings.Contains(errStr, "bad request"), strings.Contains(errStr, "invalid"):
		return "validation"
	case strings.Contains(errStr, "not found"):
		return "not_found"
	case strings.Contains(errStr, "nats"), strings.Contains(errStr, "jetstream"):
		return "nats"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "unmarshal"), strings.Contains(errStr, "json"):
		return "unmarshal"
	case strings.Contains(errStr, "panic"):
		return "panic"
	default:
		return "unknown"
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
