package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики - количество запросов
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	httpErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Общее количество HTTP ошибок",
		},
		[]string{"method", "endpoint", "status"},
	)

	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Количество активных WebSocket соединений",
		},
	)

	signalingMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signaling_messages_total",
			Help: "Количество входящих сигнальных сообщений по типу",
		},
		[]string{"type"},
	)

	relayDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_dropped_total",
			Help: "Сообщения, которые не удалось доставить получателю",
		},
		[]string{"reason"},
	)

	roomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rooms_active",
			Help: "Количество непустых комнат",
		},
	)

	membershipEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "membership_events_dropped_total",
			Help: "События состава комнат, не попавшие в очередь журнала",
		},
	)
)

// Причины потери сообщений
const (
	DropStaleTarget  = "stale_target"
	DropBackpressure = "backpressure"
	DropNotMember    = "not_member"
)

// RecordHTTPMetrics записывает метрики HTTP запроса
func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())

	if status >= 400 {
		httpErrorsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	}
}

func IncrementWSActiveConnections() {
	wsActiveConnections.Inc()
}

func DecrementWSActiveConnections() {
	wsActiveConnections.Dec()
}

func IncSignalingMessage(msgType string) {
	signalingMessagesTotal.WithLabelValues(msgType).Inc()
}

func IncRelayDropped(reason string) {
	relayDroppedTotal.WithLabelValues(reason).Inc()
}

func SetRoomsActive(count int) {
	roomsActive.Set(float64(count))
}

func IncMembershipEventsDropped() {
	membershipEventsDropped.Inc()
}
