package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

var (
	registerOnce sync.Once

	protocolBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "covertfs",
			Subsystem: "protocol",
			Name:      "batches_total",
			Help:      "Batches acknowledged on a virtual channel.",
		},
		[]string{"direction"},
	)
	protocolBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "covertfs",
			Subsystem: "protocol",
			Name:      "bytes_total",
			Help:      "Payload bytes carried by acknowledged batches.",
		},
		[]string{"direction"},
	)
	protocolResends = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "covertfs",
			Subsystem: "protocol",
			Name:      "resends_total",
			Help:      "Batches resent after a NACK.",
		},
	)
	protocolChecksumFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "covertfs",
			Subsystem: "protocol",
			Name:      "checksum_failures_total",
			Help:      "Received batches rejected by checksum verification.",
		},
	)
	protocolRepartitions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "covertfs",
			Subsystem: "protocol",
			Name:      "repartitions_total",
			Help:      "Virtual channel recomputations caused by session count changes.",
		},
	)
	encodingMineIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "covertfs",
			Subsystem: "encoding",
			Name:      "mine_iterations",
			Help:      "Padding iterations needed to reach a derived byte.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "covertfs",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total status HTTP requests.",
		},
		[]string{"service", "method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "covertfs",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "route", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			protocolBatches,
			protocolBytes,
			protocolResends,
			protocolChecksumFailures,
			protocolRepartitions,
			encodingMineIterations,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordBatch(direction string, payloadBytes int) {
	RegisterMetrics()
	protocolBatches.WithLabelValues(direction).Inc()
	protocolBytes.WithLabelValues(direction).Add(float64(payloadBytes))
}

func RecordResend() {
	RegisterMetrics()
	protocolResends.Inc()
}

func RecordChecksumFailure() {
	RegisterMetrics()
	protocolChecksumFailures.Inc()
}

func RecordRepartition() {
	RegisterMetrics()
	protocolRepartitions.Inc()
}

func RecordMine(iterations int) {
	RegisterMetrics()
	encodingMineIterations.Observe(float64(iterations))
}

func RecordHTTPRequest(service, method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	code := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, route, code).Inc()
	httpDuration.WithLabelValues(service, method, route, code).Observe(duration.Seconds())
}
