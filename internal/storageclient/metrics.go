package storageclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storageRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ag_storage_requests_total",
			Help: "Количество запросов к хранилищу файлов",
		},
		[]string{"operation", "status"},
	)

	storageRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ag_storage_request_duration_seconds",
			Help:    "Длительность запросов к хранилищу файлов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// observeRequest фиксирует исход запроса: status — HTTP-код или "error".
func observeRequest(operation, status string, start time.Time) {
	storageRequestsTotal.WithLabelValues(operation, status).Inc()
	storageRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
