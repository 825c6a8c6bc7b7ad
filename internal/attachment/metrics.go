package attachment

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal — операции над слотами по исходу.
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ag_attachment_operations_total",
			Help: "Количество операций над слотами вложений по типу и исходу",
		},
		[]string{"operation", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ag_attachment_operation_duration_seconds",
			Help:    "Длительность операций над слотами вложений в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// busyRejectionsTotal — операции, отклонённые из-за занятого слота.
	busyRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ag_attachment_busy_rejections_total",
		Help: "Количество операций, отклонённых из-за занятого слота",
	})
)

func observeOperation(operation, outcome string, start time.Time) {
	operationsTotal.WithLabelValues(operation, outcome).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
