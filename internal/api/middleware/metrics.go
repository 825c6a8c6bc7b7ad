// metrics.go — Prometheus HTTP метрики Admin Gateway.
// Регистрирует метрики: ag_http_requests_total, ag_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ag_http_requests_total",
			Help: "Общее количество HTTP-запросов к Admin Gateway",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ag_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Admin Gateway в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			status := strconv.Itoa(wrapped.statusCode)
			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(time.Since(start).Seconds())
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет id формы, id файла, имя ресурса и id записи на плейсхолдеры
// для предотвращения взрывного роста кардинальности метрик.
// /api/v1/forms/{uuid}/fields/image/files/abc → /api/v1/forms/{form_id}/fields/{field}/files/{ref_id}
func normalizePath(path string) string {
	const (
		formsPrefix     = "/api/v1/forms/"
		resourcesPrefix = "/api/v1/resources/"
	)
	if strings.HasPrefix(path, resourcesPrefix) {
		// {resource}/records[/{record_id}]
		parts := strings.Split(strings.TrimPrefix(path, resourcesPrefix), "/")
		parts[0] = "{resource}"
		if len(parts) >= 3 && parts[1] == "records" {
			parts[2] = "{record_id}"
		}
		return resourcesPrefix + strings.Join(parts, "/")
	}
	if !strings.HasPrefix(path, formsPrefix) {
		return path
	}

	parts := strings.Split(strings.TrimPrefix(path, formsPrefix), "/")
	if _, err := uuid.Parse(parts[0]); err != nil {
		return formsPrefix + "{unknown}"
	}
	parts[0] = "{form_id}"

	// fields/{field}/files[/{ref_id}]
	if len(parts) >= 3 && parts[1] == "fields" {
		parts[2] = "{field}"
		if len(parts) >= 5 && parts[3] == "files" {
			parts[4] = "{ref_id}"
		}
	}
	return formsPrefix + strings.Join(parts, "/")
}
