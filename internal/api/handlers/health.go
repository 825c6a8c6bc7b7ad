// health.go — обработчики health endpoints Admin Gateway.
// /health/live — проверка живости (процесс жив)
// /health/ready — проверка готовности (хранилище, API ресурсов, PostgreSQL журнала)
// /metrics — Prometheus метрики
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Saidqodirxon/innocare-admin/internal/config"
)

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status, message string)
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	storageChecker ReadinessChecker
	backendChecker ReadinessChecker
	pgChecker      ReadinessChecker
	promHandler    http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// storageChecker — проверка хранилища (nil — readiness вернёт "fail"),
// backendChecker — проверка API ресурсов (nil — проверка не выполняется),
// pgChecker — проверка PostgreSQL журнала (nil — журнал не настроен).
func NewHealthHandler(storageChecker, backendChecker, pgChecker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		storageChecker: storageChecker,
		backendChecker: backendChecker,
		pgChecker:      pgChecker,
		promHandler:    promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ проверка живости.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ проверка готовности.
type healthReadyResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Version   string                       `json:"version"`
	Service   string                       `json:"service"`
	Checks    map[string]healthCheckResult `json:"checks"`
}

const serviceName = "admin-gateway"

// HealthLive — проверка живости. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady — проверка готовности.
// Возвращает 200 (ok/degraded) или 503 (fail).
// Недоступность PostgreSQL понижает статус до degraded: журнал
// загрузок не участвует в работе форм.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
		Checks:    make(map[string]healthCheckResult, 3),
	}

	statuses := make([]string, 0, 3)

	if h.storageChecker != nil {
		st, msg := h.storageChecker.CheckReady()
		resp.Checks["storage"] = healthCheckResult{Status: st, Message: msg}
	} else {
		resp.Checks["storage"] = healthCheckResult{Status: statusFail, Message: "не инициализирован"}
	}
	statuses = append(statuses, resp.Checks["storage"].Status)

	if h.backendChecker != nil {
		st, msg := h.backendChecker.CheckReady()
		resp.Checks["backend"] = healthCheckResult{Status: st, Message: msg}
		statuses = append(statuses, st)
	}

	if h.pgChecker != nil {
		st, msg := h.pgChecker.CheckReady()
		resp.Checks["postgresql"] = healthCheckResult{Status: st, Message: msg}
		if st == statusFail {
			st = statusDegraded
		}
		statuses = append(statuses, st)
	}

	resp.Status = overallStatus(statuses...)

	status := http.StatusOK
	if resp.Status == statusFail {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// Константы статусов health check.
const (
	statusFail     = "fail"
	statusDegraded = "degraded"
)

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
// Иначе — ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == statusFail {
			return statusFail
		}
		if s == statusDegraded {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return statusDegraded
	}
	return "ok"
}
