// handler.go — основной обработчик API, реализующий routes.ServerInterface.
// Объединяет health, формы, списки записей, уведомления и журнал загрузок.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/Saidqodirxon/innocare-admin/internal/api/errors"
	"github.com/Saidqodirxon/innocare-admin/internal/api/routes"
	"github.com/Saidqodirxon/innocare-admin/internal/notify"
	"github.com/Saidqodirxon/innocare-admin/internal/service"
)

// APIHandler — основной обработчик API Admin Gateway.
// Реализует routes.ServerInterface, делегируя запросы в сервисный слой.
type APIHandler struct {
	health    *HealthHandler
	forms     *service.FormService
	records   *service.RecordService
	journal   *service.JournalService
	hub       *notify.Hub
	maxUpload int64
	logger    *slog.Logger
}

// Проверка соответствия интерфейсу routes.ServerInterface.
var _ routes.ServerInterface = (*APIHandler)(nil)

// NewAPIHandler создаёт основной обработчик API.
// maxUpload — лимит размера multipart-тела загрузки в байтах.
func NewAPIHandler(
	health *HealthHandler,
	forms *service.FormService,
	records *service.RecordService,
	journal *service.JournalService,
	hub *notify.Hub,
	maxUpload int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:    health,
		forms:     forms,
		records:   records,
		journal:   journal,
		hub:       hub,
		maxUpload: maxUpload,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — проверка живости.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — проверка готовности.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// ParamErrorHandler — ответ на ошибку разбора path/query параметров.
func ParamErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	var paramErr *routes.InvalidParamFormatError
	if errors.As(err, &paramErr) {
		apierrors.ValidationError(w, "Некорректный параметр "+paramErr.ParamName)
		return
	}
	apierrors.ValidationError(w, err.Error())
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// paginationDefaults нормализует параметры пагинации.
// Возвращает корректные limit и offset.
func paginationDefaults(limit, offset *int) (limitVal, offsetVal int) {
	l := 100
	o := 0

	if limit != nil {
		l = *limit
		if l < 1 {
			l = 1
		}
		if l > 1000 {
			l = 1000
		}
	}

	if offset != nil {
		o = *offset
		if o < 0 {
			o = 0
		}
	}

	return l, o
}
