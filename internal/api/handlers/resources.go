// resources.go — каталог ресурсов консоли и отчёт журнала загрузок.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/Saidqodirxon/innocare-admin/internal/api/errors"
	"github.com/Saidqodirxon/innocare-admin/internal/api/routes"
	"github.com/Saidqodirxon/innocare-admin/internal/contentclient"
	"github.com/Saidqodirxon/innocare-admin/internal/domain/model"
	"github.com/Saidqodirxon/innocare-admin/internal/service"
)

// defaultOrphanAge — возраст загрузки по умолчанию для отчёта о сиротах.
const defaultOrphanAge = 24 * time.Hour

// resourcesResponse — ответ GET /api/v1/resources.
type resourcesResponse struct {
	Items []contentclient.Resource `json:"items"`
}

// orphanItem — файл без сохранённой записи.
type orphanItem struct {
	RefID     string    `json:"ref_id"`
	URL       string    `json:"url"`
	FormID    string    `json:"form_id"`
	Resource  string    `json:"resource"`
	Field     string    `json:"field"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// orphansResponse — ответ GET /api/v1/orphans.
type orphansResponse struct {
	Items     []orphanItem   `json:"items"`
	Stats     map[string]int `json:"stats"`
	OlderThan string         `json:"older_than"`
	Limit     int            `json:"limit"`
	Offset    int            `json:"offset"`
}

// ListResources обрабатывает GET /api/v1/resources.
// Возвращает ресурсы консоли и их поля-вложения.
func (h *APIHandler) ListResources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, resourcesResponse{Items: contentclient.Resources()})
}

// ListOrphans обрабатывает GET /api/v1/orphans.
// Файлы, загруженные через формы, но не вошедшие ни в одну сохранённую
// запись. Хранилище их не удаляет: отчёт предназначен его владельцу.
func (h *APIHandler) ListOrphans(w http.ResponseWriter, r *http.Request, params routes.ListOrphansParams) {
	if !h.journal.Enabled() {
		apierrors.JournalDisabled(w, "Журнал загрузок не настроен (AG_DB_HOST)")
		return
	}

	olderThan := defaultOrphanAge
	if params.OlderThan != nil {
		d, err := time.ParseDuration(*params.OlderThan)
		if err != nil {
			apierrors.ValidationError(w, fmt.Sprintf("Некорректный older_than: %q", *params.OlderThan))
			return
		}
		olderThan = d
	}
	limit, offset := paginationDefaults(params.Limit, params.Offset)

	entries, err := h.journal.Orphans(r.Context(), olderThan, limit, offset)
	if err != nil {
		h.writeJournalError(w, err)
		return
	}
	stats, err := h.journal.Stats(r.Context())
	if err != nil {
		h.writeJournalError(w, err)
		return
	}

	items := make([]orphanItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, orphanItemOf(e))
	}

	writeJSON(w, http.StatusOK, orphansResponse{
		Items:     items,
		Stats:     stats,
		OlderThan: olderThan.String(),
		Limit:     limit,
		Offset:    offset,
	})
}

func (h *APIHandler) writeJournalError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrValidation) {
		apierrors.ValidationError(w, err.Error())
		return
	}
	h.logger.Error("Ошибка чтения журнала загрузок", slog.String("error", err.Error()))
	apierrors.InternalError(w, "Внутренняя ошибка при чтении журнала загрузок")
}

func orphanItemOf(e *model.JournalEntry) orphanItem {
	return orphanItem{
		RefID:     e.RefID,
		URL:       e.URL,
		FormID:    e.FormID,
		Resource:  e.Resource,
		Field:     e.Field,
		Status:    e.Status,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}
