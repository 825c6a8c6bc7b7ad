// records.go — страницы списков консоли: записи ресурса и их удаление.
package handlers

import (
	"net/http"

	"github.com/Saidqodirxon/innocare-admin/internal/api/routes"
	"github.com/Saidqodirxon/innocare-admin/internal/contentclient"
)

// recordsResponse — ответ GET /api/v1/resources/{resource}/records.
type recordsResponse struct {
	Resource string                 `json:"resource"`
	Items    []contentclient.Record `json:"items"`
}

// ListResourceRecords обрабатывает GET /api/v1/resources/{resource}/records.
func (h *APIHandler) ListResourceRecords(w http.ResponseWriter, r *http.Request, resource string, params routes.ListResourceRecordsParams) {
	filter := contentclient.ListFilter{
		IsVisible: params.IsVisible,
		IsView:    params.IsView,
	}
	if params.CategoryId != nil {
		filter.CategoryID = *params.CategoryId
	}
	if params.Q != nil {
		filter.Query = *params.Q
	}

	records, err := h.records.List(r.Context(), resource, filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordsResponse{Resource: resource, Items: records})
}

// DeleteResourceRecord обрабатывает DELETE /api/v1/resources/{resource}/records/{record_id}.
// Файлы вложений записи из хранилища не удаляются.
func (h *APIHandler) DeleteResourceRecord(w http.ResponseWriter, r *http.Request, resource string, recordID string) {
	if err := h.records.Delete(r.Context(), resource, recordID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
