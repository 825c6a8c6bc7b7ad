// events.go — SSE-поток уведомлений формы и опрос последних уведомлений.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/Saidqodirxon/innocare-admin/internal/api/errors"
	"github.com/Saidqodirxon/innocare-admin/internal/api/routes"
	"github.com/Saidqodirxon/innocare-admin/internal/domain/model"
)

// sseKeepAlive — интервал комментариев-пингов, удерживающих соединение
// через прокси.
var sseKeepAlive = 15 * time.Second

// notificationsResponse — ответ GET /api/v1/forms/{form_id}/notifications.
type notificationsResponse struct {
	FormID        string               `json:"form_id"`
	Notifications []model.Notification `json:"notifications"`
}

// StreamFormEvents обрабатывает GET /api/v1/forms/{form_id}/events — SSE endpoint.
// События: form (состояние формы), notification (уведомление),
// closed (форма сохранена, закрыта или вытеснена; поток завершается).
// Graceful disconnect при закрытии клиентом соединения (context cancel).
func (h *APIHandler) StreamFormEvents(w http.ResponseWriter, r *http.Request, formID routes.FormId) {
	id := formID.String()

	// Подписка до чтения формы: закрытие формы после этой точки
	// гарантированно закроет канал подписки.
	sub := h.hub.Subscribe(id)
	defer sub.Close()

	form, err := h.forms.Get(id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	// Настраиваем заголовки SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Отключаем буферизацию Nginx

	// ResponseController находит http.Flusher через Unwrap() обёрток middleware.
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		apierrors.InternalError(w, "SSE не поддерживается")
		return
	}

	// Поток живёт дольше AG_HTTP_WRITE_TIMEOUT
	_ = rc.SetWriteDeadline(time.Time{})

	ctx := r.Context()
	h.logger.Debug("SSE клиент подключён",
		slog.String("form_id", id),
		slog.String("remote_addr", r.RemoteAddr),
	)

	h.sendEvent(w, rc, "form", form.View())

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE клиент отключён", slog.String("form_id", id))
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			_ = rc.Flush()
		case n, ok := <-sub.C:
			if !ok {
				h.sendEvent(w, rc, "closed", map[string]string{"form_id": id})
				return
			}
			h.sendEvent(w, rc, "notification", n)
			if f, err := h.forms.Get(id); err == nil {
				h.sendEvent(w, rc, "form", f.View())
			}
		}
	}
}

// sendEvent отправляет одно SSE-событие.
// Формат: event: {name}\ndata: {json}\n\n
func (h *APIHandler) sendEvent(w http.ResponseWriter, rc *http.ResponseController, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Ошибка сериализации SSE-события",
			slog.String("event", name),
			slog.String("error", err.Error()),
		)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	_ = rc.Flush()
}

// ListFormNotifications обрабатывает GET /api/v1/forms/{form_id}/notifications.
// Возвращает последние уведомления формы для клиентов без SSE.
// Опрос не продлевает время жизни формы.
func (h *APIHandler) ListFormNotifications(w http.ResponseWriter, _ *http.Request, formID routes.FormId) {
	id := formID.String()
	writeJSON(w, http.StatusOK, notificationsResponse{
		FormID:        id,
		Notifications: h.hub.Recent(id),
	})
}
