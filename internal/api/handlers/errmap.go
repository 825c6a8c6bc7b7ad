package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/Saidqodirxon/innocare-admin/internal/api/errors"
	"github.com/Saidqodirxon/innocare-admin/internal/attachment"
	"github.com/Saidqodirxon/innocare-admin/internal/contentclient"
	"github.com/Saidqodirxon/innocare-admin/internal/service"
)

// writeServiceError сопоставляет ошибку сервисного слоя с HTTP-ответом.
// Остальные ошибки возникают при обращении к API ресурсов
// (соединение, таймаут): они логируются и отдаются как 502.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *contentclient.APIError
	switch {
	case errors.Is(err, service.ErrFormNotFound):
		apierrors.NotFound(w, "Форма не найдена или уже закрыта")
	case errors.Is(err, service.ErrUnknownField):
		apierrors.NotFound(w, "У формы нет такого поля-вложения")
	case errors.Is(err, service.ErrUnknownResource):
		apierrors.NotFound(w, "Неизвестный ресурс")
	case errors.Is(err, service.ErrNotEditable):
		apierrors.ValidationError(w, "Записи ресурса нельзя редактировать")
	case errors.Is(err, service.ErrNotSupported):
		apierrors.NotSupported(w, "Раздел не поддерживает эту операцию")
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, attachment.ErrBusy):
		apierrors.Busy(w, "Дождитесь завершения текущей операции")
	case errors.Is(err, attachment.ErrMalformedResponse):
		apierrors.StorageBadResponse(w, "Файл не был загружен корректно")
	case errors.Is(err, attachment.ErrTransport):
		apierrors.StorageUnavailable(w, "Хранилище файлов недоступно")
	case errors.Is(err, contentclient.ErrNotFound):
		apierrors.NotFound(w, "Запись ресурса не найдена")
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		apierrors.BackendRejected(w, apiErr.Message)
	case errors.As(err, &apiErr):
		apierrors.BackendUnavailable(w, "API ресурсов ответило ошибкой")
	default:
		if r.Context().Err() != nil {
			// Клиент отключился, ответ уже никто не прочитает
			return
		}
		h.logger.Error("Ошибка обработки запроса",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.BackendUnavailable(w, "API ресурсов недоступно")
	}
}
