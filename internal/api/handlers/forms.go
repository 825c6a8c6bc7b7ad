// forms.go — обработчики форм консоли:
// открытие, состояние, загрузка и удаление файлов, сохранение, закрытие.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	apierrors "github.com/Saidqodirxon/innocare-admin/internal/api/errors"
	"github.com/Saidqodirxon/innocare-admin/internal/api/routes"
	"github.com/Saidqodirxon/innocare-admin/internal/domain/model"
)

// multipartMemory — часть multipart-тела, которая держится в памяти;
// остальное ParseMultipartForm сбрасывает во временные файлы.
const multipartMemory = 8 << 20

// openFormRequest — тело POST /api/v1/forms.
type openFormRequest struct {
	Resource string `json:"resource"`
	RecordID string `json:"record_id"`
}

// OpenForm обрабатывает POST /api/v1/forms.
// Без record_id — форма создания, с record_id — форма редактирования.
func (h *APIHandler) OpenForm(w http.ResponseWriter, r *http.Request) {
	var req openFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}
	req.Resource = strings.TrimSpace(req.Resource)
	if req.Resource == "" {
		apierrors.ValidationError(w, "Поле resource обязательно")
		return
	}

	form, err := h.forms.Open(r.Context(), req.Resource, strings.TrimSpace(req.RecordID))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, form.View())
}

// GetForm обрабатывает GET /api/v1/forms/{form_id}.
func (h *APIHandler) GetForm(w http.ResponseWriter, r *http.Request, formID routes.FormId) {
	form, err := h.forms.Get(formID.String())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form.View())
}

// DiscardForm обрабатывает DELETE /api/v1/forms/{form_id}.
// Загруженные файлы остаются в хранилище.
func (h *APIHandler) DiscardForm(w http.ResponseWriter, r *http.Request, formID routes.FormId) {
	if err := h.forms.Discard(r.Context(), formID.String()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadFiles обрабатывает POST /api/v1/forms/{form_id}/fields/{field}/files.
// Multipart: повторяющееся поле files или одно поле file.
// Пустой список файлов ничего не делает и возвращает текущее состояние поля.
func (h *APIHandler) UploadFiles(w http.ResponseWriter, r *http.Request, formID routes.FormId, field string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.PayloadTooLarge(w, fmt.Sprintf("Размер загрузки превышает %d байт", tooLarge.Limit))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}

	uploads, closeAll, err := openUploads(headers)
	defer closeAll()
	if err != nil {
		h.logger.Error("Ошибка чтения файла из multipart",
			slog.String("form_id", formID.String()),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Не удалось прочитать загруженный файл")
		return
	}

	view, err := h.forms.SelectFiles(r.Context(), formID.String(), field, uploads)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// openUploads открывает части multipart как model.Upload.
// closeAll закрывает все открытые файлы и безопасен при ошибке.
func openUploads(headers []*multipart.FileHeader) (uploads []model.Upload, closeAll func(), err error) {
	files := make([]multipart.File, 0, len(headers))
	closeAll = func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	uploads = make([]model.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, fmt.Errorf("открытие %q: %w", fh.Filename, err)
		}
		files = append(files, f)
		uploads = append(uploads, model.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}

// RemoveFile обрабатывает DELETE /api/v1/forms/{form_id}/fields/{field}/files/{ref_id}.
// Ссылка, которой нет в поле, не удаляется из хранилища.
func (h *APIHandler) RemoveFile(w http.ResponseWriter, r *http.Request, formID routes.FormId, field string, refID string) {
	view, err := h.forms.RemoveReference(r.Context(), formID.String(), field, refID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SubmitForm обрабатывает POST /api/v1/forms/{form_id}/submit.
// Тело — JSON-объект полей записи; значения полей-вложений берутся из формы.
func (h *APIHandler) SubmitForm(w http.ResponseWriter, r *http.Request, formID routes.FormId) {
	fields := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil && !errors.Is(err, io.EOF) {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}
	if fields == nil {
		fields = map[string]any{}
	}

	record, err := h.forms.Submit(r.Context(), formID.String(), fields)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
