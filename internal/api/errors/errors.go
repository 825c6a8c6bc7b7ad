// Пакет errors — конструкторы стандартных ошибок Admin Gateway.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeBusy               = "BUSY"
	CodeNotSupported       = "NOT_SUPPORTED"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeStorageBadResponse = "STORAGE_BAD_RESPONSE"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeBackendRejected    = "BACKEND_REJECTED"
	CodeJournalDisabled    = "JOURNAL_DISABLED"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeInternalError      = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// NotSupported — 405 раздел консоли не поддерживает операцию.
func NotSupported(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusMethodNotAllowed, CodeNotSupported, message)
}

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Busy — 409 в поле формы уже выполняется операция.
func Busy(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeBusy, message)
}

// PayloadTooLarge — 413 превышен лимит размера загрузки.
func PayloadTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, message)
}

// StorageUnavailable — 502 хранилище недоступно или ответило ошибкой.
func StorageUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeStorageUnavailable, message)
}

// StorageBadResponse — 502 ответ хранилища не соответствует контракту.
func StorageBadResponse(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeStorageBadResponse, message)
}

// BackendUnavailable — 502 API ресурсов недоступно.
func BackendUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeBackendUnavailable, message)
}

// BackendRejected — 422 API ресурсов отклонило запись.
func BackendRejected(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnprocessableEntity, CodeBackendRejected, message)
}

// JournalDisabled — 503 журнал загрузок не настроен.
func JournalDisabled(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeJournalDisabled, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
