// Пакет routes — маршруты HTTP API Admin Gateway на chi.
//
// ServerInterface описывает операции контракта internal/api/openapi/openapi.yaml.
// Обёртка разбирает path- и query-параметры через oapi-codegen/runtime
// и передаёт их в реализацию уже типизированными.
package routes

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// FormId — идентификатор открытой формы.
type FormId = openapi_types.UUID //nolint:revive // имя параметра контракта

// ListOrphansParams — query-параметры GET /api/v1/orphans.
type ListOrphansParams struct {
	// OlderThan — минимальный возраст загрузки (Go duration, по умолчанию 24h)
	OlderThan *string
	Limit     *int
	Offset    *int
}

// ListResourceRecordsParams — query-параметры GET /api/v1/resources/{resource}/records.
// Фильтры списка продуктов; остальные ресурсы их игнорируют.
type ListResourceRecordsParams struct {
	CategoryId *string //nolint:revive // имя параметра контракта
	Q          *string
	IsVisible  *bool
	IsView     *bool
}

// ServerInterface — операции HTTP API.
type ServerInterface interface {
	// GET /health/live
	HealthLive(w http.ResponseWriter, r *http.Request)
	// GET /health/ready
	HealthReady(w http.ResponseWriter, r *http.Request)
	// GET /metrics
	GetMetrics(w http.ResponseWriter, r *http.Request)

	// GET /api/v1/resources
	ListResources(w http.ResponseWriter, r *http.Request)
	// GET /api/v1/resources/{resource}/records
	ListResourceRecords(w http.ResponseWriter, r *http.Request, resource string, params ListResourceRecordsParams)
	// DELETE /api/v1/resources/{resource}/records/{record_id}
	DeleteResourceRecord(w http.ResponseWriter, r *http.Request, resource string, recordID string)
	// POST /api/v1/forms
	OpenForm(w http.ResponseWriter, r *http.Request)
	// GET /api/v1/forms/{form_id}
	GetForm(w http.ResponseWriter, r *http.Request, formID FormId)
	// DELETE /api/v1/forms/{form_id}
	DiscardForm(w http.ResponseWriter, r *http.Request, formID FormId)
	// POST /api/v1/forms/{form_id}/fields/{field}/files
	UploadFiles(w http.ResponseWriter, r *http.Request, formID FormId, field string)
	// DELETE /api/v1/forms/{form_id}/fields/{field}/files/{ref_id}
	RemoveFile(w http.ResponseWriter, r *http.Request, formID FormId, field string, refID string)
	// POST /api/v1/forms/{form_id}/submit
	SubmitForm(w http.ResponseWriter, r *http.Request, formID FormId)
	// GET /api/v1/forms/{form_id}/events
	StreamFormEvents(w http.ResponseWriter, r *http.Request, formID FormId)
	// GET /api/v1/forms/{form_id}/notifications
	ListFormNotifications(w http.ResponseWriter, r *http.Request, formID FormId)
	// GET /api/v1/orphans
	ListOrphans(w http.ResponseWriter, r *http.Request, params ListOrphansParams)
}

// InvalidParamFormatError — параметр запроса не удалось разобрать.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("некорректный формат параметра %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// ErrorHandlerFunc — обработчик ошибок разбора параметров.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)

// ServerInterfaceWrapper — адаптер ServerInterface к http.HandlerFunc.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc ErrorHandlerFunc
}

func pathOptions() runtime.BindStyledParameterOptions {
	return runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	}
}

func (siw *ServerInterfaceWrapper) bindFormID(w http.ResponseWriter, r *http.Request) (FormId, bool) {
	var formID FormId
	err := runtime.BindStyledParameterWithOptions("simple", "form_id", chi.URLParam(r, "form_id"), &formID, pathOptions())
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "form_id", Err: err})
		return formID, false
	}
	return formID, true
}

func (siw *ServerInterfaceWrapper) bindString(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &value, pathOptions())
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return "", false
	}
	return value, true
}

func (siw *ServerInterfaceWrapper) GetForm(w http.ResponseWriter, r *http.Request) {
	if formID, ok := siw.bindFormID(w, r); ok {
		siw.Handler.GetForm(w, r, formID)
	}
}

func (siw *ServerInterfaceWrapper) DiscardForm(w http.ResponseWriter, r *http.Request) {
	if formID, ok := siw.bindFormID(w, r); ok {
		siw.Handler.DiscardForm(w, r, formID)
	}
}

func (siw *ServerInterfaceWrapper) UploadFiles(w http.ResponseWriter, r *http.Request) {
	formID, ok := siw.bindFormID(w, r)
	if !ok {
		return
	}
	field, ok := siw.bindString(w, r, "field")
	if !ok {
		return
	}
	siw.Handler.UploadFiles(w, r, formID, field)
}

func (siw *ServerInterfaceWrapper) RemoveFile(w http.ResponseWriter, r *http.Request) {
	formID, ok := siw.bindFormID(w, r)
	if !ok {
		return
	}
	field, ok := siw.bindString(w, r, "field")
	if !ok {
		return
	}
	refID, ok := siw.bindString(w, r, "ref_id")
	if !ok {
		return
	}
	siw.Handler.RemoveFile(w, r, formID, field, refID)
}

func (siw *ServerInterfaceWrapper) SubmitForm(w http.ResponseWriter, r *http.Request) {
	if formID, ok := siw.bindFormID(w, r); ok {
		siw.Handler.SubmitForm(w, r, formID)
	}
}

func (siw *ServerInterfaceWrapper) StreamFormEvents(w http.ResponseWriter, r *http.Request) {
	if formID, ok := siw.bindFormID(w, r); ok {
		siw.Handler.StreamFormEvents(w, r, formID)
	}
}

func (siw *ServerInterfaceWrapper) ListFormNotifications(w http.ResponseWriter, r *http.Request) {
	if formID, ok := siw.bindFormID(w, r); ok {
		siw.Handler.ListFormNotifications(w, r, formID)
	}
}

func (siw *ServerInterfaceWrapper) ListResourceRecords(w http.ResponseWriter, r *http.Request) {
	resource, ok := siw.bindString(w, r, "resource")
	if !ok {
		return
	}

	var params ListResourceRecordsParams
	query := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, false, "categoryId", query, &params.CategoryId); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "categoryId", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "q", query, &params.Q); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "q", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "is_visible", query, &params.IsVisible); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "is_visible", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "is_view", query, &params.IsView); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "is_view", Err: err})
		return
	}
	siw.Handler.ListResourceRecords(w, r, resource, params)
}

func (siw *ServerInterfaceWrapper) DeleteResourceRecord(w http.ResponseWriter, r *http.Request) {
	resource, ok := siw.bindString(w, r, "resource")
	if !ok {
		return
	}
	recordID, ok := siw.bindString(w, r, "record_id")
	if !ok {
		return
	}
	siw.Handler.DeleteResourceRecord(w, r, resource, recordID)
}

func (siw *ServerInterfaceWrapper) ListOrphans(w http.ResponseWriter, r *http.Request) {
	var params ListOrphansParams
	query := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, false, "older_than", query, &params.OlderThan); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "older_than", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &params.Limit); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", query, &params.Offset); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "offset", Err: err})
		return
	}
	siw.Handler.ListOrphans(w, r, params)
}

// HandlerFromMux регистрирует маршруты ServerInterface в chi-роутере.
func HandlerFromMux(si ServerInterface, r chi.Router, errorHandler ErrorHandlerFunc) http.Handler {
	if errorHandler == nil {
		errorHandler = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{Handler: si, ErrorHandlerFunc: errorHandler}

	r.Get("/health/live", si.HealthLive)
	r.Get("/health/ready", si.HealthReady)
	r.Get("/metrics", si.GetMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/resources", si.ListResources)
		r.Get("/resources/{resource}/records", wrapper.ListResourceRecords)
		r.Delete("/resources/{resource}/records/{record_id}", wrapper.DeleteResourceRecord)
		r.Get("/orphans", wrapper.ListOrphans)
		r.Post("/forms", si.OpenForm)
		r.Route("/forms/{form_id}", func(r chi.Router) {
			r.Get("/", wrapper.GetForm)
			r.Delete("/", wrapper.DiscardForm)
			r.Post("/submit", wrapper.SubmitForm)
			r.Get("/events", wrapper.StreamFormEvents)
			r.Get("/notifications", wrapper.ListFormNotifications)
			r.Post("/fields/{field}/files", wrapper.UploadFiles)
			r.Delete("/fields/{field}/files/{ref_id}", wrapper.RemoveFile)
		})
	})
	return r
}
