package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Saidqodirxon/innocare-admin/internal/api/routes"
	"github.com/Saidqodirxon/innocare-admin/internal/contentclient"
	"github.com/Saidqodirxon/innocare-admin/internal/domain/model"
	"github.com/Saidqodirxon/innocare-admin/internal/notify"
	"github.com/Saidqodirxon/innocare-admin/internal/repository"
	"github.com/Saidqodirxon/innocare-admin/internal/service"
)

// --- Фейки зависимостей ---

type fakeStorage struct {
	mu      sync.Mutex
	next    int
	failErr error
	deleted []string
}

func (s *fakeStorage) ref(name string) model.Reference {
	s.next++
	return model.Reference{URL: "https://cdn.local/" + name, ID: fmt.Sprintf("ref-%d", s.next)}
}

func (s *fakeStorage) UploadSingle(_ context.Context, f model.Upload) (model.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return model.Reference{}, s.failErr
	}
	_, _ = io.Copy(io.Discard, f.Body)
	return s.ref(f.Filename), nil
}

func (s *fakeStorage) UploadMultiple(_ context.Context, files []model.Upload) ([]model.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	refs := make([]model.Reference, 0, len(files))
	for _, f := range files {
		_, _ = io.Copy(io.Discard, f.Body)
		refs = append(refs, s.ref(f.Filename))
	}
	return refs, nil
}

func (s *fakeStorage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

type fakeResources struct {
	mu         sync.Mutex
	records    map[string]contentclient.Record
	failWith   error
	lastFilter contentclient.ListFilter
}

func toRecord(t *testing.T, payload map[string]any) contentclient.Record {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("сериализация записи: %v", err)
	}
	var rec contentclient.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("десериализация записи: %v", err)
	}
	return rec
}

func (f *fakeResources) Get(_ context.Context, resource, id string) (contentclient.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[resource+"/"+id]
	if !ok {
		return nil, &contentclient.APIError{StatusCode: http.StatusNotFound, Message: "not found"}
	}
	return rec, nil
}

func (f *fakeResources) save(resource, id string, payload map[string]any) (contentclient.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	payload["_id"] = id
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var rec contentclient.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	f.records[resource+"/"+id] = rec
	return rec, nil
}

func (f *fakeResources) Create(_ context.Context, resource string, payload map[string]any) (contentclient.Record, error) {
	return f.save(resource, "new-1", payload)
}

func (f *fakeResources) Update(_ context.Context, resource, id string, payload map[string]any) (contentclient.Record, error) {
	return f.save(resource, id, payload)
}

func (f *fakeResources) List(_ context.Context, resource string, filter contentclient.ListFilter) ([]contentclient.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.lastFilter = filter
	keys := make([]string, 0, len(f.records))
	for key := range f.records {
		if strings.HasPrefix(key, resource+"/") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := make([]contentclient.Record, 0, len(keys))
	for _, key := range keys {
		out = append(out, f.records[key])
	}
	return out, nil
}

func (f *fakeResources) Delete(_ context.Context, resource, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.records[resource+"/"+id]; !ok {
		return &contentclient.APIError{StatusCode: http.StatusNotFound, Message: "not found"}
	}
	delete(f.records, resource+"/"+id)
	return nil
}

type fakeChecker struct {
	status, message string
}

func (c fakeChecker) CheckReady() (string, string) { return c.status, c.message }

// --- Тестовое окружение ---

type testEnv struct {
	router    http.Handler
	forms     *service.FormService
	storage   *fakeStorage
	resources *fakeResources
	hub       *notify.Hub
}

type envOptions struct {
	maxUpload      int64
	journalEnabled bool
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.maxUpload == 0 {
		opts.maxUpload = 1 << 20
	}

	storage := &fakeStorage{}
	resources := &fakeResources{records: map[string]contentclient.Record{}}
	hub := notify.NewHub(logger)
	forms := service.NewFormService(storage, resources, repository.NopJournal{}, hub,
		service.FormOptions{MaxOpen: 10, TTL: time.Minute}, logger)
	records := service.NewRecordService(resources, logger)
	journal := service.NewJournalService(repository.NopJournal{}, opts.journalEnabled)

	health := NewHealthHandler(fakeChecker{status: "ok"}, nil, nil)
	h := NewAPIHandler(health, forms, records, journal, hub, opts.maxUpload, logger)

	return &testEnv{
		router:    routes.HandlerFromMux(h, chi.NewRouter(), ParamErrorHandler),
		forms:     forms,
		storage:   storage,
		resources: resources,
		hub:       hub,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type slotJSON struct {
	Field       string          `json:"field"`
	Cardinality string          `json:"cardinality"`
	State       string          `json:"state"`
	Value       json.RawMessage `json:"value"`
	Previews    []struct {
		Mode     string `json:"mode"`
		FileName string `json:"file_name"`
	} `json:"previews"`
}

type formJSON struct {
	ID       string     `json:"id"`
	Resource string     `json:"resource"`
	RecordID string     `json:"record_id"`
	Slots    []slotJSON `json:"slots"`
}

type errorJSON struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("ошибка декодирования ответа %q: %v", rec.Body.String(), err)
	}
	return v
}

func (e *testEnv) openForm(t *testing.T, body string) formJSON {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/forms", strings.NewReader(body), "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/v1/forms: статус %d, ожидается 201: %s", rec.Code, rec.Body.String())
	}
	return decode[formJSON](t, rec)
}

// multipartBody собирает multipart-тело с файлами в поле field.
func multipartBody(t *testing.T, field string, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = part.Write([]byte("content of " + name))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("закрытие multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// --- Тесты ---

func TestOpenForm_CreateAndGet(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	form := env.openForm(t, `{"resource":"products"}`)

	if form.ID == "" || form.Resource != "products" || form.RecordID != "" {
		t.Fatalf("неверная форма: %+v", form)
	}
	if len(form.Slots) != 2 {
		t.Fatalf("слотов %d, ожидается 2", len(form.Slots))
	}
	if form.Slots[0].Field != "image" || form.Slots[0].Cardinality != "multiple" || string(form.Slots[0].Value) != "[]" {
		t.Errorf("неверный слот image: %+v", form.Slots[0])
	}
	if form.Slots[1].Field != "file" || form.Slots[1].Cardinality != "single" || string(form.Slots[1].Value) != "{}" {
		t.Errorf("неверный слот file: %+v", form.Slots[1])
	}

	rec := env.do(t, http.MethodGet, "/api/v1/forms/"+form.ID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET формы: статус %d, ожидается 200", rec.Code)
	}
	if got := decode[formJSON](t, rec); got.ID != form.ID {
		t.Errorf("id формы %q, ожидается %q", got.ID, form.ID)
	}
}

func TestOpenForm_EditPopulatesSlots(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.resources.records["news/n1"] = toRecord(t, map[string]any{
		"_id":   "n1",
		"image": []map[string]string{{"url": "https://cdn.local/banner.png", "id": "b1"}},
	})

	form := env.openForm(t, `{"resource":"news","record_id":"n1"}`)
	if len(form.Slots) != 1 {
		t.Fatalf("слотов %d, ожидается 1", len(form.Slots))
	}
	want := `{"url":"https://cdn.local/banner.png","id":"b1"}`
	if string(form.Slots[0].Value) != want {
		t.Errorf("value = %s, ожидается %s", form.Slots[0].Value, want)
	}
	if len(form.Slots[0].Previews) != 1 || form.Slots[0].Previews[0].Mode != "image-thumbnail" {
		t.Errorf("неверный предпросмотр: %+v", form.Slots[0].Previews)
	}
}

func TestOpenForm_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"невалидный JSON", `{`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"без resource", `{"resource":"  "}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"неизвестный ресурс", `{"resource":"orders"}`, http.StatusNotFound, "NOT_FOUND"},
		{"нередактируемый ресурс", `{"resource":"contacts","record_id":"c1"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"запись не найдена", `{"resource":"news","record_id":"missing"}`, http.StatusNotFound, "NOT_FOUND"},
	}

	env := newTestEnv(t, envOptions{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/forms", strings.NewReader(tt.body), "application/json")
			if rec.Code != tt.wantStatus {
				t.Fatalf("статус %d, ожидается %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := decode[errorJSON](t, rec); got.Error.Code != tt.wantCode {
				t.Errorf("код %q, ожидается %q", got.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestGetForm_Errors(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(t, http.MethodGet, "/api/v1/forms/not-a-uuid", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("невалидный form_id: статус %d, ожидается 400", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/forms/6f1c1c52-8a3e-4c7a-9d65-0d7b1f3e2a10", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("неизвестная форма: статус %d, ожидается 404", rec.Code)
	}
}

func TestUploadFiles_MultipleThenRemove(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	form := env.openForm(t, `{"resource":"products"}`)
	path := "/api/v1/forms/" + form.ID + "/fields/image/files"

	body, ct := multipartBody(t, "files", "a.png", "b.png")
	rec := env.do(t, http.MethodPost, path, body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("загрузка: статус %d, ожидается 200: %s", rec.Code, rec.Body.String())
	}
	slot := decode[slotJSON](t, rec)
	want := `[{"url":"https://cdn.local/a.png","id":"ref-1"},{"url":"https://cdn.local/b.png","id":"ref-2"}]`
	if string(slot.Value) != want {
		t.Fatalf("value = %s, ожидается %s", slot.Value, want)
	}
	if slot.State != "idle" {
		t.Errorf("state = %q, ожидается idle", slot.State)
	}

	rec = env.do(t, http.MethodDelete, path+"/ref-1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("удаление: статус %d, ожидается 200: %s", rec.Code, rec.Body.String())
	}
	slot = decode[slotJSON](t, rec)
	if string(slot.Value) != `[{"url":"https://cdn.local/b.png","id":"ref-2"}]` {
		t.Errorf("value после удаления = %s", slot.Value)
	}
	if len(env.storage.deleted) != 1 || env.storage.deleted[0] != "ref-1" {
		t.Errorf("удалены из хранилища %v, ожидается [ref-1]", env.storage.deleted)
	}

	// удаление отсутствующей ссылки не обращается к хранилищу
	rec = env.do(t, http.MethodDelete, path+"/ref-404", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("удаление отсутствующей ссылки: статус %d, ожидается 200", rec.Code)
	}
	if len(env.storage.deleted) != 1 {
		t.Errorf("лишний вызов DELETE: %v", env.storage.deleted)
	}
}

func TestUploadFiles_SingleFieldName(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	form := env.openForm(t, `{"resource":"products"}`)

	body, ct := multipartBody(t, "file", "manual.pdf")
	rec := env.do(t, http.MethodPost, "/api/v1/forms/"+form.ID+"/fields/file/files", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("статус %d, ожидается 200: %s", rec.Code, rec.Body.String())
	}
	slot := decode[slotJSON](t, rec)
	if string(slot.Value) != `{"url":"https://cdn.local/manual.pdf","id":"ref-1"}` {
		t.Errorf("value = %s", slot.Value)
	}
	if len(slot.Previews) != 1 || slot.Previews[0].Mode != "document-pdf" || slot.Previews[0].FileName != "manual.pdf" {
		t.Errorf("неверный предпросмотр: %+v", slot.Previews)
	}
}

func TestUploadFiles_Errors(t *testing.T) {
	tests := []struct {
		name       string
		field      string
		storageErr error
		maxUpload  int64
		wantStatus int
		wantCode   string
	}{
		{"хранилище недоступно", "image", errors.New("connection refused"), 0, http.StatusBadGateway, "STORAGE_UNAVAILABLE"},
		{"неизвестное поле", "gallery", nil, 0, http.StatusNotFound, "NOT_FOUND"},
		{"превышен размер", "image", nil, 64, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, envOptions{maxUpload: tt.maxUpload})
			env.storage.failErr = tt.storageErr
			form := env.openForm(t, `{"resource":"products"}`)

			body, ct := multipartBody(t, "files", "a.png")
			rec := env.do(t, http.MethodPost, "/api/v1/forms/"+form.ID+"/fields/"+tt.field+"/files", body, ct)
			if rec.Code != tt.wantStatus {
				t.Fatalf("статус %d, ожидается %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := decode[errorJSON](t, rec); got.Error.Code != tt.wantCode {
				t.Errorf("код %q, ожидается %q", got.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestUploadFiles_NotMultipart(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	form := env.openForm(t, `{"resource":"products"}`)

	rec := env.do(t, http.MethodPost, "/api/v1/forms/"+form.ID+"/fields/image/files",
		strings.NewReader(`{}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус %d, ожидается 400", rec.Code)
	}
}

func TestSubmitForm_CreateClosesForm(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	form := env.openForm(t, `{"resource":"news"}`)

	body, ct := multipartBody(t, "file", "banner.png")
	if rec := env.do(t, http.MethodPost, "/api/v1/forms/"+form.ID+"/fields/image/files", body, ct); rec.Code != http.StatusOK {
		t.Fatalf("загрузка: статус %d: %s", rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodPost, "/api/v1/forms/"+form.ID+"/submit",
		strings.NewReader(`{"title":"Весна","image":"подмена"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: статус %d, ожидается 200: %s", rec.Code, rec.Body.String())
	}
	saved := decode[map[string]json.RawMessage](t, rec)
	if string(saved["image"]) != `{"url":"https://cdn.local/banner.png","id":"ref-1"}` {
		t.Errorf("image = %s, значение слота должно перекрыть ключ клиента", saved["image"])
	}
	if string(saved["title"]) != `"Весна"` {
		t.Errorf("title = %s", saved["title"])
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/forms/"+form.ID, nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("форма после сохранения: статус %d, ожидается 404", rec.Code)
	}
}

func TestSubmitForm_BackendErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"запись отклонена", &contentclient.APIError{StatusCode: http.StatusBadRequest, Message: "title is required"}, http.StatusUnprocessableEntity, "BACKEND_REJECTED"},
		{"ошибка бэкенда", &contentclient.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}, http.StatusBadGateway, "BACKEND_UNAVAILABLE"},
		{"бэкенд недоступен", errors.New("dial tcp: connection refused"), http.StatusBadGateway, "BACKEND_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, envOptions{})
			env.resources.failWith = tt.err
			form := env.openForm(t, `{"resource":"certificates"}`)

			rec := env.do(t, http.MethodPost, "/api/v1/forms/"+form.ID+"/submit", strings.NewReader(`{}`), "application/json")
			if rec.Code != tt.wantStatus {
				t.Fatalf("статус %d, ожидается %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := decode[errorJSON](t, rec); got.Error.Code != tt.wantCode {
				t.Errorf("код %q, ожидается %q", got.Error.Code, tt.wantCode)
			}

			// форма остаётся открытой
			if rec := env.do(t, http.MethodGet, "/api/v1/forms/"+form.ID, nil, ""); rec.Code != http.StatusOK {
				t.Errorf("форма после ошибки: статус %d, ожидается 200", rec.Code)
			}
		})
	}
}

func TestSubmitForm_RejectedMessageInNotifications(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.resources.failWith = &contentclient.APIError{StatusCode: http.StatusBadRequest, Message: "title is required"}
	form := env.openForm(t, `{"resource":"certificates"}`)

	env.do(t, http.MethodPost, "/api/v1/forms/"+form.ID+"/submit", strings.NewReader(`{}`), "application/json")

	rec := env.do(t, http.MethodGet, "/api/v1/forms/"+form.ID+"/notifications", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус %d, ожидается 200", rec.Code)
	}
	got := decode[notificationsResponse](t, rec)
	if len(got.Notifications) != 1 {
		t.Fatalf("уведомлений %d, ожидается 1", len(got.Notifications))
	}
	n := got.Notifications[0]
	if n.Level != model.NotificationError || n.Message != "title is required" {
		t.Errorf("неверное уведомление: %+v", n)
	}
}

func TestDiscardForm(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	form := env.openForm(t, `{"resource":"products"}`)

	rec := env.do(t, http.MethodDelete, "/api/v1/forms/"+form.ID, nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("статус %d, ожидается 204", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/api/v1/forms/"+form.ID, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("повторное закрытие: статус %d, ожидается 404", rec.Code)
	}
}

func TestListResources(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.do(t, http.MethodGet, "/api/v1/resources", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус %d, ожидается 200", rec.Code)
	}
	got := decode[resourcesResponse](t, rec)
	if len(got.Items) != len(contentclient.Resources()) {
		t.Errorf("ресурсов %d, ожидается %d", len(got.Items), len(contentclient.Resources()))
	}
}

func TestListResourceRecords(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.resources.records["products/p2"] = toRecord(t, map[string]any{"_id": "p2"})
	env.resources.records["products/p1"] = toRecord(t, map[string]any{"_id": "p1"})
	env.resources.records["brands/b1"] = toRecord(t, map[string]any{"_id": "b1"})

	rec := env.do(t, http.MethodGet, "/api/v1/resources/products/records?categoryId=c1&is_visible=true&q=cream", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус %d, ожидается 200: %s", rec.Code, rec.Body.String())
	}
	got := decode[recordsResponse](t, rec)
	if got.Resource != "products" || len(got.Items) != 2 {
		t.Fatalf("ответ %+v, ожидается 2 записи products", got)
	}
	if got.Items[0].ID() != "p1" || got.Items[1].ID() != "p2" {
		t.Errorf("порядок записей: %q, %q", got.Items[0].ID(), got.Items[1].ID())
	}

	filter := env.resources.lastFilter
	if filter.CategoryID != "c1" || filter.Query != "cream" {
		t.Errorf("фильтр %+v, ожидается categoryId=c1, q=cream", filter)
	}
	if filter.IsVisible == nil || !*filter.IsVisible || filter.IsView != nil {
		t.Errorf("булевы фильтры: is_visible=%v, is_view=%v", filter.IsVisible, filter.IsView)
	}

	tests := []struct {
		name     string
		path     string
		failWith error
		wantCode int
		wantErr  string
	}{
		{"неизвестный ресурс", "/api/v1/resources/users/records", nil, http.StatusNotFound, "NOT_FOUND"},
		{"раздел без списка", "/api/v1/resources/about/records", nil, http.StatusMethodNotAllowed, "NOT_SUPPORTED"},
		{"некорректный is_visible", "/api/v1/resources/products/records?is_visible=maybe", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"бэкенд недоступен", "/api/v1/resources/brands/records", errors.New("connection refused"), http.StatusBadGateway, "BACKEND_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, envOptions{})
			env.resources.failWith = tt.failWith
			rec := env.do(t, http.MethodGet, tt.path, nil, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("статус %d, ожидается %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if got := decode[errorJSON](t, rec); got.Error.Code != tt.wantErr {
				t.Errorf("код %q, ожидается %q", got.Error.Code, tt.wantErr)
			}
		})
	}
}

func TestDeleteResourceRecord(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.resources.records["news/n1"] = toRecord(t, map[string]any{
		"_id":   "n1",
		"image": map[string]string{"url": "https://cdn.local/a.png", "id": "img-1"},
	})

	rec := env.do(t, http.MethodDelete, "/api/v1/resources/news/records/n1", nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("статус %d, ожидается 204: %s", rec.Code, rec.Body.String())
	}
	if _, ok := env.resources.records["news/n1"]; ok {
		t.Error("запись не удалена")
	}
	if len(env.storage.deleted) != 0 {
		t.Errorf("удаление записи удалило файлы: %v", env.storage.deleted)
	}

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantErr  string
	}{
		{"повторное удаление", "/api/v1/resources/news/records/n1", http.StatusNotFound, "NOT_FOUND"},
		{"заявки не удаляются", "/api/v1/resources/contacts/records/c1", http.StatusMethodNotAllowed, "NOT_SUPPORTED"},
		{"неизвестный ресурс", "/api/v1/resources/users/records/u1", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodDelete, tt.path, nil, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("статус %d, ожидается %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if got := decode[errorJSON](t, rec); got.Error.Code != tt.wantErr {
				t.Errorf("код %q, ожидается %q", got.Error.Code, tt.wantErr)
			}
		})
	}
}

func TestListOrphans(t *testing.T) {
	t.Run("журнал отключён", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		rec := env.do(t, http.MethodGet, "/api/v1/orphans", nil, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("статус %d, ожидается 503", rec.Code)
		}
		if got := decode[errorJSON](t, rec); got.Error.Code != "JOURNAL_DISABLED" {
			t.Errorf("код %q, ожидается JOURNAL_DISABLED", got.Error.Code)
		}
	})

	t.Run("параметры по умолчанию", func(t *testing.T) {
		env := newTestEnv(t, envOptions{journalEnabled: true})
		rec := env.do(t, http.MethodGet, "/api/v1/orphans", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("статус %d, ожидается 200: %s", rec.Code, rec.Body.String())
		}
		got := decode[orphansResponse](t, rec)
		if got.OlderThan != "24h0m0s" || got.Limit != 100 || got.Offset != 0 {
			t.Errorf("неверные параметры: %+v", got)
		}
		if got.Items == nil {
			t.Error("items = nil, ожидается пустой массив")
		}
	})

	t.Run("некорректный older_than", func(t *testing.T) {
		env := newTestEnv(t, envOptions{journalEnabled: true})
		rec := env.do(t, http.MethodGet, "/api/v1/orphans?older_than=yesterday", nil, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("статус %d, ожидается 400", rec.Code)
		}
	})

	t.Run("некорректный limit", func(t *testing.T) {
		env := newTestEnv(t, envOptions{journalEnabled: true})
		rec := env.do(t, http.MethodGet, "/api/v1/orphans?limit=abc", nil, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("статус %d, ожидается 400", rec.Code)
		}
	})
}

func TestStreamFormEvents(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	form := env.openForm(t, `{"resource":"products"}`)

	resp, err := http.Get(srv.URL + "/api/v1/forms/" + form.ID + "/events")
	if err != nil {
		t.Fatalf("подключение к SSE: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, ожидается text/event-stream", ct)
	}

	events := make(chan string, 16)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
				events <- name
			}
		}
	}()

	next := func() string {
		t.Helper()
		select {
		case name, ok := <-events:
			if !ok {
				t.Fatal("поток закрыт раньше времени")
			}
			return name
		case <-time.After(5 * time.Second):
			t.Fatal("таймаут ожидания SSE-события")
		}
		return ""
	}

	if got := next(); got != "form" {
		t.Fatalf("первое событие %q, ожидается form", got)
	}

	env.hub.Publish(form.ID, model.Notification{Level: model.NotificationSuccess, Title: "Успешно"})
	if got := next(); got != "notification" {
		t.Fatalf("событие %q, ожидается notification", got)
	}
	if got := next(); got != "form" {
		t.Fatalf("событие %q, ожидается form", got)
	}

	if err := env.forms.Discard(context.Background(), form.ID); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if got := next(); got != "closed" {
		t.Fatalf("событие %q, ожидается closed", got)
	}
}

func TestStreamFormEvents_UnknownForm(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.do(t, http.MethodGet, "/api/v1/forms/6f1c1c52-8a3e-4c7a-9d65-0d7b1f3e2a10/events", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("статус %d, ожидается 404", rec.Code)
	}
}
