package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Saidqodirxon/innocare-admin/internal/api/openapi"
	"github.com/Saidqodirxon/innocare-admin/internal/token"
)

func TestNormalizePath(t *testing.T) {
	const id = "6f1c1c52-8a3e-4c7a-9d65-0d7b1f3e2a10"
	tests := []struct {
		path string
		want string
	}{
		{"/health/live", "/health/live"},
		{"/api/v1/resources", "/api/v1/resources"},
		{"/api/v1/forms/" + id, "/api/v1/forms/{form_id}"},
		{"/api/v1/forms/" + id + "/submit", "/api/v1/forms/{form_id}/submit"},
		{"/api/v1/forms/" + id + "/fields/image/files", "/api/v1/forms/{form_id}/fields/{field}/files"},
		{"/api/v1/forms/" + id + "/fields/file/files/abc123", "/api/v1/forms/{form_id}/fields/{field}/files/{ref_id}"},
		{"/api/v1/forms/not-a-uuid/submit", "/api/v1/forms/{unknown}"},
		{"/api/v1/resources/products/records", "/api/v1/resources/{resource}/records"},
		{"/api/v1/resources/news/records/65f0c1d2e3a4b5c6d7e8f901", "/api/v1/resources/{resource}/records/{record_id}"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, ожидается %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestTokenForwarding(t *testing.T) {
	var got string
	h := TokenForwarding()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = token.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/resources", nil)
	req.Header.Set("Authorization", "eyJhbGciOi.payload.sig")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "eyJhbGciOi.payload.sig" {
		t.Errorf("токен в контексте = %q, ожидается значение заголовка как есть", got)
	}

	got = "не сброшено"
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/resources", nil))
	if got != "" {
		t.Errorf("токен без заголовка = %q, ожидается пусто", got)
	}
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantLevel string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("ok"))
			}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/resources", nil))

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("ошибка разбора записи лога %q: %v", buf.String(), err)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, ожидается %s", entry["level"], tt.wantLevel)
			}
			if entry["component"] != "http" || entry["bytes"] != float64(2) {
				t.Errorf("неверные атрибуты записи: %v", entry)
			}
		})
	}
}

func TestRequestLogger_ServiceRoutesAndFormID(t *testing.T) {
	const id = "6f1c1c52-8a3e-4c7a-9d65-0d7b1f3e2a10"
	tests := []struct {
		name       string
		path       string
		status     int
		wantLogged bool
		wantFormID string
	}{
		{"health на INFO не пишется", "/health/live", http.StatusOK, false, ""},
		{"ошибка health пишется", "/health/ready", http.StatusServiceUnavailable, true, ""},
		{"маршрут формы с form_id", "/api/v1/forms/" + id + "/fields/image/files", http.StatusOK, true, id},
		{"каталог без form_id", "/api/v1/resources", http.StatusOK, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
			h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Authorization", "Bearer x")
			h.ServeHTTP(httptest.NewRecorder(), req)

			if !tt.wantLogged {
				if buf.Len() != 0 {
					t.Errorf("запись не ожидалась, получено %s", buf.String())
				}
				return
			}
			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("ошибка разбора записи лога %q: %v", buf.String(), err)
			}
			if entry["authorized"] != true {
				t.Errorf("authorized = %v, ожидается true", entry["authorized"])
			}
			got, _ := entry["form_id"].(string)
			if got != tt.wantFormID {
				t.Errorf("form_id = %q, ожидается %q", got, tt.wantFormID)
			}
		})
	}
}

func newTestValidator(t *testing.T) func(http.Handler) http.Handler {
	t.Helper()
	doc, err := openapi.Load(context.Background())
	if err != nil {
		t.Fatalf("загрузка контракта: %v", err)
	}
	v, err := NewRequestValidator(doc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewRequestValidator: %v", err)
	}
	return v.Middleware()
}

func TestRequestValidator(t *testing.T) {
	const id = "6f1c1c52-8a3e-4c7a-9d65-0d7b1f3e2a10"
	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
		wantStatus  int
	}{
		{"валидное открытие формы", http.MethodPost, "/api/v1/forms", "application/json", `{"resource":"products"}`, http.StatusOK},
		{"лишнее поле", http.MethodPost, "/api/v1/forms", "application/json", `{"resource":"products","x":1}`, http.StatusBadRequest},
		{"без resource", http.MethodPost, "/api/v1/forms", "application/json", `{}`, http.StatusBadRequest},
		{"limit вне диапазона", http.MethodGet, "/api/v1/orphans?limit=5000", "", "", http.StatusBadRequest},
		{"older_than не duration", http.MethodGet, "/api/v1/orphans?older_than=week", "", "", http.StatusBadRequest},
		{"валидный отчёт", http.MethodGet, "/api/v1/orphans?older_than=1h30m&limit=10", "", "", http.StatusOK},
		{"multipart без проверки тела", http.MethodPost, "/api/v1/forms/" + id + "/fields/image/files", "multipart/form-data; boundary=x", "--x--", http.StatusOK},
		{"список записей с фильтром", http.MethodGet, "/api/v1/resources/products/records?is_visible=true", "", "", http.StatusOK},
		{"некорректное имя ресурса", http.MethodGet, "/api/v1/resources/Products1/records", "", "", http.StatusBadRequest},
		{"путь вне контракта", http.MethodGet, "/health/live", "", "", http.StatusOK},
		{"метод не поддерживается", http.MethodPut, "/api/v1/forms", "application/json", `{}`, http.StatusMethodNotAllowed},
	}

	mw := newTestValidator(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			mw(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("статус %d, ожидается %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}
