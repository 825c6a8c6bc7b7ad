// Пакет contentclient — HTTP-клиент API ресурсов консоли
// (продукты, баннеры, сертификаты, преимущества, бренды, категории, заявки).
//
// Записи передаются как JSON-объекты без фиксированной схемы: проверка полей
// сущностей — ответственность формы консоли и бэкенда. Клиент знает только
// о полях-вложениях (catalog.go) и умеет восстанавливать из записи значения
// слотов для формы редактирования.
package contentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Saidqodirxon/innocare-admin/internal/attachment"
	"github.com/Saidqodirxon/innocare-admin/internal/domain/model"
	"github.com/Saidqodirxon/innocare-admin/internal/storageclient"
)

// TokenProvider — функция, возвращающая значение заголовка Authorization.
type TokenProvider func(ctx context.Context) (string, error)

// Record — запись ресурса в виде JSON-объекта.
type Record map[string]json.RawMessage

// ID возвращает идентификатор записи (_id или id).
func (r Record) ID() string {
	for _, key := range []string{"_id", "id"} {
		raw, ok := r[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// ErrNotFound — запись ресурса не найдена (404).
var ErrNotFound = errors.New("запись ресурса не найдена")

// APIError — бэкенд ответил статусом не из диапазона 2xx.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API ресурсов вернул статус %d: %s", e.StatusCode, e.Message)
}

// Unwrap сопоставляет 404 с ErrNotFound.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// ListFilter — фильтры списка (используются /products).
type ListFilter struct {
	CategoryID string
	Query      string
	IsVisible  *bool
	IsView     *bool
}

func (f ListFilter) values() url.Values {
	q := url.Values{}
	if f.CategoryID != "" {
		q.Set("categoryId", f.CategoryID)
	}
	if f.IsVisible != nil {
		q.Set("is_visible", fmt.Sprint(*f.IsVisible))
	}
	if f.IsView != nil {
		q.Set("is_view", fmt.Sprint(*f.IsView))
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	return q
}

// Client — HTTP-клиент API ресурсов.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokenProvider TokenProvider
	logger        *slog.Logger
}

// New создаёт клиент API ресурсов.
// httpClient — клиент с настроенным TLS и таймаутом (nil — клиент с таймаутом 30s).
func New(baseURL string, httpClient *http.Client, tokenProvider TokenProvider, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    httpClient,
		tokenProvider: tokenProvider,
		logger:        logger.With(slog.String("component", "content_client")),
	}
}

// BaseURL возвращает адрес API ресурсов.
func (c *Client) BaseURL() string { return c.baseURL }

// CheckReady проверяет доступность API ресурсов.
func (c *Client) CheckReady() (status, message string) {
	return storageclient.CheckURL(c.httpClient, c.baseURL+"/", 3*time.Second)
}

// List возвращает записи ресурса. GET /{resource}?...
func (c *Client) List(ctx context.Context, resource string, filter ListFilter) ([]Record, error) {
	path := "/" + url.PathEscape(resource)
	if q := filter.values().Encode(); q != "" {
		path += "?" + q
	}

	var records []Record
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Get возвращает запись по id. GET /{resource}/{id}
func (c *Client) Get(ctx context.Context, resource, id string) (Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodGet, recordPath(resource, id), nil, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Create создаёт запись. POST /{resource}
func (c *Client) Create(ctx context.Context, resource string, payload map[string]any) (Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(resource), payload, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update обновляет запись. PATCH /{resource}/{id}
func (c *Client) Update(ctx context.Context, resource, id string, payload map[string]any) (Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodPatch, recordPath(resource, id), payload, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete удаляет запись. DELETE /{resource}/{id}
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	return c.do(ctx, http.MethodDelete, recordPath(resource, id), nil, nil)
}

func recordPath(resource, id string) string {
	return "/" + url.PathEscape(resource) + "/" + url.PathEscape(id)
}

// do выполняет запрос и декодирует поле data ответа в out.
func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("сериализация запроса %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("создание запроса %s %s: %w", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.tokenProvider != nil {
		token, err := c.tokenProvider(ctx)
		if err != nil {
			return fmt.Errorf("получение токена для API ресурсов: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
		c.logger.Warn("API ресурсов вернул ошибку",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("message", apiErr.Message),
		)
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("чтение ответа %s %s: %w", method, path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrapData(raw), out); err != nil {
		return fmt.Errorf("декодирование ответа %s %s: %w", method, path, err)
	}
	return nil
}

// unwrapData снимает конверт {"data": ...}, если он есть.
func unwrapData(raw []byte) []byte {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		return envelope.Data
	}
	return raw
}

// readErrorMessage извлекает поле message из тела ошибки.
func readErrorMessage(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 4096))
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "пустое тело ответа"
	}
	return msg
}

// AttachmentValue восстанавливает значение слота из сохранённой записи.
//
// Форма хранения на бэкенде не всегда совпадает с кардинальностью поля:
// одиночный объект в multiple-поле становится последовательностью из одного
// элемента, массив в single-поле даёт первый элемент. Неполные ссылки
// отбрасываются. Отсутствующее поле — пустой слот.
func AttachmentValue(rec Record, field AttachmentField) attachment.Value {
	refs := decodeRefs(rec[field.Name])
	if field.Cardinality == attachment.CardinalityMultiple {
		return attachment.MultipleOf(refs...)
	}
	for _, ref := range refs {
		if ref.Complete() {
			return attachment.SingleOf(ref)
		}
	}
	return attachment.EmptySingle()
}

func decodeRefs(raw json.RawMessage) []model.Reference {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '[' {
		var refs []model.Reference
		if err := json.Unmarshal(trimmed, &refs); err != nil {
			return nil
		}
		return refs
	}
	var ref model.Reference
	if err := json.Unmarshal(trimmed, &ref); err != nil {
		return nil
	}
	return []model.Reference{ref}
}
