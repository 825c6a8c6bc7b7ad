// Пакет storageclient — HTTP-клиент удалённого хранилища файлов консоли.
// Поддерживает TLS с кастомным CA (AG_CA_CERT_PATH).
// Операции: UploadSingle (POST /single), UploadMultiple (POST /multiple),
// Delete (DELETE /file/{id}).
package storageclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Saidqodirxon/innocare-admin/internal/attachment"
	"github.com/Saidqodirxon/innocare-admin/internal/domain/model"
)

// TokenProvider — функция, возвращающая значение заголовка Authorization.
// Пустая строка — запрос уходит без авторизации.
type TokenProvider func(ctx context.Context) (string, error)

// StatusError — хранилище ответило статусом не из диапазона 2xx.
type StatusError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("хранилище: %s вернул статус %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("хранилище: %s вернул статус %d: %s", e.Operation, e.StatusCode, e.Message)
}

// Client — HTTP-клиент хранилища файлов.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokenProvider TokenProvider
	logger        *slog.Logger
}

// Проверка соответствия интерфейсу attachment.Storage.
var _ attachment.Storage = (*Client)(nil)

// New создаёт клиент хранилища.
// baseURL — адрес хранилища, caCertPath — путь к CA-сертификату (пустая строка — стандартный пул),
// timeout — таймаут одного запроса, tokenProvider — источник Authorization (может быть nil).
func New(baseURL, caCertPath string, timeout time.Duration, tokenProvider TokenProvider, logger *slog.Logger) (*Client, error) {
	httpClient, err := NewHTTPClient(caCertPath, timeout)
	if err != nil {
		return nil, err
	}
	if caCertPath != "" {
		logger.Info("CA-сертификат хранилища добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &Client{
		baseURL:       normalizeURL(baseURL),
		httpClient:    httpClient,
		tokenProvider: tokenProvider,
		logger:        logger.With(slog.String("component", "storage_client")),
	}, nil
}

// NewHTTPClient создаёт HTTP-клиент с таймаутом и опциональным кастомным CA.
func NewHTTPClient(caCertPath string, timeout time.Duration) (*http.Client, error) {
	httpClient := &http.Client{Timeout: timeout}
	if caCertPath == "" {
		return httpClient, nil
	}

	tlsConfig, err := buildTLSConfig(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("загрузка CA-сертификата: %w", err)
	}
	httpClient.Transport = &http.Transport{
		TLSClientConfig: tlsConfig,
	}
	return httpClient, nil
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		RootCAs: caCertPool,
	}, nil
}

// BaseURL возвращает адрес хранилища.
func (c *Client) BaseURL() string { return c.baseURL }

// readinessTimeout — таймаут проверки готовности хранилища.
const readinessTimeout = 3 * time.Second

// CheckReady проверяет доступность хранилища (GET базового адреса).
// Любой ответ кроме 5xx считается готовностью: у хранилища нет
// отдельного health endpoint.
func (c *Client) CheckReady() (status, message string) {
	return CheckURL(c.httpClient, c.baseURL+"/", readinessTimeout)
}

// CheckURL выполняет GET url и возвращает статус готовности:
// ошибка соединения — fail, 5xx — degraded, остальное — ok.
func CheckURL(client *http.Client, rawURL string, timeout time.Duration) (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "fail", "ошибка создания запроса: " + err.Error()
	}
	resp, err := client.Do(req)
	if err != nil {
		return "fail", fmt.Sprintf("%s недоступен: %v", rawURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 500 {
		return "degraded", fmt.Sprintf("%s вернул статус %d", rawURL, resp.StatusCode)
	}
	return "ok", fmt.Sprintf("доступен, статус %d", resp.StatusCode)
}

// UploadSingle загружает один файл.
// POST /single — multipart, поле file; ответ — массив, используется первый элемент.
func (c *Client) UploadSingle(ctx context.Context, file model.Upload) (model.Reference, error) {
	refs, err := c.upload(ctx, "single", "/single", "file", []model.Upload{file})
	if err != nil {
		return model.Reference{}, err
	}
	if len(refs) == 0 {
		return model.Reference{}, fmt.Errorf("%w: пустой ответ /single", attachment.ErrMalformedResponse)
	}
	return refs[0], nil
}

// UploadMultiple загружает несколько файлов одним запросом.
// POST /multiple — multipart, повторяющееся поле files; ответ — массив ссылок в порядке файлов.
func (c *Client) UploadMultiple(ctx context.Context, files []model.Upload) ([]model.Reference, error) {
	return c.upload(ctx, "multiple", "/multiple", "files", files)
}

// Delete удаляет файл по id.
// DELETE /file/{id} — без тела, успех — любой 2xx.
func (c *Client) Delete(ctx context.Context, id string) error {
	start := time.Now()
	reqURL := c.baseURL + "/file/" + url.PathEscape(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, nil)
	if err != nil {
		return fmt.Errorf("создание запроса Delete: %w", err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observeRequest("delete", "error", start)
		return fmt.Errorf("запрос Delete к %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	observeRequest("delete", strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Operation: "DELETE /file/{id}", StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("Файл удалён из хранилища", slog.String("ref_id", id))
	return nil
}

// upload отправляет multipart-запрос и разбирает массив ссылок.
// Тело формируется потоково через io.Pipe, файлы не буферизуются целиком.
func (c *Client) upload(ctx context.Context, operation, endpoint, fieldName string, files []model.Upload) ([]model.Reference, error) {
	start := time.Now()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeParts(mw, fieldName, files))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("создание запроса %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := c.authorize(ctx, req); err != nil {
		pr.Close()
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observeRequest(operation, "error", start)
		return nil, fmt.Errorf("запрос %s к %s: %w", endpoint, c.baseURL, err)
	}
	defer resp.Body.Close()
	observeRequest(operation, strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Operation: "POST " + endpoint, StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	refs, err := decodeReferences(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", attachment.ErrMalformedResponse, endpoint, err)
	}

	c.logger.Debug("Файлы загружены в хранилище",
		slog.String("endpoint", endpoint),
		slog.Int("files", len(files)),
		slog.Int("references", len(refs)),
	)
	return refs, nil
}

// writeParts пишет файлы в multipart-тело и закрывает writer.
func writeParts(mw *multipart.Writer, fieldName string, files []model.Upload) error {
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(fieldName), escapeQuotes(f.Filename)))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		part, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if f.Body != nil {
			if _, err := io.Copy(part, f.Body); err != nil {
				return fmt.Errorf("чтение файла %q: %w", f.Filename, err)
			}
		}
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// authorize добавляет заголовок Authorization, если токен известен.
// Значение передаётся как есть: хранилище принимает сохранённый токен консоли.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokenProvider == nil {
		return nil
	}
	token, err := c.tokenProvider(ctx)
	if err != nil {
		return fmt.Errorf("получение токена для хранилища: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	return nil
}

// decodeReferences разбирает ответ хранилища.
// Допустимые формы: [{...}], {"data": [{...}]}, {"data": {...}}, {...}.
// Одиночный объект считается массивом из одного элемента.
func decodeReferences(r io.Reader) ([]model.Reference, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("декодирование ответа: %w", err)
	}
	raw = unwrapData(raw)

	trimmed := strings.TrimSpace(string(raw))
	switch {
	case strings.HasPrefix(trimmed, "["):
		var refs []model.Reference
		if err := json.Unmarshal(raw, &refs); err != nil {
			return nil, fmt.Errorf("декодирование массива ссылок: %w", err)
		}
		return refs, nil
	case strings.HasPrefix(trimmed, "{"):
		var ref model.Reference
		if err := json.Unmarshal(raw, &ref); err != nil {
			return nil, fmt.Errorf("декодирование ссылки: %w", err)
		}
		return []model.Reference{ref}, nil
	default:
		return nil, errors.New("ожидался массив или объект")
	}
}

// unwrapData снимает конверт {"data": ...}, если он есть.
func unwrapData(raw json.RawMessage) json.RawMessage {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		return envelope.Data
	}
	return raw
}

// readErrorMessage извлекает поле message из тела ошибки или возвращает тело целиком.
func readErrorMessage(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 4096))
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}

// normalizeURL убирает trailing slash из URL.
func normalizeURL(rawURL string) string {
	return strings.TrimRight(rawURL, "/")
}
