// Пакет token — источник значения заголовка Authorization для запросов
// к хранилищу и API ресурсов.
//
// Основной источник — заголовок Authorization входящего запроса консоли
// (переносится через context). Резервный — файл с сохранённым токеном
// (AG_TOKEN_FILE), аналог клиентского хранилища токена консоли.
// Токен не проверяется: аутентификацию выполняет бэкенд.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey — ключ context для токена вызывающей стороны.
type contextKey struct{}

// WithToken сохраняет значение Authorization в context.
func WithToken(ctx context.Context, value string) context.Context {
	return context.WithValue(ctx, contextKey{}, value)
}

// FromContext возвращает значение Authorization из context.
func FromContext(ctx context.Context) string {
	v, _ := ctx.Value(contextKey{}).(string)
	return v
}

// FileStore — резервный токен, хранящийся в файле.
// Файл перечитывается при изменении mtime, чтобы ротация токена
// не требовала перезапуска.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	value   string
	modTime time.Time
}

// NewFileStore создаёт хранилище токена. Пустой path — резервного токена нет.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With(slog.String("component", "token_store")),
	}
}

// Load возвращает токен из файла. Отсутствие файла — пустой токен без ошибки.
func (s *FileStore) Load() (string, error) {
	if s == nil || s.path == "" {
		return "", nil
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("чтение файла токена: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !info.ModTime().Equal(s.modTime) {
		data, err := os.ReadFile(s.path)
		if err != nil {
			return "", fmt.Errorf("чтение файла токена: %w", err)
		}
		s.value = strings.TrimSpace(string(data))
		s.modTime = info.ModTime()
		s.warnIfExpired(s.value)
	}
	return s.value, nil
}

// warnIfExpired пишет предупреждение, если у JWT истёк срок действия.
func (s *FileStore) warnIfExpired(value string) {
	exp, ok := ExpiresAt(value)
	if !ok {
		return
	}
	if time.Now().After(exp) {
		s.logger.Warn("Срок действия сохранённого токена истёк",
			slog.String("path", s.path),
			slog.Time("expires_at", exp),
		)
	}
}

// Provider возвращает функцию-источник Authorization:
// сначала токен из context, затем резервный токен из файла.
func Provider(store *FileStore) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		if v := FromContext(ctx); v != "" {
			return v, nil
		}
		return store.Load()
	}
}

// ExpiresAt читает claim exp из JWT без проверки подписи.
// Префикс "Bearer " допускается. ok=false — значение не JWT или exp отсутствует.
func ExpiresAt(value string) (time.Time, bool) {
	raw := strings.TrimSpace(value)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw == "" {
		return time.Time{}, false
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
