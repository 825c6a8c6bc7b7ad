// logging.go — журнал входящих запросов шлюза.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// statusRecorder запоминает код ответа и число записанных байт.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += int64(n)
	return n, err
}

// Unwrap нужен http.ResponseController: SSE сбрасывает буфер и снимает дедлайн записи.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// serviceRoute — служебные маршруты, успешные ответы которых пишутся на DEBUG.
func serviceRoute(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/health/")
}

// formIDFromPath достаёт id формы из /api/v1/forms/{form_id}/...
func formIDFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/v1/forms/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	return id
}

// RequestLogger пишет одну запись на запрос. 5xx идут на ERROR, 4xx на WARN,
// успешные служебные запросы на DEBUG, остальное на INFO. Для маршрутов формы
// добавляется form_id, чтобы связать запрос с уведомлениями и журналом.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "http"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			var level slog.Level
			switch {
			case rec.status >= 500:
				level = slog.LevelError
			case rec.status >= 400:
				level = slog.LevelWarn
			case serviceRoute(r.URL.Path):
				level = slog.LevelDebug
			default:
				level = slog.LevelInfo
			}
			if !logger.Enabled(r.Context(), level) {
				return
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Int64("bytes", rec.bytes),
				slog.Duration("duration", time.Since(start)),
				slog.Bool("authorized", r.Header.Get("Authorization") != ""),
			}
			if id := formIDFromPath(r.URL.Path); id != "" {
				attrs = append(attrs, slog.String("form_id", id))
			}
			logger.LogAttrs(r.Context(), level, "HTTP запрос", attrs...)
		})
	}
}
