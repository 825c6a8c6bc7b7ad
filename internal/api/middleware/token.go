// token.go — перенос заголовка Authorization входящего запроса
// в контекст для запросов к хранилищу и API ресурсов.
// Токен не проверяется: проверку выполняет бэкенд.
package middleware

import (
	"net/http"

	"github.com/Saidqodirxon/innocare-admin/internal/token"
)

// TokenForwarding возвращает middleware, сохраняющий Authorization в контексте.
func TokenForwarding() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if value := r.Header.Get("Authorization"); value != "" {
				r = r.WithContext(token.WithToken(r.Context(), value))
			}
			next.ServeHTTP(w, r)
		})
	}
}
