package token

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// signedToken создаёт HS256 JWT с указанным exp.
func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("подпись токена: %v", err)
	}
	return s
}

// TestProvider_ContextFirst — токен из context важнее файла.
func TestProvider_ContextFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("file-token\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	provider := Provider(NewFileStore(path, testLogger()))

	got, err := provider(WithToken(context.Background(), "header-token"))
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	if got != "header-token" {
		t.Errorf("токен = %q, ожидался header-token", got)
	}

	got, err = provider(context.Background())
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	if got != "file-token" {
		t.Errorf("токен = %q, ожидался file-token", got)
	}
}

// TestFileStore_Missing — отсутствующий файл не является ошибкой.
func TestFileStore_Missing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent"), testLogger())
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "" {
		t.Errorf("токен = %q, ожидалась пустая строка", got)
	}

	var empty *FileStore
	if v, err := empty.Load(); v != "" || err != nil {
		t.Errorf("nil store: %q, %v", v, err)
	}
}

// TestFileStore_Reload — файл перечитывается после изменения.
func TestFileStore_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("first"), 0o600); err != nil {
		t.Fatal(err)
	}
	store := NewFileStore(path, testLogger())
	if v, _ := store.Load(); v != "first" {
		t.Fatalf("токен = %q, ожидался first", v)
	}

	if err := os.WriteFile(path, []byte("second"), 0o600); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	if v, _ := store.Load(); v != "second" {
		t.Errorf("токен = %q, ожидался second", v)
	}
}

// TestExpiresAt проверяет чтение exp без проверки подписи.
func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := signedToken(t, exp)

	for _, value := range []string{raw, "Bearer " + raw, "bearer " + raw} {
		got, ok := ExpiresAt(value)
		if !ok {
			t.Fatalf("ExpiresAt(%q...) ok=false", value[:10])
		}
		if !got.Equal(exp) {
			t.Errorf("exp = %v, ожидался %v", got, exp)
		}
	}

	if _, ok := ExpiresAt("opaque-token"); ok {
		t.Error("непрозрачный токен не должен давать exp")
	}
	if _, ok := ExpiresAt(""); ok {
		t.Error("пустой токен не должен давать exp")
	}
}
