// Пакет config — загрузка и валидация конфигурации Admin Gateway
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Admin Gateway.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8000-8009)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- Внешние API ---

	// Адрес API хранилища файлов (/single, /multiple, /file/{id})
	StorageURL string
	// Адрес API ресурсов консоли (по умолчанию совпадает с StorageURL)
	BackendURL string
	// Путь к CA-сертификату для TLS-соединений с API (опционально)
	CACertPath string
	// Таймаут одного запроса к внешним API
	UpstreamTimeout time.Duration
	// Файл с сохранённым токеном, используется, если запрос пришёл без Authorization
	TokenFile string

	// --- Формы ---

	// Время жизни неактивной формы
	FormTTL time.Duration
	// Максимум одновременно открытых форм
	FormMaxOpen int
	// Лимит размера multipart-запроса загрузки
	MaxUploadSize int64

	// --- PostgreSQL (журнал загрузок, опционально) ---

	// Хост PostgreSQL; пустое значение отключает журнал
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- topologymetrics ---

	// Группа сервиса в метриках зависимостей
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// AG_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("AG_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("AG_PORT: %w", err)
	}
	if cfg.Port < 8000 || cfg.Port > 8009 {
		return nil, fmt.Errorf("AG_PORT: значение %d вне допустимого диапазона 8000-8009", cfg.Port)
	}

	// AG_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("AG_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("AG_LOG_LEVEL: %w", err)
	}

	// AG_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("AG_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("AG_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.HTTPReadTimeout, err = getEnvDuration("AG_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AG_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("AG_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AG_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("AG_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AG_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Внешние API ---

	// AG_STORAGE_URL — обязательный
	cfg.StorageURL, err = getEnvRequired("AG_STORAGE_URL")
	if err != nil {
		return nil, err
	}
	cfg.StorageURL, err = parseBaseURL(cfg.StorageURL)
	if err != nil {
		return nil, fmt.Errorf("AG_STORAGE_URL: %w", err)
	}

	// AG_BACKEND_URL — по умолчанию тот же сервер, что и хранилище
	cfg.BackendURL, err = parseBaseURL(getEnvDefault("AG_BACKEND_URL", cfg.StorageURL))
	if err != nil {
		return nil, fmt.Errorf("AG_BACKEND_URL: %w", err)
	}

	// AG_CA_CERT_PATH — путь к CA-сертификату (опционально)
	cfg.CACertPath = getEnvDefault("AG_CA_CERT_PATH", "")

	cfg.UpstreamTimeout, err = getEnvDuration("AG_UPSTREAM_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AG_UPSTREAM_TIMEOUT: %w", err)
	}
	if cfg.UpstreamTimeout <= 0 {
		return nil, fmt.Errorf("AG_UPSTREAM_TIMEOUT: значение должно быть больше нуля")
	}

	cfg.TokenFile = getEnvDefault("AG_TOKEN_FILE", "")

	// --- Формы ---

	// AG_FORM_TTL — время жизни неактивной формы (по умолчанию 30m)
	cfg.FormTTL, err = getEnvDuration("AG_FORM_TTL", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("AG_FORM_TTL: %w", err)
	}
	if cfg.FormTTL <= 0 {
		return nil, fmt.Errorf("AG_FORM_TTL: значение должно быть больше нуля")
	}

	// AG_FORM_MAX_OPEN — максимум открытых форм (по умолчанию 1000)
	cfg.FormMaxOpen, err = getEnvInt("AG_FORM_MAX_OPEN", 1000)
	if err != nil {
		return nil, fmt.Errorf("AG_FORM_MAX_OPEN: %w", err)
	}
	if cfg.FormMaxOpen < 1 || cfg.FormMaxOpen > 100000 {
		return nil, fmt.Errorf("AG_FORM_MAX_OPEN: значение %d вне допустимого диапазона 1-100000", cfg.FormMaxOpen)
	}

	// AG_MAX_UPLOAD_SIZE — лимит multipart-запроса в байтах (по умолчанию 32 MiB)
	maxUpload, err := getEnvInt("AG_MAX_UPLOAD_SIZE", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("AG_MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUpload < 1 {
		return nil, fmt.Errorf("AG_MAX_UPLOAD_SIZE: значение должно быть больше нуля")
	}
	cfg.MaxUploadSize = int64(maxUpload)

	// --- PostgreSQL ---

	cfg.DBHost = getEnvDefault("AG_DB_HOST", "")
	if cfg.DBHost != "" {
		cfg.DBPort, err = getEnvInt("AG_DB_PORT", 5432)
		if err != nil {
			return nil, fmt.Errorf("AG_DB_PORT: %w", err)
		}
		cfg.DBName, err = getEnvRequired("AG_DB_NAME")
		if err != nil {
			return nil, err
		}
		cfg.DBUser, err = getEnvRequired("AG_DB_USER")
		if err != nil {
			return nil, err
		}
		cfg.DBPassword, err = getEnvRequired("AG_DB_PASSWORD")
		if err != nil {
			return nil, err
		}
		cfg.DBSSLMode = getEnvDefault("AG_DB_SSL_MODE", "disable")
		validSSLModes := map[string]bool{
			"disable": true, "require": true, "verify-ca": true, "verify-full": true,
		}
		if !validSSLModes[cfg.DBSSLMode] {
			return nil, fmt.Errorf("AG_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
		}
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("AG_DEPHEALTH_GROUP", "innocare")
	cfg.DephealthCheckInterval, err = getEnvDuration("AG_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AG_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("AG_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AG_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// JournalEnabled сообщает, настроен ли PostgreSQL для журнала загрузок.
func (c *Config) JournalEnabled() bool {
	return c.DBHost != ""
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без учётных данных
// (для лейблов topologymetrics, не для подключения).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseBaseURL проверяет абсолютный http(s) URL и убирает завершающий слеш.
func parseBaseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("некорректный URL %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("некорректный URL %q: ожидается http(s)://host[:port][/path]", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}
