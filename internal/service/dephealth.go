// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Admin Gateway мониторит:
//   - API хранилища файлов — HTTP checker (critical)
//   - API ресурсов консоли — HTTP checker (critical), если адрес отличается от хранилища
//   - PostgreSQL журнала загрузок — SQL checker через pgxpool (не critical), если журнал включён
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками.
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для внешних API
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthTargets — проверяемые зависимости.
type DephealthTargets struct {
	// StorageURL — адрес API хранилища
	StorageURL string
	// BackendURL — адрес API ресурсов
	BackendURL string
	// DB — *sql.DB из pgxpool (stdlib.OpenDBFromPool); nil — журнал выключен
	DB *sql.DB
	// DBURL — URL PostgreSQL для лейблов
	DBURL string
	// TLSSkipVerify — не проверять сертификаты внешних API
	TLSSkipVerify bool
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(
	serviceID string,
	group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, targets, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, targets, checkInterval, logger,
		dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	serviceID string,
	group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.HTTP("storage-api",
			dephealth.FromURL(targets.StorageURL),
			dephealth.WithHTTPHealthPath(healthPath(targets.StorageURL)),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
			dephealth.WithHTTPTLSSkipVerify(targets.TLSSkipVerify),
		),
	}

	if targets.BackendURL != "" && targets.BackendURL != targets.StorageURL {
		opts = append(opts, dephealth.HTTP("resource-api",
			dephealth.FromURL(targets.BackendURL),
			dephealth.WithHTTPHealthPath(healthPath(targets.BackendURL)),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
			dephealth.WithHTTPTLSSkipVerify(targets.TLSSkipVerify),
		))
	}

	if targets.DB != nil {
		// Журнал не обязателен для работы форм
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(targets.DB)),
			dephealth.FromURL(targets.DBURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(false),
		))
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// healthPath возвращает путь проверки API: путь базового URL или "/".
// У API консоли нет отдельного /health, любой ответ сервера подтверждает доступность.
func healthPath(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	last := ds.Health()
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен", slog.Any("last_health", last))
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
