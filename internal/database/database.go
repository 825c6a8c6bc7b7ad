// Пакет database обслуживает журнал загрузок в PostgreSQL: пул pgx,
// встроенные миграции golang-migrate и проверку готовности.
// Без AG_DB_HOST пакет не используется, журнал заменяется заглушкой.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/Saidqodirxon/innocare-admin/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	// Журнал пишет одну строку на загрузку, большой пул ему не нужен.
	journalMaxConns = 4
	applicationName = "innocare-admin-gateway"
	readyTimeout    = 3 * time.Second
)

// poolConfig собирает настройки пула журнала из конфигурации.
func poolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("разбор DSN журнала: %w", err)
	}
	poolCfg.MaxConns = journalMaxConns
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	return poolCfg, nil
}

// Connect открывает пул журнала и сразу проверяет соединение.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("пул журнала: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("PostgreSQL журнала недоступен (%s): %w", cfg.DatabaseURL(), err)
	}

	logger.Info("Журнал загрузок подключён",
		slog.String("db", cfg.DatabaseURL()),
		slog.Int("max_conns", int(poolCfg.MaxConns)),
	)
	return pool, nil
}

// Migrate доводит схему журнала до последней встроенной миграции.
// Повторный запуск без новых миграций ошибкой не считается.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("источник миграций: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("инициализация миграций: %w", err)
	}
	defer m.Close()

	applied := true
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("применение миграций: %w", err)
		}
		applied = false
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("версия схемы журнала: %w", err)
	}
	logger.Info("Схема журнала загрузок актуальна",
		slog.Uint64("version", uint64(version)),
		slog.Bool("applied", applied),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// OpenDB отдаёт *sql.DB поверх того же пула: так pgcheck из topologymetrics
// не открывает отдельных соединений. Close у *sql.DB пул не закрывает.
func OpenDB(pool *pgxpool.Pool) *sql.DB {
	return stdlib.OpenDBFromPool(pool)
}

// ReadinessChecker сообщает /health/ready о состоянии журнала.
type ReadinessChecker struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{pool: pool, timeout: readyTimeout}
}

func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.pool.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("журнал загрузок недоступен: %v", err)
	}
	stat := c.pool.Stat()
	return "ok", fmt.Sprintf("журнал загрузок доступен, соединений %d/%d",
		stat.AcquiredConns(), stat.MaxConns())
}
