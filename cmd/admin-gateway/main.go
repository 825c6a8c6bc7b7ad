// Точка входа Admin Gateway — серверной стороны форм консоли администратора.
// Загружает конфигурацию, при наличии AG_DB_HOST применяет миграции и подключает
// журнал загрузок, создаёт клиенты хранилища и API ресурсов, реестр форм,
// канал уведомлений, запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/Saidqodirxon/innocare-admin/internal/api/handlers"
	"github.com/Saidqodirxon/innocare-admin/internal/api/middleware"
	"github.com/Saidqodirxon/innocare-admin/internal/api/openapi"
	"github.com/Saidqodirxon/innocare-admin/internal/config"
	"github.com/Saidqodirxon/innocare-admin/internal/contentclient"
	"github.com/Saidqodirxon/innocare-admin/internal/database"
	"github.com/Saidqodirxon/innocare-admin/internal/notify"
	"github.com/Saidqodirxon/innocare-admin/internal/repository"
	"github.com/Saidqodirxon/innocare-admin/internal/server"
	"github.com/Saidqodirxon/innocare-admin/internal/service"
	"github.com/Saidqodirxon/innocare-admin/internal/storageclient"
	"github.com/Saidqodirxon/innocare-admin/internal/token"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Admin Gateway запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage_url", cfg.StorageURL),
		slog.String("backend_url", cfg.BackendURL),
	)

	if os.Getenv("AG_DEPHEALTH_GROUP") == "" {
		logger.Warn("AG_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	ctx := context.Background()

	// 3. Журнал загрузок (опционально, если задан AG_DB_HOST)
	var (
		journal   repository.UploadJournal = repository.NopJournal{}
		pgChecker handlers.ReadinessChecker
		targets   = service.DephealthTargets{
			StorageURL: cfg.StorageURL,
			BackendURL: cfg.BackendURL,
		}
	)
	if cfg.JournalEnabled() {
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}

		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		// Адаптер pgxpool → *sql.DB для topologymetrics:
		// проверка PostgreSQL идёт через существующий пул соединений.
		pgDB := database.OpenDB(pool)
		defer pgDB.Close()

		journal = repository.NewUploadJournal(pool)
		pgChecker = database.NewReadinessChecker(pool)
		targets.DB = pgDB
		targets.DBURL = cfg.DatabaseURL()
	} else {
		logger.Warn("AG_DB_HOST не задан, журнал загрузок отключён")
	}

	// 4. Источник Authorization: заголовок запроса, затем AG_TOKEN_FILE
	tokenStore := token.NewFileStore(cfg.TokenFile, logger)
	if _, err := tokenStore.Load(); err != nil {
		logger.Warn("Резервный токен не прочитан",
			slog.String("path", cfg.TokenFile),
			slog.String("error", err.Error()),
		)
	}
	tokenProvider := token.Provider(tokenStore)

	// 5. HTTP-клиенты хранилища и API ресурсов (общий CA и таймаут)
	storageClient, err := storageclient.New(cfg.StorageURL, cfg.CACertPath, cfg.UpstreamTimeout, tokenProvider, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	backendHTTP, err := storageclient.NewHTTPClient(cfg.CACertPath, cfg.UpstreamTimeout)
	if err != nil {
		logger.Error("Ошибка создания HTTP-клиента API ресурсов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	contentClient := contentclient.New(cfg.BackendURL, backendHTTP, tokenProvider, logger)

	// 6. Services
	hub := notify.NewHub(logger)
	formsSvc := service.NewFormService(
		storageClient, contentClient, journal, hub,
		service.FormOptions{MaxOpen: cfg.FormMaxOpen, TTL: cfg.FormTTL},
		logger,
	)
	recordsSvc := service.NewRecordService(contentClient, logger)
	journalSvc := service.NewJournalService(journal, cfg.JournalEnabled())

	// 7. Handlers
	var backendChecker handlers.ReadinessChecker
	if cfg.BackendURL != cfg.StorageURL {
		backendChecker = contentClient
	}
	healthHandler := handlers.NewHealthHandler(storageClient, backendChecker, pgChecker)
	apiHandler := handlers.NewAPIHandler(healthHandler, formsSvc, recordsSvc, journalSvc, hub, cfg.MaxUploadSize, logger)

	// 8. OpenAPI-валидация запросов
	doc, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}
	validator, err := middleware.NewRequestValidator(doc, logger)
	if err != nil {
		logger.Error("Ошибка создания OpenAPI валидатора", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 9. topologymetrics — мониторинг зависимостей
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"admin-gateway",
		cfg.DephealthGroup,
		targets,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
			defer dephealthSvc.Stop()
		}
	}

	// 10. HTTP-сервер: metrics → logging → token → OpenAPI validation
	srv := server.New(cfg, logger, apiHandler, handlers.ParamErrorHandler,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
		middleware.TokenForwarding(),
		validator.Middleware(),
	)

	// 11. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Admin Gateway остановлен",
		slog.Int("open_forms", formsSvc.OpenCount()),
	)
}
