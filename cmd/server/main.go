package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Драйвер PostgreSQL
	"github.com/robfig/cron/v3"

	"github.com/mkotelnikov/invoicekeeper/internal/handlers"
	appmiddleware "github.com/mkotelnikov/invoicekeeper/internal/middleware"
	"github.com/mkotelnikov/invoicekeeper/internal/render"
	"github.com/mkotelnikov/invoicekeeper/internal/repository"
	"github.com/mkotelnikov/invoicekeeper/internal/services"
	"github.com/mkotelnikov/invoicekeeper/internal/storage"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 60 * time.Second
	defaultIdleTimeout  = 30 * time.Second

	// Переменные окружения для MinIO (значения по умолчанию из docker-compose).
	envMinioEndpoint     = "MINIO_ENDPOINT"
	envMinioUser         = "MINIO_USER"
	envMinioPassword     = "MINIO_PASSWORD"
	envMinioBucket       = "MINIO_BUCKET"
	defaultMinioEndpoint = "localhost:9000"
	defaultMinioUser     = "minioadmin"
	defaultMinioPassword = "minioadmin"
	defaultMinioBucket   = "invoicekeeper-documents"
	minioUseSSL          = false // Для локальной разработки
)

// Точки подмены для тестов setupDependencies.
var (
	newPostgresDB = repository.NewPostgresDB
	initSchema    = repository.InitSchema
)

// Структура для хранения инициализированных зависимостей.
type dependencies struct {
	db               *sqlx.DB
	fileStorage      storage.FileStorage
	userRepo         repository.UserRepository
	backupService    services.BackupService
	authHandler      *handlers.AuthHandler
	backupHandler    *handlers.BackupHandler
	clientHandler    *handlers.ClientHandler
	invoiceHandler   *handlers.InvoiceHandler
	documentHandler  *handlers.DocumentHandler
	statementHandler *handlers.StatementHandler
	settingsHandler  *handlers.SettingsHandler
}

// main - точка входа. Вызывает run и обрабатывает ошибку.
func main() {
	if err := run(); err != nil {
		log.Printf("Ошибка выполнения сервера: %v", err)
		os.Exit(1)
	}
}

// run содержит основную логику запуска сервера и возвращает ошибку.
func run() error {
	log.Println("Запуск сервера InvoiceKeeper...")

	cfg, err := parseFlags()
	if err != nil {
		return fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	// Инициализация зависимостей
	deps, err := setupDependencies(cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации зависимостей: %w", err)
	}
	// Отложенное закрытие соединения с БД
	defer func() {
		if deps.db != nil {
			if closeErr := deps.db.Close(); closeErr != nil {
				log.Printf("Ошибка закрытия соединения с БД: %v", closeErr)
			}
		}
	}()

	// Плановая чистка старых бэкапов
	scheduler, err := setupCleanupScheduler(cfg, deps.userRepo, deps.backupService)
	if err != nil {
		return fmt.Errorf("ошибка настройки плановой чистки бэкапов: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Настройка роутера
	r := setupRouter(cfg.JWTSecret, deps)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	log.Printf("Запуск HTTPS-сервера на порту %s...", cfg.Port)
	log.Printf("Используется сертификат: %s", cfg.CertFile)
	log.Printf("Используется ключ: %s", cfg.KeyFile)

	if err = server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ошибка запуска HTTPS-сервера: %w", err)
	}
	return nil
}

// setupDependencies инициализирует и возвращает все необходимые зависимости сервера.
func setupDependencies(cfg *config) (*dependencies, error) {
	deps := &dependencies{}
	var err error

	// 1. Подключение к БД и применение схемы
	deps.db, err = newPostgresDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации БД: %w", err)
	}
	if err = initSchema(deps.db); err != nil {
		return nil, fmt.Errorf("ошибка применения схемы БД: %w", err)
	}
	log.Println("Соединение с БД успешно установлено.")

	// 2. Инициализация клиента MinIO для файлов документов
	minioCfg := storage.MinioConfig{
		Endpoint:        getEnv(envMinioEndpoint, defaultMinioEndpoint),
		AccessKeyID:     getEnv(envMinioUser, defaultMinioUser),
		SecretAccessKey: getEnv(envMinioPassword, defaultMinioPassword),
		UseSSL:          minioUseSSL,
		BucketName:      getEnv(envMinioBucket, defaultMinioBucket),
	}
	deps.fileStorage, err = storage.NewMinioClient(minioCfg)
	if err != nil {
		if dbCloseErr := deps.db.Close(); dbCloseErr != nil {
			log.Printf("Ошибка закрытия соединения с БД при ошибке MinIO: %v", dbCloseErr)
		}
		return nil, fmt.Errorf("ошибка инициализации клиента MinIO: %w", err)
	}

	// 3. Создание репозиториев
	deps.userRepo = repository.NewPostgresUserRepository(deps.db)
	clientRepo := repository.NewPostgresClientRepository(deps.db)
	invoiceRepo := repository.NewPostgresInvoiceRepository(deps.db)
	documentRepo := repository.NewPostgresDocumentRepository(deps.db)
	statementRepo := repository.NewPostgresStatementRepository(deps.db)
	prefsRepo := repository.NewPostgresPreferencesRepository(deps.db)
	defaultsRepo := repository.NewPostgresDefaultsRepository(deps.db)

	// 4. Создание сервисов
	authService := services.NewAuthService(deps.userRepo, cfg.JWTSecret)
	archiveStorage := storage.NewArchiveStorage(cfg.BackupDir)
	deps.backupService = services.NewBackupService(services.Repositories{
		Users:       deps.userRepo,
		Clients:     clientRepo,
		Invoices:    invoiceRepo,
		Documents:   documentRepo,
		Statements:  statementRepo,
		Preferences: prefsRepo,
		Defaults:    defaultsRepo,
	}, archiveStorage)
	documentService := services.NewDocumentService(documentRepo, invoiceRepo, deps.fileStorage)
	statementService := services.NewStatementService(statementRepo, invoiceRepo, clientRepo)

	invoiceRenderer, err := render.NewHTMLRenderer()
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации рендерера счетов: %w", err)
	}

	// 5. Создание обработчиков
	deps.authHandler = handlers.NewAuthHandler(authService)
	deps.backupHandler = handlers.NewBackupHandler(deps.backupService)
	deps.clientHandler = handlers.NewClientHandler(clientRepo)
	deps.invoiceHandler = handlers.NewInvoiceHandler(invoiceRepo, clientRepo, prefsRepo, invoiceRenderer, documentService)
	deps.documentHandler = handlers.NewDocumentHandler(documentService, documentRepo)
	deps.statementHandler = handlers.NewStatementHandler(statementService)
	deps.settingsHandler = handlers.NewSettingsHandler(prefsRepo, defaultsRepo)

	return deps, nil
}

// setupCleanupScheduler настраивает cron-задачу плановой чистки старых
// бэкапов для всех зарегистрированных пользователей.
func setupCleanupScheduler(
	cfg *config,
	userRepo repository.UserRepository,
	backupService services.BackupService,
) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(cfg.BackupCleanupCron, func() {
		log.Printf("[CleanupJob] Запуск плановой чистки бэкапов (retention=%d)", cfg.BackupRetention)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		userIDs, err := userRepo.ListUserIDs(ctx)
		if err != nil {
			log.Printf("[CleanupJob] Ошибка получения списка пользователей: %v", err)
			return
		}

		totalDeleted := 0
		for _, userID := range userIDs {
			deleted, err := backupService.CleanupBackups(userID, cfg.BackupRetention)
			if err != nil {
				log.Printf("[CleanupJob] Ошибка чистки бэкапов пользователя %s: %v", userID, err)
				continue
			}
			totalDeleted += deleted
		}
		log.Printf("[CleanupJob] Плановая чистка завершена, удалено файлов: %d", totalDeleted)
	})
	if err != nil {
		return nil, fmt.Errorf("неверное cron-выражение %q: %w", cfg.BackupCleanupCron, err)
	}

	log.Printf("Плановая чистка бэкапов настроена: %q, retention=%d", cfg.BackupCleanupCron, cfg.BackupRetention)
	return c, nil
}

// setupRouter настраивает и возвращает роутер chi.
func setupRouter(jwtSecret string, deps *dependencies) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- Маршруты --- //
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong\n"))
	})

	// Определяем базовый маршрут /api
	r.Route("/api", func(r chi.Router) {
		// Публичные маршруты (регистрация, вход)
		r.Post("/register", deps.authHandler.Register)
		r.Post("/login", deps.authHandler.Login)

		// Приватные маршруты (требуют аутентификации)
		r.Group(func(r chi.Router) {
			// Применяем middleware аутентификации ко всей группе
			r.Use(appmiddleware.NewAuthenticator(jwtSecret))

			// Маршруты резервного копирования и восстановления
			r.Route("/backups", func(r chi.Router) {
				r.Post("/", deps.backupHandler.Create)
				r.Get("/", deps.backupHandler.List)
				r.Post("/upload", deps.backupHandler.Upload)
				r.Post("/restore", deps.backupHandler.Restore)
				r.Post("/cleanup", deps.backupHandler.Cleanup)
				r.Get("/{filename}", deps.backupHandler.Download)
				r.Delete("/{filename}", deps.backupHandler.Delete)
			})

			// Маршруты для работы с клиентами
			r.Route("/clients", func(r chi.Router) {
				r.Get("/", deps.clientHandler.List)
				r.Post("/", deps.clientHandler.Create)
				r.Get("/{id}", deps.clientHandler.Get)
				r.Put("/{id}", deps.clientHandler.Update)
				r.Delete("/{id}", deps.clientHandler.Delete)
			})

			// Маршруты для работы со счетами
			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", deps.invoiceHandler.List)
				r.Post("/", deps.invoiceHandler.Create)
				r.Get("/{id}", deps.invoiceHandler.Get)
				r.Put("/{id}", deps.invoiceHandler.Update)
				r.Delete("/{id}", deps.invoiceHandler.Delete)
				r.Get("/{id}/render", deps.invoiceHandler.Render)
				r.Get("/{id}/documents/archive", deps.invoiceHandler.DocumentsArchive)
			})

			// Маршруты для работы с документами
			r.Route("/documents", func(r chi.Router) {
				r.Get("/", deps.documentHandler.List)
				r.Post("/", deps.documentHandler.Upload)
				r.Get("/{id}", deps.documentHandler.Download)
				r.Delete("/{id}", deps.documentHandler.Delete)
			})

			// Маршруты для работы с выписками
			r.Route("/statements", func(r chi.Router) {
				r.Get("/", deps.statementHandler.List)
				r.Post("/", deps.statementHandler.Generate)
				r.Get("/{id}", deps.statementHandler.Get)
				r.Delete("/{id}", deps.statementHandler.Delete)
			})

			// Маршруты настроек и шаблонов значений по умолчанию
			r.Route("/settings", func(r chi.Router) {
				r.Get("/preferences", deps.settingsHandler.GetPreferences)
				r.Put("/preferences", deps.settingsHandler.PutPreferences)
				r.Get("/defaults", deps.settingsHandler.ListDefaults)
				r.Post("/defaults", deps.settingsHandler.CreateDefault)
				r.Put("/defaults/{id}", deps.settingsHandler.UpdateDefault)
				r.Delete("/defaults/{id}", deps.settingsHandler.DeleteDefault)
			})
		})
	})
	return r
}
