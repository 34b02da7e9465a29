package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
)

const (
	// Порт по умолчанию для HTTPS (непривилегированный).
	defaultServerPort = "8443"

	// Сколько последних бэкапов оставляет плановая чистка.
	defaultBackupRetention = 10

	// Расписание плановой чистки бэкапов (каждый день в 03:00).
	defaultBackupCleanupCron = "0 3 * * *"

	// Каталог хранения файлов бэкапов.
	defaultBackupDir = "./backups"

	// Переменные окружения.
	envServerPort        = "SERVER_PORT"
	envTLSCertFile       = "TLS_CERT_FILE"
	envTLSKeyFile        = "TLS_KEY_FILE"
	envDatabaseDSN       = "DATABASE_DSN"
	envJWTSecret         = "JWT_SECRET" //nolint:gosec // Имя переменной окружения, не секрет
	envBackupDir         = "BACKUP_DIR"
	envBackupRetention   = "BACKUP_RETENTION"
	envBackupCleanupCron = "BACKUP_CLEANUP_CRON"
)

// config хранит конфигурацию сервера.
type config struct {
	Port              string
	CertFile          string
	KeyFile           string
	DatabaseDSN       string
	JWTSecret         string
	BackupDir         string
	BackupRetention   int
	BackupCleanupCron string
}

// parseFlags разбирает флаги и переменные окружения, возвращает config или ошибку.
// Флаг имеет приоритет над переменной окружения.
func parseFlags() (*config, error) {
	cfg := &config{}

	// Определяем флаги
	flag.StringVar(&cfg.Port, "port", "",
		fmt.Sprintf("Порт для запуска HTTPS-сервера (env: %s, default: %s)", envServerPort, defaultServerPort))
	flag.StringVar(&cfg.CertFile, "cert-file", "",
		fmt.Sprintf("Путь к файлу TLS-сертификата (env: %s)", envTLSCertFile))
	flag.StringVar(&cfg.KeyFile, "key-file", "",
		fmt.Sprintf("Путь к файлу TLS-ключа (env: %s)", envTLSKeyFile))
	flag.StringVar(&cfg.DatabaseDSN, "database-dsn", "",
		fmt.Sprintf("Строка подключения к базе данных (env: %s)", envDatabaseDSN))
	flag.StringVar(&cfg.JWTSecret, "jwt-secret", "",
		fmt.Sprintf("Секрет подписи JWT-токенов (env: %s)", envJWTSecret))
	flag.StringVar(&cfg.BackupDir, "backup-dir", "",
		fmt.Sprintf("Каталог хранения файлов бэкапов (env: %s, default: %s)", envBackupDir, defaultBackupDir))
	flag.IntVar(&cfg.BackupRetention, "backup-retention", 0,
		fmt.Sprintf("Сколько последних бэкапов оставляет плановая чистка (env: %s, default: %d)",
			envBackupRetention, defaultBackupRetention))
	flag.StringVar(&cfg.BackupCleanupCron, "backup-cleanup-cron", "",
		fmt.Sprintf("Расписание плановой чистки бэкапов (env: %s, default: %q)",
			envBackupCleanupCron, defaultBackupCleanupCron))

	// Парсим флаги
	flag.Parse()

	// Применяем переменные окружения, если флаги не заданы
	if cfg.Port == "" {
		cfg.Port = getEnv(envServerPort, defaultServerPort)
	}
	if cfg.CertFile == "" {
		cfg.CertFile = os.Getenv(envTLSCertFile)
	}
	if cfg.KeyFile == "" {
		cfg.KeyFile = os.Getenv(envTLSKeyFile)
	}
	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = os.Getenv(envDatabaseDSN)
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = os.Getenv(envJWTSecret)
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = getEnv(envBackupDir, defaultBackupDir)
	}
	if cfg.BackupRetention == 0 {
		retention := defaultBackupRetention
		if value, ok := os.LookupEnv(envBackupRetention); ok {
			parsed, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("неверное значение %s=%q: %w", envBackupRetention, value, err)
			}
			retention = parsed
		}
		cfg.BackupRetention = retention
	}
	if cfg.BackupCleanupCron == "" {
		cfg.BackupCleanupCron = getEnv(envBackupCleanupCron, defaultBackupCleanupCron)
	}

	// Проверяем обязательные параметры
	if cfg.CertFile == "" {
		return nil, errors.New("не указан путь к файлу сертификата (--cert-file или " + envTLSCertFile + ")")
	}
	if cfg.KeyFile == "" {
		return nil, errors.New("не указан путь к файлу ключа (--key-file или " + envTLSKeyFile + ")")
	}
	if cfg.DatabaseDSN == "" {
		return nil, errors.New("не указана строка подключения к БД (--database-dsn или " + envDatabaseDSN + ")")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("не указан секрет подписи токенов (--jwt-secret или " + envJWTSecret + ")")
	}
	if cfg.BackupRetention < 0 {
		return nil, errors.New("значение backup-retention не может быть отрицательным")
	}

	return cfg, nil
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
