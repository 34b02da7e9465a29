package services

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkotelnikov/invoicekeeper/internal/backup"
	"github.com/mkotelnikov/invoicekeeper/internal/models"
	"github.com/mkotelnikov/invoicekeeper/internal/repository"
)

// BackupService определяет интерфейс для сервиса резервного копирования
// и восстановления данных пользователя.
type BackupService interface {
	CreateBackup(ctx context.Context, userID string) (*models.CreateBackupResponse, error)
	ListBackups(userID string) ([]models.ArchiveInfo, error)
	DownloadBackup(filename string) ([]byte, error)
	ImportBackup(userID string, data []byte) (string, error)
	DeleteBackup(filename string) error
	CleanupBackups(userID string, keep int) (int, error)
	RestoreBackup(ctx context.Context, targetUserID, filename string, mode models.RestoreMode) (*models.RestoreResult, error)
}

// ArchiveStore описывает хранилище файлов бэкапов (каталог на диске).
type ArchiveStore interface {
	Write(userID string, data []byte) (string, error)
	List(userID string) ([]models.ArchiveInfo, error)
	Read(filename string) (*models.Backup, error)
	ReadFile(filename string) ([]byte, error)
	Delete(filename string) error
	Cleanup(userID string, keep int) (int, error)
}

// Repositories собирает все репозитории, которыми оперируют резервное
// копирование и восстановление.
type Repositories struct {
	Users       repository.UserRepository
	Clients     repository.ClientRepository
	Invoices    repository.InvoiceRepository
	Documents   repository.DocumentRepository
	Statements  repository.StatementRepository
	Preferences repository.PreferencesRepository
	Defaults    repository.DefaultsRepository
}

// Убедимся, что backupService удовлетворяет интерфейсу BackupService.
var _ BackupService = (*backupService)(nil)

type backupService struct {
	repos   Repositories
	archive ArchiveStore
}

// NewBackupService создает новый экземпляр сервиса резервного копирования.
func NewBackupService(repos Repositories, archive ArchiveStore) BackupService {
	return &backupService{repos: repos, archive: archive}
}

// CreateBackup собирает снимок всех данных пользователя, сериализует его
// и сохраняет в архивное хранилище.
func (s *backupService) CreateBackup(ctx context.Context, userID string) (*models.CreateBackupResponse, error) {
	b, err := s.capture(ctx, userID)
	if err != nil {
		return nil, err
	}

	data, err := backup.Serialize(b)
	if err != nil {
		log.Printf("[BackupService] Ошибка сериализации снимка пользователя %s: %v", userID, err)
		return nil, err
	}

	filename, err := s.archive.Write(userID, data)
	if err != nil {
		log.Printf("[BackupService] Ошибка записи бэкапа пользователя %s: %v", userID, err)
		return nil, err
	}

	log.Printf("[BackupService] Бэкап '%s' создан для пользователя %s", filename, userID)
	return &models.CreateBackupResponse{Filename: filename, Metadata: b.Metadata}, nil
}

// capture собирает профиль пользователя и все шесть наборов его записей.
// Наборы читаются конкурентно: между ними нет зависимостей по порядку.
// Хеш пароля безусловно вычищается из снимка.
func (s *backupService) capture(ctx context.Context, userID string) (*models.Backup, error) {
	user, err := s.repos.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var (
		clients    []models.Client
		invoices   []models.Invoice
		documents  []models.Document
		statements []models.Statement
		prefs      *models.Preferences
		defaults   []models.DefaultRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var gerr error
		clients, gerr = s.repos.Clients.ListByUser(gctx, userID)
		return gerr
	})
	g.Go(func() error {
		var gerr error
		invoices, gerr = s.repos.Invoices.ListByUser(gctx, userID)
		return gerr
	})
	g.Go(func() error {
		var gerr error
		documents, gerr = s.repos.Documents.ListByUser(gctx, userID)
		return gerr
	})
	g.Go(func() error {
		var gerr error
		statements, gerr = s.repos.Statements.ListByUser(gctx, userID)
		return gerr
	})
	g.Go(func() error {
		var gerr error
		prefs, gerr = s.repos.Preferences.GetByUser(gctx, userID)
		if errors.Is(gerr, repository.ErrPreferencesNotFound) {
			// Отсутствие настроек - не ошибка, в снимке их просто не будет
			prefs = nil
			return nil
		}
		return gerr
	})
	g.Go(func() error {
		var gerr error
		defaults, gerr = s.repos.Defaults.ListByUser(gctx, userID)
		return gerr
	})
	if err = g.Wait(); err != nil {
		log.Printf("[BackupService] Ошибка сбора данных пользователя %s: %v", userID, err)
		return nil, err
	}

	profile := *user
	profile.PasswordHash = ""

	prefsCount := 0
	if prefs != nil {
		prefsCount = 1
	}

	b := &models.Backup{
		Metadata: models.BackupMetadata{
			UserID:     userID,
			Email:      user.Email,
			BackupDate: time.Now().UTC().Truncate(time.Second),
			Version:    models.BackupVersion,
			DataCounts: models.DataCounts{
				Clients:     len(clients),
				Invoices:    len(invoices),
				Documents:   len(documents),
				Statements:  len(statements),
				Preferences: prefsCount,
				Defaults:    len(defaults),
			},
		},
		Data: models.BackupData{
			User:        &profile,
			Clients:     clients,
			Invoices:    invoices,
			Documents:   documents,
			Statements:  statements,
			Preferences: prefs,
			Defaults:    defaults,
		},
	}

	log.Printf("[BackupService] Снимок пользователя %s собран: %+v", userID, b.Metadata.DataCounts)
	return b, nil
}

// ListBackups возвращает список бэкапов пользователя, новые первыми.
func (s *backupService) ListBackups(userID string) ([]models.ArchiveInfo, error) {
	return s.archive.List(userID)
}

// DownloadBackup возвращает содержимое файла бэкапа как есть (сжатый поток).
func (s *backupService) DownloadBackup(filename string) ([]byte, error) {
	return s.archive.ReadFile(filename)
}

// ImportBackup принимает выгруженный ранее файл бэкапа, проверяет его
// целостность и кладет в архивное хранилище импортирующего пользователя.
func (s *backupService) ImportBackup(userID string, data []byte) (string, error) {
	if _, err := backup.Deserialize(data); err != nil {
		log.Printf("[BackupService] Импортируемый файл не прошел проверку: %v", err)
		return "", err
	}

	filename, err := s.archive.Write(userID, data)
	if err != nil {
		return "", err
	}

	log.Printf("[BackupService] Файл импортирован как '%s' для пользователя %s", filename, userID)
	return filename, nil
}

// DeleteBackup удаляет файл бэкапа.
func (s *backupService) DeleteBackup(filename string) error {
	return s.archive.Delete(filename)
}

// CleanupBackups удаляет старые бэкапы пользователя, оставляя keep самых свежих.
func (s *backupService) CleanupBackups(userID string, keep int) (int, error) {
	return s.archive.Cleanup(userID, keep)
}

// Кастомные ошибки сервиса резервного копирования.
var (
	ErrUserNotFound = errors.New("пользователь не найден")
	ErrInvalidMode  = errors.New("недопустимый режим восстановления")
)
