package storage

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mkotelnikov/invoicekeeper/internal/backup"
	"github.com/mkotelnikov/invoicekeeper/internal/models"
)

// Кастомные ошибки архивного хранилища.
var (
	ErrArchiveNotFound = errors.New("файл бэкапа не найден")
	ErrDeleteFailed    = errors.New("не удалось удалить файл бэкапа")
	ErrBadArchiveName  = errors.New("недопустимое имя файла бэкапа")
)

// Шаблон имени файла бэкапа: backup-user-<метка времени>-<8 символов ID владельца>.json.gz
var archiveNameRe = regexp.MustCompile(`^backup-user-(\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2})-([0-9a-f]{8})\.json\.gz$`)

// Формат метки времени в имени файла (двоеточия недопустимы в именах файлов).
const archiveTimeLayout = "2006-01-02T15-04-05"

// Длина фрагмента идентификатора владельца в имени файла.
const ownerFragmentLen = 8

// ArchiveStorage хранит сериализованные бэкапы как файлы в каталоге.
type ArchiveStorage struct {
	dir string
}

// NewArchiveStorage создает хранилище бэкапов поверх указанного каталога.
func NewArchiveStorage(dir string) *ArchiveStorage {
	return &ArchiveStorage{dir: dir}
}

// Write сохраняет сериализованный снимок на диск и возвращает имя файла.
// Имя выводится из текущего времени и фрагмента идентификатора владельца.
func (s *ArchiveStorage) Write(userID string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("ошибка создания каталога бэкапов '%s': %w", s.dir, err)
	}

	// Метка времени в имени имеет секундную точность. Файл создается с
	// O_EXCL: при коллизии (второй бэкап владельца в ту же секунду) метка
	// сдвигается вперед до свободного имени, ранний файл не перезаписывается.
	now := time.Now()
	for attempt := 0; ; attempt++ {
		filename := fmt.Sprintf("backup-user-%s-%s.json.gz",
			now.Add(time.Duration(attempt)*time.Second).Format(archiveTimeLayout), ownerFragment(userID))
		path := filepath.Join(s.dir, filename)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return "", fmt.Errorf("ошибка записи файла бэкапа '%s': %w", filename, err)
		}
		if _, err = f.Write(data); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("ошибка записи файла бэкапа '%s': %w", filename, err)
		}
		if err = f.Close(); err != nil {
			return "", fmt.Errorf("ошибка записи файла бэкапа '%s': %w", filename, err)
		}

		log.Printf("[ArchiveStorage] Бэкап '%s' записан (%d байт)", filename, len(data))
		return filename, nil
	}
}

// List перечисляет бэкапы, принадлежащие пользователю, новые первыми.
// Принадлежность определяется по фрагменту идентификатора в имени файла
// (префиксное совпадение - заведомо слабая привязка, см. Read/заголовок).
// Для нечитаемых файлов метаданные деградируют до времени модификации
// файла и нулевых количеств, но запись из списка не выпадает.
func (s *ArchiveStorage) List(userID string) ([]models.ArchiveInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			// Каталог еще не создавался - бэкапов нет
			return []models.ArchiveInfo{}, nil
		}
		return nil, fmt.Errorf("ошибка чтения каталога бэкапов '%s': %w", s.dir, err)
	}

	infos := make([]models.ArchiveInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := archiveNameRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		if !strings.HasPrefix(userID, m[2]) {
			continue
		}
		infos = append(infos, s.describe(entry.Name(), userID))
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].BackupDate.After(infos[j].BackupDate)
	})

	log.Printf("[ArchiveStorage] Найдено %d бэкапов для пользователя %s", len(infos), userID)
	return infos, nil
}

// describe читает метаданные одного файла бэкапа. При любой ошибке чтения
// или разбора возвращает деградированные метаданные вместо пропуска записи.
func (s *ArchiveStorage) describe(filename, userID string) models.ArchiveInfo {
	info := models.ArchiveInfo{
		Filename: filename,
		UserID:   userID,
	}

	path := filepath.Join(s.dir, filename)
	if stat, err := os.Stat(path); err == nil {
		info.SizeBytes = stat.Size()
		info.BackupDate = stat.ModTime()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[ArchiveStorage] Не удалось прочитать '%s', метаданные неполные: %v", filename, err)
		return info
	}
	b, err := backup.Deserialize(data)
	if err != nil {
		log.Printf("[ArchiveStorage] Файл '%s' не разобран, метаданные неполные: %v", filename, err)
		return info
	}

	info.UserID = b.Metadata.UserID
	info.Email = b.Metadata.Email
	info.BackupDate = b.Metadata.BackupDate
	info.DataCounts = b.Metadata.DataCounts
	return info
}

// ReadFile возвращает сырое содержимое файла бэкапа (сжатый поток).
// Имена, не соответствующие шаблону, отклоняются: это заодно исключает
// выход за пределы каталога через ".." в имени.
func (s *ArchiveStorage) ReadFile(filename string) ([]byte, error) {
	if !archiveNameRe.MatchString(filename) {
		log.Printf("[ArchiveStorage] Отклонено недопустимое имя файла: %q", filename)
		return nil, ErrBadArchiveName
	}

	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[ArchiveStorage] Бэкап '%s' не найден", filename)
			return nil, ErrArchiveNotFound
		}
		return nil, fmt.Errorf("ошибка чтения файла бэкапа '%s': %w", filename, err)
	}
	return data, nil
}

// Read читает и десериализует бэкап по имени файла.
func (s *ArchiveStorage) Read(filename string) (*models.Backup, error) {
	data, err := s.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return backup.Deserialize(data)
}

// Delete удаляет файл бэкапа.
func (s *ArchiveStorage) Delete(filename string) error {
	if !archiveNameRe.MatchString(filename) {
		return ErrBadArchiveName
	}

	path := filepath.Join(s.dir, filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ErrArchiveNotFound
	}
	if err := os.Remove(path); err != nil {
		log.Printf("[ArchiveStorage] Ошибка удаления '%s': %v", filename, err)
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}

	log.Printf("[ArchiveStorage] Бэкап '%s' удален", filename)
	return nil
}

// Cleanup удаляет все бэкапы пользователя, кроме keep самых свежих.
// Возвращает количество удаленных файлов. Ошибка удаления отдельного
// файла логируется и не прерывает чистку.
func (s *ArchiveStorage) Cleanup(userID string, keep int) (int, error) {
	infos, err := s.List(userID)
	if err != nil {
		return 0, err
	}
	if len(infos) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, info := range infos[keep:] {
		if err := s.Delete(info.Filename); err != nil {
			log.Printf("[ArchiveStorage] Чистка: не удалось удалить '%s': %v", info.Filename, err)
			continue
		}
		deleted++
	}

	log.Printf("[ArchiveStorage] Чистка для пользователя %s: удалено %d из %d бэкапов (keep=%d)",
		userID, deleted, len(infos), keep)
	return deleted, nil
}

// ownerFragment возвращает первые 8 символов идентификатора владельца.
func ownerFragment(userID string) string {
	if len(userID) <= ownerFragmentLen {
		return userID
	}
	return userID[:ownerFragmentLen]
}
