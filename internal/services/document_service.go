package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mkotelnikov/invoicekeeper/internal/models"
	"github.com/mkotelnikov/invoicekeeper/internal/repository"
	"github.com/mkotelnikov/invoicekeeper/internal/storage"
)

// DocumentService определяет интерфейс для работы с файлами документов
// (сканы, акты, договоры), прикрепляемыми к счетам.
type DocumentService interface {
	Upload(ctx context.Context, doc *models.Document, reader io.Reader, size int64) error
	Download(ctx context.Context, userID, docID string) (io.ReadCloser, *models.Document, error)
	Delete(ctx context.Context, userID, docID string) error
	ListByInvoice(ctx context.Context, userID, invoiceID string) ([]models.Document, error)
	InvoiceArchive(ctx context.Context, userID, invoiceID string) ([]byte, error)
}

// Кастомные ошибки сервиса документов.
var (
	ErrDocumentNotFound = errors.New("документ не найден")
	ErrInvoiceNotFound  = errors.New("счет не найден")
	ErrNoDocuments      = errors.New("у счета нет прикрепленных документов")
)

// Убедимся, что documentService удовлетворяет интерфейсу DocumentService.
var _ DocumentService = (*documentService)(nil)

type documentService struct {
	docRepo     repository.DocumentRepository
	invoiceRepo repository.InvoiceRepository
	fileStorage storage.FileStorage
}

// NewDocumentService создает новый экземпляр сервиса документов.
func NewDocumentService(
	docRepo repository.DocumentRepository,
	invoiceRepo repository.InvoiceRepository,
	fileStorage storage.FileStorage,
) DocumentService {
	return &documentService{
		docRepo:     docRepo,
		invoiceRepo: invoiceRepo,
		fileStorage: fileStorage,
	}
}

// Upload сохраняет содержимое файла в объектное хранилище и создает
// запись документа. Если указан счет, проверяется его принадлежность
// пользователю. Ключ объекта выводится из владельца и нового ID документа.
func (s *documentService) Upload(ctx context.Context, doc *models.Document, reader io.Reader, size int64) error {
	if doc.InvoiceID != "" {
		if _, err := s.invoiceRepo.GetByID(ctx, doc.UserID, doc.InvoiceID); err != nil {
			if errors.Is(err, repository.ErrInvoiceNotFound) {
				return ErrInvoiceNotFound
			}
			return err
		}
	}
	if doc.ParentID != "" {
		if _, err := s.docRepo.GetByID(ctx, doc.UserID, doc.ParentID); err != nil {
			if errors.Is(err, repository.ErrDocumentNotFound) {
				return ErrDocumentNotFound
			}
			return err
		}
	}

	doc.ID = uuid.NewString()
	doc.ObjectKey = fmt.Sprintf("documents/%s/%s", doc.UserID, doc.ID)
	doc.SizeBytes = size
	doc.CreatedAt = time.Now().UTC()

	if err := s.fileStorage.UploadFile(ctx, doc.ObjectKey, reader, size, doc.ContentType); err != nil {
		return err
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		// Файл уже в хранилище, запись не создалась - убираем файл, чтобы не копить сирот
		if delErr := s.fileStorage.DeleteFile(ctx, doc.ObjectKey); delErr != nil {
			log.Printf("[DocumentService] Не удалось удалить осиротевший объект '%s': %v", doc.ObjectKey, delErr)
		}
		return err
	}

	log.Printf("[DocumentService] Документ '%s' (%d байт) загружен для пользователя %s", doc.Name, size, doc.UserID)
	return nil
}

// Download возвращает поток содержимого документа и его метаданные.
// Вызывающий обязан закрыть поток.
func (s *documentService) Download(ctx context.Context, userID, docID string) (io.ReadCloser, *models.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, userID, docID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, err
	}

	reader, err := s.fileStorage.DownloadFile(ctx, doc.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			log.Printf("[DocumentService] Запись документа %s есть, но объект '%s' отсутствует", docID, doc.ObjectKey)
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, err
	}
	return reader, doc, nil
}

// Delete удаляет запись документа и его содержимое из объектного хранилища.
func (s *documentService) Delete(ctx context.Context, userID, docID string) error {
	doc, err := s.docRepo.GetByID(ctx, userID, docID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}

	if err = s.docRepo.Delete(ctx, userID, docID); err != nil {
		return err
	}

	if err = s.fileStorage.DeleteFile(ctx, doc.ObjectKey); err != nil {
		// Запись уже удалена, оставшийся объект только занимает место
		log.Printf("[DocumentService] Не удалось удалить объект '%s' документа %s: %v", doc.ObjectKey, docID, err)
	}

	log.Printf("[DocumentService] Документ %s удален для пользователя %s", docID, userID)
	return nil
}

// ListByInvoice возвращает документы, прикрепленные к счету.
func (s *documentService) ListByInvoice(ctx context.Context, userID, invoiceID string) ([]models.Document, error) {
	if _, err := s.invoiceRepo.GetByID(ctx, userID, invoiceID); err != nil {
		if errors.Is(err, repository.ErrInvoiceNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return s.docRepo.ListByInvoice(ctx, userID, invoiceID)
}

// InvoiceArchive собирает все документы счета в один zip-архив.
// Документы, чье содержимое не удалось прочитать из хранилища,
// пропускаются с записью в лог.
func (s *documentService) InvoiceArchive(ctx context.Context, userID, invoiceID string) ([]byte, error) {
	docs, err := s.ListByInvoice(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	added := 0
	for _, doc := range docs {
		reader, err := s.fileStorage.DownloadFile(ctx, doc.ObjectKey)
		if err != nil {
			log.Printf("[DocumentService] Архив счета %s: пропуск документа '%s': %v", invoiceID, doc.Name, err)
			continue
		}

		name := doc.Name
		if name == "" {
			name = doc.ID
		}
		w, err := zw.Create(name)
		if err == nil {
			_, err = io.Copy(w, reader)
		}
		if closeErr := reader.Close(); closeErr != nil {
			log.Printf("[DocumentService] Ошибка закрытия потока документа '%s': %v", doc.Name, closeErr)
		}
		if err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("ошибка упаковки документа '%s': %w", doc.Name, err)
		}
		added++
	}
	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("ошибка завершения zip-архива: %w", err)
	}
	if added == 0 {
		return nil, ErrNoDocuments
	}

	log.Printf("[DocumentService] Архив счета %s собран: %d из %d документов", invoiceID, added, len(docs))
	return buf.Bytes(), nil
}
