package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/mkotelnikov/invoicekeeper/internal/models"
)

// DocumentRepository определяет методы для работы с документами пользователя.
type DocumentRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Document, error)
	ListByInvoice(ctx context.Context, userID, invoiceID string) ([]models.Document, error)
	GetByID(ctx context.Context, userID, id string) (*models.Document, error)
	Create(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, userID, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// postgresDocumentRepository реализует DocumentRepository для PostgreSQL.
type postgresDocumentRepository struct {
	db *sqlx.DB
}

// NewPostgresDocumentRepository создает новый экземпляр репозитория документов.
func NewPostgresDocumentRepository(db *sqlx.DB) DocumentRepository {
	return &postgresDocumentRepository{db: db}
}

const documentColumns = `id, user_id, invoice_id, parent_id, name, content_type, size_bytes, object_key, created_at`

// ListByUser возвращает все документы пользователя.
func (r *postgresDocumentRepository) ListByUser(ctx context.Context, userID string) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE user_id=$1 ORDER BY created_at`

	docs := []models.Document{}
	if err := r.db.SelectContext(ctx, &docs, query, userID); err != nil {
		log.Printf("[DocumentRepo] Ошибка при получении документов пользователя %s: %v", userID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на список документов: %w", err)
	}
	return docs, nil
}

// ListByInvoice возвращает документы, привязанные к счету.
func (r *postgresDocumentRepository) ListByInvoice(
	ctx context.Context,
	userID, invoiceID string,
) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
	          WHERE user_id=$1 AND invoice_id=$2 ORDER BY created_at`

	docs := []models.Document{}
	if err := r.db.SelectContext(ctx, &docs, query, userID, invoiceID); err != nil {
		log.Printf("[DocumentRepo] Ошибка при получении документов счета %s: %v", invoiceID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на документы счета: %w", err)
	}
	return docs, nil
}

// GetByID находит документ по идентификатору в рамках одного пользователя.
func (r *postgresDocumentRepository) GetByID(ctx context.Context, userID, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE user_id=$1 AND id=$2`
	var doc models.Document

	err := r.db.GetContext(ctx, &doc, query, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		log.Printf("[DocumentRepo] Ошибка при поиске документа %s: %v", id, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение документа: %w", err)
	}
	return &doc, nil
}

// Create создает новую запись о документе.
func (r *postgresDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `INSERT INTO documents (id, user_id, invoice_id, parent_id, name, content_type, size_bytes, object_key)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.UserID, doc.InvoiceID, doc.ParentID, doc.Name, doc.ContentType, doc.SizeBytes, doc.ObjectKey)
	if err != nil {
		log.Printf("[DocumentRepo] Ошибка при создании документа '%s': %v", doc.Name, err)
		return fmt.Errorf("ошибка выполнения запроса на создание документа: %w", err)
	}

	log.Printf("[DocumentRepo] Документ '%s' создан с ID %s", doc.Name, doc.ID)
	return nil
}

// Delete удаляет запись о документе.
func (r *postgresDocumentRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE user_id=$1 AND id=$2`, userID, id)
	if err != nil {
		log.Printf("[DocumentRepo] Ошибка при удалении документа %s: %v", id, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление документа: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// DeleteByUser удаляет все документы пользователя (режим замены при восстановлении).
func (r *postgresDocumentRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE user_id=$1`, userID)
	if err != nil {
		log.Printf("[DocumentRepo] Ошибка при удалении документов пользователя %s: %v", userID, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление документов: %w", err)
	}
	return nil
}

// Кастомная ошибка репозитория документов.
var ErrDocumentNotFound = errors.New("документ не найден")
