package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mkotelnikov/invoicekeeper/internal/models"
)

// InvoiceRepository определяет методы для работы со счетами пользователя.
type InvoiceRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Invoice, error)
	ListByClientPeriod(ctx context.Context, userID, clientID string, from, to time.Time) ([]models.Invoice, error)
	GetByID(ctx context.Context, userID, id string) (*models.Invoice, error)
	GetByNumber(ctx context.Context, userID, number string) (*models.Invoice, error)
	Create(ctx context.Context, invoice *models.Invoice) error
	Update(ctx context.Context, invoice *models.Invoice) error
	Delete(ctx context.Context, userID, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// postgresInvoiceRepository реализует InvoiceRepository для PostgreSQL.
type postgresInvoiceRepository struct {
	db *sqlx.DB
}

// NewPostgresInvoiceRepository создает новый экземпляр репозитория счетов.
func NewPostgresInvoiceRepository(db *sqlx.DB) InvoiceRepository {
	return &postgresInvoiceRepository{db: db}
}

const invoiceColumns = `id, user_id, client_id, number, status, issue_date, due_date,
	currency, total, notes, items, created_at, updated_at`

// ListByUser возвращает все счета пользователя.
func (r *postgresInvoiceRepository) ListByUser(ctx context.Context, userID string) ([]models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE user_id=$1 ORDER BY created_at`

	invoices := []models.Invoice{}
	if err := r.db.SelectContext(ctx, &invoices, query, userID); err != nil {
		log.Printf("[InvoiceRepo] Ошибка при получении счетов пользователя %s: %v", userID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на список счетов: %w", err)
	}
	return invoices, nil
}

// ListByClientPeriod возвращает счета клиента, выставленные в указанном периоде.
// Используется при формировании выписки.
func (r *postgresInvoiceRepository) ListByClientPeriod(
	ctx context.Context,
	userID, clientID string,
	from, to time.Time,
) ([]models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
	          WHERE user_id=$1 AND client_id=$2 AND issue_date >= $3 AND issue_date <= $4
	          ORDER BY issue_date`

	invoices := []models.Invoice{}
	if err := r.db.SelectContext(ctx, &invoices, query, userID, clientID, from, to); err != nil {
		log.Printf("[InvoiceRepo] Ошибка при получении счетов клиента %s за период: %v", clientID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на счета за период: %w", err)
	}
	return invoices, nil
}

// GetByID находит счет по идентификатору в рамках одного пользователя.
func (r *postgresInvoiceRepository) GetByID(ctx context.Context, userID, id string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE user_id=$1 AND id=$2`
	var invoice models.Invoice

	err := r.db.GetContext(ctx, &invoice, query, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		log.Printf("[InvoiceRepo] Ошибка при поиске счета %s: %v", id, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение счета: %w", err)
	}
	return &invoice, nil
}

// GetByNumber находит счет по номеру. Именно так распознаются дубликаты
// счетов при восстановлении в режиме слияния.
func (r *postgresInvoiceRepository) GetByNumber(ctx context.Context, userID, number string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE user_id=$1 AND number=$2`
	var invoice models.Invoice

	err := r.db.GetContext(ctx, &invoice, query, userID, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		log.Printf("[InvoiceRepo] Ошибка при поиске счета по номеру '%s': %v", number, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение счета: %w", err)
	}
	return &invoice, nil
}

// Create создает новый счет.
func (r *postgresInvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	query := `INSERT INTO invoices (id, user_id, client_id, number, status, issue_date, due_date,
	                                currency, total, notes, items)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		invoice.ID, invoice.UserID, invoice.ClientID, invoice.Number, invoice.Status,
		invoice.IssueDate, invoice.DueDate, invoice.Currency, invoice.Total, invoice.Notes, invoice.Items)
	if err != nil {
		log.Printf("[InvoiceRepo] Ошибка при создании счета '%s': %v", invoice.Number, err)
		return fmt.Errorf("ошибка выполнения запроса на создание счета: %w", err)
	}

	log.Printf("[InvoiceRepo] Счет '%s' создан с ID %s", invoice.Number, invoice.ID)
	return nil
}

// Update обновляет данные счета.
func (r *postgresInvoiceRepository) Update(ctx context.Context, invoice *models.Invoice) error {
	query := `UPDATE invoices SET client_id=$1, number=$2, status=$3, issue_date=$4, due_date=$5,
	                              currency=$6, total=$7, notes=$8, items=$9, updated_at=now()
	          WHERE user_id=$10 AND id=$11`

	res, err := r.db.ExecContext(ctx, query,
		invoice.ClientID, invoice.Number, invoice.Status, invoice.IssueDate, invoice.DueDate,
		invoice.Currency, invoice.Total, invoice.Notes, invoice.Items, invoice.UserID, invoice.ID)
	if err != nil {
		log.Printf("[InvoiceRepo] Ошибка при обновлении счета %s: %v", invoice.ID, err)
		return fmt.Errorf("ошибка выполнения запроса на обновление счета: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// Delete удаляет счет пользователя.
func (r *postgresInvoiceRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE user_id=$1 AND id=$2`, userID, id)
	if err != nil {
		log.Printf("[InvoiceRepo] Ошибка при удалении счета %s: %v", id, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление счета: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// DeleteByUser удаляет все счета пользователя (режим замены при восстановлении).
func (r *postgresInvoiceRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE user_id=$1`, userID)
	if err != nil {
		log.Printf("[InvoiceRepo] Ошибка при удалении счетов пользователя %s: %v", userID, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление счетов: %w", err)
	}
	return nil
}

// Кастомная ошибка репозитория счетов.
var ErrInvoiceNotFound = errors.New("счет не найден")
