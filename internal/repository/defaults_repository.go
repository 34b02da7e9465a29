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

// DefaultsRepository определяет методы для работы с наборами значений по умолчанию.
type DefaultsRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.DefaultRecord, error)
	GetByName(ctx context.Context, userID, name string) (*models.DefaultRecord, error)
	Create(ctx context.Context, rec *models.DefaultRecord) error
	Update(ctx context.Context, rec *models.DefaultRecord) error
	Delete(ctx context.Context, userID, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// postgresDefaultsRepository реализует DefaultsRepository для PostgreSQL.
type postgresDefaultsRepository struct {
	db *sqlx.DB
}

// NewPostgresDefaultsRepository создает новый экземпляр репозитория значений по умолчанию.
func NewPostgresDefaultsRepository(db *sqlx.DB) DefaultsRepository {
	return &postgresDefaultsRepository{db: db}
}

const defaultsColumns = `id, user_id, name, payment_terms, tax_rate, currency, notes, updated_at`

// ListByUser возвращает все наборы значений по умолчанию пользователя.
func (r *postgresDefaultsRepository) ListByUser(ctx context.Context, userID string) ([]models.DefaultRecord, error) {
	query := `SELECT ` + defaultsColumns + ` FROM defaults WHERE user_id=$1 ORDER BY name`

	recs := []models.DefaultRecord{}
	if err := r.db.SelectContext(ctx, &recs, query, userID); err != nil {
		log.Printf("[DefaultsRepo] Ошибка при получении значений по умолчанию пользователя %s: %v", userID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на список значений по умолчанию: %w", err)
	}
	return recs, nil
}

// GetByName находит набор по имени. Именно так распознаются дубликаты
// при восстановлении в режиме слияния.
func (r *postgresDefaultsRepository) GetByName(ctx context.Context, userID, name string) (*models.DefaultRecord, error) {
	query := `SELECT ` + defaultsColumns + ` FROM defaults WHERE user_id=$1 AND name=$2`
	var rec models.DefaultRecord

	err := r.db.GetContext(ctx, &rec, query, userID, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDefaultNotFound
		}
		log.Printf("[DefaultsRepo] Ошибка при поиске набора '%s': %v", name, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение набора: %w", err)
	}
	return &rec, nil
}

// Create создает новый набор значений по умолчанию.
func (r *postgresDefaultsRepository) Create(ctx context.Context, rec *models.DefaultRecord) error {
	query := `INSERT INTO defaults (id, user_id, name, payment_terms, tax_rate, currency, notes)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Name, rec.PaymentTerms, rec.TaxRate, rec.Currency, rec.Notes)
	if err != nil {
		log.Printf("[DefaultsRepo] Ошибка при создании набора '%s': %v", rec.Name, err)
		return fmt.Errorf("ошибка выполнения запроса на создание набора: %w", err)
	}

	log.Printf("[DefaultsRepo] Набор '%s' создан с ID %s", rec.Name, rec.ID)
	return nil
}

// Update обновляет поля существующего набора на месте (update-merge при восстановлении).
func (r *postgresDefaultsRepository) Update(ctx context.Context, rec *models.DefaultRecord) error {
	query := `UPDATE defaults SET payment_terms=$1, tax_rate=$2, currency=$3, notes=$4, updated_at=now()
	          WHERE user_id=$5 AND id=$6`

	res, err := r.db.ExecContext(ctx, query,
		rec.PaymentTerms, rec.TaxRate, rec.Currency, rec.Notes, rec.UserID, rec.ID)
	if err != nil {
		log.Printf("[DefaultsRepo] Ошибка при обновлении набора %s: %v", rec.ID, err)
		return fmt.Errorf("ошибка выполнения запроса на обновление набора: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrDefaultNotFound
	}
	return nil
}

// Delete удаляет набор пользователя.
func (r *postgresDefaultsRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM defaults WHERE user_id=$1 AND id=$2`, userID, id)
	if err != nil {
		log.Printf("[DefaultsRepo] Ошибка при удалении набора %s: %v", id, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление набора: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrDefaultNotFound
	}
	return nil
}

// DeleteByUser удаляет все наборы пользователя (режим замены при восстановлении).
func (r *postgresDefaultsRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM defaults WHERE user_id=$1`, userID)
	if err != nil {
		log.Printf("[DefaultsRepo] Ошибка при удалении наборов пользователя %s: %v", userID, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление наборов: %w", err)
	}
	return nil
}

// Кастомная ошибка репозитория значений по умолчанию.
var ErrDefaultNotFound = errors.New("набор значений по умолчанию не найден")
