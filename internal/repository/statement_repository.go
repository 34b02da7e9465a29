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

// StatementRepository определяет методы для работы с выписками пользователя.
type StatementRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Statement, error)
	GetByID(ctx context.Context, userID, id string) (*models.Statement, error)
	Create(ctx context.Context, statement *models.Statement) error
	Delete(ctx context.Context, userID, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// postgresStatementRepository реализует StatementRepository для PostgreSQL.
type postgresStatementRepository struct {
	db *sqlx.DB
}

// NewPostgresStatementRepository создает новый экземпляр репозитория выписок.
func NewPostgresStatementRepository(db *sqlx.DB) StatementRepository {
	return &postgresStatementRepository{db: db}
}

const statementColumns = `id, user_id, client_id, client_email, period_start, period_end, total, created_at`

// ListByUser возвращает все выписки пользователя.
func (r *postgresStatementRepository) ListByUser(ctx context.Context, userID string) ([]models.Statement, error) {
	query := `SELECT ` + statementColumns + ` FROM statements WHERE user_id=$1 ORDER BY created_at`

	statements := []models.Statement{}
	if err := r.db.SelectContext(ctx, &statements, query, userID); err != nil {
		log.Printf("[StatementRepo] Ошибка при получении выписок пользователя %s: %v", userID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на список выписок: %w", err)
	}
	return statements, nil
}

// GetByID находит выписку по идентификатору в рамках одного пользователя.
func (r *postgresStatementRepository) GetByID(ctx context.Context, userID, id string) (*models.Statement, error) {
	query := `SELECT ` + statementColumns + ` FROM statements WHERE user_id=$1 AND id=$2`
	var statement models.Statement

	err := r.db.GetContext(ctx, &statement, query, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatementNotFound
		}
		log.Printf("[StatementRepo] Ошибка при поиске выписки %s: %v", id, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение выписки: %w", err)
	}
	return &statement, nil
}

// Create создает новую выписку.
func (r *postgresStatementRepository) Create(ctx context.Context, statement *models.Statement) error {
	query := `INSERT INTO statements (id, user_id, client_id, client_email, period_start, period_end, total)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		statement.ID, statement.UserID, statement.ClientID, statement.ClientEmail,
		statement.PeriodStart, statement.PeriodEnd, statement.Total)
	if err != nil {
		log.Printf("[StatementRepo] Ошибка при создании выписки для клиента '%s': %v", statement.ClientEmail, err)
		return fmt.Errorf("ошибка выполнения запроса на создание выписки: %w", err)
	}

	log.Printf("[StatementRepo] Выписка %s создана для клиента '%s'", statement.ID, statement.ClientEmail)
	return nil
}

// Delete удаляет выписку пользователя.
func (r *postgresStatementRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM statements WHERE user_id=$1 AND id=$2`, userID, id)
	if err != nil {
		log.Printf("[StatementRepo] Ошибка при удалении выписки %s: %v", id, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление выписки: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrStatementNotFound
	}
	return nil
}

// DeleteByUser удаляет все выписки пользователя (режим замены при восстановлении).
func (r *postgresStatementRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM statements WHERE user_id=$1`, userID)
	if err != nil {
		log.Printf("[StatementRepo] Ошибка при удалении выписок пользователя %s: %v", userID, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление выписок: %w", err)
	}
	return nil
}

// Кастомная ошибка репозитория выписок.
var ErrStatementNotFound = errors.New("выписка не найдена")
