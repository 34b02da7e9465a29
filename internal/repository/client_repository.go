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

// ClientRepository определяет методы для работы с клиентами пользователя.
type ClientRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Client, error)
	GetByID(ctx context.Context, userID, id string) (*models.Client, error)
	GetByEmail(ctx context.Context, userID, email string) (*models.Client, error)
	Create(ctx context.Context, client *models.Client) error
	Update(ctx context.Context, client *models.Client) error
	Delete(ctx context.Context, userID, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// postgresClientRepository реализует ClientRepository для PostgreSQL.
type postgresClientRepository struct {
	db *sqlx.DB
}

// NewPostgresClientRepository создает новый экземпляр репозитория клиентов.
func NewPostgresClientRepository(db *sqlx.DB) ClientRepository {
	return &postgresClientRepository{db: db}
}

// ListByUser возвращает всех клиентов пользователя.
func (r *postgresClientRepository) ListByUser(ctx context.Context, userID string) ([]models.Client, error) {
	query := `SELECT id, user_id, name, email, phone, address, created_at, updated_at
	          FROM clients WHERE user_id=$1 ORDER BY created_at`

	clients := []models.Client{}
	if err := r.db.SelectContext(ctx, &clients, query, userID); err != nil {
		log.Printf("[ClientRepo] Ошибка при получении клиентов пользователя %s: %v", userID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на список клиентов: %w", err)
	}
	return clients, nil
}

// GetByID находит клиента по идентификатору в рамках одного пользователя.
func (r *postgresClientRepository) GetByID(ctx context.Context, userID, id string) (*models.Client, error) {
	query := `SELECT id, user_id, name, email, phone, address, created_at, updated_at
	          FROM clients WHERE user_id=$1 AND id=$2`
	var client models.Client

	err := r.db.GetContext(ctx, &client, query, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		log.Printf("[ClientRepo] Ошибка при поиске клиента %s: %v", id, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение клиента: %w", err)
	}
	return &client, nil
}

// GetByEmail находит клиента по email без учета регистра.
// Именно так распознаются дубликаты при восстановлении в режиме слияния.
func (r *postgresClientRepository) GetByEmail(ctx context.Context, userID, email string) (*models.Client, error) {
	query := `SELECT id, user_id, name, email, phone, address, created_at, updated_at
	          FROM clients WHERE user_id=$1 AND lower(email)=lower($2)`
	var client models.Client

	err := r.db.GetContext(ctx, &client, query, userID, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		log.Printf("[ClientRepo] Ошибка при поиске клиента по email '%s': %v", email, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение клиента: %w", err)
	}
	return &client, nil
}

// Create создает нового клиента.
func (r *postgresClientRepository) Create(ctx context.Context, client *models.Client) error {
	query := `INSERT INTO clients (id, user_id, name, email, phone, address)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		client.ID, client.UserID, client.Name, client.Email, client.Phone, client.Address)
	if err != nil {
		log.Printf("[ClientRepo] Ошибка при создании клиента '%s': %v", client.Email, err)
		return fmt.Errorf("ошибка выполнения запроса на создание клиента: %w", err)
	}

	log.Printf("[ClientRepo] Клиент '%s' создан с ID %s", client.Email, client.ID)
	return nil
}

// Update обновляет данные клиента.
func (r *postgresClientRepository) Update(ctx context.Context, client *models.Client) error {
	query := `UPDATE clients SET name=$1, email=$2, phone=$3, address=$4, updated_at=now()
	          WHERE user_id=$5 AND id=$6`

	res, err := r.db.ExecContext(ctx, query,
		client.Name, client.Email, client.Phone, client.Address, client.UserID, client.ID)
	if err != nil {
		log.Printf("[ClientRepo] Ошибка при обновлении клиента %s: %v", client.ID, err)
		return fmt.Errorf("ошибка выполнения запроса на обновление клиента: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrClientNotFound
	}
	return nil
}

// Delete удаляет клиента пользователя.
func (r *postgresClientRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE user_id=$1 AND id=$2`, userID, id)
	if err != nil {
		log.Printf("[ClientRepo] Ошибка при удалении клиента %s: %v", id, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление клиента: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrClientNotFound
	}
	return nil
}

// DeleteByUser удаляет всех клиентов пользователя (режим замены при восстановлении).
func (r *postgresClientRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE user_id=$1`, userID)
	if err != nil {
		log.Printf("[ClientRepo] Ошибка при удалении клиентов пользователя %s: %v", userID, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление клиентов: %w", err)
	}
	return nil
}

// Кастомная ошибка репозитория клиентов.
var ErrClientNotFound = errors.New("клиент не найден")
