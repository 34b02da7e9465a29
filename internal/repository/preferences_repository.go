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

// PreferencesRepository определяет методы для работы с настройками пользователя.
// У каждого пользователя не более одной записи настроек.
type PreferencesRepository interface {
	GetByUser(ctx context.Context, userID string) (*models.Preferences, error)
	Upsert(ctx context.Context, prefs *models.Preferences) error
	DeleteByUser(ctx context.Context, userID string) error
}

// postgresPreferencesRepository реализует PreferencesRepository для PostgreSQL.
type postgresPreferencesRepository struct {
	db *sqlx.DB
}

// NewPostgresPreferencesRepository создает новый экземпляр репозитория настроек.
func NewPostgresPreferencesRepository(db *sqlx.DB) PreferencesRepository {
	return &postgresPreferencesRepository{db: db}
}

// GetByUser возвращает настройки пользователя.
func (r *postgresPreferencesRepository) GetByUser(ctx context.Context, userID string) (*models.Preferences, error) {
	query := `SELECT user_id, currency, language, date_format, numbering_prefix, email_notifications, updated_at
	          FROM preferences WHERE user_id=$1`
	var prefs models.Preferences

	err := r.db.GetContext(ctx, &prefs, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPreferencesNotFound
		}
		log.Printf("[PrefsRepo] Ошибка при получении настроек пользователя %s: %v", userID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение настроек: %w", err)
	}
	return &prefs, nil
}

// Upsert записывает настройки пользователя, заменяя существующую запись целиком.
func (r *postgresPreferencesRepository) Upsert(ctx context.Context, prefs *models.Preferences) error {
	query := `INSERT INTO preferences (user_id, currency, language, date_format, numbering_prefix, email_notifications)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (user_id) DO UPDATE SET
	              currency=EXCLUDED.currency,
	              language=EXCLUDED.language,
	              date_format=EXCLUDED.date_format,
	              numbering_prefix=EXCLUDED.numbering_prefix,
	              email_notifications=EXCLUDED.email_notifications,
	              updated_at=now()`

	_, err := r.db.ExecContext(ctx, query,
		prefs.UserID, prefs.Currency, prefs.Language, prefs.DateFormat,
		prefs.NumberingPrefix, prefs.EmailNotifications)
	if err != nil {
		log.Printf("[PrefsRepo] Ошибка при записи настроек пользователя %s: %v", prefs.UserID, err)
		return fmt.Errorf("ошибка выполнения запроса на запись настроек: %w", err)
	}

	log.Printf("[PrefsRepo] Настройки пользователя %s записаны", prefs.UserID)
	return nil
}

// DeleteByUser удаляет настройки пользователя (режим замены при восстановлении).
func (r *postgresPreferencesRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM preferences WHERE user_id=$1`, userID)
	if err != nil {
		log.Printf("[PrefsRepo] Ошибка при удалении настроек пользователя %s: %v", userID, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление настроек: %w", err)
	}
	return nil
}

// Кастомная ошибка репозитория настроек.
var ErrPreferencesNotFound = errors.New("настройки не найдены")
