package models

import "time"

// Statement представляет выписку по клиенту за период (сводку его счетов).
// Помимо client_id хранит email клиента: при восстановлении из бэкапа ссылка
// на клиента заново разрешается именно по email, так как идентификатор клиента
// не стабилен при повторной вставке.
type Statement struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	ClientID    string    `db:"client_id" json:"client_id"`
	ClientEmail string    `db:"client_email" json:"client_email"`
	PeriodStart time.Time `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time `db:"period_end" json:"period_end"`
	Total       float64   `db:"total" json:"total"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
