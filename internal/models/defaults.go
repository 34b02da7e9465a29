package models

import "time"

// DefaultRecord представляет именованный набор значений по умолчанию для новых
// счетов (условия оплаты, ставка налога и т.п.). Естественный ключ при слиянии
// бэкапов - имя набора в рамках одного владельца; при совпадении имени поля
// существующей записи обновляются на месте.
type DefaultRecord struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Name         string    `db:"name" json:"name"`
	PaymentTerms string    `db:"payment_terms" json:"payment_terms,omitempty"`
	TaxRate      float64   `db:"tax_rate" json:"tax_rate"`
	Currency     string    `db:"currency" json:"currency,omitempty"`
	Notes        string    `db:"notes" json:"notes,omitempty"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
