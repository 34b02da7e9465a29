package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Статусы счета.
const (
	InvoiceStatusDraft = "draft"
	InvoiceStatusSent  = "sent"
	InvoiceStatusPaid  = "paid"
)

// InvoiceItem представляет одну позицию счета.
type InvoiceItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// InvoiceItems - список позиций счета, хранится одним jsonb-полем.
type InvoiceItems []InvoiceItem

// Value сериализует позиции в JSON для записи в jsonb-колонку.
func (items InvoiceItems) Value() (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации позиций счета: %w", err)
	}
	return string(data), nil
}

// Scan восстанавливает позиции из jsonb-колонки.
func (items *InvoiceItems) Scan(src interface{}) error {
	if src == nil {
		*items = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("неподдерживаемый тип для позиций счета")
	}
	return json.Unmarshal(data, items)
}

// Invoice представляет счет, выставленный клиенту.
// Естественный ключ при слиянии бэкапов - номер счета в рамках одного владельца.
type Invoice struct {
	ID        string       `db:"id" json:"id"`
	UserID    string       `db:"user_id" json:"user_id"`
	ClientID  string       `db:"client_id" json:"client_id"`
	Number    string       `db:"number" json:"number"`
	Status    string       `db:"status" json:"status"`
	IssueDate time.Time    `db:"issue_date" json:"issue_date"`
	DueDate   time.Time    `db:"due_date" json:"due_date"`
	Currency  string       `db:"currency" json:"currency"`
	Total     float64      `db:"total" json:"total"`
	Notes     string       `db:"notes" json:"notes,omitempty"`
	Items     InvoiceItems `db:"items" json:"items"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}
