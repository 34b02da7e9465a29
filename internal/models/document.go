package models

import "time"

// Document представляет загруженный документ (скан, акт, договор и т.п.).
// Может быть привязан к счету (invoice_id) и к родительскому документу (parent_id).
// Содержимое файла хранится в объектном хранилище под ключом object_key.
type Document struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"` // Кто загрузил документ
	InvoiceID   string    `db:"invoice_id" json:"invoice_id,omitempty"`
	ParentID    string    `db:"parent_id" json:"parent_id,omitempty"`
	Name        string    `db:"name" json:"name"`
	ContentType string    `db:"content_type" json:"content_type"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	ObjectKey   string    `db:"object_key" json:"object_key"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
