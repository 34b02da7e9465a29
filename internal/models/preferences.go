package models

import "time"

// Preferences представляет настройки пользователя. У каждого пользователя
// не более одной записи настроек (user_id - первичный ключ).
type Preferences struct {
	UserID             string    `db:"user_id" json:"user_id"`
	Currency           string    `db:"currency" json:"currency"`
	Language           string    `db:"language" json:"language"`
	DateFormat         string    `db:"date_format" json:"date_format"`
	NumberingPrefix    string    `db:"numbering_prefix" json:"numbering_prefix"`
	EmailNotifications bool      `db:"email_notifications" json:"email_notifications"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultPreferences возвращает настройки по умолчанию для пользователя,
// который свои еще не сохранял.
func DefaultPreferences(userID string) *Preferences {
	return &Preferences{
		UserID:             userID,
		Currency:           "EUR",
		Language:           "en",
		DateFormat:         "2006-01-02",
		NumberingPrefix:    "INV",
		EmailNotifications: true,
	}
}
