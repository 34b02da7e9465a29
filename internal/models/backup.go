package models

import "time"

// Версия формата бэкапа. Пишется в заголовок каждого снимка.
const BackupVersion = "1.0"

// Режимы восстановления из бэкапа.
type RestoreMode string

const (
	// RestoreModeMerge - слияние: записи, распознанные как дубликаты по
	// естественному ключу, пропускаются или обновляются.
	RestoreModeMerge RestoreMode = "merge"
	// RestoreModeReplace - замена: перед восстановлением все существующие
	// записи пользователя удаляются.
	RestoreModeReplace RestoreMode = "replace"
)

// DataCounts содержит количество записей каждого вида в снимке.
type DataCounts struct {
	Clients     int `json:"clients"`
	Invoices    int `json:"invoices"`
	Documents   int `json:"documents"`
	Statements  int `json:"statements"`
	Preferences int `json:"preferences"`
	Defaults    int `json:"defaults"`
}

// BackupMetadata - заголовок снимка: кто, когда и сколько записей.
type BackupMetadata struct {
	UserID     string     `json:"userId"`
	Email      string     `json:"email"`
	BackupDate time.Time  `json:"backupDate"`
	Version    string     `json:"version"`
	DataCounts DataCounts `json:"dataCounts"`
}

// BackupData - полезная нагрузка снимка: все записи пользователя по видам.
type BackupData struct {
	User        *User           `json:"user"`
	Clients     []Client        `json:"clients"`
	Invoices    []Invoice       `json:"invoices"`
	Documents   []Document      `json:"documents"`
	Statements  []Statement     `json:"statements"`
	Preferences *Preferences    `json:"preferences,omitempty"`
	Defaults    []DefaultRecord `json:"defaults"`
}

// Backup представляет полный снимок данных одного пользователя.
// Инвариант: количества записей в Data должны совпадать с заявленными
// в Metadata.DataCounts (проверяется сериализатором при записи).
type Backup struct {
	Metadata BackupMetadata `json:"metadata"`
	Data     BackupData     `json:"data"`
}

// ArchiveInfo описывает сохраненный на диске файл бэкапа.
type ArchiveInfo struct {
	Filename   string     `json:"filename"`
	UserID     string     `json:"user_id"`
	Email      string     `json:"email"`
	BackupDate time.Time  `json:"backup_date"`
	SizeBytes  int64      `json:"size_bytes"`
	DataCounts DataCounts `json:"data_counts"`
}

// RestoreRequest представляет тело запроса на восстановление из бэкапа.
type RestoreRequest struct {
	Filename string `json:"filename"`
	Mode     string `json:"mode,omitempty"` // merge (по умолчанию) или replace
}

// RestoredCounts - количество вставленных записей по видам.
type RestoredCounts struct {
	Clients     int `json:"clients"`
	Invoices    int `json:"invoices"`
	Documents   int `json:"documents"`
	Statements  int `json:"statements"`
	Preferences int `json:"preferences"`
	Defaults    int `json:"defaults"`
}

// SkippedCounts - количество пропущенных дубликатов по видам.
// Выписки и документы дедупликации не имеют, поэтому их счетчики
// остаются нулевыми и присутствуют только для симметрии формата.
type SkippedCounts struct {
	Clients    int `json:"clients"`
	Invoices   int `json:"invoices"`
	Documents  int `json:"documents"`
	Statements int `json:"statements"`
}

// RestoreResult - итог восстановления. Success сбрасывается в false только
// при ошибке верхнего уровня; ошибки отдельных записей попадают в Errors,
// но не прерывают восстановление.
type RestoreResult struct {
	Success  bool           `json:"success"`
	Restored RestoredCounts `json:"restored"`
	Skipped  SkippedCounts  `json:"skipped"`
	Errors   []string       `json:"errors"`
}

// CreateBackupResponse представляет тело ответа на создание бэкапа.
type CreateBackupResponse struct {
	Filename string         `json:"filename"`
	Metadata BackupMetadata `json:"metadata"`
}

// CleanupRequest представляет тело запроса на чистку старых бэкапов.
// Keep - сколько последних бэкапов оставить; nil означает значение по умолчанию (10),
// явный ноль или отрицательное значение - ошибка валидации.
type CleanupRequest struct {
	Keep *int `json:"keep,omitempty"`
}

// CleanupResponse представляет тело ответа на чистку старых бэкапов.
type CleanupResponse struct {
	Deleted int `json:"deleted"`
}
