// Package backup содержит формат снимка: сериализацию в сжатый JSON
// и таблицу переназначения идентификаторов для восстановления.
package backup

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/mkotelnikov/invoicekeeper/internal/models"
)

// Кастомные ошибки сериализатора.
var (
	ErrCorruptArchive = errors.New("файл бэкапа поврежден или имеет неверный формат")
	ErrCountMismatch  = errors.New("количество записей в снимке не совпадает с заявленным в заголовке")
)

// Serialize кодирует снимок в JSON и сжимает его gzip.
// Перед записью проверяет инвариант: фактические количества записей
// должны совпадать с заявленными в заголовке.
func Serialize(b *models.Backup) ([]byte, error) {
	if err := verifyCounts(b); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(b); err != nil {
		_ = gz.Close()
		return nil, fmt.Errorf("ошибка кодирования снимка в JSON: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("ошибка сжатия снимка: %w", err)
	}

	log.Printf("[Serializer] Снимок пользователя %s сериализован, размер %d байт",
		b.Metadata.UserID, buf.Len())
	return buf.Bytes(), nil
}

// Deserialize распаковывает и декодирует снимок из сжатого JSON.
// Любая ошибка распаковки или разбора означает поврежденный архив.
func Deserialize(data []byte) (*models.Backup, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		log.Printf("[Serializer] Ошибка распаковки gzip: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	defer func() {
		if closeErr := gz.Close(); closeErr != nil {
			log.Printf("[Serializer] Ошибка закрытия gzip-ридера: %v", closeErr)
		}
	}()

	raw, err := io.ReadAll(gz)
	if err != nil {
		log.Printf("[Serializer] Ошибка чтения сжатого потока: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	var b models.Backup
	if err = json.Unmarshal(raw, &b); err != nil {
		log.Printf("[Serializer] Ошибка разбора JSON снимка: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	return &b, nil
}

// verifyCounts сверяет фактические размеры наборов с заголовком снимка.
func verifyCounts(b *models.Backup) error {
	prefs := 0
	if b.Data.Preferences != nil {
		prefs = 1
	}
	actual := models.DataCounts{
		Clients:     len(b.Data.Clients),
		Invoices:    len(b.Data.Invoices),
		Documents:   len(b.Data.Documents),
		Statements:  len(b.Data.Statements),
		Preferences: prefs,
		Defaults:    len(b.Data.Defaults),
	}
	if actual != b.Metadata.DataCounts {
		log.Printf("[Serializer] Расхождение количеств: заголовок %+v, фактически %+v",
			b.Metadata.DataCounts, actual)
		return ErrCountMismatch
	}
	return nil
}
