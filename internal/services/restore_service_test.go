package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkotelnikov/invoicekeeper/internal/models"
	"github.com/mkotelnikov/invoicekeeper/internal/services"
)

const (
	targetUser  = "99998888-7777-6666-5555-444433332222"
	archiveName = "backup-user-2025-06-01T10-00-00-9a9a9a9a.json.gz"
)

// snapshotBackup собирает снимок с перекрестными ссылками между видами:
// счета ссылаются на клиентов, выписки и документы - на клиентов и счета.
func snapshotBackup() *models.Backup {
	return &models.Backup{
		Metadata: models.BackupMetadata{
			UserID:     "old-user",
			Email:      "ivan@example.com",
			BackupDate: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
			Version:    models.BackupVersion,
			DataCounts: models.DataCounts{
				Clients: 2, Invoices: 2, Documents: 2, Statements: 2, Preferences: 1, Defaults: 2,
			},
		},
		Data: models.BackupData{
			User: &models.User{ID: "old-user", Email: "ivan@example.com"},
			Clients: []models.Client{
				{ID: "c-old-1", UserID: "old-user", Name: "Анна", Email: "Anna@Example.com"},
				{ID: "c-old-2", UserID: "old-user", Name: "Борис", Email: "boris@example.com"},
			},
			Invoices: []models.Invoice{
				{ID: "inv-old-1", UserID: "old-user", ClientID: "c-old-1", Number: "INV-1", Total: 100},
				{ID: "inv-old-2", UserID: "old-user", ClientID: "c-old-2", Number: "INV-2", Total: 200},
			},
			Statements: []models.Statement{
				{ID: "st-old-1", UserID: "old-user", ClientID: "c-old-1", ClientEmail: "anna@example.com", Total: 100},
				{ID: "st-old-2", UserID: "old-user", ClientID: "c-old-2", ClientEmail: "boris@example.com", Total: 200},
			},
			Documents: []models.Document{
				{ID: "doc-old-1", UserID: "old-user", InvoiceID: "inv-old-1", Name: "scan.pdf"},
				{ID: "doc-old-2", UserID: "old-user", InvoiceID: "inv-old-1", ParentID: "doc-old-1", Name: "act.pdf"},
			},
			Preferences: &models.Preferences{UserID: "old-user", Currency: "USD", NumberingPrefix: "OLD"},
			Defaults: []models.DefaultRecord{
				{ID: "def-old-1", UserID: "old-user", Name: "Стандарт", PaymentTerms: "14 дней", TaxRate: 20},
				{ID: "def-old-2", UserID: "old-user", Name: "Экспресс", PaymentTerms: "3 дня", TaxRate: 0},
			},
		},
	}
}

func TestRestoreBackup_MergeIntoEmptyAccount(t *testing.T) {
	env := newTestEnv()
	env.archive.backups[archiveName] = snapshotBackup()

	result, err := env.service.RestoreBackup(context.Background(), targetUser, archiveName, models.RestoreModeMerge)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Empty(t, result.Errors)

	assert.Equal(t, models.RestoredCounts{
		Clients: 2, Invoices: 2, Documents: 2, Statements: 2, Preferences: 1, Defaults: 2,
	}, result.Restored)
	assert.Equal(t, models.SkippedCounts{}, result.Skipped)

	// Все записи принадлежат целевому пользователю и получили свежие ID
	require.Len(t, env.clients.clients, 2)
	for _, c := range env.clients.clients {
		assert.Equal(t, targetUser, c.UserID)
		assert.NotEqual(t, "c-old-1", c.ID)
		assert.NotEqual(t, "c-old-2", c.ID)
	}

	// Ссылка счета на клиента переписана на живой идентификатор
	anna := env.clients.clients[0]
	inv1 := env.invoices.invoices[0]
	assert.Equal(t, anna.ID, inv1.ClientID, "счет должен ссылаться на нового клиента")

	// Выписка разрешает клиента по email
	st1 := env.statements.statements[0]
	assert.Equal(t, anna.ID, st1.ClientID)

	// Документ ссылается на новый счет, вложенный - на новый родительский документ
	doc1 := env.documents.documents[0]
	doc2 := env.documents.documents[1]
	assert.Equal(t, inv1.ID, doc1.InvoiceID)
	assert.Equal(t, inv1.ID, doc2.InvoiceID)
	assert.Equal(t, doc1.ID, doc2.ParentID)

	// Настройки перенесены на целевого пользователя
	prefs, err := env.prefs.GetByUser(context.Background(), targetUser)
	require.NoError(t, err)
	assert.Equal(t, "USD", prefs.Currency)
}

func TestRestoreBackup_MergeSkipsDuplicates(t *testing.T) {
	env := newTestEnv()
	env.archive.backups[archiveName] = snapshotBackup()

	// Существующий клиент с тем же email в другом регистре
	env.clients.clients = append(env.clients.clients, models.Client{
		ID: "live-anna", UserID: targetUser, Name: "Анна (живая)", Email: "ANNA@EXAMPLE.COM",
	})
	// Существующий счет с тем же номером
	env.invoices.invoices = append(env.invoices.invoices, models.Invoice{
		ID: "live-inv-1", UserID: targetUser, ClientID: "live-anna", Number: "INV-1",
	})
	// Существующий набор значений с тем же именем
	env.defaults.defaults = append(env.defaults.defaults, models.DefaultRecord{
		ID: "live-def", UserID: targetUser, Name: "Стандарт", PaymentTerms: "30 дней", TaxRate: 10, Notes: "старые",
	})

	result, err := env.service.RestoreBackup(context.Background(), targetUser, archiveName, models.RestoreModeMerge)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, 1, result.Skipped.Clients, "дубликат клиента по email должен быть пропущен")
	assert.Equal(t, 1, result.Skipped.Invoices, "дубликат счета по номеру должен быть пропущен")
	assert.Equal(t, 1, result.Restored.Clients)
	assert.Equal(t, 1, result.Restored.Invoices)
	assert.Equal(t, 2, result.Restored.Defaults, "совпавший набор обновляется и тоже считается восстановленным")

	// Пропущенный клиент не продублирован: live-anna и восстановленный Борис
	require.Len(t, env.clients.clients, 2)
	// Второй счет ссылается на нового Бориса
	var boris *models.Client
	for i := range env.clients.clients {
		if env.clients.clients[i].Email == "boris@example.com" {
			boris = &env.clients.clients[i]
		}
	}
	require.NotNil(t, boris)

	// Выписка Анны разрешается на существующего клиента
	st1 := env.statements.statements[0]
	assert.Equal(t, "live-anna", st1.ClientID, "выписка должна ссылаться на существующего клиента по email")

	// Документы ссылаются на существующий счет: его ID переназначен при пропуске
	doc1 := env.documents.documents[0]
	assert.Equal(t, "live-inv-1", doc1.InvoiceID)

	// Поля совпавшего набора обновлены на месте, ID сохранен
	def, err := env.defaults.GetByName(context.Background(), targetUser, "Стандарт")
	require.NoError(t, err)
	assert.Equal(t, "live-def", def.ID)
	assert.Equal(t, "14 дней", def.PaymentTerms)
	assert.InDelta(t, 20.0, def.TaxRate, 0.001)
}

func TestRestoreBackup_RepeatedMergeIsIdempotentPerKind(t *testing.T) {
	env := newTestEnv()
	env.archive.backups[archiveName] = snapshotBackup()

	first, err := env.service.RestoreBackup(context.Background(), targetUser, archiveName, models.RestoreModeMerge)
	require.NoError(t, err)
	require.True(t, first.Success)
	require.Empty(t, first.Errors)

	// Повторное слияние того же снимка: клиенты и счета распознаются как
	// дубликаты по естественным ключам, выписки и документы вставляются заново
	second, err := env.service.RestoreBackup(context.Background(), targetUser, archiveName, models.RestoreModeMerge)
	require.NoError(t, err)
	require.True(t, second.Success)
	require.Empty(t, second.Errors)

	assert.Equal(t, models.RestoredCounts{
		Documents: 2, Statements: 2, Preferences: 1, Defaults: 2,
	}, second.Restored, "клиенты и счета не должны восстанавливаться повторно")
	assert.Equal(t, 2, second.Skipped.Clients)
	assert.Equal(t, 2, second.Skipped.Invoices)

	// Дедуплицируемые виды не разрослись, вставляемые - удвоились
	assert.Len(t, env.clients.clients, 2)
	assert.Len(t, env.invoices.invoices, 2)
	assert.Len(t, env.statements.statements, 4)
	assert.Len(t, env.documents.documents, 4)
	assert.Len(t, env.defaults.defaults, 2)

	// Новые выписки и документы ссылаются на уже существующие записи
	anna := env.clients.clients[0]
	inv1 := env.invoices.invoices[0]
	assert.Equal(t, anna.ID, env.statements.statements[2].ClientID)
	assert.Equal(t, inv1.ID, env.documents.documents[2].InvoiceID)
}

func TestRestoreBackup_DanglingDocumentReference(t *testing.T) {
	env := newTestEnv()
	b := snapshotBackup()
	// Документ ссылается на счет и родителя, которых в снимке нет
	b.Data.Documents = append(b.Data.Documents, models.Document{
		ID: "doc-orphan", UserID: "old-user", InvoiceID: "inv-ghost", ParentID: "doc-ghost", Name: "orphan.pdf",
	})
	env.archive.backups[archiveName] = b

	result, err := env.service.RestoreBackup(context.Background(), targetUser, archiveName, models.RestoreModeMerge)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Empty(t, result.Errors, "висячая ссылка не считается ошибкой записи")
	assert.Equal(t, 3, result.Restored.Documents)

	var orphan *models.Document
	for i := range env.documents.documents {
		if env.documents.documents[i].Name == "orphan.pdf" {
			orphan = &env.documents.documents[i]
		}
	}
	require.NotNil(t, orphan)

	// Неизвестные ссылки получают свежие валидные идентификаторы
	assert.NotEqual(t, "inv-ghost", orphan.InvoiceID)
	assert.NotEqual(t, "doc-ghost", orphan.ParentID)
	_, err = uuid.Parse(orphan.InvoiceID)
	assert.NoError(t, err)
	_, err = uuid.Parse(orphan.ParentID)
	assert.NoError(t, err)
}

func TestRestoreBackup_ReplacePurgesExistingData(t *testing.T) {
	env := newTestEnv()
	env.archive.backups[archiveName] = snapshotBackup()

	// Существующие данные целевого пользователя
	env.clients.clients = append(env.clients.clients, models.Client{
		ID: "live-c", UserID: targetUser, Name: "Старый клиент", Email: "old@example.com",
	})
	env.invoices.invoices = append(env.invoices.invoices, models.Invoice{
		ID: "live-i", UserID: targetUser, Number: "OLD-1",
	})
	// Данные другого пользователя не должны пострадать
	env.clients.clients = append(env.clients.clients, models.Client{
		ID: "foreign-c", UserID: "another-user", Name: "Чужой", Email: "foreign@example.com",
	})

	result, err := env.service.RestoreBackup(context.Background(), targetUser, archiveName, models.RestoreModeReplace)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, 2, result.Restored.Clients)
	assert.Zero(t, result.Skipped.Clients, "в режиме replace дедупликации нет")

	// Старые записи пользователя удалены, чужие остались
	for _, c := range env.clients.clients {
		assert.NotEqual(t, "live-c", c.ID)
	}
	foreign, err := env.clients.GetByID(context.Background(), "another-user", "foreign-c")
	require.NoError(t, err)
	assert.Equal(t, "Чужой", foreign.Name)
}

func TestRestoreBackup_InvalidMode(t *testing.T) {
	env := newTestEnv()
	env.archive.backups[archiveName] = snapshotBackup()

	result, err := env.service.RestoreBackup(context.Background(), targetUser, archiveName, "overwrite")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, services.ErrInvalidMode)
	assert.Zero(t, env.archive.readCalls, "режим проверяется до обращения к хранилищу")
	assert.Empty(t, env.clients.clients, "данные не должны быть затронуты")
}

func TestRestoreBackup_EmptyModeDefaultsToMerge(t *testing.T) {
	env := newTestEnv()
	env.archive.backups[archiveName] = snapshotBackup()

	// Дубликат, который режим merge обязан пропустить
	env.clients.clients = append(env.clients.clients, models.Client{
		ID: "live-anna", UserID: targetUser, Email: "anna@example.com",
	})

	result, err := env.service.RestoreBackup(context.Background(), targetUser, archiveName, "")
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 1, result.Skipped.Clients)
}

func TestRestoreBackup_ReplacePurgeFailureIsFatal(t *testing.T) {
	env := newTestEnv()
	env.archive.backups[archiveName] = snapshotBackup()
	env.clients.purgeErr = errors.New("связь с БД потеряна")

	result, err := env.service.RestoreBackup(context.Background(), targetUser, archiveName, models.RestoreModeReplace)
	require.NoError(t, err, "фатальная ошибка очистки возвращается в результате, а не как error")
	require.NotNil(t, result)
	assert.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "очистка существующих данных")
	assert.Zero(t, result.Restored.Clients, "после фатальной ошибки восстановление не начинается")
}

func TestRestoreBackup_RecordErrorDoesNotAbort(t *testing.T) {
	env := newTestEnv()
	env.archive.backups[archiveName] = snapshotBackup()
	env.clients.failNext = errors.New("нарушение ограничения")

	result, err := env.service.RestoreBackup(context.Background(), targetUser, archiveName, models.RestoreModeMerge)
	require.NoError(t, err)
	require.True(t, result.Success, "ошибка одной записи не фатальна")
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Anna@Example.com")

	// Второй клиент и остальные виды восстановлены
	assert.Equal(t, 1, result.Restored.Clients)
	assert.Equal(t, 2, result.Restored.Invoices)
	assert.Equal(t, 2, result.Restored.Statements)
}
