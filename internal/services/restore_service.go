package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/mkotelnikov/invoicekeeper/internal/backup"
	"github.com/mkotelnikov/invoicekeeper/internal/models"
	"github.com/mkotelnikov/invoicekeeper/internal/repository"
)

// mergePolicy описывает поведение вида записей при восстановлении в режиме
// слияния. Политики у видов намеренно разные - так исторически ведет себя
// формат: вопрос о единой семантике слияния остается открытым.
type mergePolicy int

const (
	// policySkipDuplicate - дубликат по естественному ключу пропускается,
	// его идентификатор переназначается на существующую запись.
	policySkipDuplicate mergePolicy = iota
	// policyAlwaysInsert - записи вставляются всегда, дедупликации нет.
	policyAlwaysInsert
	// policyUpsert - единственная запись владельца безусловно заменяется.
	policyUpsert
	// policyUpdateInPlace - при совпадении естественного ключа поля
	// существующей записи обновляются на месте.
	policyUpdateInPlace
)

// restoreStage - один шаг конвейера восстановления.
type restoreStage struct {
	kind   string
	policy mergePolicy
	run    func(r *restoreRun, ctx context.Context, policy mergePolicy)
}

// Порядок шагов фиксирован: поздние виды ссылаются на ранние по идентификаторам.
var restoreStages = []restoreStage{
	{kind: "clients", policy: policySkipDuplicate, run: (*restoreRun).restoreClients},
	{kind: "invoices", policy: policySkipDuplicate, run: (*restoreRun).restoreInvoices},
	{kind: "statements", policy: policyAlwaysInsert, run: (*restoreRun).restoreStatements},
	{kind: "documents", policy: policyAlwaysInsert, run: (*restoreRun).restoreDocuments},
	{kind: "preferences", policy: policyUpsert, run: (*restoreRun).restorePreferences},
	{kind: "defaults", policy: policyUpdateInPlace, run: (*restoreRun).restoreDefaults},
}

// restoreRun хранит состояние одного восстановления. Создается заново на
// каждый вызов: таблица переназначения и результат не переживают запрос.
type restoreRun struct {
	repos  Repositories
	b      *models.Backup
	target string
	mode   models.RestoreMode

	rm              *backup.Remapper
	clientIDByEmail map[string]string
	result          *models.RestoreResult
}

// RestoreBackup восстанавливает данные из файла бэкапа в аккаунт targetUserID.
// Режим merge сливает записи по естественным ключам, режим replace
// предварительно удаляет все существующие данные пользователя.
// Ошибки отдельных записей собираются в результат и не прерывают процесс;
// Success сбрасывается только при ошибке верхнего уровня.
func (s *backupService) RestoreBackup(
	ctx context.Context,
	targetUserID, filename string,
	mode models.RestoreMode,
) (*models.RestoreResult, error) {
	if mode == "" {
		mode = models.RestoreModeMerge
	}
	if mode != models.RestoreModeMerge && mode != models.RestoreModeReplace {
		log.Printf("[RestoreService] Отклонен недопустимый режим восстановления: %q", mode)
		return nil, ErrInvalidMode
	}

	b, err := s.archive.Read(filename)
	if err != nil {
		return nil, err
	}

	log.Printf("[RestoreService] Восстановление '%s' в аккаунт %s, режим %s (бэкап пользователя %s от %s)",
		filename, targetUserID, mode, b.Metadata.UserID, b.Metadata.BackupDate.Format("2006-01-02 15:04:05"))

	run := &restoreRun{
		repos:           s.repos,
		b:               b,
		target:          targetUserID,
		mode:            mode,
		rm:              backup.NewRemapper(),
		clientIDByEmail: make(map[string]string),
		result: &models.RestoreResult{
			Success: true,
			Errors:  []string{},
		},
	}

	if mode == models.RestoreModeReplace {
		if err = run.purgeAll(ctx); err != nil {
			log.Printf("[RestoreService] Ошибка очистки данных пользователя %s: %v", targetUserID, err)
			run.result.Success = false
			run.result.Errors = append(run.result.Errors,
				fmt.Sprintf("очистка существующих данных: %v", err))
			return run.result, nil
		}
	}

	for _, stage := range restoreStages {
		stage.run(run, ctx, stage.policy)
	}

	log.Printf("[RestoreService] Восстановление '%s' завершено: восстановлено %+v, пропущено %+v, ошибок %d",
		filename, run.result.Restored, run.result.Skipped, len(run.result.Errors))
	return run.result, nil
}

// purgeAll удаляет все записи всех шести видов у целевого пользователя.
// Выполняется одним подготовительным этапом перед восстановлением в режиме
// replace; любая ошибка здесь фатальна для всей операции.
func (r *restoreRun) purgeAll(ctx context.Context) error {
	if err := r.repos.Documents.DeleteByUser(ctx, r.target); err != nil {
		return err
	}
	if err := r.repos.Statements.DeleteByUser(ctx, r.target); err != nil {
		return err
	}
	if err := r.repos.Invoices.DeleteByUser(ctx, r.target); err != nil {
		return err
	}
	if err := r.repos.Clients.DeleteByUser(ctx, r.target); err != nil {
		return err
	}
	if err := r.repos.Preferences.DeleteByUser(ctx, r.target); err != nil {
		return err
	}
	return r.repos.Defaults.DeleteByUser(ctx, r.target)
}

// fail записывает ошибку одной записи и продолжает восстановление.
func (r *restoreRun) fail(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[RestoreService] %s", msg)
	r.result.Errors = append(r.result.Errors, msg)
}

// restoreClients восстанавливает клиентов. В режиме слияния дубликат
// определяется по email без учета регистра. В обоих случаях строится
// карта email -> живой идентификатор: по ней позже разрешаются ссылки
// из выписок.
func (r *restoreRun) restoreClients(ctx context.Context, policy mergePolicy) {
	for i := range r.b.Data.Clients {
		c := r.b.Data.Clients[i]
		emailKey := strings.ToLower(c.Email)

		if r.mode == models.RestoreModeMerge && policy == policySkipDuplicate {
			existing, err := r.repos.Clients.GetByEmail(ctx, r.target, c.Email)
			switch {
			case err == nil:
				// Дубликат: пропускаем, но переназначаем идентификатор,
				// чтобы поздние ссылки разрешались на существующую запись
				r.rm.Assign(c.ID, existing.ID)
				r.clientIDByEmail[emailKey] = existing.ID
				r.result.Skipped.Clients++
				continue
			case !errors.Is(err, repository.ErrClientNotFound):
				r.fail("клиент '%s': ошибка поиска дубликата: %v", c.Email, err)
				continue
			}
		}

		newID := uuid.NewString()
		nc := c
		nc.ID = newID
		nc.UserID = r.target
		if err := r.repos.Clients.Create(ctx, &nc); err != nil {
			r.fail("клиент '%s': %v", c.Email, err)
			continue
		}
		r.rm.Assign(c.ID, newID)
		r.clientIDByEmail[emailKey] = newID
		r.result.Restored.Clients++
	}
}

// restoreInvoices восстанавливает счета. В режиме слияния дубликат
// определяется по номеру счета. Ссылка на клиента переписывается через
// таблицу переназначения.
func (r *restoreRun) restoreInvoices(ctx context.Context, policy mergePolicy) {
	for i := range r.b.Data.Invoices {
		inv := r.b.Data.Invoices[i]

		if r.mode == models.RestoreModeMerge && policy == policySkipDuplicate {
			existing, err := r.repos.Invoices.GetByNumber(ctx, r.target, inv.Number)
			switch {
			case err == nil:
				r.rm.Assign(inv.ID, existing.ID)
				r.result.Skipped.Invoices++
				continue
			case !errors.Is(err, repository.ErrInvoiceNotFound):
				r.fail("счет '%s': ошибка поиска дубликата: %v", inv.Number, err)
				continue
			}
		}

		newID := uuid.NewString()
		ni := inv
		ni.ID = newID
		ni.UserID = r.target
		ni.ClientID = r.rm.Resolve(inv.ClientID)
		if err := r.repos.Invoices.Create(ctx, &ni); err != nil {
			r.fail("счет '%s': %v", inv.Number, err)
			continue
		}
		r.rm.Assign(inv.ID, newID)
		r.result.Restored.Invoices++
	}
}

// restoreStatements восстанавливает выписки, всегда вставкой. Ссылка на
// клиента заново разрешается по email из карты, построенной на шаге
// клиентов: сохраненный в выписке идентификатор клиента не стабилен при
// повторной вставке. Если email в карте нет, ссылка разрешается через
// таблицу переназначения.
func (r *restoreRun) restoreStatements(ctx context.Context, _ mergePolicy) {
	for i := range r.b.Data.Statements {
		st := r.b.Data.Statements[i]

		ns := st
		ns.ID = uuid.NewString()
		ns.UserID = r.target
		if liveID, ok := r.clientIDByEmail[strings.ToLower(st.ClientEmail)]; ok {
			ns.ClientID = liveID
		} else {
			ns.ClientID = r.rm.Resolve(st.ClientID)
		}
		if err := r.repos.Statements.Create(ctx, &ns); err != nil {
			r.fail("выписка для клиента '%s': %v", st.ClientEmail, err)
			continue
		}
		r.result.Restored.Statements++
	}
}

// restoreDocuments восстанавливает документы, всегда вставкой. Ссылки на
// счет и родительский документ переписываются через таблицу переназначения:
// неизвестная ссылка получает свежий идентификатор и не считается ошибкой.
// Поле "кем загружен" безусловно переписывается на целевого пользователя.
func (r *restoreRun) restoreDocuments(ctx context.Context, _ mergePolicy) {
	for i := range r.b.Data.Documents {
		doc := r.b.Data.Documents[i]

		nd := doc
		nd.ID = uuid.NewString()
		nd.UserID = r.target
		if doc.InvoiceID != "" {
			nd.InvoiceID = r.rm.Resolve(doc.InvoiceID)
		}
		if doc.ParentID != "" {
			nd.ParentID = r.rm.Resolve(doc.ParentID)
		}
		if err := r.repos.Documents.Create(ctx, &nd); err != nil {
			r.fail("документ '%s': %v", doc.Name, err)
			continue
		}
		r.rm.Assign(doc.ID, nd.ID)
		r.result.Restored.Documents++
	}
}

// restorePreferences восстанавливает настройки безусловной заменой
// единственной записи владельца - и в режиме слияния тоже (историческая
// асимметрия формата, сохраняется сознательно).
func (r *restoreRun) restorePreferences(ctx context.Context, _ mergePolicy) {
	if r.b.Data.Preferences == nil {
		return
	}

	np := *r.b.Data.Preferences
	np.UserID = r.target
	if err := r.repos.Preferences.Upsert(ctx, &np); err != nil {
		r.fail("настройки: %v", err)
		return
	}
	r.result.Restored.Preferences++
}

// restoreDefaults восстанавливает наборы значений по умолчанию. При
// совпадении имени поля существующего набора обновляются на месте
// (update-merge, в отличие от клиентов и счетов, которые пропускаются).
func (r *restoreRun) restoreDefaults(ctx context.Context, policy mergePolicy) {
	for i := range r.b.Data.Defaults {
		d := r.b.Data.Defaults[i]

		if r.mode == models.RestoreModeMerge && policy == policyUpdateInPlace {
			existing, err := r.repos.Defaults.GetByName(ctx, r.target, d.Name)
			switch {
			case err == nil:
				existing.PaymentTerms = d.PaymentTerms
				existing.TaxRate = d.TaxRate
				existing.Currency = d.Currency
				existing.Notes = d.Notes
				if uerr := r.repos.Defaults.Update(ctx, existing); uerr != nil {
					r.fail("набор значений '%s': %v", d.Name, uerr)
					continue
				}
				r.result.Restored.Defaults++
				continue
			case !errors.Is(err, repository.ErrDefaultNotFound):
				r.fail("набор значений '%s': ошибка поиска дубликата: %v", d.Name, err)
				continue
			}
		}

		nd := d
		nd.ID = uuid.NewString()
		nd.UserID = r.target
		if err := r.repos.Defaults.Create(ctx, &nd); err != nil {
			r.fail("набор значений '%s': %v", d.Name, err)
			continue
		}
		r.result.Restored.Defaults++
	}
}
