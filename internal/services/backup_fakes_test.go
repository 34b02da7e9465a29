package services_test

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mkotelnikov/invoicekeeper/internal/models"
	"github.com/mkotelnikov/invoicekeeper/internal/repository"
	"github.com/mkotelnikov/invoicekeeper/internal/services"
)

// Простые in-memory репозитории для тестов резервного копирования и
// восстановления. Порядок вставки сохраняется.

type memUserRepo struct {
	users map[string]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*models.User)}
}

func (r *memUserRepo) CreateUser(_ context.Context, user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memUserRepo) GetUserByID(_ context.Context, id string) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memUserRepo) ListUserIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	return ids, nil
}

type memClientRepo struct {
	clients  []models.Client
	failNext error // Следующий Create вернет эту ошибку
	purgeErr error // DeleteByUser вернет эту ошибку
}

func (r *memClientRepo) ListByUser(_ context.Context, userID string) ([]models.Client, error) {
	var out []models.Client
	for _, c := range r.clients {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memClientRepo) GetByID(_ context.Context, userID, id string) (*models.Client, error) {
	for _, c := range r.clients {
		if c.UserID == userID && c.ID == id {
			copied := c
			return &copied, nil
		}
	}
	return nil, repository.ErrClientNotFound
}

func (r *memClientRepo) GetByEmail(_ context.Context, userID, email string) (*models.Client, error) {
	for _, c := range r.clients {
		if c.UserID == userID && strings.EqualFold(c.Email, email) {
			copied := c
			return &copied, nil
		}
	}
	return nil, repository.ErrClientNotFound
}

func (r *memClientRepo) Create(_ context.Context, client *models.Client) error {
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	r.clients = append(r.clients, *client)
	return nil
}

func (r *memClientRepo) Update(_ context.Context, client *models.Client) error {
	for i, c := range r.clients {
		if c.UserID == client.UserID && c.ID == client.ID {
			r.clients[i] = *client
			return nil
		}
	}
	return repository.ErrClientNotFound
}

func (r *memClientRepo) Delete(_ context.Context, userID, id string) error {
	for i, c := range r.clients {
		if c.UserID == userID && c.ID == id {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			return nil
		}
	}
	return repository.ErrClientNotFound
}

func (r *memClientRepo) DeleteByUser(_ context.Context, userID string) error {
	if r.purgeErr != nil {
		return r.purgeErr
	}
	kept := r.clients[:0]
	for _, c := range r.clients {
		if c.UserID != userID {
			kept = append(kept, c)
		}
	}
	r.clients = kept
	return nil
}

type memInvoiceRepo struct {
	invoices []models.Invoice
}

func (r *memInvoiceRepo) ListByUser(_ context.Context, userID string) ([]models.Invoice, error) {
	var out []models.Invoice
	for _, inv := range r.invoices {
		if inv.UserID == userID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *memInvoiceRepo) ListByClientPeriod(
	_ context.Context,
	userID, clientID string,
	from, to time.Time,
) ([]models.Invoice, error) {
	var out []models.Invoice
	for _, inv := range r.invoices {
		if inv.UserID == userID && inv.ClientID == clientID &&
			!inv.IssueDate.Before(from) && !inv.IssueDate.After(to) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *memInvoiceRepo) GetByID(_ context.Context, userID, id string) (*models.Invoice, error) {
	for _, inv := range r.invoices {
		if inv.UserID == userID && inv.ID == id {
			copied := inv
			return &copied, nil
		}
	}
	return nil, repository.ErrInvoiceNotFound
}

func (r *memInvoiceRepo) GetByNumber(_ context.Context, userID, number string) (*models.Invoice, error) {
	for _, inv := range r.invoices {
		if inv.UserID == userID && inv.Number == number {
			copied := inv
			return &copied, nil
		}
	}
	return nil, repository.ErrInvoiceNotFound
}

func (r *memInvoiceRepo) Create(_ context.Context, invoice *models.Invoice) error {
	r.invoices = append(r.invoices, *invoice)
	return nil
}

func (r *memInvoiceRepo) Update(_ context.Context, invoice *models.Invoice) error {
	for i, inv := range r.invoices {
		if inv.UserID == invoice.UserID && inv.ID == invoice.ID {
			r.invoices[i] = *invoice
			return nil
		}
	}
	return repository.ErrInvoiceNotFound
}

func (r *memInvoiceRepo) Delete(_ context.Context, userID, id string) error {
	for i, inv := range r.invoices {
		if inv.UserID == userID && inv.ID == id {
			r.invoices = append(r.invoices[:i], r.invoices[i+1:]...)
			return nil
		}
	}
	return repository.ErrInvoiceNotFound
}

func (r *memInvoiceRepo) DeleteByUser(_ context.Context, userID string) error {
	kept := r.invoices[:0]
	for _, inv := range r.invoices {
		if inv.UserID != userID {
			kept = append(kept, inv)
		}
	}
	r.invoices = kept
	return nil
}

type memStatementRepo struct {
	statements []models.Statement
}

func (r *memStatementRepo) ListByUser(_ context.Context, userID string) ([]models.Statement, error) {
	var out []models.Statement
	for _, st := range r.statements {
		if st.UserID == userID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (r *memStatementRepo) GetByID(_ context.Context, userID, id string) (*models.Statement, error) {
	for _, st := range r.statements {
		if st.UserID == userID && st.ID == id {
			copied := st
			return &copied, nil
		}
	}
	return nil, repository.ErrStatementNotFound
}

func (r *memStatementRepo) Create(_ context.Context, statement *models.Statement) error {
	r.statements = append(r.statements, *statement)
	return nil
}

func (r *memStatementRepo) Delete(_ context.Context, userID, id string) error {
	for i, st := range r.statements {
		if st.UserID == userID && st.ID == id {
			r.statements = append(r.statements[:i], r.statements[i+1:]...)
			return nil
		}
	}
	return repository.ErrStatementNotFound
}

func (r *memStatementRepo) DeleteByUser(_ context.Context, userID string) error {
	kept := r.statements[:0]
	for _, st := range r.statements {
		if st.UserID != userID {
			kept = append(kept, st)
		}
	}
	r.statements = kept
	return nil
}

type memDocumentRepo struct {
	documents []models.Document
}

func (r *memDocumentRepo) ListByUser(_ context.Context, userID string) ([]models.Document, error) {
	var out []models.Document
	for _, d := range r.documents {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memDocumentRepo) ListByInvoice(_ context.Context, userID, invoiceID string) ([]models.Document, error) {
	var out []models.Document
	for _, d := range r.documents {
		if d.UserID == userID && d.InvoiceID == invoiceID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memDocumentRepo) GetByID(_ context.Context, userID, id string) (*models.Document, error) {
	for _, d := range r.documents {
		if d.UserID == userID && d.ID == id {
			copied := d
			return &copied, nil
		}
	}
	return nil, repository.ErrDocumentNotFound
}

func (r *memDocumentRepo) Create(_ context.Context, doc *models.Document) error {
	r.documents = append(r.documents, *doc)
	return nil
}

func (r *memDocumentRepo) Delete(_ context.Context, userID, id string) error {
	for i, d := range r.documents {
		if d.UserID == userID && d.ID == id {
			r.documents = append(r.documents[:i], r.documents[i+1:]...)
			return nil
		}
	}
	return repository.ErrDocumentNotFound
}

func (r *memDocumentRepo) DeleteByUser(_ context.Context, userID string) error {
	kept := r.documents[:0]
	for _, d := range r.documents {
		if d.UserID != userID {
			kept = append(kept, d)
		}
	}
	r.documents = kept
	return nil
}

type memPreferencesRepo struct {
	prefs map[string]*models.Preferences
}

func newMemPreferencesRepo() *memPreferencesRepo {
	return &memPreferencesRepo{prefs: make(map[string]*models.Preferences)}
}

func (r *memPreferencesRepo) GetByUser(_ context.Context, userID string) (*models.Preferences, error) {
	p, ok := r.prefs[userID]
	if !ok {
		return nil, repository.ErrPreferencesNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *memPreferencesRepo) Upsert(_ context.Context, prefs *models.Preferences) error {
	copied := *prefs
	r.prefs[prefs.UserID] = &copied
	return nil
}

func (r *memPreferencesRepo) DeleteByUser(_ context.Context, userID string) error {
	delete(r.prefs, userID)
	return nil
}

type memDefaultsRepo struct {
	defaults []models.DefaultRecord
}

func (r *memDefaultsRepo) ListByUser(_ context.Context, userID string) ([]models.DefaultRecord, error) {
	var out []models.DefaultRecord
	for _, d := range r.defaults {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memDefaultsRepo) GetByName(_ context.Context, userID, name string) (*models.DefaultRecord, error) {
	for _, d := range r.defaults {
		if d.UserID == userID && d.Name == name {
			copied := d
			return &copied, nil
		}
	}
	return nil, repository.ErrDefaultNotFound
}

func (r *memDefaultsRepo) Create(_ context.Context, rec *models.DefaultRecord) error {
	r.defaults = append(r.defaults, *rec)
	return nil
}

func (r *memDefaultsRepo) Update(_ context.Context, rec *models.DefaultRecord) error {
	for i, d := range r.defaults {
		if d.UserID == rec.UserID && d.ID == rec.ID {
			r.defaults[i] = *rec
			return nil
		}
	}
	return repository.ErrDefaultNotFound
}

func (r *memDefaultsRepo) Delete(_ context.Context, userID, id string) error {
	for i, d := range r.defaults {
		if d.UserID == userID && d.ID == id {
			r.defaults = append(r.defaults[:i], r.defaults[i+1:]...)
			return nil
		}
	}
	return repository.ErrDefaultNotFound
}

func (r *memDefaultsRepo) DeleteByUser(_ context.Context, userID string) error {
	kept := r.defaults[:0]
	for _, d := range r.defaults {
		if d.UserID != userID {
			kept = append(kept, d)
		}
	}
	r.defaults = kept
	return nil
}

// memArchive - in-memory реализация хранилища файлов бэкапов.
type memArchive struct {
	backups   map[string]*models.Backup
	raw       map[string][]byte
	readCalls int
	lastWrite string
}

func newMemArchive() *memArchive {
	return &memArchive{
		backups: make(map[string]*models.Backup),
		raw:     make(map[string][]byte),
	}
}

func (a *memArchive) Write(userID string, data []byte) (string, error) {
	name := "backup-user-2025-06-01T10-00-00-" + userID[:8] + ".json.gz"
	a.raw[name] = data
	a.lastWrite = name
	return name, nil
}

func (a *memArchive) List(_ string) ([]models.ArchiveInfo, error) {
	infos := make([]models.ArchiveInfo, 0, len(a.backups))
	for name := range a.backups {
		infos = append(infos, models.ArchiveInfo{Filename: name})
	}
	return infos, nil
}

func (a *memArchive) Read(filename string) (*models.Backup, error) {
	a.readCalls++
	b, ok := a.backups[filename]
	if !ok {
		return nil, errors.New("бэкап не найден")
	}
	return b, nil
}

func (a *memArchive) ReadFile(filename string) ([]byte, error) {
	data, ok := a.raw[filename]
	if !ok {
		return nil, errors.New("бэкап не найден")
	}
	return data, nil
}

func (a *memArchive) Delete(filename string) error {
	delete(a.backups, filename)
	delete(a.raw, filename)
	return nil
}

func (a *memArchive) Cleanup(_ string, _ int) (int, error) {
	return 0, nil
}

// testEnv собирает сервис бэкапов поверх in-memory зависимостей.
type testEnv struct {
	users      *memUserRepo
	clients    *memClientRepo
	invoices   *memInvoiceRepo
	documents  *memDocumentRepo
	statements *memStatementRepo
	prefs      *memPreferencesRepo
	defaults   *memDefaultsRepo
	archive    *memArchive
	service    services.BackupService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		users:      newMemUserRepo(),
		clients:    &memClientRepo{},
		invoices:   &memInvoiceRepo{},
		documents:  &memDocumentRepo{},
		statements: &memStatementRepo{},
		prefs:      newMemPreferencesRepo(),
		defaults:   &memDefaultsRepo{},
		archive:    newMemArchive(),
	}
	env.service = services.NewBackupService(services.Repositories{
		Users:       env.users,
		Clients:     env.clients,
		Invoices:    env.invoices,
		Documents:   env.documents,
		Statements:  env.statements,
		Preferences: env.prefs,
		Defaults:    env.defaults,
	}, env.archive)
	return env
}
