package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mkotelnikov/invoicekeeper/internal/models"
	"github.com/mkotelnikov/invoicekeeper/internal/repository"
)

// StatementService определяет интерфейс для формирования выписок по клиенту
// за период.
type StatementService interface {
	Generate(ctx context.Context, userID, clientID string, periodStart, periodEnd time.Time) (*models.Statement, error)
	List(ctx context.Context, userID string) ([]models.Statement, error)
	Get(ctx context.Context, userID, id string) (*models.Statement, error)
	Delete(ctx context.Context, userID, id string) error
}

// Кастомные ошибки сервиса выписок.
var (
	ErrStatementNotFound = errors.New("выписка не найдена")
	ErrClientNotFound    = errors.New("клиент не найден")
	ErrBadPeriod         = errors.New("начало периода позже его конца")
)

// Убедимся, что statementService удовлетворяет интерфейсу StatementService.
var _ StatementService = (*statementService)(nil)

type statementService struct {
	statementRepo repository.StatementRepository
	invoiceRepo   repository.InvoiceRepository
	clientRepo    repository.ClientRepository
}

// NewStatementService создает новый экземпляр сервиса выписок.
func NewStatementService(
	statementRepo repository.StatementRepository,
	invoiceRepo repository.InvoiceRepository,
	clientRepo repository.ClientRepository,
) StatementService {
	return &statementService{
		statementRepo: statementRepo,
		invoiceRepo:   invoiceRepo,
		clientRepo:    clientRepo,
	}
}

// Generate формирует выписку: суммирует счета клиента, выставленные в
// заданный период, и сохраняет результат. Email клиента фиксируется в
// выписке на момент формирования.
func (s *statementService) Generate(
	ctx context.Context,
	userID, clientID string,
	periodStart, periodEnd time.Time,
) (*models.Statement, error) {
	if periodStart.After(periodEnd) {
		return nil, ErrBadPeriod
	}

	client, err := s.clientRepo.GetByID(ctx, userID, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	invoices, err := s.invoiceRepo.ListByClientPeriod(ctx, userID, clientID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	total := 0.0
	for _, inv := range invoices {
		total += inv.Total
	}

	statement := &models.Statement{
		ID:          uuid.NewString(),
		UserID:      userID,
		ClientID:    clientID,
		ClientEmail: client.Email,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Total:       total,
		CreatedAt:   time.Now().UTC(),
	}
	if err = s.statementRepo.Create(ctx, statement); err != nil {
		return nil, err
	}

	log.Printf("[StatementService] Выписка по клиенту %s за %s - %s: %d счетов, итого %.2f",
		clientID, periodStart.Format("2006-01-02"), periodEnd.Format("2006-01-02"), len(invoices), total)
	return statement, nil
}

// List возвращает все выписки пользователя.
func (s *statementService) List(ctx context.Context, userID string) ([]models.Statement, error) {
	return s.statementRepo.ListByUser(ctx, userID)
}

// Get возвращает выписку по идентификатору.
func (s *statementService) Get(ctx context.Context, userID, id string) (*models.Statement, error) {
	statement, err := s.statementRepo.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrStatementNotFound) {
			return nil, ErrStatementNotFound
		}
		return nil, err
	}
	return statement, nil
}

// Delete удаляет выписку.
func (s *statementService) Delete(ctx context.Context, userID, id string) error {
	err := s.statementRepo.Delete(ctx, userID, id)
	if errors.Is(err, repository.ErrStatementNotFound) {
		return ErrStatementNotFound
	}
	return err
}
