package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mkotelnikov/invoicekeeper/internal/middleware"
	"github.com/mkotelnikov/invoicekeeper/internal/models"
	"github.com/mkotelnikov/invoicekeeper/internal/render"
	"github.com/mkotelnikov/invoicekeeper/internal/repository"
	"github.com/mkotelnikov/invoicekeeper/internal/services"
)

// InvoiceHandler обрабатывает HTTP-запросы, связанные со счетами.
type InvoiceHandler struct {
	invoiceRepo repository.InvoiceRepository
	clientRepo  repository.ClientRepository
	prefsRepo   repository.PreferencesRepository
	renderer    render.InvoiceRenderer
	docService  services.DocumentService
}

// NewInvoiceHandler создает новый экземпляр InvoiceHandler.
func NewInvoiceHandler(
	invoiceRepo repository.InvoiceRepository,
	clientRepo repository.ClientRepository,
	prefsRepo repository.PreferencesRepository,
	renderer render.InvoiceRenderer,
	docService services.DocumentService,
) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceRepo: invoiceRepo,
		clientRepo:  clientRepo,
		prefsRepo:   prefsRepo,
		renderer:    renderer,
		docService:  docService,
	}
}

// List обрабатывает GET запрос на получение списка счетов пользователя.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	invoices, err := h.invoiceRepo.ListByUser(r.Context(), userID)
	if err != nil {
		log.Printf("[InvoiceHandler:List] Ошибка получения счетов для %s: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, invoices)
}

// Get обрабатывает GET запрос на получение счета по ID.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	invoice, err := h.invoiceRepo.GetByID(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrInvoiceNotFound) {
			http.Error(w, "Счет не найден", http.StatusNotFound)
			return
		}
		log.Printf("[InvoiceHandler:Get] Ошибка получения счета: %v", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, invoice)
}

// Create обрабатывает POST запрос на создание счета.
// Если номер не указан, он выводится из префикса нумерации в настройках
// пользователя и текущего года.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var invoice models.Invoice
	if err := json.NewDecoder(r.Body).Decode(&invoice); err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	if invoice.ClientID == "" {
		http.Error(w, "Не указан клиент", http.StatusBadRequest)
		return
	}

	// Проверяем, что клиент существует и принадлежит пользователю
	if _, err := h.clientRepo.GetByID(r.Context(), userID, invoice.ClientID); err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			http.Error(w, "Клиент не найден", http.StatusBadRequest)
			return
		}
		log.Printf("[InvoiceHandler:Create] Ошибка проверки клиента %s: %v", invoice.ClientID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	invoice.Number = strings.TrimSpace(invoice.Number)
	if invoice.Number == "" {
		number, err := h.nextNumber(r, userID)
		if err != nil {
			log.Printf("[InvoiceHandler:Create] Ошибка генерации номера счета: %v", err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
			return
		}
		invoice.Number = number
	} else {
		// Номер - естественный ключ счета, дубликаты отклоняем сразу
		if _, err := h.invoiceRepo.GetByNumber(r.Context(), userID, invoice.Number); err == nil {
			http.Error(w, "Счет с таким номером уже существует", http.StatusConflict)
			return
		} else if !errors.Is(err, repository.ErrInvoiceNotFound) {
			log.Printf("[InvoiceHandler:Create] Ошибка проверки номера '%s': %v", invoice.Number, err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
			return
		}
	}

	if invoice.Status == "" {
		invoice.Status = models.InvoiceStatusDraft
	}

	now := time.Now().UTC()
	invoice.ID = uuid.NewString()
	invoice.UserID = userID
	invoice.CreatedAt = now
	invoice.UpdatedAt = now

	if err := h.invoiceRepo.Create(r.Context(), &invoice); err != nil {
		log.Printf("[InvoiceHandler:Create] Ошибка создания счета '%s': %v", invoice.Number, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	log.Printf("[InvoiceHandler:Create] Счет '%s' создан для пользователя %s", invoice.Number, userID)
	writeJSON(w, http.StatusCreated, invoice)
}

// nextNumber выводит следующий номер счета: <префикс>-<год>-<порядковый>.
func (h *InvoiceHandler) nextNumber(r *http.Request, userID string) (string, error) {
	prefix := "INV"
	prefs, err := h.prefsRepo.GetByUser(r.Context(), userID)
	if err != nil && !errors.Is(err, repository.ErrPreferencesNotFound) {
		return "", err
	}
	if prefs != nil && prefs.NumberingPrefix != "" {
		prefix = prefs.NumberingPrefix
	}

	invoices, err := h.invoiceRepo.ListByUser(r.Context(), userID)
	if err != nil {
		return "", err
	}
	return prefix + "-" + strconv.Itoa(time.Now().Year()) + "-" + strconv.Itoa(len(invoices)+1), nil
}

// Update обрабатывает PUT запрос на обновление счета.
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var invoice models.Invoice
	if err := json.NewDecoder(r.Body).Decode(&invoice); err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	invoice.ID = chi.URLParam(r, "id")
	invoice.UserID = userID
	invoice.UpdatedAt = time.Now().UTC()

	if err := h.invoiceRepo.Update(r.Context(), &invoice); err != nil {
		if errors.Is(err, repository.ErrInvoiceNotFound) {
			http.Error(w, "Счет не найден", http.StatusNotFound)
			return
		}
		log.Printf("[InvoiceHandler:Update] Ошибка обновления счета %s: %v", invoice.ID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, invoice)
}

// Delete обрабатывает DELETE запрос на удаление счета.
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.invoiceRepo.Delete(r.Context(), userID, id); err != nil {
		if errors.Is(err, repository.ErrInvoiceNotFound) {
			http.Error(w, "Счет не найден", http.StatusNotFound)
			return
		}
		log.Printf("[InvoiceHandler:Delete] Ошибка удаления счета %s: %v", id, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Render обрабатывает GET запрос на печатное HTML-представление счета.
func (h *InvoiceHandler) Render(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "id")
	invoice, err := h.invoiceRepo.GetByID(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrInvoiceNotFound) {
			http.Error(w, "Счет не найден", http.StatusNotFound)
			return
		}
		log.Printf("[InvoiceHandler:Render] Ошибка получения счета %s: %v", id, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	client, err := h.clientRepo.GetByID(r.Context(), userID, invoice.ClientID)
	if err != nil {
		log.Printf("[InvoiceHandler:Render] Ошибка получения клиента счета %s: %v", id, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	prefs, err := h.prefsRepo.GetByUser(r.Context(), userID)
	if err != nil && !errors.Is(err, repository.ErrPreferencesNotFound) {
		log.Printf("[InvoiceHandler:Render] Ошибка получения настроек: %v", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	page, err := h.renderer.Render(invoice, client, prefs)
	if err != nil {
		log.Printf("[InvoiceHandler:Render] Ошибка рендеринга счета %s: %v", id, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(page); err != nil {
		log.Printf("[InvoiceHandler:Render] Ошибка отправки страницы счета %s: %v", id, err)
	}
}

// DocumentsArchive обрабатывает GET запрос на zip-архив всех документов счета.
func (h *InvoiceHandler) DocumentsArchive(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "id")
	archive, err := h.docService.InvoiceArchive(r.Context(), userID, id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvoiceNotFound):
			http.Error(w, "Счет не найден", http.StatusNotFound)
		case errors.Is(err, services.ErrNoDocuments):
			http.Error(w, "У счета нет прикрепленных документов", http.StatusNotFound)
		default:
			log.Printf("[InvoiceHandler:DocumentsArchive] Ошибка сборки архива счета %s: %v", id, err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="invoice-documents.zip"`)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	if _, err = w.Write(archive); err != nil {
		log.Printf("[InvoiceHandler:DocumentsArchive] Ошибка отправки архива счета %s: %v", id, err)
	}
}
