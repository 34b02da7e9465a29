package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkotelnikov/invoicekeeper/internal/middleware"
	"github.com/mkotelnikov/invoicekeeper/internal/services"
)

// GenerateStatementRequest представляет тело запроса на формирование выписки.
type GenerateStatementRequest struct {
	ClientID    string    `json:"client_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// StatementHandler обрабатывает HTTP-запросы, связанные с выписками.
type StatementHandler struct {
	statementService services.StatementService
}

// NewStatementHandler создает новый экземпляр StatementHandler.
func NewStatementHandler(ss services.StatementService) *StatementHandler {
	return &StatementHandler{statementService: ss}
}

// List обрабатывает GET запрос на получение списка выписок пользователя.
func (h *StatementHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	statements, err := h.statementService.List(r.Context(), userID)
	if err != nil {
		log.Printf("[StatementHandler:List] Ошибка получения выписок для %s: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, statements)
}

// Get обрабатывает GET запрос на получение выписки по ID.
func (h *StatementHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	statement, err := h.statementService.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, services.ErrStatementNotFound) {
			http.Error(w, "Выписка не найдена", http.StatusNotFound)
			return
		}
		log.Printf("[StatementHandler:Get] Ошибка получения выписки: %v", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, statement)
}

// Generate обрабатывает POST запрос на формирование выписки по клиенту за период.
func (h *StatementHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var req GenerateStatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	if req.ClientID == "" || req.PeriodStart.IsZero() || req.PeriodEnd.IsZero() {
		http.Error(w, "Укажите клиента и границы периода", http.StatusBadRequest)
		return
	}

	statement, err := h.statementService.Generate(r.Context(), userID, req.ClientID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrClientNotFound):
			http.Error(w, "Клиент не найден", http.StatusNotFound)
		case errors.Is(err, services.ErrBadPeriod):
			http.Error(w, "Начало периода позже его конца", http.StatusBadRequest)
		default:
			log.Printf("[StatementHandler:Generate] Ошибка формирования выписки: %v", err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, statement)
}

// Delete обрабатывает DELETE запрос на удаление выписки.
func (h *StatementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.statementService.Delete(r.Context(), userID, id); err != nil {
		if errors.Is(err, services.ErrStatementNotFound) {
			http.Error(w, "Выписка не найдена", http.StatusNotFound)
			return
		}
		log.Printf("[StatementHandler:Delete] Ошибка удаления выписки %s: %v", id, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
