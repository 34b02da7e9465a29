package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mkotelnikov/invoicekeeper/internal/middleware"
	"github.com/mkotelnikov/invoicekeeper/internal/models"
	"github.com/mkotelnikov/invoicekeeper/internal/repository"
)

// ClientHandler обрабатывает HTTP-запросы, связанные с клиентами.
type ClientHandler struct {
	clientRepo repository.ClientRepository
}

// NewClientHandler создает новый экземпляр ClientHandler.
func NewClientHandler(repo repository.ClientRepository) *ClientHandler {
	return &ClientHandler{clientRepo: repo}
}

// List обрабатывает GET запрос на получение списка клиентов пользователя.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	clients, err := h.clientRepo.ListByUser(r.Context(), userID)
	if err != nil {
		log.Printf("[ClientHandler:List] Ошибка получения клиентов для %s: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, clients)
}

// Get обрабатывает GET запрос на получение клиента по ID.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	client, err := h.clientRepo.GetByID(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			http.Error(w, "Клиент не найден", http.StatusNotFound)
			return
		}
		log.Printf("[ClientHandler:Get] Ошибка получения клиента: %v", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, client)
}

// Create обрабатывает POST запрос на создание клиента.
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var client models.Client
	if err := json.NewDecoder(r.Body).Decode(&client); err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	client.Name = strings.TrimSpace(client.Name)
	if client.Name == "" {
		http.Error(w, "Имя клиента не может быть пустым", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	client.ID = uuid.NewString()
	client.UserID = userID
	client.CreatedAt = now
	client.UpdatedAt = now

	if err := h.clientRepo.Create(r.Context(), &client); err != nil {
		log.Printf("[ClientHandler:Create] Ошибка создания клиента '%s': %v", client.Name, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	log.Printf("[ClientHandler:Create] Клиент '%s' создан для пользователя %s", client.Name, userID)
	writeJSON(w, http.StatusCreated, client)
}

// Update обрабатывает PUT запрос на обновление клиента.
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var client models.Client
	if err := json.NewDecoder(r.Body).Decode(&client); err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	client.ID = chi.URLParam(r, "id")
	client.UserID = userID
	client.UpdatedAt = time.Now().UTC()

	if err := h.clientRepo.Update(r.Context(), &client); err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			http.Error(w, "Клиент не найден", http.StatusNotFound)
			return
		}
		log.Printf("[ClientHandler:Update] Ошибка обновления клиента %s: %v", client.ID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, client)
}

// Delete обрабатывает DELETE запрос на удаление клиента.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.clientRepo.Delete(r.Context(), userID, id); err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			http.Error(w, "Клиент не найден", http.StatusNotFound)
			return
		}
		log.Printf("[ClientHandler:Delete] Ошибка удаления клиента %s: %v", id, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeJSON кодирует тело ответа в JSON с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Handlers] Ошибка кодирования ответа: %v", err)
	}
}
