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

// SettingsHandler обрабатывает HTTP-запросы, связанные с настройками
// пользователя и шаблонами значений по умолчанию.
type SettingsHandler struct {
	prefsRepo    repository.PreferencesRepository
	defaultsRepo repository.DefaultsRepository
}

// NewSettingsHandler создает новый экземпляр SettingsHandler.
func NewSettingsHandler(prefs repository.PreferencesRepository, defaults repository.DefaultsRepository) *SettingsHandler {
	return &SettingsHandler{prefsRepo: prefs, defaultsRepo: defaults}
}

// GetPreferences обрабатывает GET запрос на получение настроек пользователя.
// Если настройки еще не сохранялись, возвращаются значения по умолчанию.
func (h *SettingsHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	prefs, err := h.prefsRepo.GetByUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrPreferencesNotFound) {
			writeJSON(w, http.StatusOK, models.DefaultPreferences(userID))
			return
		}
		log.Printf("[SettingsHandler:GetPreferences] Ошибка получения настроек для %s: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}

// PutPreferences обрабатывает PUT запрос на сохранение настроек пользователя.
func (h *SettingsHandler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var prefs models.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	prefs.UserID = userID
	prefs.UpdatedAt = time.Now().UTC()

	if err := h.prefsRepo.Upsert(r.Context(), &prefs); err != nil {
		log.Printf("[SettingsHandler:PutPreferences] Ошибка сохранения настроек для %s: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}

// ListDefaults обрабатывает GET запрос на получение шаблонов значений по умолчанию.
func (h *SettingsHandler) ListDefaults(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	defaults, err := h.defaultsRepo.ListByUser(r.Context(), userID)
	if err != nil {
		log.Printf("[SettingsHandler:ListDefaults] Ошибка получения шаблонов для %s: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, defaults)
}

// CreateDefault обрабатывает POST запрос на создание шаблона значений по умолчанию.
// Имя шаблона уникально в рамках пользователя.
func (h *SettingsHandler) CreateDefault(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var rec models.DefaultRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		http.Error(w, "Имя шаблона не может быть пустым", http.StatusBadRequest)
		return
	}

	if _, err := h.defaultsRepo.GetByName(r.Context(), userID, rec.Name); err == nil {
		http.Error(w, "Шаблон с таким именем уже существует", http.StatusConflict)
		return
	} else if !errors.Is(err, repository.ErrDefaultNotFound) {
		log.Printf("[SettingsHandler:CreateDefault] Ошибка проверки имени '%s': %v", rec.Name, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	rec.ID = uuid.NewString()
	rec.UserID = userID
	rec.UpdatedAt = time.Now().UTC()

	if err := h.defaultsRepo.Create(r.Context(), &rec); err != nil {
		log.Printf("[SettingsHandler:CreateDefault] Ошибка создания шаблона '%s': %v", rec.Name, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// UpdateDefault обрабатывает PUT запрос на обновление шаблона значений по умолчанию.
func (h *SettingsHandler) UpdateDefault(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var rec models.DefaultRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	rec.ID = chi.URLParam(r, "id")
	rec.UserID = userID
	rec.UpdatedAt = time.Now().UTC()

	if err := h.defaultsRepo.Update(r.Context(), &rec); err != nil {
		if errors.Is(err, repository.ErrDefaultNotFound) {
			http.Error(w, "Шаблон не найден", http.StatusNotFound)
			return
		}
		log.Printf("[SettingsHandler:UpdateDefault] Ошибка обновления шаблона %s: %v", rec.ID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// DeleteDefault обрабатывает DELETE запрос на удаление шаблона значений по умолчанию.
func (h *SettingsHandler) DeleteDefault(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.defaultsRepo.Delete(r.Context(), userID, id); err != nil {
		if errors.Is(err, repository.ErrDefaultNotFound) {
			http.Error(w, "Шаблон не найден", http.StatusNotFound)
			return
		}
		log.Printf("[SettingsHandler:DeleteDefault] Ошибка удаления шаблона %s: %v", id, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
