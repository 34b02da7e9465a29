package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mkotelnikov/invoicekeeper/internal/backup"
	"github.com/mkotelnikov/invoicekeeper/internal/middleware"
	"github.com/mkotelnikov/invoicekeeper/internal/models"
	"github.com/mkotelnikov/invoicekeeper/internal/services"
	"github.com/mkotelnikov/invoicekeeper/internal/storage"
)

// Количество бэкапов, оставляемых чисткой по умолчанию.
const defaultKeepBackups = 10

// Максимальный размер импортируемого файла бэкапа - 50 МБ.
const maxImportBytes = 50 << 20

// BackupHandler обрабатывает HTTP-запросы резервного копирования и восстановления.
type BackupHandler struct {
	backupService services.BackupService
}

// NewBackupHandler создает новый экземпляр BackupHandler.
func NewBackupHandler(bs services.BackupService) *BackupHandler {
	return &BackupHandler{backupService: bs}
}

// Create обрабатывает POST запрос на создание бэкапа всех данных пользователя.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[BackupHandler:Create] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	log.Printf("[BackupHandler:Create] Запрос на создание бэкапа от пользователя %s", userID)

	resp, err := h.backupService.CreateBackup(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			http.Error(w, "Пользователь не найден", http.StatusNotFound)
			return
		}
		log.Printf("[BackupHandler:Create] Ошибка создания бэкапа для пользователя %s: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера при создании бэкапа", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[BackupHandler:Create] Ошибка кодирования ответа: %v", err)
	}
}

// List обрабатывает GET запрос на получение списка бэкапов пользователя.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[BackupHandler:List] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	infos, err := h.backupService.ListBackups(userID)
	if err != nil {
		log.Printf("[BackupHandler:List] Ошибка получения списка бэкапов для %s: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(infos); err != nil {
		log.Printf("[BackupHandler:List] Ошибка кодирования ответа: %v", err)
	}
}

// Download обрабатывает GET запрос на скачивание файла бэкапа.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	data, err := h.backupService.DownloadBackup(filename)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrArchiveNotFound):
			http.Error(w, "Бэкап не найден", http.StatusNotFound)
		case errors.Is(err, storage.ErrBadArchiveName):
			http.Error(w, "Недопустимое имя файла", http.StatusBadRequest)
		default:
			log.Printf("[BackupHandler:Download] Ошибка чтения '%s': %v", filename, err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err = w.Write(data); err != nil {
		log.Printf("[BackupHandler:Download] Ошибка отправки '%s': %v", filename, err)
	}
}

// Upload обрабатывает POST запрос на импорт ранее выгруженного файла бэкапа.
// Файл проверяется на целостность и сохраняется в каталог бэкапов
// импортирующего пользователя.
func (h *BackupHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[BackupHandler:Upload] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		log.Printf("[BackupHandler:Upload] Ошибка чтения тела запроса: %v", err)
		http.Error(w, "Ошибка чтения файла", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "Пустой файл", http.StatusBadRequest)
		return
	}

	filename, err := h.backupService.ImportBackup(userID, data)
	if err != nil {
		if errors.Is(err, backup.ErrCorruptArchive) {
			http.Error(w, "Файл бэкапа поврежден или имеет неверный формат", http.StatusBadRequest)
			return
		}
		log.Printf("[BackupHandler:Upload] Ошибка импорта для пользователя %s: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера при импорте", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(map[string]string{"filename": filename}); err != nil {
		log.Printf("[BackupHandler:Upload] Ошибка кодирования ответа: %v", err)
	}
}

// Restore обрабатывает POST запрос на восстановление из бэкапа.
// Тело: {"filename": "...", "mode": "merge"|"replace"} (mode по умолчанию merge).
// Результат возвращается и при частичном успехе; не-2xx статус - только
// для фатальных ошибок.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[BackupHandler:Restore] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var req models.RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[BackupHandler:Restore] Ошибка декодирования запроса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	if req.Filename == "" {
		http.Error(w, "Не указано имя файла бэкапа", http.StatusBadRequest)
		return
	}

	log.Printf("[BackupHandler:Restore] Запрос на восстановление '%s' (режим %q) от пользователя %s",
		req.Filename, req.Mode, userID)

	result, err := h.backupService.RestoreBackup(r.Context(), userID, req.Filename, models.RestoreMode(req.Mode))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidMode):
			http.Error(w, "Недопустимый режим восстановления", http.StatusBadRequest)
		case errors.Is(err, storage.ErrArchiveNotFound):
			http.Error(w, "Бэкап не найден", http.StatusNotFound)
		case errors.Is(err, storage.ErrBadArchiveName):
			http.Error(w, "Недопустимое имя файла", http.StatusBadRequest)
		case errors.Is(err, backup.ErrCorruptArchive):
			http.Error(w, "Файл бэкапа поврежден или имеет неверный формат", http.StatusBadRequest)
		default:
			log.Printf("[BackupHandler:Restore] Ошибка восстановления '%s' для %s: %v", req.Filename, userID, err)
			http.Error(w, "Внутренняя ошибка сервера при восстановлении", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result.Success {
		w.WriteHeader(http.StatusOK)
	} else {
		// Ошибка верхнего уровня: результат с подробностями, но статус фатальный
		w.WriteHeader(http.StatusInternalServerError)
	}
	if err = json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("[BackupHandler:Restore] Ошибка кодирования результата: %v", err)
	}
}

// Delete обрабатывает DELETE запрос на удаление файла бэкапа.
func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	err := h.backupService.DeleteBackup(filename)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrArchiveNotFound):
			http.Error(w, "Бэкап не найден", http.StatusNotFound)
		case errors.Is(err, storage.ErrBadArchiveName):
			http.Error(w, "Недопустимое имя файла", http.StatusBadRequest)
		default:
			log.Printf("[BackupHandler:Delete] Ошибка удаления '%s': %v", filename, err)
			http.Error(w, "Не удалось удалить файл бэкапа", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
	log.Printf("[BackupHandler:Delete] Бэкап '%s' удален", filename)
}

// Cleanup обрабатывает POST запрос на чистку старых бэкапов.
// Тело: {"keep": N} - сколько последних бэкапов оставить (по умолчанию 10).
func (h *BackupHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[BackupHandler:Cleanup] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	keep := defaultKeepBackups
	if r.ContentLength != 0 {
		var req models.CleanupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("[BackupHandler:Cleanup] Ошибка декодирования запроса: %v", err)
			http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
			return
		}
		if req.Keep != nil {
			keep = *req.Keep
		}
	}
	if keep <= 0 {
		http.Error(w, "Параметр keep должен быть положительным", http.StatusBadRequest)
		return
	}

	deleted, err := h.backupService.CleanupBackups(userID, keep)
	if err != nil {
		log.Printf("[BackupHandler:Cleanup] Ошибка чистки бэкапов для %s: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера при чистке бэкапов", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(models.CleanupResponse{Deleted: deleted}); err != nil {
		log.Printf("[BackupHandler:Cleanup] Ошибка кодирования ответа: %v", err)
	}
}
