package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mkotelnikov/invoicekeeper/internal/middleware"
	"github.com/mkotelnikov/invoicekeeper/internal/models"
	"github.com/mkotelnikov/invoicekeeper/internal/repository"
	"github.com/mkotelnikov/invoicekeeper/internal/services"
)

// Максимальный размер загружаемого документа - 32 МБ.
const maxDocumentBytes = 32 << 20

// DocumentHandler обрабатывает HTTP-запросы, связанные с документами.
type DocumentHandler struct {
	docService services.DocumentService
	docRepo    repository.DocumentRepository
}

// NewDocumentHandler создает новый экземпляр DocumentHandler.
func NewDocumentHandler(ds services.DocumentService, repo repository.DocumentRepository) *DocumentHandler {
	return &DocumentHandler{docService: ds, docRepo: repo}
}

// List обрабатывает GET запрос на получение списка документов пользователя.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	docs, err := h.docRepo.ListByUser(r.Context(), userID)
	if err != nil {
		log.Printf("[DocumentHandler:List] Ошибка получения документов для %s: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, docs)
}

// Upload обрабатывает POST запрос на загрузку документа (multipart/form-data).
// Поле "file" содержит файл; необязательные поля "invoice_id" и "parent_id"
// привязывают документ к счету или родительскому документу.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	if err := r.ParseMultipartForm(maxDocumentBytes); err != nil {
		log.Printf("[DocumentHandler:Upload] Ошибка разбора multipart-формы: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Поле 'file' отсутствует или не читается", http.StatusBadRequest)
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("[DocumentHandler:Upload] Ошибка закрытия файла формы: %v", closeErr)
		}
	}()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc := models.Document{
		UserID:      userID,
		InvoiceID:   r.FormValue("invoice_id"),
		ParentID:    r.FormValue("parent_id"),
		Name:        header.Filename,
		ContentType: contentType,
	}

	if err = h.docService.Upload(r.Context(), &doc, file, header.Size); err != nil {
		switch {
		case errors.Is(err, services.ErrInvoiceNotFound):
			http.Error(w, "Счет не найден", http.StatusBadRequest)
		case errors.Is(err, services.ErrDocumentNotFound):
			http.Error(w, "Родительский документ не найден", http.StatusBadRequest)
		default:
			log.Printf("[DocumentHandler:Upload] Ошибка загрузки документа '%s': %v", header.Filename, err)
			http.Error(w, "Внутренняя ошибка сервера при загрузке документа", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// Download обрабатывает GET запрос на скачивание содержимого документа.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "id")
	reader, doc, err := h.docService.Download(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			http.Error(w, "Документ не найден", http.StatusNotFound)
			return
		}
		log.Printf("[DocumentHandler:Download] Ошибка скачивания документа %s: %v", id, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			log.Printf("[DocumentHandler:Download] Ошибка закрытия потока документа %s: %v", id, closeErr)
		}
	}()

	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Name+`"`)
	w.Header().Set("Content-Type", doc.ContentType)
	if doc.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	}
	if _, err = io.Copy(w, reader); err != nil {
		log.Printf("[DocumentHandler:Download] Ошибка отправки документа %s: %v", id, err)
	}
}

// Delete обрабатывает DELETE запрос на удаление документа.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.docService.Delete(r.Context(), userID, id); err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			http.Error(w, "Документ не найден", http.StatusNotFound)
			return
		}
		log.Printf("[DocumentHandler:Delete] Ошибка удаления документа %s: %v", id, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
