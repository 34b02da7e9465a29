package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mkotelnikov/invoicekeeper/internal/handlers"
	"github.com/mkotelnikov/invoicekeeper/internal/middleware"
	"github.com/mkotelnikov/invoicekeeper/internal/models"
	"github.com/mkotelnikov/invoicekeeper/internal/repository"
)

// --- Mock ClientRepository --- //

type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) ListByUser(ctx context.Context, userID string) ([]models.Client, error) {
	args := m.Called(ctx, userID)
	clients, _ := args.Get(0).([]models.Client)
	return clients, args.Error(1)
}

func (m *MockClientRepository) GetByID(ctx context.Context, userID, id string) (*models.Client, error) {
	args := m.Called(ctx, userID, id)
	client, _ := args.Get(0).(*models.Client)
	return client, args.Error(1)
}

func (m *MockClientRepository) GetByEmail(ctx context.Context, userID, email string) (*models.Client, error) {
	args := m.Called(ctx, userID, email)
	client, _ := args.Get(0).(*models.Client)
	return client, args.Error(1)
}

func (m *MockClientRepository) Create(ctx context.Context, client *models.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

func (m *MockClientRepository) Update(ctx context.Context, client *models.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

func (m *MockClientRepository) Delete(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockClientRepository) DeleteByUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// Вспомогательная функция: роутер с маршрутами клиентов и подставным
// userID в контексте (вместо JWT middleware).
func setupClientRouter(h *handlers.ClientHandler, userID string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/api/clients", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
	return r
}

func TestClientHandler_List(t *testing.T) {
	mockRepo := new(MockClientRepository)
	clients := []models.Client{
		{ID: "c-1", UserID: testUserID, Name: "Анна", Email: "anna@example.com"},
		{ID: "c-2", UserID: testUserID, Name: "Борис", Email: "boris@example.com"},
	}
	mockRepo.On("ListByUser", mock.Anything, testUserID).Return(clients, nil).Once()

	router := setupClientRouter(handlers.NewClientHandler(mockRepo), testUserID)
	req := httptest.NewRequest(http.MethodGet, "/api/clients/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got []models.Client
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, clients, got)
	mockRepo.AssertExpectations(t)
}

func TestClientHandler_Get(t *testing.T) {
	tests := []struct {
		name           string
		mockClient     *models.Client
		mockError      error
		expectedStatus int
	}{
		{
			name:           "Успешное получение",
			mockClient:     &models.Client{ID: "c-1", UserID: testUserID, Name: "Анна"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Клиент не найден",
			mockError:      repository.ErrClientNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Ошибка репозитория",
			mockError:      errors.New("db error"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockClientRepository)
			mockRepo.On("GetByID", mock.Anything, testUserID, "c-1").
				Return(tt.mockClient, tt.mockError).Once()

			router := setupClientRouter(handlers.NewClientHandler(mockRepo), testUserID)
			req := httptest.NewRequest(http.MethodGet, "/api/clients/c-1", nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestClientHandler_Create(t *testing.T) {
	t.Run("Успешное создание", func(t *testing.T) {
		mockRepo := new(MockClientRepository)
		var created *models.Client
		mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Client")).
			Run(func(args mock.Arguments) {
				created, _ = args.Get(1).(*models.Client)
			}).
			Return(nil).Once()

		body, _ := json.Marshal(models.Client{Name: "  Анна  ", Email: "anna@example.com"})
		router := setupClientRouter(handlers.NewClientHandler(mockRepo), testUserID)
		req := httptest.NewRequest(http.MethodPost, "/api/clients/", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		require.NotNil(t, created)
		assert.Equal(t, "Анна", created.Name, "имя должно быть очищено от пробелов")
		assert.Equal(t, testUserID, created.UserID)
		assert.NotEmpty(t, created.ID, "клиент должен получить идентификатор")
		mockRepo.AssertExpectations(t)
	})

	t.Run("Пустое имя", func(t *testing.T) {
		mockRepo := new(MockClientRepository)

		body, _ := json.Marshal(models.Client{Name: "   ", Email: "anna@example.com"})
		router := setupClientRouter(handlers.NewClientHandler(mockRepo), testUserID)
		req := httptest.NewRequest(http.MethodPost, "/api/clients/", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockRepo.AssertNotCalled(t, "Create")
	})

	t.Run("Невалидный JSON", func(t *testing.T) {
		mockRepo := new(MockClientRepository)

		router := setupClientRouter(handlers.NewClientHandler(mockRepo), testUserID)
		req := httptest.NewRequest(http.MethodPost, "/api/clients/", bytes.NewReader([]byte("не json")))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockRepo.AssertNotCalled(t, "Create")
	})
}

func TestClientHandler_Update(t *testing.T) {
	t.Run("Успешное обновление", func(t *testing.T) {
		mockRepo := new(MockClientRepository)
		var updated *models.Client
		mockRepo.On("Update", mock.Anything, mock.AnythingOfType("*models.Client")).
			Run(func(args mock.Arguments) {
				updated, _ = args.Get(1).(*models.Client)
			}).
			Return(nil).Once()

		body, _ := json.Marshal(models.Client{Name: "Анна", Email: "new@example.com"})
		router := setupClientRouter(handlers.NewClientHandler(mockRepo), testUserID)
		req := httptest.NewRequest(http.MethodPut, "/api/clients/c-1", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, updated)
		assert.Equal(t, "c-1", updated.ID, "идентификатор берется из URL, а не из тела")
		assert.Equal(t, testUserID, updated.UserID)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Клиент не найден", func(t *testing.T) {
		mockRepo := new(MockClientRepository)
		mockRepo.On("Update", mock.Anything, mock.AnythingOfType("*models.Client")).
			Return(repository.ErrClientNotFound).Once()

		body, _ := json.Marshal(models.Client{Name: "Анна"})
		router := setupClientRouter(handlers.NewClientHandler(mockRepo), testUserID)
		req := httptest.NewRequest(http.MethodPut, "/api/clients/missing", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockRepo.AssertExpectations(t)
	})
}

func TestClientHandler_Delete(t *testing.T) {
	tests := []struct {
		name           string
		mockError      error
		expectedStatus int
	}{
		{
			name:           "Успешное удаление",
			mockError:      nil,
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "Клиент не найден",
			mockError:      repository.ErrClientNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Ошибка репозитория",
			mockError:      errors.New("db error"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockClientRepository)
			mockRepo.On("Delete", mock.Anything, testUserID, "c-1").Return(tt.mockError).Once()

			router := setupClientRouter(handlers.NewClientHandler(mockRepo), testUserID)
			req := httptest.NewRequest(http.MethodDelete, "/api/clients/c-1", nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			mockRepo.AssertExpectations(t)
		})
	}
}
