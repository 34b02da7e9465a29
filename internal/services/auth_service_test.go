package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkotelnikov/invoicekeeper/internal/models"
	"github.com/mkotelnikov/invoicekeeper/internal/repository"
	"github.com/mkotelnikov/invoicekeeper/internal/services"
)

const testJWTSecret = "test-secret-key"

// MockUserRepository - мок репозитория пользователей.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func TestNewAuthService(t *testing.T) {
	mockUserRepo := new(MockUserRepository)

	authService := services.NewAuthService(mockUserRepo, testJWTSecret)

	require.NotNil(t, authService)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	email := "ivan@example.com"
	password := "password123"

	tests := []struct {
		name          string
		mockSetup     func(mockUserRepo *MockUserRepository)
		expectedError error
	}{
		{
			name: "Успешная регистрация",
			mockSetup: func(mockUserRepo *MockUserRepository) {
				mockUserRepo.On("CreateUser", ctx, mock.AnythingOfType("*models.User")).
					Return(nil).Once()
			},
			expectedError: nil,
		},
		{
			name: "Email занят",
			mockSetup: func(mockUserRepo *MockUserRepository) {
				mockUserRepo.On("CreateUser", ctx, mock.AnythingOfType("*models.User")).
					Return(repository.ErrEmailTaken).Once()
			},
			expectedError: services.ErrEmailTaken,
		},
		{
			name: "Ошибка репозитория при создании",
			mockSetup: func(mockUserRepo *MockUserRepository) {
				mockUserRepo.On("CreateUser", ctx, mock.AnythingOfType("*models.User")).
					Return(errors.New("some db error")).Once()
			},
			expectedError: errors.New("внутренняя ошибка сервера при создании пользователя"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUserRepo := new(MockUserRepository)
			tt.mockSetup(mockUserRepo)

			authService := services.NewAuthService(mockUserRepo, testJWTSecret)
			err := authService.Register(ctx, email, "Иван", password)

			if tt.expectedError != nil {
				require.Error(t, err)
				require.EqualError(t, err, tt.expectedError.Error())
			} else {
				require.NoError(t, err)
			}

			mockUserRepo.AssertExpectations(t)
		})
	}
}

func TestAuthService_RegisterHashesPassword(t *testing.T) {
	ctx := context.Background()
	mockUserRepo := new(MockUserRepository)

	var created *models.User
	mockUserRepo.On("CreateUser", ctx, mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) {
			created, _ = args.Get(1).(*models.User)
		}).
		Return(nil).Once()

	authService := services.NewAuthService(mockUserRepo, testJWTSecret)
	require.NoError(t, authService.Register(ctx, "ivan@example.com", "Иван", "password123"))

	require.NotNil(t, created)
	assert.NotEmpty(t, created.ID, "пользователь должен получить идентификатор")
	assert.NotEqual(t, "password123", created.PasswordHash, "пароль не должен храниться открытым текстом")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("password123")))
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	email := "ivan@example.com"
	password := "password123"
	wrongPassword := "wrongpassword"
	userID := "11112222-3333-4444-5555-666677778888"
	hashedPasswordBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err, "Не удалось сгенерировать хеш пароля для тестов")
	hashedPassword := string(hashedPasswordBytes)

	correctUser := &models.User{
		ID:           userID,
		Email:        email,
		PasswordHash: hashedPassword,
	}

	tests := []struct {
		name          string
		passwordToUse string
		mockSetup     func(mockUserRepo *MockUserRepository)
		expectedToken bool
		expectedError error
	}{
		{
			name:          "Успешный вход",
			passwordToUse: password,
			mockSetup: func(mockUserRepo *MockUserRepository) {
				mockUserRepo.On("GetUserByEmail", ctx, email).
					Return(correctUser, nil).Once()
			},
			expectedToken: true,
			expectedError: nil,
		},
		{
			name:          "Пользователь не найден",
			passwordToUse: password,
			mockSetup: func(mockUserRepo *MockUserRepository) {
				mockUserRepo.On("GetUserByEmail", ctx, email).
					Return(nil, repository.ErrUserNotFound).Once()
			},
			expectedToken: false,
			expectedError: services.ErrInvalidCredentials,
		},
		{
			name:          "Неверный пароль",
			passwordToUse: wrongPassword,
			mockSetup: func(mockUserRepo *MockUserRepository) {
				mockUserRepo.On("GetUserByEmail", ctx, email).
					Return(correctUser, nil).Once()
			},
			expectedToken: false,
			expectedError: services.ErrInvalidCredentials,
		},
		{
			name:          "Ошибка репозитория при поиске",
			passwordToUse: password,
			mockSetup: func(mockUserRepo *MockUserRepository) {
				mockUserRepo.On("GetUserByEmail", ctx, email).
					Return(nil, errors.New("some db error")).Once()
			},
			expectedToken: false,
			expectedError: errors.New("внутренняя ошибка сервера при поиске пользователя"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUserRepo := new(MockUserRepository)
			tt.mockSetup(mockUserRepo)

			authService := services.NewAuthService(mockUserRepo, testJWTSecret)
			token, loginErr := authService.Login(ctx, email, tt.passwordToUse)

			if tt.expectedError != nil {
				require.Error(t, loginErr)
				require.EqualError(t, loginErr, tt.expectedError.Error())
				assert.Empty(t, token)
			} else {
				require.NoError(t, loginErr)
				assert.NotEmpty(t, token)

				// Токен подписан нашим секретом и несет ID пользователя
				claims := struct {
					UserID string `json:"user_id"`
					jwt.RegisteredClaims
				}{}
				parsed, parseErr := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
					return []byte(testJWTSecret), nil
				})
				require.NoError(t, parseErr)
				assert.True(t, parsed.Valid)
				assert.Equal(t, userID, claims.UserID)
			}

			mockUserRepo.AssertExpectations(t)
		})
	}
}
