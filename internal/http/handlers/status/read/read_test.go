package read

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vip-access/internal/models"
	"github.com/magabrotheeeer/vip-access/internal/storage/repository"
)

// MockService реализует интерфейс read.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) GetIdentity(ctx context.Context, subjectID int64) (*models.Identity, error) {
	args := m.Called(ctx, subjectID)
	if res := args.Get(0); res != nil {
		return res.(*models.Identity), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestReadHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	future := time.Now().Add(24 * time.Hour)
	past := time.Now().Add(-24 * time.Hour)

	tests := []struct {
		name           string
		url            string
		param          string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:  "активный пользователь",
			url:   "/api/v1/status/42",
			param: "42",
			setupMock: func(m *MockService) {
				m.On("GetIdentity", mock.Anything, int64(42)).Return(&models.Identity{
					SubjectID:   42,
					AccessState: models.AccessActive,
					PlanKind:    models.PlanRecurring,
					ExpiresAt:   &future,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"active":true`,
		},
		{
			name:  "истёкший план виден неактивным до свипа",
			url:   "/api/v1/status/42",
			param: "42",
			setupMock: func(m *MockService) {
				m.On("GetIdentity", mock.Anything, int64(42)).Return(&models.Identity{
					SubjectID:   42,
					AccessState: models.AccessActive,
					PlanKind:    models.PlanRecurring,
					ExpiresAt:   &past,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"active":false`,
		},
		{
			name:  "неизвестный пользователь",
			url:   "/api/v1/status/777",
			param: "777",
			setupMock: func(m *MockService) {
				m.On("GetIdentity", mock.Anything, int64(777)).
					Return(nil, repository.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `identity not found`,
		},
		{
			name:           "некорректный id в URL",
			url:            "/api/v1/status/abc",
			param:          "abc",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `failed to decode subject id from url`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("subjectID", tt.param)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
