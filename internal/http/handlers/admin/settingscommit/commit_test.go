package settingscommit

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vip-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vip-access/internal/models"
	"github.com/magabrotheeeer/vip-access/internal/services/settings"
)

// MockService реализует интерфейс settingscommit.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Commit(ctx context.Context, adminID string) (*models.Settings, error) {
	args := m.Called(ctx, adminID)
	if res := args.Get(0); res != nil {
		return res.(*models.Settings), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestCommitHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		adminID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "успешная фиксация черновика",
			adminID: "admin-1",
			setupMock: func(m *MockService) {
				m.On("Commit", mock.Anything, "admin-1").Return(&models.Settings{
					GroupChatID:    -100500,
					RecurringPrice: 3000,
					PerpetualPrice: 10000,
					RecurringDays:  30,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"recurring_price":3000`,
		},
		{
			name:    "черновик отсутствует",
			adminID: "admin-1",
			setupMock: func(m *MockService) {
				m.On("Commit", mock.Anything, "admin-1").Return(nil, settings.ErrNoDraft)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `no draft to commit`,
		},
		{
			name:           "без администратора в контексте",
			adminID:        "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `unauthorized`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/settings/commit", nil)
			if tt.adminID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.AdminID, tt.adminID))
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
