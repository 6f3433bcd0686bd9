package create

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vip-access/internal/models"
	"github.com/magabrotheeeer/vip-access/internal/services/engine"
)

// MockService реализует интерфейс create.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) RequestPurchase(ctx context.Context, subjectID int64, displayName string, plan models.PlanKind) (*models.IntentHandle, error) {
	args := m.Called(ctx, subjectID, displayName, plan)
	if res := args.Get(0); res != nil {
		return res.(*models.IntentHandle), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestCreateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешное создание покупки",
			body: `{"subject_id":42,"display_name":"alice","plan":"recurring"}`,
			setupMock: func(m *MockService) {
				handle := &models.IntentHandle{
					ProviderRef:     "pay-1",
					ConfirmationURL: "https://pay.example/confirm/pay-1",
					Amount:          3000,
					PlanKind:        models.PlanRecurring,
					ExpiresAt:       time.Now().Add(30 * time.Minute),
				}
				m.On("RequestPurchase", mock.Anything, int64(42), "alice", models.PlanRecurring).
					Return(handle, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"provider_ref":"pay-1"`,
		},
		{
			name:           "некорректный JSON",
			body:           `{broken`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid request body`,
		},
		{
			name:           "недопустимый план отклоняется валидацией",
			body:           `{"subject_id":42,"plan":"weekly"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Plan`,
		},
		{
			name:           "отсутствует subject_id",
			body:           `{"plan":"recurring"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field SubjectID is a required field`,
		},
		{
			name: "развёртывание не настроено",
			body: `{"subject_id":42,"plan":"perpetual"}`,
			setupMock: func(m *MockService) {
				m.On("RequestPurchase", mock.Anything, int64(42), "", models.PlanPerpetual).
					Return(nil, engine.ErrNotConfigured)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `deployment is not configured`,
		},
		{
			name: "ошибка провайдера",
			body: `{"subject_id":42,"plan":"recurring"}`,
			setupMock: func(m *MockService) {
				m.On("RequestPurchase", mock.Anything, int64(42), "", models.PlanRecurring).
					Return(nil, errors.New("provider unavailable"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not create purchase`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/purchase", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
