package paymentwebhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vip-access/internal/services/engine"
)

// MockService реализует интерфейс paymentwebhook.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) ReconcileNotification(ctx context.Context, providerRef string) (engine.ReconcileResult, error) {
	args := m.Called(ctx, providerRef)
	return args.Get(0).(engine.ReconcileResult), args.Error(1)
}

const testSecret = "webhook-secret"

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWebhookHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	validBody := []byte(`{"event":"payment.succeeded","object":{"id":"pay-1","status":"succeeded","amount":{"value":"999999.00","currency":"RUB"}}}`)

	tests := []struct {
		name           string
		body           []byte
		signature      string
		setupMock      func(*MockService)
		expectedStatus int
	}{
		{
			name:      "валидное уведомление применяется",
			body:      validBody,
			signature: sign(validBody),
			setupMock: func(m *MockService) {
				m.On("ReconcileNotification", mock.Anything, "pay-1").
					Return(engine.ResultApplied, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:      "повторная доставка тоже отвечает 200",
			body:      validBody,
			signature: sign(validBody),
			setupMock: func(m *MockService) {
				m.On("ReconcileNotification", mock.Anything, "pay-1").
					Return(engine.ResultAlreadyApplied, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:      "расхождение суммы не повод для повтора доставки",
			body:      validBody,
			signature: sign(validBody),
			setupMock: func(m *MockService) {
				m.On("ReconcileNotification", mock.Anything, "pay-1").
					Return(engine.ResultAmountMismatch, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "отсутствие подписи",
			body:           validBody,
			signature:      "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "неверная подпись",
			body:           validBody,
			signature:      sign([]byte("other body")),
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "непарсящееся тело",
			body:           []byte("not json"),
			signature:      sign([]byte("not json")),
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "тело без идентификатора платежа",
			body:           []byte(`{"event":"payment.succeeded","object":{}}`),
			signature:      sign([]byte(`{"event":"payment.succeeded","object":{}}`)),
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:      "временный сбой инфраструктуры",
			body:      validBody,
			signature: sign(validBody),
			setupMock: func(m *MockService) {
				m.On("ReconcileNotification", mock.Anything, "pay-1").
					Return(engine.ReconcileResult(""), errors.New("provider unavailable"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService, testSecret)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(tt.body))
			if tt.signature != "" {
				req.Header.Set("X-Api-Signature", tt.signature)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			mockService.AssertExpectations(t)
		})
	}
}

// Завышенная сумма в подписанном теле не имеет значения: обработчик не
// читает сумму из тела вовсе, сверка перечитывает платёж у провайдера.
func TestWebhookHandler_BodyAmountIgnored(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	body := []byte(`{"event":"payment.succeeded","object":{"id":"pay-1","amount":{"value":"0.01","currency":"RUB"}}}`)
	mockService := new(MockService)
	mockService.On("ReconcileNotification", mock.Anything, "pay-1").
		Return(engine.ResultAmountMismatch, nil)

	handler := New(logger, mockService, testSecret)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(body))
	req.Header.Set("X-Api-Signature", sign(body))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	mockService.AssertExpectations(t)
}
