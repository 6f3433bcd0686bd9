// Package paymentwebhook обрабатывает платёжные уведомления провайдера.
//
// Тело уведомления не является источником истины: из него извлекается
// только идентификатор платежа, после чего состояние перечитывается у
// провайдера авторитетным запросом. Подделанное или устаревшее тело
// уведомления не может выдать доступ.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/magabrotheeeer/vip-access/internal/lib/sl"
	"github.com/magabrotheeeer/vip-access/internal/services/engine"
)

// Service описывает интерфейс сверки платёжного уведомления.
type Service interface {
	ReconcileNotification(ctx context.Context, providerRef string) (engine.ReconcileResult, error)
}

// Handler обрабатывает платёжные уведомления.
type Handler struct {
	log           *slog.Logger // Логгер для записи информации и ошибок
	service       Service
	webhookSecret string // Секрет для проверки подписи
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Payload — тело уведомления провайдера. Используется только Object.ID,
// остальные поля игнорируются.
type Payload struct {
	Event  string `json:"event"`
	Object struct {
		ID string `json:"id"` // внешний идентификатор платежа
	} `json:"object"`
}

// Проверка подписи webhook (X-Api-Signature)
func (h *Handler) verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// ServeHTTP обрабатывает HTTP-запрос платёжного уведомления.
//
// Любой доменный исход сверки — применено, повтор, неизвестный платёж,
// расхождение суммы — отвечает 200: провайдеру нет смысла повторять
// доставку. 5xx возвращается только при временном сбое инфраструктуры.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Проверка подписи (в заголовке X-Api-Signature)
	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(h.webhookSecret, body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if payload.Object.ID == "" {
		log.Error("webhook payload without payment id", slog.String("event", payload.Event))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	result, err := h.service.ReconcileNotification(r.Context(), payload.Object.ID)
	if err != nil {
		log.Error("failed to reconcile payment notification", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	log.Info("webhook processed",
		slog.String("event", payload.Event),
		slog.String("payment_id", payload.Object.ID),
		slog.String("result", string(result)))
	w.WriteHeader(http.StatusOK)
}
