package paymentprovider

import "time"

// Статусы платежа у провайдера. Решения движок принимает только по статусу,
// полученному прямым запросом к провайдеру, а не по полям входящего webhook.
const (
	StatusPending           = "pending"
	StatusWaitingForCapture = "waiting_for_capture"
	StatusSucceeded         = "succeeded"
	StatusCanceled          = "canceled"
)

// Amount представляет денежную сумму.
type Amount struct {
	Value    string `json:"value"`    // сумма строкой, например "30.00"
	Currency string `json:"currency"` // валюта, например "RUB"
}

// Confirmation описывает способ подтверждения платежа пользователем.
type Confirmation struct {
	Type            string `json:"type"`                       // тип подтверждения, например "redirect"
	ReturnURL       string `json:"return_url,omitempty"`       // куда вернуть пользователя после оплаты
	ConfirmationURL string `json:"confirmation_url,omitempty"` // ссылка для оплаты (в ответе)
}

// CreatePaymentRequest представляет запрос на создание платежа.
type CreatePaymentRequest struct {
	Amount       Amount            `json:"amount"`
	Capture      bool              `json:"capture"`
	Confirmation Confirmation      `json:"confirmation"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"` // subject_id, plan_kind — возвращаются при сверке
	ExpiresAt    time.Time         `json:"expires_at,omitempty"`
}

// Payment представляет платёж в ответах провайдера.
type Payment struct {
	ID           string            `json:"id"`     // внешний идентификатор платежа
	Status       string            `json:"status"` // статус платежа
	Paid         bool              `json:"paid"`
	Amount       Amount            `json:"amount"`
	Confirmation Confirmation      `json:"confirmation"`
	Metadata     map[string]string `json:"metadata"`
	CreatedAt    time.Time         `json:"created_at"`
}
