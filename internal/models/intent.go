package models

import "time"

// IntentStatus описывает статус платёжного намерения. Переходы монотонны:
// pending -> approved либо pending -> expired, из терминального статуса
// выхода нет.
type IntentStatus string

const (
	// IntentPending — платёж создан, подтверждение ещё не получено.
	IntentPending IntentStatus = "pending"
	// IntentApproved — платёж подтверждён провайдером, доступ выдан.
	IntentApproved IntentStatus = "approved"
	// IntentExpired — окно оплаты истекло до подтверждения.
	IntentExpired IntentStatus = "expired"
)

// PaymentIntent представляет одну попытку покупки. Ключ идемпотентности —
// ProviderRef: не более одного намерения на внешний идентификатор платежа
// переходит в approved.
type PaymentIntent struct {
	ID          string       // Локальный идентификатор намерения (uuid)
	SubjectID   int64        // Пользователь, инициировавший покупку
	PlanKind    PlanKind     // Покупаемый план
	Amount      int64        // Сумма в минорных единицах валюты
	ProviderRef string       // Внешний идентификатор платежа у провайдера
	Status      IntentStatus // Текущий статус
	CreatedAt   time.Time    // Момент создания
	ExpiresAt   time.Time    // Момент истечения окна оплаты (создание + TTL)
}

// IntentHandle содержит данные, достаточные для отображения платёжной
// инструкции пользователю после создания намерения.
type IntentHandle struct {
	ProviderRef     string    `json:"provider_ref"`     // Внешний идентификатор платежа
	ConfirmationURL string    `json:"confirmation_url"` // Ссылка для оплаты
	Amount          int64     `json:"amount"`           // Сумма в минорных единицах
	PlanKind        PlanKind  `json:"plan_kind"`        // Покупаемый план
	ExpiresAt       time.Time `json:"expires_at"`       // Срок действия платёжной ссылки
}
