// Package engine реализует движок жизненного цикла подписок: создание
// платёжных намерений, сверку платёжных уведомлений и периодический свип
// истёкших намерений и доступов. Все операции безопасны при конкурентных
// вызовах по одному и тому же пользователю или платежу: единственная
// требуемая гарантия порядка — ровно один победитель перехода
// pending -> approved — обеспечивается условным обновлением в хранилище,
// а не внутрипроцессной блокировкой.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/vip-access/internal/lib/money"
	"github.com/magabrotheeeer/vip-access/internal/lib/sl"
	"github.com/magabrotheeeer/vip-access/internal/metrics"
	"github.com/magabrotheeeer/vip-access/internal/models"
	"github.com/magabrotheeeer/vip-access/internal/paymentprovider"
	"github.com/magabrotheeeer/vip-access/internal/storage/repository"
)

// ErrNotConfigured возвращается, когда настройки развёртывания отсутствуют
// или не задают цену запрошенного плана.
var ErrNotConfigured = errors.New("deployment is not configured")

// ErrUnknownPlan возвращается при запросе покупки с недопустимым типом плана.
var ErrUnknownPlan = errors.New("unknown plan kind")

// LedgerRepository определяет методы хранилища, используемые движком.
type LedgerRepository interface {
	UpsertIdentity(ctx context.Context, subjectID int64, displayName string) error
	GetIdentity(ctx context.Context, subjectID int64) (*models.Identity, error)
	ActivateIdentity(ctx context.Context, subjectID int64, plan models.PlanKind, expiresAt *time.Time) error
	DeactivateLapsedIdentity(ctx context.Context, subjectID int64, now time.Time) (bool, error)
	ListLapsedIdentities(ctx context.Context, now time.Time) ([]*models.Identity, error)
	CreateIntent(ctx context.Context, intent models.PaymentIntent) error
	FindIntentByProviderRef(ctx context.Context, providerRef string) (*models.PaymentIntent, error)
	FindLatestPendingIntent(ctx context.Context, subjectID int64) (*models.PaymentIntent, error)
	ApproveIntent(ctx context.Context, providerRef string) (bool, error)
	DeleteStaleIntents(ctx context.Context, now time.Time) (int64, error)
	AddRevenue(ctx context.Context, amount int64) error
}

// SettingsProvider отдаёт актуальные настройки развёртывания.
type SettingsProvider interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
}

// ProviderClient определяет методы клиента платёжного провайдера.
type ProviderClient interface {
	CreatePayment(ctx context.Context, reqParams paymentprovider.CreatePaymentRequest, idempotenceKey string) (*paymentprovider.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*paymentprovider.Payment, error)
}

// AccessGate управляет членством в закрытой группе.
type AccessGate interface {
	Admit(ctx context.Context, chatID, subjectID int64) error
	Expel(ctx context.Context, chatID, subjectID int64) error
}

// Publisher публикует события уведомлений в очередь.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Options содержит параметры движка.
type Options struct {
	IntentTTL        time.Duration // Окно оплаты платёжного намерения
	Currency         string        // Валюта цен, например "RUB"
	ReturnURL        string        // Куда вернуть пользователя после оплаты
	GateRetries      int           // Количество попыток вызова шлюза доступа
	GateRetryBackoff time.Duration // Пауза между попытками
}

// Engine реализует операции жизненного цикла подписок.
type Engine struct {
	repo      LedgerRepository
	settings  SettingsProvider
	provider  ProviderClient
	gate      AccessGate
	publisher Publisher
	opts      Options
	log       *slog.Logger
}

// New создает новый экземпляр Engine.
func New(repo LedgerRepository, settings SettingsProvider, provider ProviderClient,
	gate AccessGate, publisher Publisher, opts Options, log *slog.Logger) *Engine {
	if opts.IntentTTL == 0 {
		opts.IntentTTL = 30 * time.Minute
	}
	if opts.Currency == "" {
		opts.Currency = "RUB"
	}
	if opts.GateRetries == 0 {
		opts.GateRetries = 3
	}
	if opts.GateRetryBackoff == 0 {
		opts.GateRetryBackoff = 150 * time.Millisecond
	}
	return &Engine{
		repo:      repo,
		settings:  settings,
		provider:  provider,
		gate:      gate,
		publisher: publisher,
		opts:      opts,
		log:       log,
	}
}

// RequestPurchase создает платёжное намерение для пользователя и возвращает
// данные для отображения платёжной инструкции. Состояние доступа не меняется.
func (e *Engine) RequestPurchase(ctx context.Context, subjectID int64, displayName string, plan models.PlanKind) (*models.IntentHandle, error) {
	const op = "engine.RequestPurchase"

	if !plan.Valid() {
		return nil, fmt.Errorf("%s: %w", op, ErrUnknownPlan)
	}

	if err := e.repo.UpsertIdentity(ctx, subjectID, displayName); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	settings, err := e.settings.GetSettings(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	price, err := settings.PriceFor(plan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	now := time.Now()
	intentID := uuid.NewString()
	expiresAt := now.Add(e.opts.IntentTTL)

	payment, err := e.provider.CreatePayment(ctx, paymentprovider.CreatePaymentRequest{
		Amount:  paymentprovider.Amount{Value: money.Format(price), Currency: e.opts.Currency},
		Capture: true,
		Confirmation: paymentprovider.Confirmation{
			Type:      "redirect",
			ReturnURL: e.opts.ReturnURL,
		},
		Description: fmt.Sprintf("vip access, plan %s", plan),
		Metadata: map[string]string{
			"subject_id": fmt.Sprintf("%d", subjectID),
			"plan_kind":  string(plan),
		},
		ExpiresAt: expiresAt,
	}, intentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	intent := models.PaymentIntent{
		ID:          intentID,
		SubjectID:   subjectID,
		PlanKind:    plan,
		Amount:      price,
		ProviderRef: payment.ID,
		Status:      models.IntentPending,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	}
	if err := e.repo.CreateIntent(ctx, intent); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.PaymentsCreated.WithLabelValues(string(plan)).Inc()
	e.log.Info("created payment intent",
		slog.Int64("subject_id", subjectID),
		slog.String("plan", string(plan)),
		slog.String("provider_ref", payment.ID))

	return &models.IntentHandle{
		ProviderRef:     payment.ID,
		ConfirmationURL: payment.Confirmation.ConfirmationURL,
		Amount:          price,
		PlanKind:        plan,
		ExpiresAt:       expiresAt,
	}, nil
}

// CheckStatus содержит результат пользовательской проверки "где мой платёж".
type CheckStatus struct {
	HasPending  bool            `json:"has_pending"`            // Есть ли незавершённое намерение
	ProviderRef string          `json:"provider_ref,omitempty"` // Его внешний идентификатор
	Result      ReconcileResult `json:"result,omitempty"`       // Исход сверки
}

// CheckPending находит последнее незавершённое намерение пользователя и
// прогоняет его через ту же сверку, что и webhook: потерянное уведомление
// провайдера не должно навсегда оставить оплатившего пользователя без доступа.
func (e *Engine) CheckPending(ctx context.Context, subjectID int64) (*CheckStatus, error) {
	const op = "engine.CheckPending"

	intent, err := e.repo.FindLatestPendingIntent(ctx, subjectID)
	if errors.Is(err, repository.ErrNotFound) {
		return &CheckStatus{HasPending: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result, err := e.ReconcileNotification(ctx, intent.ProviderRef)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &CheckStatus{
		HasPending:  true,
		ProviderRef: intent.ProviderRef,
		Result:      result,
	}, nil
}

// withRetry вызывает идемпотентную операцию с ограниченным числом повторов.
// Используется для шлюза доступа и для дозаписи гранта после одобрения
// намерения: повтор для таких операций безопаснее отката.
func (e *Engine) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < e.opts.GateRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.opts.GateRetryBackoff):
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}

// publishNotification отправляет событие уведомления в очередь. Доставка
// best-effort: ошибка публикации логируется и не влияет на исход операции.
func (e *Engine) publishNotification(routingKey string, event models.NotificationEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(routingKey, event); err != nil {
		e.log.Error("failed to publish notification event", sl.Err(err),
			slog.Int64("subject_id", event.SubjectID), slog.String("kind", event.Kind))
	}
}
