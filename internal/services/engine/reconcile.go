package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vip-access/internal/lib/money"
	"github.com/magabrotheeeer/vip-access/internal/lib/sl"
	"github.com/magabrotheeeer/vip-access/internal/metrics"
	"github.com/magabrotheeeer/vip-access/internal/models"
	"github.com/magabrotheeeer/vip-access/internal/paymentprovider"
	"github.com/magabrotheeeer/vip-access/internal/rabbitmq"
	"github.com/magabrotheeeer/vip-access/internal/storage/repository"
)

// ReconcileResult — типизированный исход сверки платёжного уведомления.
// Все доменные исходы возвращаются вызывающему как значения, ошибкой
// считаются только инфраструктурные сбои (провайдер или хранилище недоступны).
type ReconcileResult string

const (
	// ResultApplied — сверка применена: намерение одобрено, доступ выдан.
	ResultApplied ReconcileResult = "applied"
	// ResultAlreadyApplied — повторная доставка уже применённого подтверждения.
	ResultAlreadyApplied ReconcileResult = "already_applied"
	// ResultNotFound — неизвестный или уже удалённый reference.
	ResultNotFound ReconcileResult = "not_found"
	// ResultNotYetApproved — платёж ещё не подтверждён провайдером.
	ResultNotYetApproved ReconcileResult = "not_yet_approved"
	// ResultAmountMismatch — сумма у провайдера не совпала с записанной.
	ResultAmountMismatch ReconcileResult = "amount_mismatch"
)

// ReconcileNotification сверяет платёжное уведомление с состоянием доступа.
// Безопасна при as-least-once, неупорядоченной и конкурентной доставке
// одного и того же уведомления. Поля входящего уведомления не используются:
// статус и сумма перечитываются у провайдера по reference.
func (e *Engine) ReconcileNotification(ctx context.Context, providerRef string) (ReconcileResult, error) {
	const op = "engine.ReconcileNotification"
	log := e.log.With(slog.String("op", op), slog.String("provider_ref", providerRef))

	result, err := e.reconcile(ctx, log, providerRef)
	if err != nil {
		return "", err
	}
	metrics.ReconcileResults.WithLabelValues(string(result)).Inc()
	return result, nil
}

func (e *Engine) reconcile(ctx context.Context, log *slog.Logger, providerRef string) (ReconcileResult, error) {
	const op = "engine.reconcile"

	payment, err := e.provider.GetPayment(ctx, providerRef)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if payment.Status != paymentprovider.StatusSucceeded {
		return ResultNotYetApproved, nil
	}

	intent, err := e.repo.FindIntentByProviderRef(ctx, providerRef)
	if errors.Is(err, repository.ErrNotFound) {
		log.Info("notification for unknown provider reference, ignoring")
		return ResultNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if intent.Status == models.IntentApproved {
		// Повтор уведомления об уже одобренном намерении: проверяем, что
		// грант действительно выдан, и достраиваем его, если предыдущая
		// доставка упала между одобрением и выдачей доступа.
		if err := e.ensureGranted(ctx, log, intent); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return ResultAlreadyApplied, nil
	}

	authoritativeAmount, err := money.Parse(payment.Amount.Value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if authoritativeAmount != intent.Amount {
		log.Error("amount mismatch, refusing to grant access",
			slog.Int64("expected", intent.Amount),
			slog.Int64("authoritative", authoritativeAmount),
			slog.Int64("subject_id", intent.SubjectID))
		return ResultAmountMismatch, nil
	}

	// Настройки читаются до одобрения: после условного перехода намерения
	// любой невыполненный шаг должен быть достраиваемым, а не блокирующим.
	settings, err := e.settings.GetSettings(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	won, err := e.repo.ApproveIntent(ctx, providerRef)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !won {
		// Конкурентная сверка того же reference успела раньше.
		return ResultAlreadyApplied, nil
	}

	// Дальше намерение уже одобрено и переход назад невозможен. Выдача
	// доступа повторяется на месте; если не удалась, возвращается ошибка,
	// и повторная доставка достроит грант через ensureGranted.
	if err := e.repo.AddRevenue(ctx, intent.Amount); err != nil {
		log.Error("failed to increment revenue counter", sl.Err(err))
	}

	if err := e.withRetry(ctx, func(ctx context.Context) error {
		return e.applyGrant(ctx, log, intent, settings)
	}); err != nil {
		log.Error("failed to apply grant after approving intent", sl.Err(err),
			slog.Int64("subject_id", intent.SubjectID))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := e.withRetry(ctx, func(ctx context.Context) error {
		return e.gate.Admit(ctx, settings.GroupChatID, intent.SubjectID)
	}); err != nil {
		// Состояние уже зафиксировано, admit идемпотентен: не пустить
		// оплатившего пользователя хуже, чем повторить попытку позже.
		log.Error("failed to admit subject after retries", sl.Err(err),
			slog.Int64("subject_id", intent.SubjectID))
	}

	text := settings.ApprovedMessage
	if text == "" {
		text = "Оплата получена, доступ открыт."
	}
	e.publishNotification(rabbitmq.RoutingKeyPayment, models.NotificationEvent{
		SubjectID: intent.SubjectID,
		Text:      text,
		Kind:      models.NotificationApproved,
	})

	log.Info("reconciliation applied",
		slog.Int64("subject_id", intent.SubjectID),
		slog.String("plan", string(intent.PlanKind)))
	return ResultApplied, nil
}

// applyGrant пересчитывает поля доступа личности по типу оплаченного плана.
// Бессрочный план "липкий": более поздняя покупка срочного плана не понижает
// уже выданный бессрочный доступ.
func (e *Engine) applyGrant(ctx context.Context, log *slog.Logger, intent *models.PaymentIntent, settings *models.Settings) error {
	identity, err := e.repo.GetIdentity(ctx, intent.SubjectID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if identity != nil && identity.PlanKind == models.PlanPerpetual && intent.PlanKind == models.PlanRecurring {
		log.Warn("recurring purchase over perpetual grant, keeping perpetual",
			slog.Int64("subject_id", intent.SubjectID))
		return nil
	}

	var expiresAt *time.Time
	if intent.PlanKind == models.PlanRecurring {
		t := time.Now().AddDate(0, 0, settings.RecurringDays)
		expiresAt = &t
	}
	return e.repo.ActivateIdentity(ctx, intent.SubjectID, intent.PlanKind, expiresAt)
}

// ensureGranted проверяет, что за одобренным намерением стоит выданный доступ.
// Если личность неактивна, значит предыдущая доставка упала между одобрением
// и выдачей: грант достраивается по текущим настройкам, пользователь
// допускается в группу и получает уведомление об оплате.
func (e *Engine) ensureGranted(ctx context.Context, log *slog.Logger, intent *models.PaymentIntent) error {
	identity, err := e.repo.GetIdentity(ctx, intent.SubjectID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if identity != nil && identity.AccessState == models.AccessActive {
		return nil
	}

	settings, err := e.settings.GetSettings(ctx)
	if err != nil {
		return err
	}
	if err := e.withRetry(ctx, func(ctx context.Context) error {
		return e.applyGrant(ctx, log, intent, settings)
	}); err != nil {
		return err
	}
	if err := e.withRetry(ctx, func(ctx context.Context) error {
		return e.gate.Admit(ctx, settings.GroupChatID, intent.SubjectID)
	}); err != nil {
		log.Error("failed to admit subject after retries", sl.Err(err),
			slog.Int64("subject_id", intent.SubjectID))
	}

	text := settings.ApprovedMessage
	if text == "" {
		text = "Оплата получена, доступ открыт."
	}
	e.publishNotification(rabbitmq.RoutingKeyPayment, models.NotificationEvent{
		SubjectID: intent.SubjectID,
		Text:      text,
		Kind:      models.NotificationApproved,
	})

	log.Info("completed grant for approved intent on redelivery",
		slog.Int64("subject_id", intent.SubjectID))
	return nil
}
