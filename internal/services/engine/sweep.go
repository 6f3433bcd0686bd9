package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vip-access/internal/lib/sl"
	"github.com/magabrotheeeer/vip-access/internal/metrics"
	"github.com/magabrotheeeer/vip-access/internal/models"
	"github.com/magabrotheeeer/vip-access/internal/rabbitmq"
)

// SweepReport содержит итоги одного прохода свипа.
type SweepReport struct {
	StaleIntents int64   // Удалено просроченных намерений
	Expelled     int     // Исключено пользователей с истёкшим планом
	Errors       []error // Ошибки по отдельным пользователям
}

// Sweep выполняет два независимых прохода: удаляет намерения, оставшиеся
// pending после истечения окна оплаты, и отзывает доступ у пользователей
// с истёкшим срочным планом. Пользователи обрабатываются независимо:
// ошибка по одному не прерывает обработку остальных.
func (e *Engine) Sweep(ctx context.Context, now time.Time) SweepReport {
	const op = "engine.Sweep"
	log := e.log.With(slog.String("op", op))
	var report SweepReport

	stale, err := e.repo.DeleteStaleIntents(ctx, now)
	if err != nil {
		log.Error("failed to delete stale intents", sl.Err(err))
		report.Errors = append(report.Errors, err)
	} else {
		report.StaleIntents = stale
		if stale > 0 {
			metrics.SweepStaleIntents.Add(float64(stale))
			log.Info("removed stale payment intents", slog.Int64("count", stale))
		}
	}

	lapsed, err := e.repo.ListLapsedIdentities(ctx, now)
	if err != nil {
		log.Error("failed to list lapsed identities", sl.Err(err))
		report.Errors = append(report.Errors, err)
		return report
	}
	if len(lapsed) == 0 {
		return report
	}

	settings, err := e.settings.GetSettings(ctx)
	if err != nil {
		log.Error("failed to load settings for sweep", sl.Err(err))
		report.Errors = append(report.Errors, err)
		return report
	}

	for _, identity := range lapsed {
		expelled, err := e.expelLapsed(ctx, identity, settings, now)
		if err != nil {
			log.Error("failed to expel lapsed identity", sl.Err(err),
				slog.Int64("subject_id", identity.SubjectID))
			metrics.SweepErrors.Inc()
			report.Errors = append(report.Errors, fmt.Errorf("subject %d: %w", identity.SubjectID, err))
			continue
		}
		if expelled {
			report.Expelled++
		}
	}
	if report.Expelled > 0 {
		metrics.SweepExpelled.Add(float64(report.Expelled))
		log.Info("expelled lapsed identities", slog.Int("count", report.Expelled))
	}
	return report
}

// expelLapsed отзывает доступ одного пользователя. Сначала условный переход
// active -> inactive в хранилище: при гонке с продлением или с другим
// экземпляром свипа победитель ровно один, проигравший пропускает пользователя.
// Возвращает true только если доступ отозвал именно этот вызов; пропуск
// проигравшего не считается исключением.
func (e *Engine) expelLapsed(ctx context.Context, identity *models.Identity, settings *models.Settings, now time.Time) (bool, error) {
	won, err := e.repo.DeactivateLapsedIdentity(ctx, identity.SubjectID, now)
	if err != nil {
		return false, err
	}
	if !won {
		// Продлил подписку между выборкой и обработкой либо обработан
		// другим экземпляром.
		return false, nil
	}

	if err := e.withRetry(ctx, func(ctx context.Context) error {
		return e.gate.Expel(ctx, settings.GroupChatID, identity.SubjectID)
	}); err != nil {
		return true, err
	}

	text := settings.ExpiredMessage
	if text == "" {
		text = "Срок действия вашего плана истёк, доступ закрыт."
	}
	e.publishNotification(rabbitmq.RoutingKeyExpiry, models.NotificationEvent{
		SubjectID: identity.SubjectID,
		Text:      text,
		Kind:      models.NotificationExpired,
	})
	return true, nil
}

// RunSweeper запускает периодический свип: один проход сразу при старте,
// далее по фиксированному интервалу до отмены контекста.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	e.Sweep(ctx, time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Sweep(ctx, time.Now())
		case <-ctx.Done():
			return
		}
	}
}
