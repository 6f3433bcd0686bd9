// Package notifier доставляет события уведомлений из очередей RabbitMQ
// пользователям. Доставка лучших усилий: постоянная ошибка отправки
// не блокирует очередь.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/vip-access/internal/lib/sl"
	"github.com/magabrotheeeer/vip-access/internal/models"
)

// Messenger описывает канал доставки сообщений пользователю.
type Messenger interface {
	Notify(ctx context.Context, subjectID int64, text string) error
}

// Notifier обрабатывает события уведомлений из очереди.
type Notifier struct {
	messenger Messenger
	log       *slog.Logger
}

// New создаёт обработчик уведомлений.
func New(messenger Messenger, log *slog.Logger) *Notifier {
	return &Notifier{messenger: messenger, log: log}
}

// Handle разбирает тело сообщения очереди и отправляет текст пользователю.
// Возвращает ошибку только при сбое доставки: такое сообщение вернётся
// в очередь и будет доставлено повторно.
func (n *Notifier) Handle(ctx context.Context, body []byte) error {
	const op = "notifier.Handle"

	var event models.NotificationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		// Непарсящееся сообщение бессмысленно возвращать в очередь.
		n.log.Error("failed to decode notification event", sl.Err(err))
		return nil
	}
	if event.SubjectID == 0 || event.Text == "" {
		n.log.Warn("skipping incomplete notification event",
			slog.Int64("subject_id", event.SubjectID),
			slog.String("kind", event.Kind))
		return nil
	}

	if err := n.messenger.Notify(ctx, event.SubjectID, event.Text); err != nil {
		n.log.Error("failed to deliver notification",
			slog.Int64("subject_id", event.SubjectID),
			slog.String("kind", event.Kind),
			sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	n.log.Info("notification delivered",
		slog.Int64("subject_id", event.SubjectID),
		slog.String("kind", event.Kind))
	return nil
}
