package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/vip-access/internal/models"
)

// GetSettings возвращает единственную запись настроек развёртывания.
func (s *Storage) GetSettings(ctx context.Context) (*models.Settings, error) {
	const op = "storage.GetSettings"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT group_chat_id, recurring_price, perpetual_price, recurring_days,
			      approved_message, expired_message, total_revenue
			  FROM settings WHERE id = 1`
	row := s.DB.QueryRowContext(ctx, query)

	var result models.Settings
	err := row.Scan(&result.GroupChatID, &result.RecurringPrice, &result.PerpetualPrice,
		&result.RecurringDays, &result.ApprovedMessage, &result.ExpiredMessage, &result.TotalRevenue)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// UpsertSettings создаёт или обновляет запись настроек. Счётчик выручки
// при обновлении не перезаписывается.
func (s *Storage) UpsertSettings(ctx context.Context, settings models.Settings) error {
	const op = "storage.UpsertSettings"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO settings (id, group_chat_id, recurring_price, perpetual_price,
			      recurring_days, approved_message, expired_message, total_revenue)
			  VALUES (1, $1, $2, $3, $4, $5, $6, 0)
			  ON CONFLICT (id) DO UPDATE SET
			      group_chat_id = EXCLUDED.group_chat_id,
			      recurring_price = EXCLUDED.recurring_price,
			      perpetual_price = EXCLUDED.perpetual_price,
			      recurring_days = EXCLUDED.recurring_days,
			      approved_message = EXCLUDED.approved_message,
			      expired_message = EXCLUDED.expired_message`
	_, err := s.DB.ExecContext(ctx, query,
		settings.GroupChatID, settings.RecurringPrice, settings.PerpetualPrice,
		settings.RecurringDays, settings.ApprovedMessage, settings.ExpiredMessage)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AddRevenue увеличивает счётчик выручки одним атомарным запросом, без
// чтения-модификации-записи: конкурентные подтверждения платежей не
// теряют обновления.
func (s *Storage) AddRevenue(ctx context.Context, amount int64) error {
	const op = "storage.AddRevenue"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE settings SET total_revenue = total_revenue + $1 WHERE id = 1`
	result, err := s.DB.ExecContext(ctx, query, amount)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
