package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/vip-access/internal/models"
)

// CreateIntent сохраняет новое платёжное намерение в статусе pending.
// Уникальный индекс по provider_reference гарантирует не более одной
// записи на внешний идентификатор платежа.
func (s *Storage) CreateIntent(ctx context.Context, intent models.PaymentIntent) error {
	const op = "storage.CreateIntent"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payment_intents (id, subject_id, plan_kind, amount,
			      provider_reference, status, created_at, expires_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.DB.ExecContext(ctx, query,
		intent.ID, intent.SubjectID, intent.PlanKind, intent.Amount,
		intent.ProviderRef, intent.Status, intent.CreatedAt, intent.ExpiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindIntentByProviderRef возвращает намерение по внешнему идентификатору платежа.
func (s *Storage) FindIntentByProviderRef(ctx context.Context, providerRef string) (*models.PaymentIntent, error) {
	const op = "storage.FindIntentByProviderRef"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, subject_id, plan_kind, amount, provider_reference, status, created_at, expires_at
			  FROM payment_intents WHERE provider_reference = $1`
	row := s.DB.QueryRowContext(ctx, query, providerRef)

	var result models.PaymentIntent
	err := row.Scan(&result.ID, &result.SubjectID, &result.PlanKind, &result.Amount,
		&result.ProviderRef, &result.Status, &result.CreatedAt, &result.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// FindLatestPendingIntent возвращает самое свежее намерение пользователя
// в статусе pending.
func (s *Storage) FindLatestPendingIntent(ctx context.Context, subjectID int64) (*models.PaymentIntent, error) {
	const op = "storage.FindLatestPendingIntent"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, subject_id, plan_kind, amount, provider_reference, status, created_at, expires_at
			  FROM payment_intents
			  WHERE subject_id = $1 AND status = 'pending'
			  ORDER BY created_at DESC
			  LIMIT 1`
	row := s.DB.QueryRowContext(ctx, query, subjectID)

	var result models.PaymentIntent
	err := row.Scan(&result.ID, &result.SubjectID, &result.PlanKind, &result.Amount,
		&result.ProviderRef, &result.Status, &result.CreatedAt, &result.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// ApproveIntent переводит намерение pending -> approved одним условным
// запросом. Возвращает true, если переход выполнил именно этот вызов:
// при гонке двух сверок одного платежа победитель ровно один, проигравший
// увидит false и пойдёт по пути "уже применено".
func (s *Storage) ApproveIntent(ctx context.Context, providerRef string) (bool, error) {
	const op = "storage.ApproveIntent"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payment_intents
			  SET status = 'approved'
			  WHERE provider_reference = $1 AND status = 'pending'`
	result, err := s.DB.ExecContext(ctx, query, providerRef)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// DeleteStaleIntents удаляет намерения, оставшиеся pending после истечения
// окна оплаты. Провайдер независимо закрывает своё платёжное окно, поэтому
// последующая сверка по удалённому reference корректно разрешается в NotFound.
func (s *Storage) DeleteStaleIntents(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.DeleteStaleIntents"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM payment_intents
			  WHERE status = 'pending' AND expires_at <= $1`
	result, err := s.DB.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}
