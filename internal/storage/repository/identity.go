package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/vip-access/internal/models"
)

// UpsertIdentity регистрирует пользователя при первом контакте. Повторный
// вызов обновляет только отображаемое имя, состояние доступа не трогается.
func (s *Storage) UpsertIdentity(ctx context.Context, subjectID int64, displayName string) error {
	const op = "storage.UpsertIdentity"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO identities (subject_id, display_name, access_state, plan_kind)
			  VALUES ($1, $2, 'inactive', '')
			  ON CONFLICT (subject_id) DO UPDATE SET display_name = EXCLUDED.display_name`
	if _, err := s.DB.ExecContext(ctx, query, subjectID, displayName); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetIdentity возвращает личность по внешнему идентификатору.
func (s *Storage) GetIdentity(ctx context.Context, subjectID int64) (*models.Identity, error) {
	const op = "storage.GetIdentity"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT subject_id, display_name, access_state, plan_kind, expires_at, created_at
			  FROM identities WHERE subject_id = $1`
	row := s.DB.QueryRowContext(ctx, query, subjectID)

	var result models.Identity
	err := row.Scan(&result.SubjectID, &result.DisplayName, &result.AccessState,
		&result.PlanKind, &result.ExpiresAt, &result.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// ActivateIdentity выдаёт доступ: переводит личность в active с указанным
// планом и сроком. Для бессрочного плана expiresAt равен nil.
func (s *Storage) ActivateIdentity(ctx context.Context, subjectID int64, plan models.PlanKind, expiresAt *time.Time) error {
	const op = "storage.ActivateIdentity"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE identities
			  SET access_state = 'active', plan_kind = $2, expires_at = $3
			  WHERE subject_id = $1`
	result, err := s.DB.ExecContext(ctx, query, subjectID, plan, expiresAt)
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

// DeactivateLapsedIdentity переводит личность в inactive при условии, что
// её срочный план всё ещё истёк к моменту now. Возвращает true, если
// переход выполнил именно этот вызов.
func (s *Storage) DeactivateLapsedIdentity(ctx context.Context, subjectID int64, now time.Time) (bool, error) {
	const op = "storage.DeactivateLapsedIdentity"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE identities
			  SET access_state = 'inactive'
			  WHERE subject_id = $1 AND access_state = 'active'
			    AND plan_kind = 'recurring' AND expires_at <= $2`
	result, err := s.DB.ExecContext(ctx, query, subjectID, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// ListLapsedIdentities возвращает всех пользователей с активным срочным
// планом, истёкшим к моменту now. Бессрочные планы в выборку не попадают.
func (s *Storage) ListLapsedIdentities(ctx context.Context, now time.Time) ([]*models.Identity, error) {
	const op = "storage.ListLapsedIdentities"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT subject_id, display_name, access_state, plan_kind, expires_at, created_at
			  FROM identities
			  WHERE access_state = 'active' AND plan_kind = 'recurring' AND expires_at <= $1
			  ORDER BY expires_at`
	rows, err := s.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var results []*models.Identity
	for rows.Next() {
		var identity models.Identity
		if err := rows.Scan(&identity.SubjectID, &identity.DisplayName, &identity.AccessState,
			&identity.PlanKind, &identity.ExpiresAt, &identity.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		results = append(results, &identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return results, nil
}
