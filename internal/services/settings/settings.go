// Package settings обслуживает единственную запись настроек развёртывания:
// читающий кеш поверх Redis, черновики изменений по каждому администратору
// и их фиксация с валидацией.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vip-access/internal/lib/sl"
	"github.com/magabrotheeeer/vip-access/internal/models"
)

// ErrNoDraft возвращается при попытке зафиксировать несуществующий черновик.
var ErrNoDraft = errors.New("no draft found")

const (
	cacheKey = "settings:current"
	cacheTTL = 5 * time.Minute
	draftTTL = 30 * time.Minute
)

// Draft — редактируемая администратором копия настроек. Счётчик выручки
// в черновик не входит и фиксацией не перезаписывается.
type Draft struct {
	GroupChatID     int64  `json:"group_chat_id" validate:"required"`
	RecurringPrice  int64  `json:"recurring_price" validate:"required,gt=0"`
	PerpetualPrice  int64  `json:"perpetual_price" validate:"required,gt=0"`
	RecurringDays   int    `json:"recurring_days" validate:"required,gt=0"`
	ApprovedMessage string `json:"approved_message"`
	ExpiredMessage  string `json:"expired_message"`
}

// Repository описывает хранилище настроек.
type Repository interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	UpsertSettings(ctx context.Context, settings models.Settings) error
}

// Cache описывает кеш для настроек и черновиков.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service — сервисный слой работы с настройками.
type Service struct {
	repo     Repository
	cache    Cache
	validate *validator.Validate
	log      *slog.Logger
}

// New создаёт сервис настроек.
func New(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		validate: validator.New(),
		log:      log,
	}
}

// GetSettings возвращает текущие настройки через читающий кеш. Промах
// или недоступность кеша не фатальны — читаем из базы и наполняем кеш.
func (s *Service) GetSettings(ctx context.Context) (*models.Settings, error) {
	const op = "settings.GetSettings"

	var cached models.Settings
	found, err := s.cache.Get(cacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read settings cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	result, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(cacheKey, result, cacheTTL); err != nil {
		s.log.Warn("failed to cache settings", sl.Err(err))
	}
	return result, nil
}

// Revenue возвращает накопленную выручку, минуя кеш: счётчик меняется
// при каждом подтверждении платежа и в кеше быстро устаревает.
func (s *Service) Revenue(ctx context.Context) (int64, error) {
	const op = "settings.Revenue"
	current, err := s.repo.GetSettings(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return current.TotalRevenue, nil
}

// SaveDraft сохраняет черновик настроек администратора. Черновики
// изолированы по администраторам и живут ограниченное время.
func (s *Service) SaveDraft(adminID string, draft Draft) error {
	const op = "settings.SaveDraft"
	if err := s.cache.Set(draftKey(adminID), draft, draftTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetDraft возвращает черновик настроек администратора.
func (s *Service) GetDraft(adminID string) (*Draft, error) {
	const op = "settings.GetDraft"
	var draft Draft
	found, err := s.cache.Get(draftKey(adminID), &draft)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", op, ErrNoDraft)
	}
	return &draft, nil
}

// Commit валидирует черновик администратора, сохраняет его как текущие
// настройки, удаляет черновик и сбрасывает кеш.
func (s *Service) Commit(ctx context.Context, adminID string) (*models.Settings, error) {
	const op = "settings.Commit"
	log := s.log.With(slog.String("op", op), slog.String("admin_id", adminID))

	draft, err := s.GetDraft(adminID)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(draft); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	next := models.Settings{
		GroupChatID:     draft.GroupChatID,
		RecurringPrice:  draft.RecurringPrice,
		PerpetualPrice:  draft.PerpetualPrice,
		RecurringDays:   draft.RecurringDays,
		ApprovedMessage: draft.ApprovedMessage,
		ExpiredMessage:  draft.ExpiredMessage,
	}
	if err := s.repo.UpsertSettings(ctx, next); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Invalidate(draftKey(adminID)); err != nil {
		log.Warn("failed to drop settings draft", sl.Err(err))
	}
	if err := s.cache.Invalidate(cacheKey); err != nil {
		log.Warn("failed to invalidate settings cache", sl.Err(err))
	}
	log.Info("settings committed")

	committed, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return committed, nil
}

func draftKey(adminID string) string {
	return "settings:draft:" + adminID
}
