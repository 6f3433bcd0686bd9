// Package create реализует HTTP-обработчик создания покупки: создаёт
// платёжное намерение и возвращает пользователю платёжную инструкцию.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vip-access/internal/http/response"
	"github.com/magabrotheeeer/vip-access/internal/lib/sl"
	"github.com/magabrotheeeer/vip-access/internal/models"
	"github.com/magabrotheeeer/vip-access/internal/services/engine"
)

// Request представляет запрос на покупку плана.
type Request struct {
	SubjectID   int64  `json:"subject_id" validate:"required"`
	DisplayName string `json:"display_name"`
	Plan        string `json:"plan" validate:"required,oneof=recurring perpetual"`
}

// Service описывает интерфейс бизнес-логики создания покупки.
type Service interface {
	RequestPurchase(ctx context.Context, subjectID int64, displayName string, plan models.PlanKind) (*models.IntentHandle, error)
}

// Handler обрабатывает запросы на создание покупки.
type Handler struct {
	log      *slog.Logger // Логгер для записи информации и ошибок
	service  Service
	validate *validator.Validate // Валидатор структуры входящих данных
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP обрабатывает HTTP-запрос на покупку плана.
//
// Выполняет:
// - Декодирование и валидацию тела запроса.
// - Создание платёжного намерения через движок.
// - Формирование JSON-ответа с платёжной инструкцией.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.purchase.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	handle, err := h.service.RequestPurchase(r.Context(), req.SubjectID, req.DisplayName, models.PlanKind(req.Plan))
	if errors.Is(err, engine.ErrUnknownPlan) {
		log.Error("unknown plan kind", slog.String("plan", req.Plan))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("unknown plan kind"))
		return
	}
	if errors.Is(err, engine.ErrNotConfigured) {
		log.Error("deployment is not configured")
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("deployment is not configured"))
		return
	}
	if err != nil {
		log.Error("failed to create purchase", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create purchase"))
		return
	}

	log.Info("success to create purchase",
		slog.Int64("subject_id", req.SubjectID),
		slog.String("provider_ref", handle.ProviderRef))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"intent": handle,
	}))
}
