// Package check реализует HTTP-обработчик пользовательской проверки
// "где мой платёж": последнее незавершённое намерение пользователя
// прогоняется через ту же сверку, что и платёжный webhook.
package check

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vip-access/internal/http/response"
	"github.com/magabrotheeeer/vip-access/internal/lib/sl"
	"github.com/magabrotheeeer/vip-access/internal/services/engine"
)

// Request представляет запрос на проверку платежа.
type Request struct {
	SubjectID int64 `json:"subject_id" validate:"required"`
}

// Service описывает интерфейс бизнес-логики проверки платежа.
type Service interface {
	CheckPending(ctx context.Context, subjectID int64) (*engine.CheckStatus, error)
}

// Handler обрабатывает запросы на проверку платежа.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP обрабатывает HTTP-запрос на проверку платежа пользователя.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.purchase.check"

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

	status, err := h.service.CheckPending(r.Context(), req.SubjectID)
	if err != nil {
		log.Error("failed to check pending payment", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not check payment"))
		return
	}

	log.Info("success to check pending payment",
		slog.Int64("subject_id", req.SubjectID),
		slog.Bool("has_pending", status.HasPending))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"check": status,
	}))
}
