// Package read реализует HTTP-обработчик для получения статуса доступа
// пользователя по его идентификатору.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vip-access/internal/http/response"
	"github.com/magabrotheeeer/vip-access/internal/lib/sl"
	"github.com/magabrotheeeer/vip-access/internal/models"
	"github.com/magabrotheeeer/vip-access/internal/storage/repository"
)

// Service описывает интерфейс бизнес-логики чтения статуса доступа.
type Service interface {
	GetIdentity(ctx context.Context, subjectID int64) (*models.Identity, error)
}

// Handler обрабатывает запросы на получение статуса доступа.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP обрабатывает HTTP-запрос на получение статуса доступа по ID.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.status.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	subjectID, err := strconv.ParseInt(chi.URLParam(r, "subjectID"), 10, 64)
	if err != nil {
		log.Error("failed to decode subject id from url", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode subject id from url"))
		return
	}

	identity, err := h.service.GetIdentity(r.Context(), subjectID)
	if errors.Is(err, repository.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("identity not found"))
		return
	}
	if err != nil {
		log.Error("failed to read identity", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read identity"))
		return
	}

	log.Info("success to read identity", slog.Int64("subject_id", subjectID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"status": statusView(identity, time.Now()),
	}))
}

// statusView формирует представление статуса для ответа. Пользователь с
// истёкшим, но ещё не обработанным свипом планом показывается неактивным.
func statusView(identity *models.Identity, now time.Time) map[string]any {
	active := identity.AccessState == models.AccessActive && !identity.Lapsed(now)
	view := map[string]any{
		"subject_id": identity.SubjectID,
		"active":     active,
		"plan":       identity.PlanKind,
	}
	if identity.ExpiresAt != nil {
		view["expires_at"] = identity.ExpiresAt
	}
	return view
}
