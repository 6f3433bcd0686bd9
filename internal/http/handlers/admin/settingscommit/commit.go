// Package settingscommit реализует HTTP-обработчик фиксации черновика
// настроек: черновик администратора валидируется и становится текущими
// настройками развёртывания.
package settingscommit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vip-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vip-access/internal/http/response"
	"github.com/magabrotheeeer/vip-access/internal/lib/sl"
	"github.com/magabrotheeeer/vip-access/internal/models"
	"github.com/magabrotheeeer/vip-access/internal/services/settings"
)

// Service описывает интерфейс фиксации черновика настроек.
type Service interface {
	Commit(ctx context.Context, adminID string) (*models.Settings, error)
}

// Handler обрабатывает запросы на фиксацию черновика настроек.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP обрабатывает HTTP-запрос на фиксацию черновика настроек.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.settingscommit"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	adminID, ok := r.Context().Value(middlewarectx.AdminID).(string)
	if !ok || adminID == "" {
		log.Error("admin id not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	committed, err := h.service.Commit(r.Context(), adminID)
	if errors.Is(err, settings.ErrNoDraft) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("no draft to commit"))
		return
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		log.Error("draft validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(validationErrs))
		return
	}
	if err != nil {
		log.Error("failed to commit settings draft", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not commit draft"))
		return
	}

	log.Info("settings draft committed", slog.String("admin_id", adminID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"settings": committed,
	}))
}
