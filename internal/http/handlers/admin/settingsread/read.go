// Package settingsread реализует HTTP-обработчик чтения текущих настроек
// развёртывания администратором.
package settingsread

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vip-access/internal/http/response"
	"github.com/magabrotheeeer/vip-access/internal/lib/sl"
	"github.com/magabrotheeeer/vip-access/internal/models"
	"github.com/magabrotheeeer/vip-access/internal/storage/repository"
)

// Service описывает интерфейс чтения настроек.
type Service interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
}

// Handler обрабатывает запросы на чтение настроек.
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

// ServeHTTP обрабатывает HTTP-запрос на чтение настроек.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.settingsread"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	settings, err := h.service.GetSettings(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("settings are not configured"))
		return
	}
	if err != nil {
		log.Error("failed to read settings", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read settings"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"settings": settings,
	}))
}
