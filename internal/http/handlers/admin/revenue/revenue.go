// Package revenue реализует HTTP-обработчик чтения накопленной выручки.
package revenue

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vip-access/internal/http/response"
	"github.com/magabrotheeeer/vip-access/internal/lib/money"
	"github.com/magabrotheeeer/vip-access/internal/lib/sl"
	"github.com/magabrotheeeer/vip-access/internal/storage/repository"
)

// Service описывает интерфейс чтения выручки.
type Service interface {
	Revenue(ctx context.Context) (int64, error)
}

// Handler обрабатывает запросы на чтение выручки.
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

// ServeHTTP обрабатывает HTTP-запрос на чтение выручки.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.revenue"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	total, err := h.service.Revenue(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("settings are not configured"))
		return
	}
	if err != nil {
		log.Error("failed to read revenue", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read revenue"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"total_revenue":           total,
		"total_revenue_formatted": money.Format(total),
	}))
}
