// Package settingsdraft реализует HTTP-обработчик сохранения черновика
// настроек. Каждый администратор редактирует собственный черновик:
// параллельные изменения не затирают друг друга.
package settingsdraft

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vip-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vip-access/internal/http/response"
	"github.com/magabrotheeeer/vip-access/internal/lib/sl"
	"github.com/magabrotheeeer/vip-access/internal/services/settings"
)

// Service описывает интерфейс работы с черновиками настроек.
type Service interface {
	SaveDraft(adminID string, draft settings.Draft) error
}

// Handler обрабатывает запросы на сохранение черновика настроек.
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

// ServeHTTP обрабатывает HTTP-запрос на сохранение черновика настроек.
// Черновик не валидируется при сохранении: проверки выполняются при фиксации.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.settingsdraft"

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

	var draft settings.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.service.SaveDraft(adminID, draft); err != nil {
		log.Error("failed to save settings draft", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not save draft"))
		return
	}

	log.Info("settings draft saved", slog.String("admin_id", adminID))
	render.JSON(w, r, response.OK())
}
