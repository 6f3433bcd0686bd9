// Package vipaccess предоставляет маршруты для основного приложения.
package vipaccess

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/vip-access/internal/http/handlers/admin/revenue"
	"github.com/magabrotheeeer/vip-access/internal/http/handlers/admin/settingscommit"
	"github.com/magabrotheeeer/vip-access/internal/http/handlers/admin/settingsdraft"
	"github.com/magabrotheeeer/vip-access/internal/http/handlers/admin/settingsread"
	"github.com/magabrotheeeer/vip-access/internal/http/handlers/health"
	"github.com/magabrotheeeer/vip-access/internal/http/handlers/payment/paymentwebhook"
	purchasecheck "github.com/magabrotheeeer/vip-access/internal/http/handlers/purchase/check"
	purchasecreate "github.com/magabrotheeeer/vip-access/internal/http/handlers/purchase/create"
	statusread "github.com/magabrotheeeer/vip-access/internal/http/handlers/status/read"
	"github.com/magabrotheeeer/vip-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vip-access/internal/lib/jwt"
	"github.com/magabrotheeeer/vip-access/internal/services/engine"
	settingsservice "github.com/magabrotheeeer/vip-access/internal/services/settings"
	"github.com/magabrotheeeer/vip-access/internal/storage/repository"
)

// RouteDeps содержит зависимости HTTP-обработчиков.
type RouteDeps struct {
	Engine        *engine.Engine
	Settings      *settingsservice.Service
	Storage       *repository.Storage
	JWTMaker      jwt.Maker
	WebhookSecret string
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps RouteDeps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Пользовательские конечные точки
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/purchase", purchasecreate.New(logger, deps.Engine).ServeHTTP)
			r.Post("/purchase/check", purchasecheck.New(logger, deps.Engine).ServeHTTP)
			r.Get("/status/{subjectID}", statusread.New(logger, deps.Storage).ServeHTTP)
		})

		// Группа администратора с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(deps.JWTMaker, logger))
			r.Get("/admin/settings", settingsread.New(logger, deps.Settings).ServeHTTP)
			r.Put("/admin/settings/draft", settingsdraft.New(logger, deps.Settings).ServeHTTP)
			r.Post("/admin/settings/commit", settingscommit.New(logger, deps.Settings).ServeHTTP)
			r.Get("/admin/revenue", revenue.New(logger, deps.Settings).ServeHTTP)
		})

		// Webhook провайдера (без аутентификации, подпись проверяется в обработчике)
		r.Post("/payments/webhook", paymentwebhook.New(logger, deps.Engine, deps.WebhookSecret).ServeHTTP)
	})

	r.Get("/health", health.New(logger, deps.Storage).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
}
