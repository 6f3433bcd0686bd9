// Package vipaccess собирает и запускает сервис управления доступом:
// HTTP-поверхность, движок подписок, периодический свип и потребителя
// очередей уведомлений.
package vipaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vip-access/internal/accessgate"
	"github.com/magabrotheeeer/vip-access/internal/cache"
	"github.com/magabrotheeeer/vip-access/internal/config"
	"github.com/magabrotheeeer/vip-access/internal/lib/jwt"
	"github.com/magabrotheeeer/vip-access/internal/lib/sl"
	"github.com/magabrotheeeer/vip-access/internal/migrations"
	"github.com/magabrotheeeer/vip-access/internal/paymentprovider"
	"github.com/magabrotheeeer/vip-access/internal/rabbitmq"
	"github.com/magabrotheeeer/vip-access/internal/services/engine"
	"github.com/magabrotheeeer/vip-access/internal/services/notifier"
	settingsservice "github.com/magabrotheeeer/vip-access/internal/services/settings"
	"github.com/magabrotheeeer/vip-access/internal/storage/repository"
)

// App агрегирует все компоненты сервиса.
type App struct {
	server        *http.Server
	logger        *slog.Logger
	db            *repository.Storage
	rabbitConn    *amqp.Connection
	rabbitChannel *amqp.Channel
	engine        *engine.Engine
	notifier      *notifier.Notifier
	sweepInterval time.Duration
}

// New создаёт приложение: подключает хранилище, применяет миграции,
// поднимает кеш и очередь, собирает движок и регистрирует маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.vipaccess.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	migrationsPath := cfg.MigrationsPath
	if migrationsPath == "" {
		migrationsPath = "./migrations"
	}
	if err = migrations.Run(db.DB, migrationsPath); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rabbitConn, err := rabbitmq.Connect(cfg.RabbitConnectionString, 5, 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rabbitChannel, err := rabbitmq.SetupChannel(rabbitConn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	providerClient := paymentprovider.NewClient(cfg.Provider)
	gate := accessgate.NewClient(cfg.Telegram)
	settingsService := settingsservice.New(db, cacheRedis, logger)
	publisher := rabbitmq.NewChannelPublisher(rabbitChannel)

	subscriptionEngine := engine.New(db, settingsService, providerClient, gate, publisher, engine.Options{
		IntentTTL:        cfg.IntentTTL,
		ReturnURL:        cfg.Provider.ReturnURL,
		GateRetries:      cfg.GateRetries,
		GateRetryBackoff: cfg.GateRetryBackoff,
	}, logger)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, RouteDeps{
		Engine:        subscriptionEngine,
		Settings:      settingsService,
		Storage:       db,
		JWTMaker:      jwtMaker,
		WebhookSecret: cfg.Provider.WebhookSecret,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:        srv,
		logger:        logger,
		db:            db,
		rabbitConn:    rabbitConn,
		rabbitChannel: rabbitChannel,
		engine:        subscriptionEngine,
		notifier:      notifier.New(gate, logger),
		sweepInterval: cfg.SweepInterval,
	}, nil
}

// Run запускает HTTP-сервер, свипер и потребителей очередей уведомлений,
// блокируясь до отмены контекста или фатальной ошибки сервера.
func (a *App) Run(ctx context.Context) error {
	handle := func(body []byte) error {
		return a.notifier.Handle(ctx, body)
	}
	if err := rabbitmq.ConsumeMessages(ctx, a.rabbitChannel, rabbitmq.QueuePayment, handle); err != nil {
		return err
	}
	if err := rabbitmq.ConsumeMessages(ctx, a.rabbitChannel, rabbitmq.QueueExpiry, handle); err != nil {
		return err
	}

	go a.engine.RunSweeper(ctx, a.sweepInterval)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.rabbitChannel.Close(); closeErr != nil {
			a.logger.Error("failed to close rabbitmq channel", sl.Err(closeErr))
		}
		if closeErr := a.rabbitConn.Close(); closeErr != nil {
			a.logger.Error("failed to close rabbitmq connection", sl.Err(closeErr))
		}
		if closeErr := a.db.DB.Close(); closeErr != nil {
			a.logger.Error("failed to close database", sl.Err(closeErr))
		}
		return err
	}
}
