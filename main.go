package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"barber_queue/internal/async"
	"barber_queue/internal/auth"
	"barber_queue/internal/broadcast"
	"barber_queue/internal/config"
	"barber_queue/internal/handlers"
	"barber_queue/internal/logger"
	"barber_queue/internal/notify"
	"barber_queue/internal/queue"
	"barber_queue/internal/status"
	"barber_queue/internal/storage"
	"barber_queue/internal/tasks"
	"barber_queue/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 15 * time.Second

// @Title						Онлайн очередь барбершопа
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.Setup("info", true)
		bootLog.Fatal().Err(err).Msg("Ошибка загрузки конфигурации")
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogPretty)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Сервер остановлен с ошибкой")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores := storage.NewMemoryStores()
	if cfg.Database.Driver != config.DriverMemory {
		db, err := storage.ConnectDatabase(cfg.Database, log)
		if err != nil {
			return err
		}
		stores = storage.NewGormStores(db)
	}

	var locker queue.Locker = queue.NewLocalLocker()
	if rdb := storage.NewRedis(cfg.Redis); rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		defer rdb.Close()
		locker = queue.NewRedisLocker(rdb, cfg.Redis.LockTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Блокировки очередей через Redis")
	}

	var pusher notify.Pusher = notify.NopPusher{}
	if cfg.Push.Enabled {
		pusher = notify.NewWebPusher(cfg.Push)
	}
	policy := notify.PolicyAllDevices
	if !cfg.Push.NotifyAllDevices {
		policy = notify.PolicyFirstDevice
	}

	background := async.NewGroup(log)
	hub := ws.NewHub()
	engine := broadcast.NewEngine(stores.Queue, stores.Users, stores.Status, hub, log)
	dispatcher := notify.NewDispatcher(stores.Subscriptions, pusher,
		notify.WithPolicy(policy),
		notify.WithConcurrency(cfg.Push.Concurrency),
		notify.WithLogger(log),
	)
	coordinator := queue.NewCoordinator(stores.Queue, locker, log)
	statusCtl := status.NewController(stores.Status, locker, engine, dispatcher, background, log)
	gateway := handlers.NewGateway(coordinator, engine, dispatcher, statusCtl, background, log)

	scheduler, err := tasks.InitScheduler(cfg.RepairSchedule, tasks.NewPlanner(coordinator, engine, log), log)
	if err != nil {
		return err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Без секрета эндпоинты открыты: авторизация остаётся за внешним сервисом.
	secured := []gin.HandlerFunc{}
	if cfg.JWTAccessSecret != "" {
		secured = append(secured, auth.Middleware([]byte(cfg.JWTAccessSecret)))
	}

	wsHandler := ws.Handler(hub, gateway, log)
	r.GET("/ws", append(secured, wsHandler)...)

	r.GET("/api/providers", handlers.ListProvidersHandler(coordinator, engine))
	providers := r.Group("/api/providers/:providerId")
	{
		providers.GET("/ws", append(secured, wsHandler)...)
		providers.GET("/queue", handlers.GetQueueHandler(engine))
	}

	push := r.Group("/api/push", secured...)
	{
		push.GET("/vapid-public-key", handlers.VAPIDKeyHandler(cfg.Push.PublicKey))
		push.POST("/subscriptions", handlers.SaveSubscriptionHandler(stores.Subscriptions))
		push.GET("/subscriptions/:userId", handlers.ListSubscriptionsHandler(stores.Subscriptions))
		push.DELETE("/subscriptions", handlers.DeleteSubscriptionHandler(stores.Subscriptions))
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("Сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("Получен сигнал остановки")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	<-scheduler.Stop().Done()
	// websocket-соединения хиджакнуты и Shutdown их не ждёт
	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки HTTP сервера")
	}
	gateway.Wait()
	log.Info().Msg("Сервер остановлен")
	return nil
}
