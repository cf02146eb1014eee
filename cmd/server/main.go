package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HammerMeetNail/friendhub/internal/config"
	"github.com/HammerMeetNail/friendhub/internal/database"
	"github.com/HammerMeetNail/friendhub/internal/handlers"
	"github.com/HammerMeetNail/friendhub/internal/live"
	"github.com/HammerMeetNail/friendhub/internal/logging"
	"github.com/HammerMeetNail/friendhub/internal/middleware"
	"github.com/HammerMeetNail/friendhub/internal/services"
	"github.com/HammerMeetNail/friendhub/internal/services/places"
	"github.com/HammerMeetNail/friendhub/migrations"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.Log)
	logging.SetDefault(logger)
	logger.Info("Starting FriendHub server", map[string]interface{}{"env": cfg.Server.Environment})

	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	if err := runMigrations(cfg.Database, logger); err != nil {
		return err
	}

	logger.Info("Connecting to Redis", map[string]interface{}{"addr": cfg.Redis.Addr()})
	redisDB, err := database.NewRedisDB(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()

	dbAdapter := services.NewPoolAdapter(db.Pool)
	redisAdapter := services.NewRedisAdapter(redisDB.Client)
	publisher := live.NewPublisher(redisDB.Client)

	userService := services.NewUserService(dbAdapter)
	authService := services.NewAuthService(dbAdapter, redisAdapter)
	friendService := services.NewFriendService(dbAdapter)
	mapService := services.NewMapSessionService(dbAdapter, publisher, services.MapSessionOptions{
		CreatorOnlyApproval: cfg.Map.CreatorOnlyApproval,
	})
	locationService := services.NewLocationService(dbAdapter)
	messageService := services.NewMessageService(dbAdapter)
	placesService := places.NewService(cfg.Places, redisAdapter)

	clientIPs, err := middleware.NewClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parsing trusted proxies: %w", err)
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		health:    handlers.NewHealthHandler(db, redisDB),
		auth:      handlers.NewAuthHandler(userService, authService, cfg.Server.Secure),
		friends:   handlers.NewFriendHandler(friendService),
		maps:      handlers.NewMapSessionHandler(mapService, cfg.Map.PollInterval),
		locations: handlers.NewLocationHandler(locationService),
		messages:  handlers.NewMessageHandler(messageService),
		places:    handlers.NewPlacesHandler(placesService),
		live:      handlers.NewLiveHandler(mapService, live.NewRedisSubscriber(redisDB.Client), live.NewUpgrader(cfg.CORS.AllowedOrigins)),
		sessions:  authService,
		limiter:   middleware.NewAuthRateLimiter(redisDB.Client, clientIPs),
		clientIPs: clientIPs,
	}
	handler := a.routes()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Websocket writes set their own deadlines after hijack.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{"addr": addr})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

func runMigrations(cfg config.DatabaseConfig, logger *logging.Logger) error {
	migrator, err := database.OpenMigrator(cfg.DSN(), cfg.MigrationsDir, migrations.FS)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	fields := map[string]interface{}{"embedded": cfg.MigrationsDir == ""}
	if version, dirty, err := migrator.Version(); err == nil {
		fields["version"] = version
		fields["dirty"] = dirty
	}
	logger.Info("Migrations completed", fields)
	return nil
}

func newLogger(cfg config.LogConfig) *logging.Logger {
	level := logging.ParseLevel(cfg.Level)
	if cfg.Format == "console" {
		return logging.NewConsole(os.Stderr, level)
	}
	return logging.New().SetLevel(level)
}
