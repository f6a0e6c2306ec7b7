package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pulsar-relay/relay/internal/api"
	"github.com/pulsar-relay/relay/internal/api/handlers"
	"github.com/pulsar-relay/relay/internal/api/middleware"
	"github.com/pulsar-relay/relay/internal/authz"
	"github.com/pulsar-relay/relay/internal/config"
	"github.com/pulsar-relay/relay/internal/coordinator"
	"github.com/pulsar-relay/relay/internal/domain"
	"github.com/pulsar-relay/relay/internal/hub"
	"github.com/pulsar-relay/relay/internal/logstore"
	"github.com/pulsar-relay/relay/internal/publisher"
	"github.com/pulsar-relay/relay/internal/store"
	"github.com/pulsar-relay/relay/internal/topicstore"
	"github.com/pulsar-relay/relay/internal/userstore"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file if present (development convenience).
	_ = godotenv.Load()             // cmd/relay/.env
	_ = godotenv.Load("../.env")    // running from cmd/ -> project root .env
	_ = godotenv.Load("../../.env") // running from cmd/relay/ -> project root .env

	cfg, err := config.Load(os.Getenv("PULSAR_CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)
	slog.Info("starting pulsar-relay", "port", cfg.APIPort, "storage_backend", cfg.StorageBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	users, topics, log, coord, storePing, err := buildStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	localHub := hub.NewLocalHub()
	pollHub := hub.NewPollHub(256)

	if coord != nil {
		coord.Register(localHub.Broadcast)
		coord.Register(pollHub.Broadcast)
		if err := coord.Start(ctx); err != nil {
			slog.Error("failed to start coordinator", "error", err)
			os.Exit(1)
		}
		defer coord.Stop()
	}

	tokens := authz.NewTokenIssuer(cfg.JWTSecretKey, cfg.JWTExpiration())
	cache := authz.NewUserCache(10_000, 5*time.Minute)
	az := authz.NewService(users, topics, tokens, cache)

	if err := bootstrapAdmin(ctx, az, cfg); err != nil {
		slog.Error("failed to bootstrap admin user", "error", err)
		os.Exit(1)
	}

	pub := publisher.New(az, log, localHub, pollHub, coord)

	authMW := middleware.NewAuthMiddleware(az)

	router := api.NewRouter(api.RouterConfig{
		AllowedOrigins:  []string{"*"},
		AuthMW:          authMW,
		AuthHandler:     handlers.NewAuthHandler(az, users),
		TopicsHandler:   handlers.NewTopicsHandler(topics, users, log),
		MessagesHandler: handlers.NewMessagesHandler(pub),
		PollHandler:     handlers.NewPollHandler(pollHub, log),
		StreamHandler:   handlers.NewStreamHandler(localHub, []string{"*"}, slog.Default()),
		ReadyHandler:    handlers.NewReadyHandler(storePing),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("pulsar-relay stopped")
}

// buildStores wires the UserStore, TopicStore, Log, and Coordinator
// according to cfg.StorageBackend. The memory backend returns a nil
// Coordinator and nil ping func, since an in-process relay has nothing to
// probe and no fleet to fan out to.
func buildStores(ctx context.Context, cfg *config.Config) (userstore.Store, topicstore.Store, logstore.Log, *coordinator.Coordinator, handlers.PingFunc, error) {
	if cfg.StorageBackend == "memory" {
		return userstore.NewMemoryStore(), topicstore.NewMemoryStore(), logstore.NewMemoryLog(cfg.MaxMessagesPerTopic), nil, nil, nil
	}

	opts := store.RedisOptions{
		Host:     cfg.StoreHost,
		Port:     cfg.StorePort,
		Password: cfg.StorePassword,
		TLS:      cfg.StoreTLS,
	}

	client, err := store.NewRedisClient(ctx, opts)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	newSubClient := func(ctx context.Context) (*redis.Client, error) {
		return store.NewRedisClient(ctx, opts)
	}

	coord := coordinator.New(client, newSubClient, slog.Default())
	ping := handlers.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })

	return userstore.NewRedisStore(client),
		topicstore.NewRedisStore(client),
		logstore.NewRedisLog(client, cfg.MaxMessagesPerTopic),
		coord,
		ping,
		nil
}

// bootstrapAdmin creates the configured admin account if it does not
// already exist. A no-op when BootstrapAdminUsername is unset.
func bootstrapAdmin(ctx context.Context, az *authz.Service, cfg *config.Config) error {
	if cfg.BootstrapAdminUsername == "" {
		return nil
	}

	if _, err := az.Users.GetByUsername(ctx, cfg.BootstrapAdminUsername); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hashed, err := authz.HashPassword(cfg.BootstrapAdminPassword)
	if err != nil {
		return err
	}

	admin := &domain.User{
		UserID:         "usr_" + uuid.NewString(),
		Username:       cfg.BootstrapAdminUsername,
		Email:          cfg.BootstrapAdminEmail,
		HashedPassword: hashed,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
		Permissions:    []domain.Permission{domain.PermAdmin, domain.PermRead, domain.PermWrite},
	}

	if _, err := az.Users.CreateUser(ctx, admin); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return err
	}
	slog.Info("bootstrap admin ready", "username", cfg.BootstrapAdminUsername)
	return nil
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
}
