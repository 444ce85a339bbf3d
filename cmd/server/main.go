package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Skufu/medify/internal/config"
	"github.com/Skufu/medify/internal/events"
	"github.com/Skufu/medify/internal/genai"
	"github.com/Skufu/medify/internal/logging"
	"github.com/Skufu/medify/internal/metrics"
	"github.com/Skufu/medify/internal/server"
	"github.com/Skufu/medify/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", "json", os.Stderr)
		bootLog.Fatal().Err(err).Msg("config error")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer store.Close()

	publisher := openPublisher(ctx, cfg, logger)
	defer publisher.Close()

	staticRoot := server.DetectStaticRoot(cfg.StaticDir)
	router := server.NewRouter(server.Options{
		Store:          store,
		DBEnabled:      cfg.EnableDB,
		Events:         publisher,
		AI:             newAssistant(cfg, logger),
		Metrics:        metrics.New(),
		Logger:         logger,
		StaticRoot:     staticRoot,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      rate.Limit(cfg.RateLimitRPS),
		RateBurst:      cfg.RateLimitBurst,
		AITimeout:      cfg.AITimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.AITimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	logger.Info().Str("port", cfg.Port).Str("static_root", staticRoot).Msg("server listening")
	waitForShutdown(srv, logger)
}

// openStore returns the Postgres store when ENABLE_DB is set and an
// in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.PrescriptionStore, error) {
	if !cfg.EnableDB {
		logger.Warn().Msg("ENABLE_DB is off, prescriptions are kept in memory")
		return storage.NewMemory(), nil
	}

	db, err := storage.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// openPublisher never fails startup: without a reachable Redis events are
// dropped.
func openPublisher(ctx context.Context, cfg *config.Config, logger zerolog.Logger) events.Publisher {
	if cfg.RedisURL == "" {
		return events.Nop{}
	}

	pub, err := events.NewRedis(ctx, cfg.RedisURL, cfg.EventsChannel)
	if err != nil {
		logger.Error().Err(err).Msg("event publishing disabled")
		return events.Nop{}
	}
	return pub
}

func newAssistant(cfg *config.Config, logger zerolog.Logger) *genai.Service {
	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY not set, AI features run in demo mode")
		return genai.NewService(nil, logger)
	}

	model, err := genai.NewGemini(genai.GeminiConfig{
		APIKey:   cfg.GeminiAPIKey,
		Endpoint: cfg.GeminiEndpoint,
		Model:    cfg.GeminiModel,
		Timeout:  cfg.AITimeout,
		Logger:   &logger,
	})
	if err != nil {
		logger.Error().Err(err).Msg("gemini client disabled")
		return genai.NewService(nil, logger)
	}
	return genai.NewService(model, logger)
}

func waitForShutdown(srv *http.Server, logger zerolog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
