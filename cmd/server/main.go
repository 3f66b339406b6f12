package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wanderplan/trip-engine/internal/config"
	"github.com/wanderplan/trip-engine/internal/database"
	"github.com/wanderplan/trip-engine/internal/gateway"
	"github.com/wanderplan/trip-engine/internal/generation"
	"github.com/wanderplan/trip-engine/internal/handler"
	"github.com/wanderplan/trip-engine/internal/jobs"
	"github.com/wanderplan/trip-engine/internal/middleware"
	"github.com/wanderplan/trip-engine/internal/redis"
	"github.com/wanderplan/trip-engine/internal/repository"
	"github.com/wanderplan/trip-engine/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	tripRepo := repository.NewTripRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	intakeRepo := repository.NewIntakeRepository(db.DB)
	messageRepo := repository.NewConversationMessageRepository(db.DB)
	participantRepo := repository.NewParticipantRepository(db.DB)
	scheduledRepo := repository.NewScheduledMessageRepository(db.DB)

	generator := generation.NewClient(
		cfg.GenerationBaseURL, cfg.GenerationAPIKey, cfg.GenerationModel, cfg.GenerationTimeout(),
	)
	sender, err := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.GatewayBaseURL,
		AccountSID: cfg.GatewayAccountSID,
		AuthToken:  cfg.GatewayAuthToken,
		FromNumber: cfg.GatewayFromNumber,
		Timeout:    config.GatewaySendTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure messaging gateway")
	}

	resolver := service.NewSessionResolver(db, sessionRepo, intakeRepo, cfg.DefaultCountryCode)
	fanOutService := service.NewFanOutService(
		tripRepo, participantRepo, sessionRepo, intakeRepo, scheduledRepo,
		cfg.DefaultCountryCode, cfg.ShareLink,
	)
	intakeService := service.NewIntakeService(intakeRepo, sessionRepo, fanOutService)
	conversationService := service.NewConversationService(
		sessionRepo, intakeRepo, messageRepo, tripRepo, generator, cfg.GenerationTimeout(),
	)
	tripService := service.NewTripService(
		tripRepo, participantRepo, scheduledRepo, cfg.DefaultTimezone, cfg.DefaultCountryCode,
	)
	schedulerService := service.NewSchedulerService(scheduledRepo, sender, cfg.MaxDeliveryAttempts)

	opsAuthMiddleware := middleware.NewOpsAuthMiddleware(cfg.OpsPasswordHash)
	webRateLimitMiddleware := middleware.NewWebRateLimitMiddleware(redisClient.Client, cfg.WebRateLimitPerMin)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	webHandler := handler.NewWebHandler(tripService, resolver, intakeService, conversationService)
	channelHandler := handler.NewChannelHandler(
		resolver, intakeService, conversationService, tripService, cfg.ShareLink,
	)
	opsHandler := handler.NewOpsHandler(tripService, resolver, schedulerService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/t/{shareToken}", func(r chi.Router) {
		r.Use(webRateLimitMiddleware.Handler)
		r.Mount("/", webHandler.Routes())
	})

	r.Route("/channel", func(r chi.Router) {
		r.Mount("/", channelHandler.Routes())
	})

	r.Route("/ops", func(r chi.Router) {
		r.Use(opsAuthMiddleware.Handler)
		r.Mount("/", opsHandler.Routes())
	})

	schedulerJob := jobs.NewSchedulerJob(schedulerService, cfg.SchedulerInterval(), cfg.SchedulerCron)
	schedulerJob.Start()
	defer schedulerJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
