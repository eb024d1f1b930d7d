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

	"github.com/dealflow/platform-server-go/internal/config"
	"github.com/dealflow/platform-server-go/internal/database"
	"github.com/dealflow/platform-server-go/internal/handler"
	"github.com/dealflow/platform-server-go/internal/jobs"
	"github.com/dealflow/platform-server-go/internal/middleware"
	"github.com/dealflow/platform-server-go/internal/notify"
	"github.com/dealflow/platform-server-go/internal/oauth"
	"github.com/dealflow/platform-server-go/internal/redis"
	"github.com/dealflow/platform-server-go/internal/repository"
	"github.com/dealflow/platform-server-go/internal/scraper"
	"github.com/dealflow/platform-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("APP_ENV") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
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

	userRepo := repository.NewUserRepository(db.DB)
	integrationRepo := repository.NewIntegrationRepository(db.DB, cfg.EncryptionKey)

	registry := oauth.NewRegistry(cfg)
	log.Info().Strs("providers", registry.Enabled()).Msg("OAuth providers configured")

	var notifier service.Notifier
	if mailer := notify.NewMailer(cfg); mailer != nil {
		notifier = mailer
	}

	integrationService := service.NewIntegrationService(
		registry, integrationRepo, redisClient, notifier, cfg.StateSecret,
	)
	siteScraper := scraper.New(cfg.PythonBin, cfg.ScraperScript, cfg.ScrapeTimeout())

	authMiddleware := middleware.NewAuthMiddleware(userRepo)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(redisClient.Client)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	integrationHandler := handler.NewIntegrationHandler(
		integrationService, cfg.SuccessRedirectURL, cfg.FailureRedirectURL,
	)
	scrapeHandler := handler.NewScrapeHandler(siteScraper)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	// The provider redirect carries no bearer token; the signed state
	// parameter identifies the user.
	r.Get("/api/integrations/{provider}/callback", integrationHandler.Callback)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Mount("/api/integrations", integrationHandler.Routes())
		r.Post("/api/scrape", scrapeHandler.Scrape)
	})

	refreshJob := jobs.NewRefreshJob(integrationRepo, registry, cfg.RefreshJobInterval())
	refreshJob.Start()
	defer refreshJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
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
