package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	zlog "github.com/rs/zerolog/log"

	"music-concierge/internal/adapters/mail"
	"music-concierge/internal/adapters/repo"
	"music-concierge/internal/adapters/search"
	"music-concierge/internal/adapters/syb"
	"music-concierge/internal/domain"
	"music-concierge/internal/httpapi"
	"music-concierge/internal/infra/anthropic"
	"music-concierge/internal/infra/config"
	"music-concierge/internal/infra/db"
	"music-concierge/internal/infra/httpserver"
	applog "music-concierge/internal/infra/log"
	"music-concierge/internal/infra/metrics"
	"music-concierge/internal/usecase/accounts"
	"music-concierge/internal/usecase/approval"
	"music-concierge/internal/usecase/catalog"
	"music-concierge/internal/usecase/consult"
	"music-concierge/internal/usecase/executor"
	"music-concierge/internal/usecase/matcher"
	"music-concierge/internal/usecase/submission"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)
	zlog.Logger = logger

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("server: catalog load")
	}
	logger.Info().Int("playlists", len(cat.Playlists)).Msg("server: catalog loaded")

	// An empty DATABASE_URL degrades the service to email-only.
	var store domain.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("server: database connect")
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("server: database migrate")
		}
		store = repo.NewPostgres(pool)
	} else {
		logger.Warn().Msg("server: DATABASE_URL not set, persistence disabled")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}

	llm := anthropic.NewClient(cfg.Anthropic.APIKey, "", 0)
	searcher := search.NewClient(cfg.Search.APIKey, "")
	platform := syb.NewClient(cfg.Syb.APIToken, cfg.Syb.APIURL)
	var mailer domain.Mailer
	if smtp := mail.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password); smtp.Configured() {
		mailer = smtp
	} else {
		logger.Warn().Msg("server: SMTP credentials not set, email disabled")
	}
	accountCache := accounts.NewCache(platform)
	match := matcher.New(cat)

	var venueHistory consult.VenueHistory
	if store != nil {
		venueHistory = store
	}
	engine := consult.NewEngine(llm, cfg.Anthropic.Model, searcher, accountCache, platform,
		venueHistory, match, logger.With().Str("component", "consult").Logger())
	submitSvc := submission.NewService(store, platform, mailer, cat, baseURL, cfg.NotifyEmail,
		logger.With().Str("component", "submission").Logger())

	var approvalSvc *approval.Service
	if store != nil {
		approvalSvc = approval.NewService(store, platform, accountCache,
			logger.With().Str("component", "approval").Logger())
	}

	var counters httpapi.CounterStore
	if cfg.RedisAddr != "" {
		counters = httpapi.NewRedisCounters(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		counters = httpapi.NewMemoryCounters()
	}
	limiter := httpapi.NewRateLimiter(counters)

	srv := httpserver.New(logger.With().Str("component", "http").Logger())
	handlers := httpapi.New(engine, submitSvc, approvalSvc, store, limiter,
		logger.With().Str("component", "http").Logger())
	handlers.Register(srv.Router)

	// The executor is a singleton loop beside the HTTP server.
	exec := executor.New(store, platform, mailer, baseURL,
		logger.With().Str("component", "executor").Logger())
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 1m", exec.Tick); err != nil {
		logger.Fatal().Err(err).Msg("server: schedule executor tick")
	}
	if _, err := scheduler.AddFunc("@every 5m", exec.KeepaliveCheck); err != nil {
		logger.Fatal().Err(err).Msg("server: schedule keepalive check")
	}
	scheduler.Start()
	defer scheduler.Stop()

	go func() {
		if err := srv.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server: http stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
