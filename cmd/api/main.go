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

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/rahul-singh01/warm-transfer/internal/config"
	"github.com/rahul-singh01/warm-transfer/internal/history"
	"github.com/rahul-singh01/warm-transfer/internal/hold"
	"github.com/rahul-singh01/warm-transfer/internal/httpapi"
	"github.com/rahul-singh01/warm-transfer/internal/rooms"
	"github.com/rahul-singh01/warm-transfer/internal/summary"
	"github.com/rahul-singh01/warm-transfer/internal/token"
	"github.com/rahul-singh01/warm-transfer/internal/transcript"
	"github.com/rahul-singh01/warm-transfer/internal/transfer"
	"github.com/rahul-singh01/warm-transfer/internal/transport"
	"github.com/rahul-singh01/warm-transfer/pkg/logger"
	"github.com/rahul-singh01/warm-transfer/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Missing .env is fine; real deployments inject env directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	issuer, err := token.NewIssuer(token.Config{
		Secret:     cfg.Token.Secret,
		ServerURL:  cfg.Token.ServerURL,
		DefaultTTL: cfg.Token.TTL,
	})
	if err != nil {
		log.Error("token issuer init failed", "err", err)
		os.Exit(1)
	}

	var provider transport.Provider
	if cfg.Transport.URL != "" {
		provider, err = transport.NewHTTPProvider(transport.HTTPProviderConfig{
			BaseURL:   cfg.Transport.URL,
			APIKey:    cfg.Transport.APIKey,
			APISecret: cfg.Transport.APISecret,
			Timeout:   cfg.Transport.Timeout,
		})
		if err != nil {
			log.Error("transport init failed", "err", err)
			os.Exit(1)
		}
	} else {
		log.Warn("TRANSPORT_URL not set, using in-memory fake provider")
		provider = transport.NewFakeProvider()
	}

	registry := rooms.NewRegistry(rooms.NewMemoryStore())

	var transcripts transcript.Repository
	if cfg.HasRedis() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		transcripts = transcript.NewRedisRepo(rdb, cfg.Redis.TranscriptTTL)
	} else {
		transcripts = transcript.NewMemoryRepo()
	}

	var historyRepo history.Repository = history.NewMemoryRepo()
	if cfg.HasPostgres() {
		db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		historyRepo = history.NewPostgresRepo(db)
	}
	archive := history.NewService(historyRepo, log)

	retry := transport.RetryPolicy{
		Attempts: cfg.Transport.RetryAttempts,
		Backoff:  cfg.Transport.RetryBackoff,
	}
	holdCtl := hold.NewController(registry, provider, hold.Config{
		Retry:    retry,
		Timeout:  cfg.Transport.Timeout,
		MediaURL: cfg.Transport.HoldMediaURL,
	}, log)

	summarizer := summary.NewGenerator(
		summary.NewClient(cfg.Summarizer.APIKey, cfg.Summarizer.BaseURL),
		summary.Config{Model: cfg.Summarizer.Model, Timeout: cfg.Summarizer.Timeout},
		log,
	)

	machine := transfer.NewMachine(registry, issuer, provider, holdCtl, summarizer, transcripts, archive, transfer.Config{
		Retry:            retry,
		TransportTimeout: cfg.Transport.Timeout,
		SummaryTimeout:   2 * cfg.Summarizer.Timeout,
		TokenTTL:         cfg.Token.TTL,
	}, log)

	ingestor := transport.NewIngestor(0)
	go machine.Run(rootCtx, ingestor.Events())
	go roomReaper(rootCtx, registry, cfg.Rooms, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	handlers := httpapi.Handlers{
		Registry:    registry,
		Issuer:      issuer,
		Hold:        holdCtl,
		Machine:     machine,
		Summarizer:  summarizer,
		Transcripts: transcripts,
		History:     archive,
		Provider:    provider,
	}
	webhooks := transport.WebhookHandler{Ingestor: ingestor}
	registerRoutes(r, handlers, webhooks)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "provider", provider.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

// roomReaper periodically deactivates rooms idle past the configured age.
func roomReaper(ctx context.Context, registry *rooms.Registry, cfg config.RoomsConfig, log *slog.Logger) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := registry.CleanupInactive(ctx, cfg.MaxAge)
			if err != nil {
				log.Warn("room cleanup failed", "err", err)
				continue
			}
			if n > 0 {
				log.Info("rooms cleaned", "count", n)
			}
		}
	}
}
