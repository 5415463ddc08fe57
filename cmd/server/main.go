package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sarim-aliii/duet/internal/adapters/accounts"
	"github.com/sarim-aliii/duet/internal/adapters/database"
	"github.com/sarim-aliii/duet/internal/adapters/history"
	router "github.com/sarim-aliii/duet/internal/adapters/http"
	"github.com/sarim-aliii/duet/internal/adapters/notify"
	"github.com/sarim-aliii/duet/internal/adapters/store"
	"github.com/sarim-aliii/duet/internal/app"
	"github.com/sarim-aliii/duet/internal/config"
	"github.com/sarim-aliii/duet/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Secret == "" {
		log.Fatal().Msg("JWT secret is not configured")
	}

	// Durable collaborators. Postgres is required (history + accounts);
	// redis and the notifier are optional for single-instance runs.
	if cfg.DBURL == "" {
		log.Fatal().Msg("DB_URL is not configured")
	}
	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	pool, err := database.Connect(connectCtx, cfg.DBURL)
	connectCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	var stateStore core.StateStore
	if cfg.RedisURL != "" {
		rs, err := store.NewRedisStore(cfg.RedisURL, cfg.RoomTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rs.Close()
		stateStore = rs
	} else {
		log.Warn().Msg("no redis configured, using in-memory room store")
		stateStore = store.NewMemoryStore(cfg.RoomTTL)
	}

	var notifier core.Notifier = notify.Noop{}
	if cfg.RedisURL != "" {
		an, err := notify.NewAsynqNotifier(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init notifier")
		}
		defer an.Close()
		notifier = an
	}

	engine := app.NewEngine(app.Config{
		SyncInterval:   cfg.SyncInterval,
		GracePeriod:    cfg.GracePeriod,
		EmptyDebounce:  cfg.EmptyDebounce,
		FreeTrialLimit: cfg.FreeTrialLimit,
		MessageCap:     cfg.MessageCap,
		ChatRateLimit:  cfg.ChatRateLimit,
		ChatRateWindow: cfg.ChatRateWindow,
	}, stateStore, history.NewPgHistory(pool), accounts.NewPgAccounts(pool), notifier)

	go engine.RunSync(ctx)

	r := router.SetupRouter(ctx, cfg, engine)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("duet server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
