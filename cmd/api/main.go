package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"frontdoor/api/internal/app"
	"frontdoor/api/internal/config"
	"frontdoor/api/internal/intake"
	"frontdoor/api/internal/kv"
	"frontdoor/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// Redis always backs the session store and the cross-instance change
	// channel; FRONTDOOR_STORAGE selects the durable backend only.
	redisStore, err := kv.NewRedisStore(cfg.RedisURL, cfg.KeyPrefix)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisStore.Close()
	sessionStore := redisStore.Session(cfg.SessionTTL)

	var durable kv.Store = redisStore
	ping := redisStore.Ping
	switch cfg.StorageBackend {
	case "redis":
	case "postgres":
		pgStore, err := kv.OpenPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		defer pgStore.Close()
		durable = pgStore
		ping = pgStore.Ping
		log.Info().Msg("using postgres for durable storage")
	default:
		log.Fatal().Str("backend", cfg.StorageBackend).Msg("unknown storage backend")
	}

	limits := store.Limits{
		MaxRequests:           cfg.MaxRequests,
		MaxCommentsPerRequest: cfg.MaxCommentsPerRequest,
		MaxCommentsTotal:      cfg.MaxCommentsTotal,
		CommentEvictBatch:     cfg.CommentEvictBatch,
		RequestIDBase:         cfg.RequestIDBase,
		IDLockTimeout:         cfg.IDLockTimeout,
		IDLockRetries:         cfg.IDLockRetries,
	}
	state := store.New(durable, sessionStore, limits, log)

	if err := state.Initialize(ctx); err != nil {
		log.Warn().Err(err).Msg("seed failed (will retry on next restart)")
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if cfg.StorageBackend == "redis" {
		go func() {
			if err := state.WatchChanges(watchCtx, redisStore); err != nil {
				log.Warn().Err(err).Msg("change watch stopped")
			}
		}()
	}

	autosaver := intake.NewAutosaver(durable, cfg.AutosaveDelay, cfg.DraftRetention, log)
	intakeSvc := intake.NewService(state, sessionStore, autosaver, log)

	httpServer := app.NewHTTPServer(state, intakeSvc, ping, cfg.CORSOrigin, log)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("front door API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown error")
	}

	// Persist any draft still inside the debounce window.
	autosaver.Flush(context.Background())
}
