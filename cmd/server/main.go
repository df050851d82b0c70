package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/morehavoc/visiggy/ai"
	"github.com/morehavoc/visiggy/config"
	"github.com/morehavoc/visiggy/game"
	"github.com/morehavoc/visiggy/logger"
	"github.com/morehavoc/visiggy/migrations"
	"github.com/morehavoc/visiggy/storage"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Debug)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistence is optional: without a database the game simply loses
	// rooms on restart, like the original file-less setup.
	var store game.SnapshotStore
	if cfg.PostgresURL != "" {
		if err := migrations.Migrate(cfg.PostgresURL); err != nil {
			log.Fatal().Err(err).Msg("migrations failed")
		}
		pgStore, err := storage.NewPostgresStore(ctx, cfg.PostgresURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pgStore.Close()
		store = pgStore
	} else {
		log.Warn().Msg("POSTGRES_URL not set, room persistence disabled")
	}

	aiClient := ai.NewClient(cfg.OpenAIKey, cfg.OpenAIURL, cfg.OpenAIModel, cfg.ImageEndpoint, cfg.ImageAuth, log)

	roomConfigs := game.DefaultConfigs()
	roomConfigs.RoundDuration = cfg.RoundDuration
	roomConfigs.DefaultRounds = cfg.DefaultRounds
	roomConfigs.AutoAdvance = cfg.EagerRounds

	registry := game.NewRegistry(roomConfigs, aiClient, aiClient, store, log)
	gateway := game.NewGateway(registry, log)
	registry.SetNotifier(gateway)

	if err := registry.RestoreAll(ctx); err != nil {
		log.Error().Err(err).Msg("failed to restore rooms, starting empty")
	}
	go registry.AutoSave(ctx, cfg.SaveInterval)

	r := gin.New()
	r.Use(gin.Recovery())

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowCredentials: true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{
				"Content-Type",
				"Origin",
				"Upgrade",
				"Connection",
				"Sec-WebSocket-Key",
				"Sec-WebSocket-Version",
				"Sec-WebSocket-Extensions",
				"Sec-WebSocket-Protocol",
			},
		}))
	}

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handler := game.NewHandler(registry, gateway, cfg.AllowedOrigins, log)
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	registry.SaveAll(shutdownCtx)
	registry.Close()
}
