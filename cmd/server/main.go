package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Arena/internal/adapters/http"
	"github.com/dkeye/Arena/internal/auth"
	"github.com/dkeye/Arena/internal/config"
	"github.com/dkeye/Arena/internal/media"
	"github.com/dkeye/Arena/internal/media/pion"
	"github.com/dkeye/Arena/internal/presence"
	"github.com/dkeye/Arena/internal/sfu"
	"github.com/dkeye/Arena/internal/spaces"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	workers, err := pion.NewWorkers(pion.Config{
		Workers:     cfg.SFU.Workers,
		RTCMinPort:  cfg.SFU.RTCMinPort,
		RTCMaxPort:  cfg.SFU.RTCMaxPort,
		AnnouncedIP: cfg.SFU.AnnouncedIP,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start media workers")
	}
	pool := media.NewWorkerPool(workers)
	defer func() {
		if err := pool.Close(); err != nil {
			log.Error().Err(err).Msg("worker pool close")
		}
	}()

	deps := router.Deps{
		Spaces:   spaces.NewStore(),
		Dir:      presence.NewDirectory(presence.KickSlowPolicy{}),
		Rooms:    sfu.NewManager(pool, media.TransportOptions{MaxIncomingBitrate: cfg.SFU.MaxIncomingBitrate}),
		Verifier: auth.NewJWTVerifier(cfg.Auth.JWTSecret),
	}

	r := router.SetupRouter(ctx, cfg, deps)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Int("workers", cfg.SFU.Workers).Msg("Arena server started")
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
