package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"czarhouse/internal/app"
	"czarhouse/internal/cards"
	"czarhouse/internal/config"
	"czarhouse/internal/domain"
	"czarhouse/internal/logging"
	"czarhouse/internal/storage/memory"
	"czarhouse/internal/storage/postgres"
	httpTransport "czarhouse/internal/transport/http"
	"czarhouse/internal/transport/ws"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info().
		Str("env", cfg.Server.Env).
		Str("port", cfg.Server.Port).
		Str("store", cfg.Store.Driver).
		Msg("starting czarhouse server")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server stopped")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sets, err := loadCards(cfg)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg, sets, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := ws.NewRegistry(logger.With().Str("component", "ws").Logger())
	hub, err := app.NewHub(ctx, app.HubConfig{
		Settings: domain.RoomSettings{
			HandSize:   cfg.Game.HandSize,
			MaxMembers: cfg.Game.MaxMembers,
		},
		StaleRoomTimeout: cfg.Game.StaleRoomTimeout,
		StoreTimeout:     cfg.Store.Timeout,
	}, store, registry, logger.With().Str("component", "hub").Logger())
	if err != nil {
		return err
	}

	server := httpTransport.NewServer(cfg, hub, registry, logger.With().Str("component", "http").Logger())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)

		// Close rooms before sockets so disconnects do not empty them
		hub.Close()
		registry.CloseAll()
		return err
	})

	return g.Wait()
}

func loadCards(cfg *config.Config) (*domain.CardSets, error) {
	if cfg.Game.CardsCSV != "" {
		return cards.LoadFile(cfg.Game.CardsCSV)
	}
	return cards.Default()
}

func openStore(ctx context.Context, cfg *config.Config, sets *domain.CardSets, logger zerolog.Logger) (app.Store, error) {
	if cfg.Store.Driver != "postgres" {
		return memory.New(sets), nil
	}

	if err := postgres.Migrate(ctx, cfg.Store.PostgresURL, logger); err != nil {
		return nil, err
	}
	store, err := postgres.New(ctx, cfg.Store.PostgresURL, logger.With().Str("component", "postgres").Logger())
	if err != nil {
		return nil, err
	}
	if err := store.SeedCards(ctx, sets); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
