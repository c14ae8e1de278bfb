package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/helixdex/godexd/internal/config"
	"github.com/helixdex/godexd/internal/di"
	"github.com/helixdex/godexd/internal/logger"
)

const shutdownGrace = 10 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the exchange daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(confPath)
		if err != nil {
			return err
		}
		switch {
		case debug:
			cfg.Log.Level = "debug"
		case verbose:
			cfg.Log.Level = "info"
		case quiet:
			cfg.Log.Level = "error"
		}
		logger.Initialize(cfg.Log.Level, cfg.Log.Console)
		return runServer(cmd.Context(), cfg)
	},
}

func runServer(parent context.Context, cfg *config.Config) error {
	log := logger.ForComponent("server")

	container, err := di.Build(cfg, Version)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/", container.RPC)
	mux.Handle("/events", container.Stream)

	srv := &http.Server{
		Addr:    cfg.RPC.Listen,
		Handler: mux,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("listen", cfg.RPC.Listen).Msg("rpc server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if container.Snapshots != nil && cfg.Snapshot.IntervalBlocks > 0 {
		interval := time.Duration(cfg.Snapshot.IntervalBlocks*cfg.Chain.BlockSeconds) * time.Second
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := container.SaveState(); err != nil {
						log.Error().Err(err).Msg("periodic snapshot failed")
					}
				}
			}
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if closeErr := container.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	log.Info().Msg("daemon stopped")
	return err
}
