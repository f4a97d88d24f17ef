package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/warp/budget-engine/api"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the daily rollover job",
	Long: `Serve the budget API on the configured port. On SIGINT/SIGTERM the
server stops accepting connections, waits up to 30s for active requests,
stops the scheduler and closes the database.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	svc, store, err := openService()
	if err != nil {
		return err
	}
	defer store.Close()

	handler := api.NewHandler(svc, log.Logger.With().Str("component", "api").Logger())
	if st, err := svc.Snapshot(cmd.Context()); err != nil {
		log.Warn().Err(err).Msg("initial snapshot failed")
	} else {
		handler.Metrics.ObserveState(st)
	}

	if cfg.SchedulerEnabled() {
		sched, err := api.NewRolloverScheduler(svc, cfg.Schedule.RolloverCron, log.Logger)
		if err != nil {
			return err
		}
		sched.Metrics = handler.Metrics
		sched.Start()
		defer sched.Stop()
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler, cfg.Server.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("db", cfg.Database.SQLitePath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}
