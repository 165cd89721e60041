package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/warp/giftcert-engine/api"
	"github.com/warp/giftcert-engine/giftcert"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the expiry sweeper",
		RunE:  serveRun,
	}
}

func serveRun(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close failed", "error", err)
		}
	}()

	handler := api.NewHandler(a.service, logger)
	handler.Health = a.health

	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		gatherer = a.registry
	}
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Gatherer:       gatherer,
		MetricsPath:    cfg.Metrics.Path,
	})

	var sweeper *api.ExpirySweeper
	if cfg.Sweeper.Enabled {
		sweeper = newSweeper(a)
		sweeper.Start()
		logger.Info("expiry sweeper started", "interval", sweeper.Interval)
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	case err, ok := <-serverErr:
		if ok {
			if sweeper != nil {
				sweeper.Stop()
			}
			return fmt.Errorf("server failed: %w", err)
		}
	}

	if sweeper != nil {
		sweeper.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func newSweeper(a *app) *api.ExpirySweeper {
	s := api.NewExpirySweeper(a.service, a.logger)
	if a.cfg.Sweeper.Interval > 0 {
		s.Interval = a.cfg.Sweeper.Interval
	}
	for _, org := range a.cfg.Sweeper.Organizations {
		s.Organizations = append(s.Organizations, giftcert.OrganizationID(org))
	}
	return s
}
