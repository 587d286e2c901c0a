package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"tour-video-backend/internal/handlers"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

func runServe(parent context.Context, cmdCtx *commandContext) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Config:     cfg,
		Store:      a.store,
		Intake:     a.intake,
		Status:     a.status,
		Revisions:  a.revisions,
		Reconciler: a.reconciler,
		Payments:   a.payments,
		Admin:      a.admin,
		Driver:     a.driver,
		Reset:      a.reset,
		Runner:     a.runner,
		Logger:     a.logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting",
			zap.String("address", cfg.HTTPAddress),
			zap.String("environment", cfg.Environment),
			zap.String("generation_mode", string(a.driver.Mode())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", zap.Error(err))
	}
	if err := a.runner.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("background work did not finish", zap.Error(err))
	}
	return nil
}
