package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/capitalize-ai/vcon-datasets/internal/handler"
)

func serveCommand(c *cli.Context) error {
	cfg := appConfig(c)
	log := appLogger(c)

	if port := c.String("port"); port != "" {
		cfg.ServerPort = port
	}
	if c.Bool("watch") {
		cfg.WatchEnabled = true
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting API server")

	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.close()

	waitWatch := func() {}
	if cfg.WatchEnabled {
		waitWatch, err = rt.startWatch(ctx, cfg.UploadDir)
		if err != nil {
			return err
		}
	}

	router := handler.NewRouter(handler.RouterConfig{
		Pipeline:          rt.pipeline,
		Datasets:          rt.store,
		Outcomes:          rt.tracker,
		NATS:              rt.nats,
		Logger:            log,
		AllowedOrigins:    cfg.CORSOrigins,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		AuthEnabled:       cfg.AuthEnabled,
		JWTSecret:         cfg.JWTSecret,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			stop()
			waitWatch()
			return err
		}
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	waitWatch()

	log.Info("server stopped")
	return nil
}
