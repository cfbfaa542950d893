package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/metrics"
	chiTransport "github.com/kailas-cloud/cardex/internal/transport/chi"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the retrieval API",
		Long: `Starts the HTTP API (image search, text search, health, metrics).
When an intake bucket is configured, new batch files are enriched in the background.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, !noWatch)
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not poll the intake bucket")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, watch bool) error {
	a, err := bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()

	logger := a.logger
	server := chiTransport.NewServer(a.searchService(), a.healthService(), logger).
		WithMaxUploadBytes(int64(a.cfg.HTTP.MaxUploadMB) << 20)

	r := chiTransport.NewRouter(server, a.cfg.Auth.APIKeys, metrics.Middleware())

	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	watchDone := make(chan struct{})
	if watch && a.cfg.Intake.Enabled() {
		svc, err := a.bucketIntake()
		if err != nil {
			return err
		}
		go func() {
			defer close(watchDone)
			if err := svc.Watch(watchCtx, a.cfg.Intake.PollInterval()); err != nil {
				logger.Error("Batch watcher stopped", zap.Error(err))
			}
		}()
	} else {
		close(watchDone)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	stopWatch()
	<-watchDone

	logger.Info("Server stopped gracefully")
	return nil
}
