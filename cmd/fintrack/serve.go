package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"fintrack/internal/cli"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/services"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().String("port", "8080", "HTTP listen port")
	_ = v.BindPFlag(config.KeyPort, cmd.Flags().Lookup("port"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := cli.ShutdownContext(cmd.Context(), logger)
	defer cancel()

	res, err := openBackend(ctx, true)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	defer cleanup(res)

	collector := metrics.New()
	ledger := services.NewLedgerService(res.Store, res.Publisher, collector)
	summary := services.NewSummaryService(res.Store, collector)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               cfg.Addr(),
		ReadTimeout:        cfg.ReadTimeout,
		WriteTimeout:       cfg.WriteTimeout,
		CORSAllowedOrigin:  cfg.CORSAllowedOrigin,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
		Metrics:            collector,
	}, ledger, summary, res.Store)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting fintrack server",
			"addr", cfg.Addr(),
			"backend", cfg.DataBackend,
			"events", cfg.EventsEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
