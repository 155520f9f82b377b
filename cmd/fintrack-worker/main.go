package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/storage"
	"fintrack/internal/worker"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	cli.LoadEnvFile()

	flags := pflag.NewFlagSet("fintrack-worker", pflag.ExitOnError)
	backfillFrom := flags.String("backfill-from", "", "export transactions dated on or after this day (YYYY-MM-DD) before consuming events")
	metricsAddr := flags.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9091)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	_ = flags.Parse(os.Args[1:])

	v := config.New()
	_ = v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))

	cfg, err := cli.LoadAndValidateConfig(v)
	if err != nil {
		cli.Exit(nil, "Configuration validation failed", err)
	}
	if err := cfg.ValidateSheets(); err != nil {
		cli.Exit(nil, "Worker configuration validation failed", err)
	}

	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting fintrack-worker")

	ctx, cancel := cli.ShutdownContext(context.Background(), logger)
	defer cancel()

	if err := run(ctx, cfg, logger, *backfillFrom, *metricsAddr); err != nil {
		cli.Exit(logger, "Worker stopped with error", err)
	}
	logger.Info("Worker shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger, backfillFrom, metricsAddr string) error {
	store, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("open SQLite repository %s: %w", cfg.SQLiteDBPath, err)
	}
	defer store.Close()

	exporter, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize Google Sheets client: %w", err)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer client.Close()

	collector := metrics.New()
	w := worker.NewExportWorker(store, exporter, logger, collector)
	if err := w.Start(ctx); err != nil {
		return err
	}

	if backfillFrom != "" {
		from, err := core.ParseDate(backfillFrom)
		if err != nil {
			return fmt.Errorf("invalid --backfill-from %q: %w", backfillFrom, err)
		}
		n, err := w.Backfill(ctx, storage.TransactionFilter{From: &from})
		if err != nil {
			return fmt.Errorf("backfill after %d rows: %w", n, err)
		}
		logger.Info("Backfill complete", "rows", n, "from", from.String())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.Consume(gctx, w.HandleEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           log.Middleware(logger)(log.RequestIDMiddleware(requestID)(collector.Handler())),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Serving metrics", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return "scrape"
}
