package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmaneta/eki-lpr-update/internal/adapter/csvstore"
	httpadapter "github.com/mmaneta/eki-lpr-update/internal/adapter/http"
	"github.com/mmaneta/eki-lpr-update/internal/config"
	"github.com/mmaneta/eki-lpr-update/internal/observability"
	"github.com/mmaneta/eki-lpr-update/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	precipTag, _, err := cfg.DatasetTags()
	if err != nil {
		logger.Error("dataset configuration", "error", err)
		os.Exit(1)
	}

	builder, err := csvstore.LoadSeriesBuilder(cfg.PrecipFile, cfg.ETFile, cfg.FieldKeyFile, precipTag.KeyFilter())
	if err != nil {
		logger.Error("failed to load input tables", "error", err)
		os.Exit(1)
	}

	agreements, err := config.LoadAgreements(cfg.AgreementsFile)
	if err != nil {
		logger.Error("failed to load agreements", "error", err)
		os.Exit(1)
	}

	logger.Info("inputs loaded",
		"program_year", precipTag.ProgramYear,
		"status", precipTag.Status,
		"units", len(builder.Units()),
		"agreements", len(agreements),
	)

	p := pipeline.New(builder, cfg.Soil, cfg.Workers, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, agreements, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
