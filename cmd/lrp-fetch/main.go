// Command lrp-fetch brings the local precipitation and ET datasets of an
// OpenET field asset up to date. A dataset that already covers the requested
// range is left alone.
//
// Usage:
//
//	OPENET_API_KEY=... go run ./cmd/lrp-fetch \
//	  -asset projects/eki-lrp/assets/Year1_enrolled_repurposed \
//	  -start 2024-10-01 -end 2025-09-30 -dir data
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mmaneta/eki-lpr-update/internal/adapter/openet"
	"github.com/mmaneta/eki-lpr-update/internal/config"
	"github.com/mmaneta/eki-lpr-update/internal/domain"
	"github.com/mmaneta/eki-lpr-update/internal/observability"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	asset := flag.String("asset", "", "OpenET field asset id")
	startFlag := flag.String("start", "", "first period to cover (YYYY-MM-DD)")
	endFlag := flag.String("end", "", "last period to cover (YYYY-MM-DD)")
	dir := flag.String("dir", "data", "directory holding the local datasets")
	variables := flag.String("variables", "pr,ET", "comma-separated OpenET variables")
	flag.Parse()

	if *asset == "" || *startFlag == "" || *endFlag == "" {
		flag.Usage()
		return errors.New("missing required flags: -asset, -start, -end")
	}
	start, err := time.Parse(time.DateOnly, *startFlag)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}
	end, err := time.Parse(time.DateOnly, *endFlag)
	if err != nil {
		return fmt.Errorf("parse -end: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.OpenETAPIKey == "" {
		return errors.New("OPENET_API_KEY is required")
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	template := openet.DefaultQueryParams("", *asset, start, end)
	client := openet.NewClient(cfg.OpenETAPIKey, cfg.OpenETBaseURL, cfg.OpenETTimeout, template, logger, metrics)
	store := openet.NewStore(*dir, template.AssetName(), client, logger, metrics)

	g, gctx := errgroup.WithContext(ctx)
	for _, v := range strings.Split(*variables, ",") {
		v := domain.Variable(strings.TrimSpace(v))
		g.Go(func() error {
			path, fetched, err := store.Update(gctx, domain.DatasetQuery{Variable: v, Start: start, End: end})
			if err != nil {
				return fmt.Errorf("update %s: %w", v, err)
			}
			logger.Info("dataset ready", "variable", v, "path", path, "fetched", fetched)
			return nil
		})
	}
	return g.Wait()
}
