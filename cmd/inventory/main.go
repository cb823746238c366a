// Command inventory regenerates every HRRR inventory file: it enumerates the
// (region, product, forecast hour set, cycle type) groupings, fetches the
// remote GRIB2 index for each forecast hour and writes one gzip CSV per
// grouping.
//
// Usage:
//
//	go run ./cmd/inventory -dest data
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/couchcryptid/hrrr-inventory/internal/adapter/gribindex"
	httpadapter "github.com/couchcryptid/hrrr-inventory/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hrrr-inventory/internal/adapter/kafka"
	"github.com/couchcryptid/hrrr-inventory/internal/adapter/reference"
	s3adapter "github.com/couchcryptid/hrrr-inventory/internal/adapter/s3"
	"github.com/couchcryptid/hrrr-inventory/internal/config"
	"github.com/couchcryptid/hrrr-inventory/internal/domain"
	"github.com/couchcryptid/hrrr-inventory/internal/observability"
	"github.com/couchcryptid/hrrr-inventory/internal/pipeline"
	"github.com/couchcryptid/hrrr-inventory/internal/store"
)

func main() {
	dest := flag.String("dest", "", "output directory (overrides DEST_DIR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *dest != "" {
		cfg.DestDir = *dest
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	catalog := domain.DefaultCatalog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var s3Client *awss3.Client
	if needsS3(cfg) {
		s3Client, err = s3adapter.NewClient(ctx, s3adapter.ClientConfig{
			Endpoint: cfg.S3Endpoint,
			Region:   cfg.S3Region,
			Timeout:  cfg.IndexTimeout,
		})
		if err != nil {
			logger.Error("failed to create s3 client", "error", err)
			os.Exit(1)
		}
	}

	index := gribindex.NewClient(indexSources(cfg, s3Client, logger), metrics, logger)
	ref := reference.NewCachedSource(
		reference.NewClient(catalog, cfg.ReferenceTimeout, logger),
		cfg.ReferenceCacheSize, metrics)
	st := store.New(cfg.DestDir, ref)

	opts := pipeline.Options{
		Catalog:       catalog,
		RunHours:      cfg.CycleRunHours,
		Workers:       cfg.Workers,
		FailurePolicy: cfg.FailurePolicy,
	}

	var notifier *kafkaadapter.Writer
	if cfg.KafkaEnabled() {
		notifier = kafkaadapter.NewWriter(cfg, logger)
		opts.Notifier = notifier
		logger.Info("kafka notifications enabled", "topic", cfg.KafkaTopic)
	}
	if cfg.MirrorBucket != "" {
		opts.Mirror = s3adapter.NewMirror(s3Client, cfg.MirrorBucket, "", logger)
		logger.Info("s3 mirror enabled", "bucket", cfg.MirrorBucket)
	}

	fetcher := pipeline.NewTaskFetcher(catalog, index, cfg.ReferenceDate, cfg.IndexSources, metrics, logger)
	gen := pipeline.New(opts, fetcher, ref, st, logger, metrics)

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, gen, &httpadapter.Lookup{Catalog: catalog, Loader: st}, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	report, runErr := gen.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	if notifier != nil {
		if err := notifier.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	if runErr != nil {
		logger.Error("generation failed",
			"error", runErr, "written", len(report.Written), "failed", len(report.Failed))
		stop()
		cancel()
		os.Exit(1)
	}
	logger.Info("generation complete", "written", len(report.Written), "dest", cfg.DestDir)
}

func needsS3(cfg *config.Config) bool {
	if cfg.MirrorBucket != "" {
		return true
	}
	for _, s := range cfg.IndexSources {
		if s == "aws" {
			return true
		}
	}
	return false
}

// indexSources builds the remote index sources named in INDEX_SOURCES.
func indexSources(cfg *config.Config, s3Client *awss3.Client, logger *slog.Logger) []gribindex.Source {
	var sources []gribindex.Source
	for _, name := range cfg.IndexSources {
		switch name {
		case "azure":
			sources = append(sources, gribindex.NewHTTPSource(name, gribindex.AzureBaseURL, cfg.IndexTimeout))
		case "google":
			sources = append(sources, gribindex.NewHTTPSource(name, gribindex.GoogleBaseURL, cfg.IndexTimeout))
		case "aws":
			sources = append(sources, s3adapter.NewSource(s3Client, cfg.S3Bucket, logger))
		}
	}
	return sources
}
