package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/hrrr-inventory/internal/config"
	"github.com/couchcryptid/hrrr-inventory/internal/domain"
	"github.com/couchcryptid/hrrr-inventory/internal/observability"
)

// InventoryWriter persists a merged inventory and returns its path.
type InventoryWriter interface {
	Write(inv domain.Inventory) (string, error)
}

// Notifier announces a written inventory.
type Notifier interface {
	Notify(ctx context.Context, evt domain.InventoryWritten) error
}

// Mirror copies a written file to secondary storage.
type Mirror interface {
	Upload(ctx context.Context, path string) error
}

// Options configures a Generator.
type Options struct {
	Catalog       domain.Catalog
	RunHours      []int
	Workers       int
	FailurePolicy string // config.FailFast or config.BestEffort

	// Optional sinks; nil disables.
	Notifier Notifier
	Mirror   Mirror
}

// Written records one stored inventory.
type Written struct {
	Key  domain.InventoryKey
	Path string
	Rows int
}

// Failed records one grouping that could not be written.
type Failed struct {
	Key     domain.InventoryKey
	RunHour int
	Err     error
}

// Report summarizes a generation run.
type Report struct {
	Written []Written
	Failed  []Failed
	// MissingCycleTypes names catalog cycle types no configured run hour selects.
	MissingCycleTypes []string
}

// Generator rebuilds every inventory file: enumerate, fetch in parallel,
// merge, check against the reference, write.
type Generator struct {
	opts      Options
	fetcher   *TaskFetcher
	reference domain.ReferenceSource
	writer    InventoryWriter
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Generator. reference may be nil to skip the pre-write
// reference check.
func New(opts Options, fetcher *TaskFetcher, reference domain.ReferenceSource, writer InventoryWriter, logger *slog.Logger, metrics *observability.Metrics) *Generator {
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = config.FailFast
	}
	return &Generator{
		opts:      opts,
		fetcher:   fetcher,
		reference: reference,
		writer:    writer,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once the generator has written at least one
// inventory, or an error describing why it is not yet ready.
func (g *Generator) CheckReadiness(_ context.Context) error {
	if !g.ready.Load() {
		return errors.New("generator has not written any inventory yet")
	}
	return nil
}

// Run processes every batch in enumeration order, one at a time. Under
// fail-fast the first failed batch stops the run; under best-effort failures
// are collected and returned joined after all batches were attempted.
// Inventories already written are kept either way.
func (g *Generator) Run(ctx context.Context) (Report, error) {
	var report Report
	report.MissingCycleTypes = g.opts.Catalog.MissingCycleTypes(g.opts.RunHours)
	if len(report.MissingCycleTypes) > 0 {
		g.logger.Warn("run hours do not cover every cycle type",
			"run_hours", g.opts.RunHours, "missing", report.MissingCycleTypes)
	}

	batches := domain.EnumerateBatches(g.opts.Catalog, g.opts.RunHours)
	g.logger.Info("generation started",
		"batches", len(batches), "workers", g.opts.Workers, "failure_policy", g.opts.FailurePolicy)
	g.metrics.GeneratorRunning.Set(1)
	defer g.metrics.GeneratorRunning.Set(0)

	var errs []error
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			g.logger.Info("generation stopping", "reason", err)
			return report, errors.Join(append(errs, err)...)
		}

		w, err := g.runBatch(ctx, b)
		if err != nil {
			g.metrics.Batches.WithLabelValues("failed").Inc()
			g.logger.Error("inventory failed",
				"inventory", b.Key.String(), "run_hour", b.RunHour, "error", err)
			report.Failed = append(report.Failed, Failed{Key: b.Key, RunHour: b.RunHour, Err: err})

			if g.opts.FailurePolicy != config.BestEffort || ctx.Err() != nil {
				return report, err
			}
			errs = append(errs, err)
			continue
		}

		g.metrics.Batches.WithLabelValues("written").Inc()
		report.Written = append(report.Written, w)
	}

	g.logger.Info("generation finished", "written", len(report.Written), "failed", len(report.Failed))
	return report, errors.Join(errs...)
}

// runBatch fetches, merges, checks and writes one batch.
func (g *Generator) runBatch(ctx context.Context, b domain.Batch) (Written, error) {
	start := time.Now()

	parts, err := FetchAll(ctx, b.Tasks, g.opts.Workers, g.fetcher.Fetch)
	if err != nil {
		return Written{}, err
	}

	inv, err := domain.Merge(b.Key, parts)
	if err != nil {
		return Written{}, err
	}

	if g.reference != nil {
		descs, err := g.reference.Descriptions(ctx, b.Key.ReferenceKey())
		if err != nil {
			return Written{}, fmt.Errorf("reference for %s: %w", b.Key, err)
		}
		if _, err := domain.Enrich(inv, descs); err != nil {
			return Written{}, err
		}
	}

	path, err := g.writer.Write(inv)
	if err != nil {
		return Written{}, err
	}

	g.metrics.RowsWritten.Add(float64(inv.Len()))
	g.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	g.ready.Store(true)
	g.logger.Info("inventory written",
		"path", path,
		"region", b.Key.Region,
		"product", b.Key.Product,
		"forecast_hour_set", b.Key.ForecastHourSet,
		"cycle_type", b.Key.CycleType,
		"rows", inv.Len(),
	)

	g.publish(ctx, inv, path)

	return Written{Key: b.Key, Path: path, Rows: inv.Len()}, nil
}

// publish runs the optional sinks. Their failures are logged; the file on
// disk is the record of success.
func (g *Generator) publish(ctx context.Context, inv domain.Inventory, path string) {
	if g.opts.Notifier != nil {
		if err := g.opts.Notifier.Notify(ctx, domain.NewInventoryWritten(inv, path)); err != nil {
			g.logger.Warn("inventory notification failed", "path", path, "error", err)
		}
	}
	if g.opts.Mirror != nil {
		if err := g.opts.Mirror.Upload(ctx, path); err != nil {
			g.logger.Warn("inventory mirror failed", "path", path, "error", err)
		}
	}
}
