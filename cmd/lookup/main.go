// Command lookup prints a stored inventory joined with the NOAA variable
// descriptions, one JSON object per row.
//
// Usage:
//
//	go run ./cmd/lookup -region conus -product sfc -fhs fh00-01 -cycle standard -hour 1
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/hrrr-inventory/internal/adapter/reference"
	"github.com/couchcryptid/hrrr-inventory/internal/config"
	"github.com/couchcryptid/hrrr-inventory/internal/domain"
	"github.com/couchcryptid/hrrr-inventory/internal/observability"
	"github.com/couchcryptid/hrrr-inventory/internal/store"
)

func main() {
	region := flag.String("region", string(domain.RegionCONUS), "region (conus, alaska)")
	product := flag.String("product", string(domain.ProductSurface), "product (prs, nat, sfc, subh)")
	fhs := flag.String("fhs", string(domain.FH00_01), "forecast hour set")
	cycle := flag.String("cycle", domain.CycleStandard.Name, "cycle type (extended, standard)")
	hour := flag.Int("hour", -1, "forecast hour to keep; negative keeps all")
	dest := flag.String("dest", "", "inventory directory (overrides DEST_DIR)")
	flag.Parse()

	if err := run(*region, *product, *fhs, *cycle, *hour, *dest); err != nil {
		fmt.Fprintln(os.Stderr, "lookup:", err)
		os.Exit(1)
	}
}

func run(region, product, fhs, cycle string, hour int, dest string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if dest != "" {
		cfg.DestDir = dest
	}

	logger := observability.NewLoggerTo(os.Stderr, cfg)
	metrics := observability.NewMetrics()
	catalog := domain.DefaultCatalog()

	key, err := catalog.ParseInventoryKey(region, product, fhs, cycle)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ref := reference.NewCachedSource(reference.NewClient(catalog, cfg.ReferenceTimeout, logger), 1, metrics)
	st := store.New(cfg.DestDir, ref)

	var hourPtr *int
	if hour >= 0 {
		hourPtr = &hour
	}
	rows, err := st.Load(ctx, key, hourPtr)
	if err != nil {
		return err
	}

	return writeRows(os.Stdout, rows, logger)
}

func writeRows(w io.Writer, rows []domain.EnrichedRow, logger *slog.Logger) error {
	enc := json.NewEncoder(w)
	undescribed := 0
	for _, r := range rows {
		if !r.Described {
			undescribed++
		}
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	if undescribed > 0 {
		logger.Warn("rows without reference description", "count", undescribed, "rows", len(rows))
	}
	return nil
}
