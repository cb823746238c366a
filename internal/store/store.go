// Package store persists merged inventories as gzip-compressed CSV files and
// serves the enriched read path.
package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/klauspost/compress/gzip"

	"github.com/couchcryptid/hrrr-inventory/internal/domain"
)

// Header is the first record of every stored file. forecast_hour is the index
// column and is not unique.
var Header = []string{"forecast_hour", "grib_message", "variable", "level", "forecast_time", "search_this"}

// ErrNotFound reports that no inventory file exists for a key.
var ErrNotFound = errors.New("inventory not found")

// FileName returns the stored file name for key.
func FileName(key domain.InventoryKey) string {
	return fmt.Sprintf("inventory__%s__%s__%s__%s.csv.gz", key.Region, key.Product, key.ForecastHourSet, key.CycleType)
}

// Store reads and writes inventory files under one directory.
type Store struct {
	dir string
	ref domain.ReferenceSource
}

// New creates a store rooted at dir. ref is used by Load; it may be nil for
// write-only use.
func New(dir string, ref domain.ReferenceSource) *Store {
	return &Store{dir: dir, ref: ref}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the file path for key.
func (s *Store) Path(key domain.InventoryKey) string {
	return filepath.Join(s.dir, FileName(key))
}

// Write stores inv, replacing any previous file for the same key. The file is
// written to a temporary name and renamed so readers never see a partial file.
func (s *Store) Write(inv domain.Inventory) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".inventory-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := encode(tmp, inv.Rows); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", inv.Key, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return "", fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	path := s.Path(inv.Key)
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("rename to %s: %w", path, err)
	}
	return path, nil
}

func encode(w io.Writer, rows []domain.InventoryRow) error {
	zw := gzip.NewWriter(w)
	cw := csv.NewWriter(zw)

	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			strconv.Itoa(r.ForecastHour),
			strconv.Itoa(r.GribMessage),
			r.Variable,
			r.Level,
			r.ForecastTime,
			r.SearchThis,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return zw.Close()
}

// Read loads the stored inventory for key. A missing file is ErrNotFound.
func (s *Store) Read(key domain.InventoryKey) (domain.Inventory, error) {
	path := s.Path(key)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Inventory{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return domain.Inventory{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := decode(f)
	if err != nil {
		return domain.Inventory{}, fmt.Errorf("read %s: %w", path, err)
	}
	return domain.Inventory{Key: key, Rows: rows}, nil
}

func decode(r io.Reader) ([]domain.InventoryRow, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer zr.Close()

	cr := csv.NewReader(zr)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	var rows []domain.InventoryRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		hour, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("invalid forecast_hour %q", rec[0])
		}
		msg, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("invalid grib_message %q", rec[1])
		}
		rows = append(rows, domain.InventoryRow{
			ForecastHour: hour,
			GribMessage:  msg,
			Variable:     rec[2],
			Level:        rec[3],
			ForecastTime: rec[4],
			SearchThis:   rec[5],
		})
	}
	return rows, nil
}

// Load reads the inventory for key, joins it with the reference descriptions
// and, when hour is non-nil, keeps only that forecast hour.
func (s *Store) Load(ctx context.Context, key domain.InventoryKey, hour *int) ([]domain.EnrichedRow, error) {
	if s.ref == nil {
		return nil, errors.New("store has no reference source")
	}

	inv, err := s.Read(key)
	if err != nil {
		return nil, err
	}

	descs, err := s.ref.Descriptions(ctx, key.ReferenceKey())
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}

	rows, err := domain.Enrich(inv, descs)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}

	if hour == nil {
		return rows, nil
	}
	return domain.SubsetEnriched(key, rows, *hour)
}
