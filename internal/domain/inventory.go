package domain

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// InventoryRow is one (variable, level) message in one output file at one
// forecast hour. ForecastHour is the table index and is not unique.
type InventoryRow struct {
	ForecastHour int    `json:"forecast_hour"`
	GribMessage  int    `json:"grib_message"`
	Variable     string `json:"variable"`
	Level        string `json:"level"`
	ForecastTime string `json:"forecast_time"`
	SearchThis   string `json:"search_this"`
}

// HourInventory holds the rows fetched for one task, stamped with the task's
// inventory key and forecast hour.
type HourInventory struct {
	Key          InventoryKey
	ForecastHour int
	Rows         []InventoryRow
}

// Inventory is the merged table for one InventoryKey.
type Inventory struct {
	Key  InventoryKey
	Rows []InventoryRow
}

// Len returns the number of rows.
func (inv Inventory) Len() int { return len(inv.Rows) }

// ForecastHours returns the distinct forecast hours present, ascending.
func (inv Inventory) ForecastHours() []int {
	seen := make(map[int]bool)
	var hours []int
	for _, r := range inv.Rows {
		if !seen[r.ForecastHour] {
			seen[r.ForecastHour] = true
			hours = append(hours, r.ForecastHour)
		}
	}
	slices.Sort(hours)
	return hours
}

// Subset returns the rows indexed at hour. It fails with
// *MissingForecastHourError when no row has that hour.
func (inv Inventory) Subset(hour int) (Inventory, error) {
	out := Inventory{Key: inv.Key}
	for _, r := range inv.Rows {
		if r.ForecastHour == hour {
			out.Rows = append(out.Rows, r)
		}
	}
	if len(out.Rows) == 0 {
		return Inventory{}, &MissingForecastHourError{Key: inv.Key, Hour: hour}
	}
	return out, nil
}

// Merge concatenates the per-hour tables of one batch. Rows are kept as-is:
// no deduplication and no reordering within a part. Every part must be
// stamped with key.
func Merge(key InventoryKey, parts []HourInventory) (Inventory, error) {
	n := 0
	for _, p := range parts {
		if p.Key != key {
			return Inventory{}, fmt.Errorf("merge %s: part stamped %s", key, p.Key)
		}
		n += len(p.Rows)
	}

	inv := Inventory{Key: key, Rows: make([]InventoryRow, 0, n)}
	for _, p := range parts {
		for _, r := range p.Rows {
			if r.ForecastHour != p.ForecastHour {
				return Inventory{}, fmt.Errorf("merge %s: row indexed f%02d in part for f%02d", key, r.ForecastHour, p.ForecastHour)
			}
			inv.Rows = append(inv.Rows, r)
		}
	}
	return inv, nil
}

// IndexRequest identifies one remote output file whose index should be read.
type IndexRequest struct {
	Model        string
	RegionDir    string
	FileSuffix   string
	RunTime      time.Time
	Product      Product
	ForecastHour int
	Priority     []string
}

// FileName returns the GRIB2 file name, e.g. "hrrr.t03z.wrfsfcf01.grib2".
func (r IndexRequest) FileName() string {
	return fmt.Sprintf("hrrr.t%02dz.wrf%sf%02d%s.grib2", r.RunTime.Hour(), r.Product, r.ForecastHour, r.FileSuffix)
}

// IndexPath returns the index object path relative to a source root,
// e.g. "hrrr.20240501/conus/hrrr.t03z.wrfsfcf01.grib2.idx".
func (r IndexRequest) IndexPath() string {
	return fmt.Sprintf("hrrr.%s/%s/%s.idx", r.RunTime.Format("20060102"), r.RegionDir, r.FileName())
}

// IndexEntry is one line of a remote GRIB2 index.
type IndexEntry struct {
	GribMessage   int
	StartByte     int64
	ReferenceTime time.Time
	Variable      string
	Level         string
	ForecastTime  string
	SearchThis    string
}

// IndexFetcher retrieves the index of one remote output file.
type IndexFetcher interface {
	FetchIndex(ctx context.Context, req IndexRequest) ([]IndexEntry, error)
}
