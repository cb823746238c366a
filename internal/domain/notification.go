package domain

import "time"

// InventoryWritten announces that an inventory file was (re)generated.
type InventoryWritten struct {
	Region          Region          `json:"region"`
	Product         Product         `json:"product"`
	ForecastHourSet ForecastHourSet `json:"forecast_hour_set"`
	CycleType       string          `json:"cycle_type"`
	Path            string          `json:"path"`
	Rows            int             `json:"rows"`
	ForecastHours   []int           `json:"forecast_hours"`
	WrittenAt       time.Time       `json:"written_at"`
}

// NewInventoryWritten describes inv after it was stored at path.
func NewInventoryWritten(inv Inventory, path string) InventoryWritten {
	return InventoryWritten{
		Region:          inv.Key.Region,
		Product:         inv.Key.Product,
		ForecastHourSet: inv.Key.ForecastHourSet,
		CycleType:       inv.Key.CycleType,
		Path:            path,
		Rows:            inv.Len(),
		ForecastHours:   inv.ForecastHours(),
		WrittenAt:       clock.Now().UTC(),
	}
}
