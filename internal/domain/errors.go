package domain

import (
	"errors"
	"fmt"
)

// ErrIndexNotFound reports that a source does not hold the requested index.
// Index clients move on to the next source in priority order.
var ErrIndexNotFound = errors.New("index not found")

// RemoteFetchError reports a failed or unparseable per-hour index fetch.
// It is fatal to the batch containing Task.
type RemoteFetchError struct {
	Task Task
	Err  error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("fetch index for %s: %v", e.Task, e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// ReferenceIntegrityError reports a reference table that cannot be joined
// without changing the inventory's row count.
type ReferenceIntegrityError struct {
	Key      ReferenceKey
	Variable string
	Reason   string
}

func (e *ReferenceIntegrityError) Error() string {
	if e.Variable != "" {
		return fmt.Sprintf("reference %s: variable %s: %s", e.Key, e.Variable, e.Reason)
	}
	return fmt.Sprintf("reference %s: %s", e.Key, e.Reason)
}

// MissingForecastHourError reports a read for a forecast hour absent from a
// stored inventory.
type MissingForecastHourError struct {
	Key  InventoryKey
	Hour int
}

func (e *MissingForecastHourError) Error() string {
	return fmt.Sprintf("inventory %s has no rows for forecast hour %d", e.Key, e.Hour)
}
