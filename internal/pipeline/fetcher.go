package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/hrrr-inventory/internal/domain"
	"github.com/couchcryptid/hrrr-inventory/internal/observability"
)

// TaskFetcher turns one task into its per-hour inventory.
type TaskFetcher struct {
	catalog  domain.Catalog
	index    domain.IndexFetcher
	refDate  time.Time
	priority []string
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewTaskFetcher creates a fetcher. Runs are located at refDate plus each
// task's run hour; priority orders the remote sources.
func NewTaskFetcher(catalog domain.Catalog, index domain.IndexFetcher, refDate time.Time, priority []string, metrics *observability.Metrics, logger *slog.Logger) *TaskFetcher {
	return &TaskFetcher{
		catalog:  catalog,
		index:    index,
		refDate:  refDate,
		priority: priority,
		metrics:  metrics,
		logger:   logger,
	}
}

// Request builds the remote index request for task.
func (f *TaskFetcher) Request(task domain.Task) (domain.IndexRequest, error) {
	rc, ok := f.catalog.Region(task.Region)
	if !ok {
		return domain.IndexRequest{}, fmt.Errorf("unknown region %q", task.Region)
	}
	return domain.IndexRequest{
		Model:        rc.ModelID,
		RegionDir:    rc.Dir,
		FileSuffix:   rc.FileSuffix,
		RunTime:      f.refDate.Add(time.Duration(task.RunHour) * time.Hour),
		Product:      task.Product,
		ForecastHour: task.ForecastHour,
		Priority:     f.priority,
	}, nil
}

// Fetch retrieves and normalizes the index for task. Every failure is a
// *domain.RemoteFetchError.
func (f *TaskFetcher) Fetch(ctx context.Context, task domain.Task) (domain.HourInventory, error) {
	req, err := f.Request(task)
	if err != nil {
		return domain.HourInventory{}, f.fail(task, err)
	}

	start := time.Now()
	entries, err := f.index.FetchIndex(ctx, req)
	f.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.HourInventory{}, f.fail(task, err)
	}
	if len(entries) == 0 {
		return domain.HourInventory{}, f.fail(task, errors.New("index is empty"))
	}

	part := domain.HourInventory{
		Key:          task.Key(),
		ForecastHour: task.ForecastHour,
		Rows:         make([]domain.InventoryRow, 0, len(entries)),
	}
	for _, e := range entries {
		if !e.ReferenceTime.Equal(req.RunTime) {
			return domain.HourInventory{}, f.fail(task, fmt.Errorf("message %d has reference time %s, want %s",
				e.GribMessage, e.ReferenceTime.Format(time.RFC3339), req.RunTime.Format(time.RFC3339)))
		}
		part.Rows = append(part.Rows, domain.InventoryRow{
			ForecastHour: task.ForecastHour,
			GribMessage:  e.GribMessage,
			Variable:     e.Variable,
			Level:        e.Level,
			ForecastTime: e.ForecastTime,
			SearchThis:   e.SearchThis,
		})
	}

	f.metrics.TasksFetched.Inc()
	f.logger.Debug("index fetched", "task", task.String(), "rows", len(part.Rows))
	return part, nil
}

func (f *TaskFetcher) fail(task domain.Task, err error) error {
	f.metrics.FetchErrors.Inc()
	return &domain.RemoteFetchError{Task: task, Err: err}
}
