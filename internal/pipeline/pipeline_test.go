package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hrrr-inventory/internal/config"
	"github.com/couchcryptid/hrrr-inventory/internal/domain"
	"github.com/couchcryptid/hrrr-inventory/internal/observability"
	"github.com/couchcryptid/hrrr-inventory/internal/pipeline"
	"github.com/couchcryptid/hrrr-inventory/internal/store"
)

var refDate = time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

// --- mocks ---

// fakeIndex serves a two-message index (TMP, WIND) for every file unless the
// file name is listed in fail.
type fakeIndex struct {
	mu       sync.Mutex
	fail     map[string]error
	requests []domain.IndexRequest
}

func (f *fakeIndex) FetchIndex(_ context.Context, req domain.IndexRequest) ([]domain.IndexEntry, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.fail[req.FileName()]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ft := "anl"
	if req.ForecastHour > 0 {
		ft = fmt.Sprintf("%d hour fcst", req.ForecastHour)
	}
	return []domain.IndexEntry{
		{GribMessage: 1, StartByte: 0, ReferenceTime: req.RunTime, Variable: "TMP", Level: "2 m above ground", ForecastTime: ft, SearchThis: ":TMP:2 m above ground:" + ft},
		{GribMessage: 2, StartByte: 4096, ReferenceTime: req.RunTime, Variable: "WIND", Level: "10 m above ground", ForecastTime: ft, SearchThis: ":WIND:10 m above ground:" + ft},
	}, nil
}

type stubReference struct {
	descs []domain.VariableDescription
	err   error
}

func (s stubReference) Descriptions(context.Context, domain.ReferenceKey) ([]domain.VariableDescription, error) {
	return s.descs, s.err
}

type recordingNotifier struct {
	events []domain.InventoryWritten
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, evt domain.InventoryWritten) error {
	n.events = append(n.events, evt)
	return n.err
}

type recordingMirror struct {
	paths []string
	err   error
}

func (m *recordingMirror) Upload(_ context.Context, path string) error {
	m.paths = append(m.paths, path)
	return m.err
}

// --- helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func surfaceReference() stubReference {
	return stubReference{descs: []domain.VariableDescription{
		{Variable: "TMP", Description: "Temperature", Unit: "K"},
		{Variable: "TMP", Description: "Temperature", Unit: "K"},
		{Variable: "WIND", Description: "Wind Speed (Gust)", Unit: "m/s"},
	}}
}

// testCatalog has one region, the given products with fh00-01, and only the
// standard cycle type.
func testCatalog(t *testing.T, products ...domain.Product) domain.Catalog {
	t.Helper()
	spec := domain.CatalogSpec{
		Regions:    []domain.RegionConfig{{Region: domain.RegionCONUS, ModelID: "hrrr", Dir: "conus"}},
		CycleTypes: []domain.CycleType{domain.CycleStandard},
	}
	for _, p := range products {
		spec.Products = append(spec.Products, domain.ProductSets{Product: p, Sets: []domain.ForecastHourSet{domain.FH00_01}})
	}
	cat, err := domain.NewCatalog(spec)
	require.NoError(t, err)
	return cat
}

func newGenerator(cat domain.Catalog, index domain.IndexFetcher, ref domain.ReferenceSource, w pipeline.InventoryWriter, opts pipeline.Options) *pipeline.Generator {
	metrics := observability.NewMetricsForTesting()
	opts.Catalog = cat
	if opts.RunHours == nil {
		opts.RunHours = []int{3}
	}
	if opts.Workers == 0 {
		opts.Workers = 4
	}
	fetcher := pipeline.NewTaskFetcher(cat, index, refDate, []string{"azure"}, metrics, testLogger())
	return pipeline.New(opts, fetcher, ref, w, testLogger(), metrics)
}

func surfaceKey() domain.InventoryKey {
	return domain.InventoryKey{
		Region: domain.RegionCONUS, Product: domain.ProductSurface,
		ForecastHourSet: domain.FH00_01, CycleType: domain.CycleStandard.Name,
	}
}

// --- tests ---

func TestGenerator_Run_SurfaceEndToEnd(t *testing.T) {
	ref := surfaceReference()
	st := store.New(t.TempDir(), ref)
	g := newGenerator(testCatalog(t, domain.ProductSurface), &fakeIndex{}, ref, st, pipeline.Options{})

	report, err := g.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Written, 1)
	assert.Equal(t, surfaceKey(), report.Written[0].Key)
	assert.Equal(t, 4, report.Written[0].Rows)
	assert.Equal(t, st.Path(surfaceKey()), report.Written[0].Path)

	inv, err := st.Read(surfaceKey())
	require.NoError(t, err)
	assert.Len(t, inv.Rows, 4)
	assert.Equal(t, []int{0, 1}, inv.ForecastHours())

	rows, err := st.Load(context.Background(), surfaceKey(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, r := range rows {
		if r.Variable == "TMP" {
			assert.Equal(t, "Temperature", r.Description)
			assert.Equal(t, "K", r.Unit)
		}
	}

	hour := 1
	rows, err = st.Load(context.Background(), surfaceKey(), &hour)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestGenerator_Run_RequestsRunTimeFromReferenceDate(t *testing.T) {
	index := &fakeIndex{}
	g := newGenerator(testCatalog(t, domain.ProductSurface), index, nil, store.New(t.TempDir(), nil), pipeline.Options{RunHours: []int{3}})

	_, err := g.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, index.requests, 2)
	for _, req := range index.requests {
		assert.Equal(t, refDate.Add(3*time.Hour), req.RunTime)
		assert.Equal(t, []string{"azure"}, req.Priority)
	}
}

func TestGenerator_Run_FailFast(t *testing.T) {
	index := &fakeIndex{fail: map[string]error{"hrrr.t03z.wrfsfcf01.grib2": errors.New("status 500")}}
	st := store.New(t.TempDir(), nil)
	g := newGenerator(testCatalog(t, domain.ProductSurface, domain.ProductPressure), index, nil, st, pipeline.Options{})

	report, err := g.Run(context.Background())
	require.Error(t, err)

	var rfe *domain.RemoteFetchError
	require.ErrorAs(t, err, &rfe)
	assert.Equal(t, 1, rfe.Task.ForecastHour)
	assert.Equal(t, domain.ProductSurface, rfe.Task.Product)

	assert.Empty(t, report.Written)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, surfaceKey(), report.Failed[0].Key)

	entries, err := os.ReadDir(st.Dir())
	if !os.IsNotExist(err) {
		require.NoError(t, err)
		assert.Empty(t, entries, "no inventory should be written for the failed batch or after it")
	}
}

func TestGenerator_Run_BestEffort(t *testing.T) {
	index := &fakeIndex{fail: map[string]error{"hrrr.t03z.wrfsfcf00.grib2": domain.ErrIndexNotFound}}
	st := store.New(t.TempDir(), nil)
	g := newGenerator(testCatalog(t, domain.ProductSurface, domain.ProductPressure), index, nil, st,
		pipeline.Options{FailurePolicy: config.BestEffort})

	report, err := g.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)

	require.Len(t, report.Failed, 1)
	assert.Equal(t, domain.ProductSurface, report.Failed[0].Key.Product)
	require.Len(t, report.Written, 1)
	assert.Equal(t, domain.ProductPressure, report.Written[0].Key.Product)

	_, err = st.Read(report.Written[0].Key)
	require.NoError(t, err)
	_, err = st.Read(surfaceKey())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGenerator_Run_ConflictingReferenceBlocksWrite(t *testing.T) {
	ref := stubReference{descs: []domain.VariableDescription{
		{Variable: "TMP", Description: "Temperature", Unit: "K"},
		{Variable: "TMP", Description: "Temperature", Unit: "C"},
	}}
	st := store.New(t.TempDir(), ref)
	g := newGenerator(testCatalog(t, domain.ProductSurface), &fakeIndex{}, ref, st, pipeline.Options{})

	_, err := g.Run(context.Background())
	var rie *domain.ReferenceIntegrityError
	require.ErrorAs(t, err, &rie)

	_, err = st.Read(surfaceKey())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGenerator_Run_ReferenceUnavailable(t *testing.T) {
	g := newGenerator(testCatalog(t, domain.ProductSurface), &fakeIndex{},
		stubReference{err: errors.New("status 503")}, store.New(t.TempDir(), nil), pipeline.Options{})

	_, err := g.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestGenerator_Run_PublishesToSinks(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("broker down")}
	mirror := &recordingMirror{}
	st := store.New(t.TempDir(), nil)
	g := newGenerator(testCatalog(t, domain.ProductSurface), &fakeIndex{}, nil, st,
		pipeline.Options{Notifier: notifier, Mirror: mirror})

	_, err := g.Run(context.Background())
	require.NoError(t, err, "sink failures do not fail the run")

	require.Len(t, notifier.events, 1)
	evt := notifier.events[0]
	assert.Equal(t, domain.ProductSurface, evt.Product)
	assert.Equal(t, 4, evt.Rows)
	assert.Equal(t, []int{0, 1}, evt.ForecastHours)
	assert.Equal(t, st.Path(surfaceKey()), evt.Path)
	assert.Equal(t, []string{st.Path(surfaceKey())}, mirror.paths)
}

func TestGenerator_Run_ContextCanceled(t *testing.T) {
	index := &fakeIndex{}
	g := newGenerator(testCatalog(t, domain.ProductSurface), index, nil, store.New(t.TempDir(), nil), pipeline.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := g.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Written)
	assert.Empty(t, index.requests)
}

func TestGenerator_Run_ReportsMissingCycleTypes(t *testing.T) {
	spec := domain.CatalogSpec{
		Regions:    []domain.RegionConfig{{Region: domain.RegionCONUS, ModelID: "hrrr", Dir: "conus"}},
		Products:   []domain.ProductSets{{Product: domain.ProductSurface, Sets: []domain.ForecastHourSet{domain.FH00_01}}},
		CycleTypes: []domain.CycleType{domain.CycleExtended, domain.CycleStandard},
	}
	cat, err := domain.NewCatalog(spec)
	require.NoError(t, err)

	g := newGenerator(cat, &fakeIndex{}, nil, store.New(t.TempDir(), nil), pipeline.Options{RunHours: []int{3}})
	report, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"extended"}, report.MissingCycleTypes)
	assert.Len(t, report.Written, 1)
}

func TestGenerator_CheckReadiness(t *testing.T) {
	g := newGenerator(testCatalog(t, domain.ProductSurface), &fakeIndex{}, nil, store.New(t.TempDir(), nil), pipeline.Options{})
	require.Error(t, g.CheckReadiness(context.Background()))

	_, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.NoError(t, g.CheckReadiness(context.Background()))
}
