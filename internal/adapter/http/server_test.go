package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/hrrr-inventory/internal/adapter/http"
	"github.com/couchcryptid/hrrr-inventory/internal/domain"
	"github.com/couchcryptid/hrrr-inventory/internal/store"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

// mockLoader serves two hours of TMP rows for the conus surface inventory
// and nothing else.
type mockLoader struct {
	err error
}

func (m *mockLoader) Load(_ context.Context, key domain.InventoryKey, hour *int) ([]domain.EnrichedRow, error) {
	if m.err != nil {
		return nil, m.err
	}
	if key.Region != domain.RegionCONUS || key.Product != domain.ProductSurface {
		return nil, fmt.Errorf("%s: %w", key, store.ErrNotFound)
	}
	rows := []domain.EnrichedRow{
		{InventoryRow: domain.InventoryRow{ForecastHour: 0, GribMessage: 1, Variable: "TMP"}, Description: "Temperature", Unit: "K", Described: true},
		{InventoryRow: domain.InventoryRow{ForecastHour: 1, GribMessage: 1, Variable: "TMP"}, Description: "Temperature", Unit: "K", Described: true},
	}
	if hour == nil {
		return rows, nil
	}
	return domain.SubsetEnriched(key, rows, *hour)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, nil, testLogger())
}

func newLookupServer(loader httpadapter.InventoryLoader) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{}, &httpadapter.Lookup{
		Catalog: domain.DefaultCatalog(),
		Loader:  loader,
	}, testLogger())
}

func get(srv http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(fmt.Errorf("generator has not written any inventory yet")), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "generator has not written any inventory yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestInventoryRouteDisabledWithoutLookup(t *testing.T) {
	rec := get(newTestServer(nil), "/inventories/conus/sfc/fh00-01/standard")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInventoryReturnsEnrichedRows(t *testing.T) {
	rec := get(newLookupServer(&mockLoader{}), "/inventories/conus/sfc/fh00-01/standard")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Inventory string `json:"inventory"`
		Rows      []struct {
			ForecastHour int    `json:"forecast_hour"`
			Variable     string `json:"variable"`
			Description  string `json:"description"`
			Unit         string `json:"unit"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "conus/sfc/fh00-01/standard", body.Inventory)
	require.Len(t, body.Rows, 2)
	assert.Equal(t, "TMP", body.Rows[0].Variable)
	assert.Equal(t, "Temperature", body.Rows[0].Description)
	assert.Equal(t, "K", body.Rows[0].Unit)
}

func TestInventorySubsetsByHour(t *testing.T) {
	rec := get(newLookupServer(&mockLoader{}), "/inventories/conus/sfc/fh00-01/standard?hour=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Hour *int              `json:"forecast_hour"`
		Rows []json.RawMessage `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Hour)
	assert.Equal(t, 1, *body.Hour)
	assert.Len(t, body.Rows, 1)
}

func TestInventoryErrors(t *testing.T) {
	cases := []struct {
		name   string
		loader *mockLoader
		target string
		status int
	}{
		{"unknown region", &mockLoader{}, "/inventories/hawaii/sfc/fh00-01/standard", http.StatusNotFound},
		{"set not for product", &mockLoader{}, "/inventories/conus/sfc/fh01-18/standard", http.StatusNotFound},
		{"bad hour", &mockLoader{}, "/inventories/conus/sfc/fh00-01/standard?hour=x", http.StatusBadRequest},
		{"negative hour", &mockLoader{}, "/inventories/conus/sfc/fh00-01/standard?hour=-1", http.StatusBadRequest},
		{"missing hour", &mockLoader{}, "/inventories/conus/sfc/fh00-01/standard?hour=5", http.StatusNotFound},
		{"not generated", &mockLoader{}, "/inventories/alaska/prs/fh02-48/extended", http.StatusNotFound},
		{"reference failure", &mockLoader{err: fmt.Errorf("reference page error: status 503")}, "/inventories/conus/sfc/fh00-01/standard", http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := get(newLookupServer(tc.loader), tc.target)
			assert.Equal(t, tc.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}
