package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/hrrr-inventory/internal/domain"
	"github.com/couchcryptid/hrrr-inventory/internal/store"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// InventoryLoader serves enriched inventory rows, optionally for one hour.
type InventoryLoader interface {
	Load(ctx context.Context, key domain.InventoryKey, hour *int) ([]domain.EnrichedRow, error)
}

// Lookup enables the inventory route.
type Lookup struct {
	Catalog domain.Catalog
	Loader  InventoryLoader
}

// Server exposes health, readiness, metrics and inventory lookup endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz and /metrics routes,
// plus /inventories/{region}/{product}/{fhs}/{cycle} when lookup is non-nil.
func NewServer(addr string, ready ReadinessChecker, lookup *Lookup, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if lookup != nil {
		mux.HandleFunc("GET /inventories/{region}/{product}/{fhs}/{cycle}", s.handleInventory(*lookup))
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

type inventoryResponse struct {
	Inventory string               `json:"inventory"`
	Hour      *int                 `json:"forecast_hour,omitempty"`
	Rows      []domain.EnrichedRow `json:"rows"`
}

func (s *Server) handleInventory(lookup Lookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := lookup.Catalog.ParseInventoryKey(
			r.PathValue("region"), r.PathValue("product"), r.PathValue("fhs"), r.PathValue("cycle"))
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}

		var hour *int
		if v := r.URL.Query().Get("hour"); v != "" {
			h, err := strconv.Atoi(v)
			if err != nil || h < 0 {
				writeError(w, http.StatusBadRequest, errors.New("hour must be a non-negative integer"))
				return
			}
			hour = &h
		}

		rows, err := lookup.Loader.Load(r.Context(), key, hour)
		if err != nil {
			var mfh *domain.MissingForecastHourError
			switch {
			case errors.Is(err, store.ErrNotFound), errors.As(err, &mfh):
				writeError(w, http.StatusNotFound, err)
			default:
				s.logger.Error("inventory lookup failed", "inventory", key.String(), "error", err)
				writeError(w, http.StatusBadGateway, err)
			}
			return
		}

		writeJSON(w, http.StatusOK, inventoryResponse{Inventory: key.String(), Hour: hour, Rows: rows})
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
