package gribindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/hrrr-inventory/internal/domain"
	"github.com/couchcryptid/hrrr-inventory/internal/observability"
)

// Public HRRR mirrors reachable over plain HTTPS.
const (
	AzureBaseURL  = "https://noaahrrr.blob.core.windows.net/hrrr"
	GoogleBaseURL = "https://storage.googleapis.com/high-resolution-rapid-refresh"
)

// Source serves index files by path relative to the archive root. Fetch
// returns domain.ErrIndexNotFound when the source does not hold the path.
type Source interface {
	Name() string
	Fetch(ctx context.Context, path string) (io.ReadCloser, error)
}

// Client implements domain.IndexFetcher over a set of named sources, tried in
// the request's priority order.
type Client struct {
	sources map[string]Source
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates an index client. Sources are looked up by Name().
func NewClient(sources []Source, metrics *observability.Metrics, logger *slog.Logger) *Client {
	byName := make(map[string]Source, len(sources))
	for _, s := range sources {
		byName[s.Name()] = s
	}
	return &Client{sources: byName, metrics: metrics, logger: logger}
}

// FetchIndex returns the parsed index from the first source in req.Priority
// that has it. A missing file moves on to the next source; any other failure
// is returned immediately.
func (c *Client) FetchIndex(ctx context.Context, req domain.IndexRequest) ([]domain.IndexEntry, error) {
	path := req.IndexPath()

	var tried []string
	for _, name := range req.Priority {
		src, ok := c.sources[name]
		if !ok {
			continue
		}
		tried = append(tried, name)

		body, err := src.Fetch(ctx, path)
		if errors.Is(err, domain.ErrIndexNotFound) {
			c.metrics.IndexSource.WithLabelValues(name, "miss").Inc()
			c.logger.Debug("index not on source", "source", name, "path", path)
			continue
		}
		if err != nil {
			c.metrics.IndexSource.WithLabelValues(name, "error").Inc()
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		entries, err := ParseIndex(body)
		body.Close()
		if err != nil {
			c.metrics.IndexSource.WithLabelValues(name, "error").Inc()
			return nil, fmt.Errorf("parse %s from %s: %w", path, name, err)
		}
		c.metrics.IndexSource.WithLabelValues(name, "hit").Inc()
		return entries, nil
	}

	if len(tried) == 0 {
		return nil, fmt.Errorf("no configured source in priority %v", req.Priority)
	}
	return nil, fmt.Errorf("%s on %s: %w", path, strings.Join(tried, ","), domain.ErrIndexNotFound)
}

// HTTPSource reads index files from an HTTPS mirror.
type HTTPSource struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSource creates a source rooted at baseURL.
func NewHTTPSource(name, baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *HTTPSource) Name() string { return s.name }

func (s *HTTPSource) Fetch(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("index request: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, domain.ErrIndexNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("index API error: status %d: %s", resp.StatusCode, body)
	}
}
