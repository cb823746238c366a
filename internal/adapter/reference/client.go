// Package reference reads variable descriptions from the NOAA HRRR product
// inventory pages.
package reference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/couchcryptid/hrrr-inventory/internal/domain"
)

// Each page lists file metadata first; the variable table is the second table.
const variableTableIndex = 1

const (
	parameterHeader   = "Parameter"
	descriptionHeader = "Description"
)

// Client implements domain.ReferenceSource by fetching and parsing the page
// registered in the catalog for each reference key.
type Client struct {
	catalog    domain.Catalog
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a reference client.
func NewClient(catalog domain.Catalog, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		catalog: catalog,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Descriptions returns every row of the page's variable table, duplicates included.
func (c *Client) Descriptions(ctx context.Context, key domain.ReferenceKey) ([]domain.VariableDescription, error) {
	url, ok := c.catalog.ReferenceURL(key)
	if !ok {
		return nil, fmt.Errorf("no reference page for %s", key)
	}

	body, err := c.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("reference %s: %w", key, err)
	}
	defer body.Close()

	descs, err := ParseTable(body)
	if err != nil {
		return nil, fmt.Errorf("reference %s: parse %s: %w", key, url, err)
	}
	c.logger.Debug("reference table loaded", "reference", key.String(), "rows", len(descs))
	return descs, nil
}

func (c *Client) doRequest(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reference request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("reference page error: status %d: %s", resp.StatusCode, body)
	}
	return resp.Body, nil
}

// ParseTable extracts (Parameter, Description) pairs from the variable table
// of a reference page. Columns are located by header text.
func ParseTable(r io.Reader) ([]domain.VariableDescription, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	tables := findAll(doc, "table")
	if len(tables) <= variableTableIndex {
		return nil, fmt.Errorf("expected at least %d tables, found %d", variableTableIndex+1, len(tables))
	}

	rows := tableRows(tables[variableTableIndex])
	paramCol, descCol, headerRow := -1, -1, -1
	for i, cells := range rows {
		paramCol, descCol = indexOf(cells, parameterHeader), indexOf(cells, descriptionHeader)
		if paramCol >= 0 && descCol >= 0 {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil, errors.New("variable table has no Parameter/Description header")
	}

	var out []domain.VariableDescription
	for _, cells := range rows[headerRow+1:] {
		if paramCol >= len(cells) || descCol >= len(cells) {
			continue
		}
		code := cells[paramCol]
		if code == "" {
			continue
		}
		out = append(out, domain.NewVariableDescription(code, cells[descCol]))
	}
	return out, nil
}

// tableRows returns the text of each row's cells. Rows of nested tables are
// not included.
func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "table":
				continue
			case "tr":
				var cells []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.Data == "td" || cell.Data == "th") {
						cells = append(cells, textContent(cell))
					}
				}
				rows = append(rows, cells)
			default:
				walk(c)
			}
		}
	}
	walk(table)
	return rows
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// textContent returns the node's text with runs of whitespace collapsed.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func indexOf(cells []string, want string) int {
	for i, c := range cells {
		if c == want {
			return i
		}
	}
	return -1
}
