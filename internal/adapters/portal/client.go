package portal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/zonca/cloudbank-showcase/internal/model"
	"github.com/zonca/cloudbank-showcase/internal/retrieval"
)

// Client interacts with the portal catalog API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new catalog client rooted at baseURL (e.g. "http://portal/api").
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListRemote queries <baseURL>/datasets once. It never returns an error
// value: any failure is folded into the listing.
func (c *Client) ListRemote(ctx context.Context) retrieval.Listing {
	url := c.baseURL + "/datasets"

	records, err := c.apiGetDatasets(ctx, url)
	if err != nil {
		return retrieval.Listing{Err: &CatalogUnreachableError{URL: url, Err: err}}
	}

	entries := make([]model.DatasetEntry, 0, len(records))
	for i, raw := range records {
		item, err := decodeItem(raw)
		if err != nil {
			slog.WarnContext(ctx, "skipping catalog entry", "index", i, "error", err)
			continue
		}
		entry, err := item.toEntry()
		if err != nil {
			slog.WarnContext(ctx, "skipping catalog entry", "index", i, "id", text(item.ID), "error", err)
			continue
		}
		entries = append(entries, entry)
	}

	slog.InfoContext(ctx, "catalog listed", "url", url, "entries", len(entries))
	return retrieval.Listing{Entries: entries}
}

func (c *Client) apiGetDatasets(ctx context.Context, url string) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, &apiError{StatusCode: response.StatusCode, Message: "list datasets failed"}
	}

	var body datasetsResponse
	if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
		return nil, errors.Join(errMalformedBody, err)
	}

	return body.Datasets, nil
}
