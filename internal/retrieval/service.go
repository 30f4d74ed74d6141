package retrieval

import (
	"context"
	"log/slog"

	"github.com/zonca/cloudbank-showcase/internal/model"
)

// Listing is the outcome of one catalog query. A failed query carries the
// cause in Err and no entries; the service decides whether a fallback exists.
type Listing struct {
	Entries []model.DatasetEntry
	Err     error
}

// Failed reports whether the catalog could not be listed.
func (l Listing) Failed() bool {
	return l.Err != nil
}

// Message returns the failure text, or "" for a successful listing.
func (l Listing) Message() string {
	if l.Err == nil {
		return ""
	}
	return l.Err.Error()
}

// Catalog lists the remotely available datasets.
type Catalog interface {
	ListRemote(ctx context.Context) Listing
}

// Retriever turns a selected entry into a local file path.
type Retriever interface {
	Fetch(ctx context.Context, entry model.DatasetEntry) (string, error)
}

// LocalMode controls how a configured local path interacts with the catalog.
type LocalMode int

const (
	// LocalOverride uses the local path and never queries the catalog.
	LocalOverride LocalMode = iota
	// LocalFallback queries the catalog and uses the local path only when it lists nothing.
	LocalFallback
)

// Options configures a Service.
type Options struct {
	LocalPath string
	LocalMode LocalMode
	Selector  Selector
}

// Service orchestrates retrieval steps: list, select, fetch.
type Service struct {
	catalog  Catalog
	fetcher  Retriever
	local    string
	mode     LocalMode
	selector Selector
}

// NewService wires the pipeline. catalog may be nil when no portal is configured.
func NewService(catalog Catalog, fetcher Retriever, opts Options) *Service {
	return &Service{
		catalog:  catalog,
		fetcher:  fetcher,
		local:    opts.LocalPath,
		mode:     opts.LocalMode,
		selector: opts.Selector,
	}
}

// Run resolves exactly one dataset and returns its local path.
// Failures from selection and fetching are returned as-is.
func (s *Service) Run(ctx context.Context) (string, error) {
	listing, err := s.candidates(ctx)
	if err != nil {
		return "", err
	}

	logEntries(ctx, listing.Entries)

	selected, err := s.selector.Choose(listing.Entries, listing.Err)
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "selected dataset", "id", selected.ID, "format", selected.Format, "location", selected.Location)

	localPath, err := s.fetcher.Fetch(ctx, selected)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "dataset ready", "id", selected.ID, "path", localPath)
	return localPath, nil
}

// candidates gathers entries to select from. Catalog failures are carried in
// the returned Listing; the error is reserved for the local resolver.
func (s *Service) candidates(ctx context.Context) (Listing, error) {
	if s.local != "" && s.mode == LocalOverride {
		slog.InfoContext(ctx, "local override in effect, skipping catalog", "path", s.local)
		entry, err := ResolveLocal(s.local)
		if err != nil {
			return Listing{}, err
		}
		return Listing{Entries: []model.DatasetEntry{entry}}, nil
	}

	var listing Listing
	if s.catalog != nil {
		listing = s.catalog.ListRemote(ctx)
		if listing.Failed() {
			slog.WarnContext(ctx, "portal API error, falling back to local file if set", "error", listing.Message())
		}
	}

	if len(listing.Entries) == 0 && s.local != "" {
		entry, err := ResolveLocal(s.local)
		if err != nil {
			return listing, err
		}
		listing.Entries = []model.DatasetEntry{entry}
	}

	return listing, nil
}

func logEntries(ctx context.Context, entries []model.DatasetEntry) {
	slog.InfoContext(ctx, "found dataset entries", "count", len(entries))
	for i, e := range entries {
		if i == 5 {
			break
		}
		slog.InfoContext(ctx, "dataset entry", "id", e.ID, "format", e.Format, "bytes", e.SizeString(), "location", e.Location)
	}
}
