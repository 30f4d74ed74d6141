package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// LocalScheme marks a location that already lives on the local filesystem.
const LocalScheme = "file://"

var ErrMissingLocation = errors.New("dataset entry location cannot be empty")

// DatasetEntry is one dataset record, either listed by the catalog or
// synthesized from a local override path.
type DatasetEntry struct {
	ID       string `json:"id"`
	Format   string `json:"format"`
	ByteSize *int64 `json:"bytes"` // nil when unknown
	Location string `json:"location"`
}

// NewDatasetEntry builds an entry and rejects an empty location.
func NewDatasetEntry(id, format string, byteSize *int64, location string) (DatasetEntry, error) {
	e := DatasetEntry{ID: id, Format: format, ByteSize: byteSize, Location: location}
	if err := e.Validate(); err != nil {
		return DatasetEntry{}, err
	}
	return e, nil
}

// Validate checks the entry invariants.
func (e DatasetEntry) Validate() error {
	if strings.TrimSpace(e.Location) == "" {
		return ErrMissingLocation
	}
	if e.ByteSize != nil && *e.ByteSize < 0 {
		return fmt.Errorf("dataset entry %q has negative size %d", e.ID, *e.ByteSize)
	}
	return nil
}

// IsLocal reports whether the entry points at a local file.
func (e DatasetEntry) IsLocal() bool {
	return strings.HasPrefix(e.Location, LocalScheme)
}

// LocalPath returns the location with the file:// scheme stripped.
func (e DatasetEntry) LocalPath() string {
	return strings.TrimPrefix(e.Location, LocalScheme)
}

// SizeString renders the byte size for logs, "unknown" when absent.
func (e DatasetEntry) SizeString() string {
	if e.ByteSize == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d", *e.ByteSize)
}

// RunID represents a UUIDv7 identifier for a single run.
type RunID string

// NewRunID generates a fresh UUIDv7 run identifier.
func NewRunID() (RunID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run-id: %w", err)
	}
	return RunID(id.String()), nil
}

// Validate checks that the RunID is a valid UUIDv7.
func (r RunID) Validate() error {
	if r == "" {
		return fmt.Errorf("run-id cannot be empty")
	}
	id, err := uuid.Parse(string(r))
	if err != nil {
		return fmt.Errorf("run-id must be a valid UUID: %w", err)
	}
	if id.Version() != uuid.Version(7) {
		return fmt.Errorf("run-id must be a UUIDv7, got v%d", id.Version())
	}
	return nil
}

// String returns the run ID as a string.
func (r RunID) String() string {
	return string(r)
}
