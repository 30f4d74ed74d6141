package retrieval

import (
	"strings"

	"github.com/zonca/cloudbank-showcase/internal/model"
)

// Predicate reports whether an entry is a preferred candidate.
type Predicate func(model.DatasetEntry) bool

// IsNetCDFLike matches entries whose format mentions NetCDF or whose id has a .nc suffix.
func IsNetCDFLike(e model.DatasetEntry) bool {
	return strings.Contains(strings.ToLower(e.Format), "netcdf") || strings.HasSuffix(e.ID, ".nc")
}

// Selector picks exactly one entry. The zero value prefers NetCDF-like entries.
type Selector struct {
	Match Predicate
}

// Choose returns the first entry accepted by Match in input order, or the
// first entry when none match. An empty input is a NoDatasetsAvailableError.
func (s Selector) Choose(entries []model.DatasetEntry, catalogErr error) (model.DatasetEntry, error) {
	if len(entries) == 0 {
		return model.DatasetEntry{}, &NoDatasetsAvailableError{CatalogErr: catalogErr}
	}

	match := s.Match
	if match == nil {
		match = IsNetCDFLike
	}
	for _, e := range entries {
		if match(e) {
			return e, nil
		}
	}
	return entries[0], nil
}
