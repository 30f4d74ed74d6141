package retrieval

import (
	"fmt"
	"strings"
)

// NoDatasetsAvailableError is returned when neither the catalog nor a local
// path produced an entry. It carries the catalog failure, if any.
type NoDatasetsAvailableError struct {
	CatalogErr error
}

func (e *NoDatasetsAvailableError) Error() string {
	var b strings.Builder
	b.WriteString("no datasets available: upload a NetCDF file to the portal first")
	if e.CatalogErr != nil {
		fmt.Fprintf(&b, "; the portal API was unreachable/erroring: %v", e.CatalogErr)
	}
	b.WriteString("; set LOCAL_NETCDF to a local file path to proceed without the portal")
	return b.String()
}

func (e *NoDatasetsAvailableError) Unwrap() error {
	return e.CatalogErr
}

// RetrievalError is returned when a remote dataset cannot be written to disk.
type RetrievalError struct {
	URL string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve %s: %v", e.URL, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// statusError is a non-2xx download response.
type statusError struct {
	StatusCode int
	Status     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %s", e.Status)
}
