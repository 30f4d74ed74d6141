package portal

import (
	"errors"
	"fmt"
)

var errMalformedBody = errors.New("malformed catalog response")

// apiError represents a non-2xx response from the catalog API.
type apiError struct {
	StatusCode int
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("portal: %s (status %d)", e.Message, e.StatusCode)
}

// CatalogUnreachableError records why the catalog could not be listed.
// It is recovered by the caller, never fatal on its own.
type CatalogUnreachableError struct {
	URL string
	Err error
}

func (e *CatalogUnreachableError) Error() string {
	return fmt.Sprintf("portal catalog %s unreachable: %v", e.URL, e.Err)
}

func (e *CatalogUnreachableError) Unwrap() error {
	return e.Err
}
