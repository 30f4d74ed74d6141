package storage

import (
	"fmt"

	"github.com/zonca/cloudbank-showcase/internal/model"
)

// ObjectKey locates a published artifact in the bucket.
type ObjectKey struct {
	Kind      string // e.g. "plots"
	DatasetID string
	Date      string // in YYYY-MM-DD format
	RunID     model.RunID
	Extension string
}

func (k ObjectKey) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s.%s", k.Kind, k.DatasetID, k.Date, k.RunID, k.Extension)
}
