package portal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/zonca/cloudbank-showcase/internal/model"
)

// datasetsResponse is the raw API response for GET /datasets. Records are
// kept raw so that one malformed record cannot fail the whole listing.
type datasetsResponse struct {
	Datasets []json.RawMessage `json:"datasets"`
}

// datasetItem is one raw catalog record. Every field may be absent or of an
// unexpected JSON type.
type datasetItem struct {
	ID       any `json:"id"`
	Format   any `json:"format"`
	Bytes    any `json:"bytes"`
	Location any `json:"location"`
}

func decodeItem(raw json.RawMessage) (datasetItem, error) {
	var item datasetItem
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&item); err != nil {
		return datasetItem{}, fmt.Errorf("decode catalog entry: %w", err)
	}
	return item, nil
}

func (d datasetItem) toEntry() (model.DatasetEntry, error) {
	location, _ := d.Location.(string)
	return model.NewDatasetEntry(text(d.ID), text(d.Format), d.size(), location)
}

// text renders scalar values as strings; null and composite values are empty.
func text(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// size tolerates missing, null and non-integer values by treating them as unknown.
func (d datasetItem) size() *int64 {
	var s string
	switch v := d.Bytes.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = strings.TrimSpace(v)
	default:
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
