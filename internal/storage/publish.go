package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/zonca/cloudbank-showcase/internal/model"
)

// FileUploader writes a local file to object storage.
type FileUploader interface {
	PutFile(ctx context.Context, key, path string) error
}

// PublishPlot uploads the rendered plot under plots/<dataset>/<date>/<run>.<ext>
// and returns the object key.
func PublishPlot(ctx context.Context, up FileUploader, datasetID string, runID model.RunID, at time.Time, path string) (string, error) {
	if err := runID.Validate(); err != nil {
		return "", err
	}

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		ext = "png"
	}
	key := ObjectKey{
		Kind:      "plots",
		DatasetID: datasetID,
		Date:      at.UTC().Format("2006-01-02"),
		RunID:     runID,
		Extension: ext,
	}

	slog.DebugContext(ctx, "publishing plot", "path", path, "key", key.Key(), "run_id", runID)

	if err := up.PutFile(ctx, key.Key(), path); err != nil {
		return "", fmt.Errorf("store: %w", err)
	}

	slog.InfoContext(ctx, "plot published", "key", key.Key(), "run_id", runID)
	return key.Key(), nil
}
