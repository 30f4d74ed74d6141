package retrieval

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zonca/cloudbank-showcase/internal/model"
)

// ResolveLocal describes a local file as a dataset entry. The format is
// assumed, not sniffed; the size is left unknown when the file is missing.
func ResolveLocal(path string) (model.DatasetEntry, error) {
	abs, err := expandPath(path)
	if err != nil {
		return model.DatasetEntry{}, fmt.Errorf("resolve local path %q: %w", path, err)
	}

	var size *int64
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		n := info.Size()
		size = &n
	}

	return model.NewDatasetEntry(filepath.Base(abs), "NetCDF", size, model.LocalScheme+abs)
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	// Follow symlinks only when the target exists.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}
