package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/zonca/cloudbank-showcase/internal/model"
)

const (
	// ObjectStoreScheme is the only location scheme rewritten before download.
	ObjectStoreScheme = "gs://"
	// DefaultHTTPSBase is the public HTTPS mirror for ObjectStoreScheme.
	DefaultHTTPSBase = "https://storage.googleapis.com/"
	// DefaultChunkSize bounds memory use while streaming a download.
	DefaultChunkSize = 1 << 20
)

// FetcherConfig holds download settings.
type FetcherConfig struct {
	DataDir   string
	HTTPSBase string
	Timeout   time.Duration
	// SkipExisting reuses a destination file whose size matches the entry's
	// known size instead of downloading it again.
	SkipExisting bool
}

// Fetcher materializes dataset entries on local disk.
type Fetcher struct {
	dataDir      string
	httpsBase    string
	skipExisting bool
	httpClient   *http.Client

	// Streaming configuration (internal)
	chunkSize int
	create    func(name string) (io.WriteCloser, error)
}

// NewFetcher creates a Fetcher writing under cfg.DataDir.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	f := &Fetcher{
		dataDir:      cfg.DataDir,
		httpsBase:    cfg.HTTPSBase,
		skipExisting: cfg.SkipExisting,
		chunkSize:    DefaultChunkSize,
		create: func(name string) (io.WriteCloser, error) {
			return os.Create(name)
		},
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	if f.dataDir == "" {
		f.dataDir = "data"
	}
	if f.httpsBase == "" {
		f.httpsBase = DefaultHTTPSBase
	}
	if f.httpClient.Timeout <= 0 {
		f.httpClient.Timeout = 300 * time.Second
	}
	return f
}

// Fetch returns a local path for entry. Local entries are returned without
// any I/O; remote ones are streamed to <DataDir>/<last path segment>.
func (f *Fetcher) Fetch(ctx context.Context, entry model.DatasetEntry) (string, error) {
	if entry.IsLocal() {
		localPath := entry.LocalPath()
		slog.InfoContext(ctx, "using local file", "path", localPath)
		return localPath, nil
	}

	downloadURL := f.DownloadURL(entry.Location)
	name, err := fileName(entry.Location)
	if err != nil {
		return "", &RetrievalError{URL: downloadURL, Err: err}
	}
	dest := filepath.Join(f.dataDir, name)

	if f.skipExisting && entry.ByteSize != nil {
		if info, err := os.Stat(dest); err == nil && info.Size() == *entry.ByteSize {
			slog.InfoContext(ctx, "reusing existing download", "path", dest, "bytes", info.Size())
			return dest, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", &RetrievalError{URL: downloadURL, Err: fmt.Errorf("create data dir: %w", err)}
	}

	slog.InfoContext(ctx, "downloading dataset", "url", downloadURL, "dest", dest)
	written, err := f.download(ctx, downloadURL, dest)
	if err != nil {
		return "", &RetrievalError{URL: downloadURL, Err: err}
	}

	slog.InfoContext(ctx, "download saved",
		"path", dest,
		"bytes", written,
		"mib", fmt.Sprintf("%.1f", float64(written)/(1024*1024)),
	)
	return dest, nil
}

// DownloadURL rewrites an object-store location to its HTTPS mirror.
// Other locations are returned unchanged.
func (f *Fetcher) DownloadURL(location string) string {
	if strings.HasPrefix(location, ObjectStoreScheme) {
		return f.httpsBase + strings.TrimPrefix(location, ObjectStoreScheme)
	}
	return location
}

func (f *Fetcher) download(ctx context.Context, downloadURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &statusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	out, err := f.create(dest)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dest, err)
	}

	written, err := f.stream(out, resp.Body)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", dest, cerr)
	}
	return written, err
}

// stream copies r to w in chunkSize pieces. Every chunk except the last is
// full, so a body of n bytes takes ceil(n/chunkSize) writes.
func (f *Fetcher) stream(w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, f.chunkSize)
	var total int64
	for {
		n, rerr := fill(r, buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			total += int64(m)
			if werr != nil {
				return total, fmt.Errorf("write chunk: %w", werr)
			}
			if m != n {
				return total, fmt.Errorf("write chunk: %w", io.ErrShortWrite)
			}
		}
		switch {
		case rerr == nil:
		case errors.Is(rerr, io.EOF):
			return total, nil
		default:
			return total, fmt.Errorf("read body: %w", rerr)
		}
	}
}

// fill reads until buf is full or r fails. Unlike io.ReadFull it passes the
// reader's own error through, so a truncated body is not mistaken for EOF.
func fill(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// fileName returns the final path segment of a location.
func fileName(location string) (string, error) {
	p := location
	if u, err := url.Parse(location); err == nil && u.Scheme != "" {
		p = u.Path
	}
	name := path.Base(p)
	if name == "." || name == ".." || name == "/" || name == "" {
		return "", fmt.Errorf("cannot derive a file name from %q", location)
	}
	return name, nil
}
