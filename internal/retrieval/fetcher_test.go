package retrieval

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/zonca/cloudbank-showcase/internal/model"
)

// countingFile records every Write call made by the fetcher.
type countingFile struct {
	buf      bytes.Buffer
	writes   int
	maxWrite int
	closed   bool
}

func (c *countingFile) Write(p []byte) (int, error) {
	c.writes++
	if len(p) > c.maxWrite {
		c.maxWrite = len(p)
	}
	return c.buf.Write(p)
}

func (c *countingFile) Close() error {
	c.closed = true
	return nil
}

func newTestFetcher(t *testing.T, serverURL string) *Fetcher {
	t.Helper()
	return NewFetcher(FetcherConfig{
		DataDir:   filepath.Join(t.TempDir(), "data"),
		HTTPSBase: serverURL + "/",
		Timeout:   5 * time.Second,
	})
}

func TestFetcher_Fetch_LocalEntry(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	f := newTestFetcher(t, server.URL)

	got, err := f.Fetch(context.Background(), entry("b.nc", "NetCDF", "file:///srv/data/b.nc"))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got != "/srv/data/b.nc" {
		t.Errorf("Fetch() = %q, want /srv/data/b.nc", got)
	}
	if calls != 0 {
		t.Errorf("expected no network calls for a local entry, got %d", calls)
	}
	if _, err := os.Stat(f.dataDir); !os.IsNotExist(err) {
		t.Errorf("expected data dir to stay untouched, stat err = %v", err)
	}
}

func TestFetcher_Fetch_ObjectStoreRewrite(t *testing.T) {
	body := []byte("CDF\x01 fake netcdf payload")
	var paths []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write(body)
	}))
	defer server.Close()

	f := newTestFetcher(t, server.URL)

	got, err := f.Fetch(context.Background(), entry("file.nc", "NetCDF", "gs://bucket/file.nc"))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(paths) != 1 || paths[0] != "/bucket/file.nc" {
		t.Fatalf("expected one request to /bucket/file.nc, got %v", paths)
	}
	if want := filepath.Join(f.dataDir, "file.nc"); got != want {
		t.Errorf("Fetch() = %q, want %q", got, want)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("failed to read download: %v", err)
	}
	if !bytes.Equal(data, body) {
		t.Errorf("downloaded content = %q, want %q", data, body)
	}
}

func TestFetcher_DownloadURL(t *testing.T) {
	f := NewFetcher(FetcherConfig{})

	tests := []struct {
		location string
		want     string
	}{
		{"gs://bucket/file.nc", "https://storage.googleapis.com/bucket/file.nc"},
		{"gs://bucket/nested/dir/file.nc", "https://storage.googleapis.com/bucket/nested/dir/file.nc"},
		{"https://example.org/file.nc", "https://example.org/file.nc"},
		{"http://example.org/gs://file.nc", "http://example.org/gs://file.nc"},
	}
	for _, tt := range tests {
		if got := f.DownloadURL(tt.location); got != tt.want {
			t.Errorf("DownloadURL(%q) = %q, want %q", tt.location, got, tt.want)
		}
	}
}

func TestFetcher_Fetch_PlainHTTPS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exports/flows.nc" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("flows"))
	}))
	defer server.Close()

	f := newTestFetcher(t, "https://unused.example")

	got, err := f.Fetch(context.Background(), entry("flows.nc", "", server.URL+"/exports/flows.nc?alt=media"))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if filepath.Base(got) != "flows.nc" {
		t.Errorf("expected query string stripped from file name, got %q", got)
	}
}

func TestFetcher_Fetch_StreamsInChunks(t *testing.T) {
	const size = 10 << 20
	const chunk = 64 << 10

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(size))
		// Dribble the body in small uneven writes to exercise chunk refills.
		piece := bytes.Repeat([]byte{0xAB}, 7919)
		remaining := size
		for remaining > 0 {
			n := min(remaining, len(piece))
			if _, err := w.Write(piece[:n]); err != nil {
				return
			}
			remaining -= n
		}
	}))
	defer server.Close()

	f := newTestFetcher(t, server.URL)
	f.chunkSize = chunk
	out := &countingFile{}
	f.create = func(name string) (io.WriteCloser, error) { return out, nil }

	if _, err := f.Fetch(context.Background(), entry("big.nc", "NetCDF", "gs://bucket/big.nc")); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	wantWrites := (size + chunk - 1) / chunk
	if out.writes != wantWrites {
		t.Errorf("writes = %d, want %d", out.writes, wantWrites)
	}
	if out.maxWrite > chunk {
		t.Errorf("largest write = %d, exceeds chunk size %d", out.maxWrite, chunk)
	}
	if out.buf.Len() != size {
		t.Errorf("written bytes = %d, want %d", out.buf.Len(), size)
	}
	if !out.closed {
		t.Error("expected destination to be closed")
	}
}

func TestFetcher_Stream_ChunkCounts(t *testing.T) {
	f := NewFetcher(FetcherConfig{})
	f.chunkSize = 4

	tests := []struct {
		size       int
		wantWrites int
	}{
		{0, 0},
		{1, 1},
		{4, 1},
		{5, 2},
		{8, 2},
		{9, 3},
	}
	for _, tt := range tests {
		out := &countingFile{}
		n, err := f.stream(out, bytes.NewReader(make([]byte, tt.size)))
		if err != nil {
			t.Fatalf("stream(%d) error = %v", tt.size, err)
		}
		if n != int64(tt.size) || out.writes != tt.wantWrites {
			t.Errorf("stream(%d) wrote %d bytes in %d writes, want %d writes", tt.size, n, out.writes, tt.wantWrites)
		}
	}
}

type failingReader struct{ err error }

func (r failingReader) Read(p []byte) (int, error) { return 0, r.err }

func TestFetcher_Stream_ReadError(t *testing.T) {
	f := NewFetcher(FetcherConfig{})
	readErr := io.ErrUnexpectedEOF

	_, err := f.stream(&countingFile{}, io.MultiReader(strings.NewReader("abc"), failingReader{readErr}))
	if !errors.Is(err, readErr) {
		t.Fatalf("expected truncated body to fail with %v, got %v", readErr, err)
	}
}

func TestFetcher_Fetch_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f := newTestFetcher(t, server.URL)

	_, err := f.Fetch(context.Background(), entry("file.nc", "NetCDF", "gs://bucket/file.nc"))

	var retrievalErr *RetrievalError
	if !errors.As(err, &retrievalErr) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
	if retrievalErr.URL != server.URL+"/bucket/file.nc" {
		t.Errorf("URL = %q", retrievalErr.URL)
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("expected status in message, got %q", err.Error())
	}
}

func TestFetcher_Fetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := NewFetcher(FetcherConfig{
		DataDir:   t.TempDir(),
		HTTPSBase: server.URL + "/",
		Timeout:   50 * time.Millisecond,
	})

	_, err := f.Fetch(context.Background(), entry("slow.nc", "", "gs://bucket/slow.nc"))

	var retrievalErr *RetrievalError
	if !errors.As(err, &retrievalErr) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
}

func TestFetcher_Fetch_CreateError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	f := newTestFetcher(t, server.URL)
	diskErr := errors.New("disk full")
	f.create = func(name string) (io.WriteCloser, error) { return nil, diskErr }

	_, err := f.Fetch(context.Background(), entry("file.nc", "", "gs://bucket/file.nc"))
	if !errors.Is(err, diskErr) {
		t.Fatalf("expected disk error, got %v", err)
	}
	if !strings.Contains(err.Error(), "/bucket/file.nc") {
		t.Errorf("expected source URL in message, got %q", err.Error())
	}
}

func TestFetcher_Fetch_BadFileName(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	for _, location := range []string{
		"gs://bucket/",
		"gs://bucket/a/..",
		server.URL + "/data/..",
		server.URL + "/data/.",
	} {
		t.Run(location, func(t *testing.T) {
			f := NewFetcher(FetcherConfig{DataDir: t.TempDir(), HTTPSBase: server.URL + "/"})

			_, err := f.Fetch(context.Background(), entry("bucket", "", location))

			var retrievalErr *RetrievalError
			if !errors.As(err, &retrievalErr) {
				t.Fatalf("expected RetrievalError, got %v", err)
			}
		})
	}
	if calls != 0 {
		t.Errorf("expected no download attempts, got %d", calls)
	}
}

func TestFetcher_Fetch_SkipExisting(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte("fresh!"))
	}))
	defer server.Close()

	dataDir := t.TempDir()
	dest := filepath.Join(dataDir, "file.nc")
	if err := os.WriteFile(dest, []byte("cached"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(FetcherConfig{DataDir: dataDir, HTTPSBase: server.URL + "/", SkipExisting: true})

	matching := int64(6)
	e := model.DatasetEntry{ID: "file.nc", ByteSize: &matching, Location: "gs://bucket/file.nc"}
	if _, err := f.Fetch(context.Background(), e); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected cached file to be reused, got %d requests", calls)
	}

	different := int64(100)
	e.ByteSize = &different
	if _, err := f.Fetch(context.Background(), e); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected size mismatch to re-download, got %d requests", calls)
	}
}

func TestFetcher_Fetch_RedownloadsByDefault(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte("cached"))
	}))
	defer server.Close()

	dataDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dataDir, "file.nc"), []byte("cached"), 0o644); err != nil {
		t.Fatal(err)
	}
	f := NewFetcher(FetcherConfig{DataDir: dataDir, HTTPSBase: server.URL + "/"})

	size := int64(6)
	if _, err := f.Fetch(context.Background(), model.DatasetEntry{ID: "file.nc", ByteSize: &size, Location: "gs://bucket/file.nc"}); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one download, got %d", calls)
	}
}
