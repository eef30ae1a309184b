package ingest

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"fmworker/internal/archive"
	"fmworker/internal/config"
	"fmworker/internal/dataset"
	"fmworker/internal/logger"
)

// gzipIDX builds a gzip-wrapped IDX stream of zero bytes for shape.
func gzipIDX(t *testing.T, shape []int) []byte {
	t.Helper()

	var idx bytes.Buffer
	idx.Write([]byte{0, 0, idxUByte, byte(len(shape))})

	for _, d := range shape {
		if err := binary.Write(&idx, binary.BigEndian, uint32(d)); err != nil {
			t.Fatalf("binary.Write failed: %v", err)
		}
	}

	idx.Write(make([]byte, dataset.NumElements(shape)))

	var out bytes.Buffer
	gz := gzip.NewWriter(&out)

	if _, err := gz.Write(idx.Bytes()); err != nil {
		t.Fatalf("gzip write failed: %v", err)
	}

	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close failed: %v", err)
	}

	return out.Bytes()
}

func testIngestServer(t *testing.T) *httptest.Server {
	t.Helper()

	files := map[string][]byte{
		"/train-images-idx3-ubyte.gz": gzipIDX(t, []int{4, 2, 2}),
		"/train-labels-idx1-ubyte.gz": gzipIDX(t, []int{4}),
		"/t10k-images-idx3-ubyte.gz":  gzipIDX(t, []int{2, 2, 2}),
		"/t10k-labels-idx1-ubyte.gz":  gzipIDX(t, []int{2}),
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Write(body)
	}))
}

func TestBuildDataset(t *testing.T) {
	srv := testIngestServer(t)
	defer srv.Close()

	cfg := config.Default().Worker.Ingest
	ing := New(&cfg, logger.NewNop())

	ds, err := ing.BuildDataset(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("BuildDataset failed: %v", err)
	}

	if ds.Len() != 4 {
		t.Fatalf("dataset has %d arrays, want 4", ds.Len())
	}

	for _, key := range []string{"X_train", "y_train", "X_test", "y_test"} {
		if !ds.Has(key) {
			t.Errorf("missing array %s", key)
		}
	}

	if got := ds.Get("X_train").Samples(); got != 4 {
		t.Errorf("X_train samples = %d, want 4", got)
	}
}

func TestBuildDataset_MissingFile(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cfg := config.Default().Worker.Ingest
	cfg.Retry.MaxAttempts = 1

	ing := New(&cfg, logger.NewNop())

	if _, err := ing.BuildDataset(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for missing files")
	}
}

func TestWriteArchive(t *testing.T) {
	srv := testIngestServer(t)
	defer srv.Close()

	cfg := config.Default().Worker.Ingest
	ing := New(&cfg, logger.NewNop())

	ds, err := ing.BuildDataset(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("BuildDataset failed: %v", err)
	}

	dir := t.TempDir()

	archivePath, err := ing.WriteArchive(ds, dir)
	if err != nil {
		t.Fatalf("WriteArchive failed: %v", err)
	}

	loaded, err := archive.Load(archivePath)
	if err != nil {
		t.Fatalf("Load of written archive failed: %v", err)
	}

	if loaded.Len() != 4 {
		t.Errorf("archive holds %d arrays, want 4", loaded.Len())
	}

	names, err := dataset.LoadClassNames(filepath.Join(dir, dataset.ClassNamesFile))
	if err != nil {
		t.Fatalf("manifest missing: %v", err)
	}

	if len(names) != 10 || names[0] != "T-shirt/top" {
		t.Errorf("unexpected class names: %v", names)
	}

	if _, err := os.Stat(archivePath); err != nil {
		t.Errorf("archive file missing: %v", err)
	}
}
