package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"fmworker/internal/dataset"
)

// ErrNoEntries is returned when an archive holds no .npy members.
var ErrNoEntries = errors.New("archive has no array entries")

// Fixed entry timestamp so identical inputs produce byte-identical output.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Load reads an NPZ archive from disk into a Dataset. A missing path
// surfaces as the underlying fs error; an unreadable container or entry
// wraps ErrCorrupt.
func Load(path string) (*dataset.Dataset, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
		}

		return nil, fmt.Errorf("failed to open archive %s: %w: %v", path, ErrCorrupt, err)
	}
	defer zr.Close()

	ds := dataset.New()

	for _, entry := range zr.File {
		name, ok := strings.CutSuffix(entry.Name, ".npy")
		if !ok {
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open entry %s: %w: %v", entry.Name, ErrCorrupt, err)
		}

		arr, err := ReadNPY(rc)
		rc.Close()

		if err != nil {
			return nil, fmt.Errorf("failed to decode entry %s: %w", entry.Name, err)
		}

		if err := ds.Set(name, arr); err != nil {
			return nil, err
		}
	}

	if ds.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoEntries)
	}

	return ds, nil
}

// Save writes the dataset to path as a deflate-compressed NPZ archive,
// overwriting any existing file. Entries are written in sorted key order
// with a fixed timestamp, so saving the same dataset twice produces
// identical bytes.
func Save(path string, ds *dataset.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", path, err)
	}

	zw := zip.NewWriter(f)

	for _, key := range ds.Keys() {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     key + ".npy",
			Method:   zip.Deflate,
			Modified: zipEpoch,
		})
		if err != nil {
			f.Close()
			return fmt.Errorf("failed to create entry %s: %w", key, err)
		}

		if err := WriteNPY(w, ds.Get(key)); err != nil {
			f.Close()
			return fmt.Errorf("failed to encode entry %s: %w", key, err)
		}
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finalize archive %s: %w", path, err)
	}

	return f.Close()
}
