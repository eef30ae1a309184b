package ingest

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"fmworker/internal/archive"
	"fmworker/internal/config"
	"fmworker/internal/dataset"
	"fmworker/internal/logger"
	"fmworker/internal/storage"
)

// ArchiveName is the filename of the assembled raw dataset.
const ArchiveName = "fashion_mnist.npz"

// splitFiles maps split-qualified array names onto the published
// Fashion-MNIST IDX files.
var splitFiles = []struct {
	Key  string
	File string
}{
	{"X_train", "train-images-idx3-ubyte.gz"},
	{"y_train", "train-labels-idx1-ubyte.gz"},
	{"X_test", "t10k-images-idx3-ubyte.gz"},
	{"y_test", "t10k-labels-idx1-ubyte.gz"},
}

// Ingestor assembles the raw dataset archive from the published IDX files.
type Ingestor struct {
	fetcher *Fetcher
	logger  *logger.Logger
}

// New creates an ingestor.
func New(cfg *config.IngestConfig, log *logger.Logger) *Ingestor {
	return &Ingestor{
		fetcher: NewFetcher(&cfg.Retry, log),
		logger:  log,
	}
}

// BuildDataset fetches and decodes all four splits from baseURL.
func (i *Ingestor) BuildDataset(ctx context.Context, baseURL string) (*dataset.Dataset, error) {
	ds := dataset.New()

	for _, sf := range splitFiles {
		url := baseURL + "/" + sf.File

		raw, err := i.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}

		arr, err := DecodeGzipIDX(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", sf.File, err)
		}

		i.logger.Info("decoded split", "key", sf.Key, "shape", arr.String())

		if err := ds.Set(sf.Key, arr); err != nil {
			return nil, err
		}
	}

	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("ingested dataset invalid: %w", err)
	}

	return ds, nil
}

// WriteArchive saves the dataset and the class-name manifest into dir and
// returns the archive path.
func (i *Ingestor) WriteArchive(ds *dataset.Dataset, dir string) (string, error) {
	archivePath := filepath.Join(dir, ArchiveName)
	if err := archive.Save(archivePath, ds); err != nil {
		return "", err
	}

	manifestPath := filepath.Join(dir, dataset.ClassNamesFile)
	if err := dataset.SaveClassNames(manifestPath, dataset.FashionMNISTClasses); err != nil {
		return "", err
	}

	return archivePath, nil
}

// UploadArchive pushes a local raw archive and its manifest to the remote
// prefix.
func (i *Ingestor) UploadArchive(ctx context.Context, gw storage.Gateway, dir, remotePrefix string) error {
	local := filepath.Join(dir, ArchiveName)
	if err := gw.Upload(ctx, local, storage.Join(remotePrefix, ArchiveName)); err != nil {
		return fmt.Errorf("failed to upload archive: %w", err)
	}

	manifest := filepath.Join(dir, dataset.ClassNamesFile)
	if err := gw.Upload(ctx, manifest, storage.Join(remotePrefix, dataset.ClassNamesFile)); err != nil {
		return fmt.Errorf("failed to upload manifest: %w", err)
	}

	return nil
}
