// Package export converts a dataset's image arrays into per-sample
// grayscale JPEG files plus a CSV manifest, the repo's second storage
// format next to the NPZ archive.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fmworker/internal/config"
	"fmworker/internal/dataset"
	"fmworker/internal/logger"
)

// ManifestName is the CSV manifest filename.
const ManifestName = "manifest.csv"

// Export errors.
var (
	ErrNoImageArrays = errors.New("dataset has no uint8 image arrays")
	ErrBadImageShape = errors.New("image array must have shape (n, height, width)")
)

// Exporter writes JPEG trees and manifests.
type Exporter struct {
	quality int
	logger  *logger.Logger
}

// Summary reports what an export produced.
type Summary struct {
	Images   int
	Splits   []string
	Manifest string
}

// New creates an exporter.
func New(cfg *config.ExportConfig, log *logger.Logger) *Exporter {
	return &Exporter{quality: cfg.JPEGQuality, logger: log}
}

// Export writes one JPEG per sample of every uint8 image array X_<split>
// into outDir/<split>/, and a manifest.csv with columns filename, split,
// index, label, class_name. Labels come from the paired y_<split> array;
// class names are optional.
func (e *Exporter) Export(ds *dataset.Dataset, classNames []string, outDir string) (*Summary, error) {
	manifestPath := filepath.Join(outDir, ManifestName)

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	mf, err := os.Create(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest: %w", err)
	}
	defer mf.Close()

	w := csv.NewWriter(mf)

	if err := w.Write([]string{"filename", "split", "index", "label", "class_name"}); err != nil {
		return nil, fmt.Errorf("failed to write manifest header: %w", err)
	}

	summary := &Summary{Manifest: manifestPath}

	for _, key := range ds.Keys() {
		split, ok := strings.CutPrefix(key, "X_")
		if !ok {
			continue
		}

		images := ds.Get(key)
		if images.DType != dataset.Uint8 {
			e.logger.Warn("skipping non-uint8 image array", "key", key, "dtype", images.DType)
			continue
		}

		if err := e.exportSplit(w, images, ds.Get("y_"+split), classNames, split, outDir); err != nil {
			return nil, err
		}

		summary.Splits = append(summary.Splits, split)
		summary.Images += images.Samples()
	}

	if len(summary.Splits) == 0 {
		return nil, ErrNoImageArrays
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush manifest: %w", err)
	}

	return summary, nil
}

func (e *Exporter) exportSplit(w *csv.Writer, images, labels *dataset.Array, classNames []string, split, outDir string) error {
	if len(images.Shape) != 3 {
		return fmt.Errorf("%w: X_%s is %s", ErrBadImageShape, split, images.String())
	}

	n, height, width := images.Shape[0], images.Shape[1], images.Shape[2]
	pixels := images.Uint8()

	splitDir := filepath.Join(outDir, split)
	if err := os.MkdirAll(splitDir, 0755); err != nil {
		return fmt.Errorf("failed to create split directory: %w", err)
	}

	for i := range n {
		img := image.NewGray(image.Rect(0, 0, width, height))
		copy(img.Pix, pixels[i*height*width:(i+1)*height*width])

		name := fmt.Sprintf("%05d.jpg", i)

		if err := e.writeJPEG(filepath.Join(splitDir, name), img); err != nil {
			return err
		}

		label := ""
		className := ""

		if labels != nil && i < labels.Samples() {
			v := labelAt(labels, i)
			label = strconv.Itoa(v)

			if v >= 0 && v < len(classNames) {
				className = classNames[v]
			}
		}

		record := []string{filepath.Join(split, name), split, strconv.Itoa(i), label, className}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write manifest row: %w", err)
		}
	}

	return nil
}

func (e *Exporter) writeJPEG(path string, img *image.Gray) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: e.quality}); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	return f.Close()
}

// labelAt reads a label value regardless of the label array's dtype.
func labelAt(labels *dataset.Array, i int) int {
	switch labels.DType {
	case dataset.Uint8:
		return int(labels.Uint8()[i])
	case dataset.Int64:
		return int(labels.Int64()[i])
	default:
		return -1
	}
}
