package pipeline

import (
	"path"
	"strings"

	"fmworker/internal/storage"
)

// DeriveOutputDir maps an input location to its output directory by
// appending the suffix to the input's parent segment:
// gs://b/fashion/raw/ds.npz -> gs://b/fashion/raw_normalized.
func DeriveOutputDir(inputPath, suffix string) string {
	return storage.Dir(inputPath) + suffix
}

// DeriveNormalizedName inserts the suffix before the file extension:
// dataset.npz -> dataset_normalized.npz.
func DeriveNormalizedName(name, suffix string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + suffix + ext
}

// IsNormalizedPath reports whether the path already lives inside a
// normalized location or carries the normalized filename suffix. The
// storage-event adapter uses it to avoid reprocessing loops.
func IsNormalizedPath(p, suffix string) bool {
	for seg := range strings.SplitSeq(p, "/") {
		if strings.HasSuffix(seg, suffix) {
			return true
		}

		if ext := path.Ext(seg); ext != "" && strings.HasSuffix(strings.TrimSuffix(seg, ext), suffix) {
			return true
		}
	}

	return false
}
