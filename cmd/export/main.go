// Package main provides the export tool: NPZ archive to per-sample JPEG
// files plus a CSV manifest.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"fmworker/internal/archive"
	"fmworker/internal/config"
	"fmworker/internal/dataset"
	"fmworker/internal/export"
	"fmworker/internal/logger"
)

func main() {
	inputPath := flag.String("input", "", "Path to NPZ archive (required)")
	outDir := flag.String("outdir", "export", "Output directory for JPEG files and manifest")
	classesPath := flag.String("classes", "", "Path to class_names.json (defaults to the archive's directory)")
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	if *inputPath == "" {
		fmt.Println("Usage: export -input <archive.npz> [-outdir <dir>] [-classes <file>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.Default()

	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		cfg = loaded
	}

	log := logger.NewLogger(cfg.Worker.Logging.Level)

	ds, err := archive.Load(*inputPath)
	if err != nil {
		log.Error("failed to load archive", "path", *inputPath, "error", err)
		os.Exit(1)
	}

	classNames := loadClassNames(*classesPath, *inputPath, log)

	summary, err := export.New(&cfg.Worker.Export, log).Export(ds, classNames, *outDir)
	if err != nil {
		log.Error("export failed", "error", err)
		os.Exit(1)
	}

	log.Info("export complete",
		"images", summary.Images,
		"splits", len(summary.Splits),
		"manifest", summary.Manifest,
	)
}

// loadClassNames tries the explicit path first, then the manifest next to
// the archive. Absence is fine; the manifest column stays empty.
func loadClassNames(explicit, archivePath string, log *logger.Logger) []string {
	path := explicit
	if path == "" {
		path = filepath.Join(filepath.Dir(archivePath), dataset.ClassNamesFile)
	}

	names, err := dataset.LoadClassNames(path)
	if err != nil {
		if explicit != "" {
			log.Warn("failed to load class names", "path", path, "error", err)
		}

		return nil
	}

	return names
}
