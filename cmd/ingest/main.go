// Package main provides the Fashion-MNIST ingestion tool: fetch the
// published IDX files, assemble the NPZ archive and class-name manifest,
// and optionally push them to object storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"fmworker/internal/config"
	"fmworker/internal/ingest"
	"fmworker/internal/logger"
	"fmworker/internal/storage"
)

func main() {
	outDir := flag.String("out", "data", "Local directory for the assembled archive")
	upload := flag.String("upload", "", "Remote prefix to push the archive to (e.g. gs://bucket/fashion-mnist/raw)")
	baseURL := flag.String("base-url", "", "Dataset base URL (overrides config)")
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	cfg := config.Default()

	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		cfg = loaded
	}

	if *baseURL != "" {
		cfg.Worker.Ingest.BaseURL = *baseURL
	}

	log := logger.NewLogger(cfg.Worker.Logging.Level)
	ctx := context.Background()

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Error("failed to create output directory", "dir", *outDir, "error", err)
		os.Exit(1)
	}

	ing := ingest.New(&cfg.Worker.Ingest, log)

	log.Info("fetching Fashion-MNIST splits", "base_url", cfg.Worker.Ingest.BaseURL)

	ds, err := ing.BuildDataset(ctx, cfg.Worker.Ingest.BaseURL)
	if err != nil {
		log.Error("ingestion failed", "error", err)
		os.Exit(1)
	}

	archivePath, err := ing.WriteArchive(ds, *outDir)
	if err != nil {
		log.Error("failed to write archive", "error", err)
		os.Exit(1)
	}

	log.Info("wrote raw archive", "path", archivePath, "arrays", ds.Len())

	if *upload == "" {
		return
	}

	gw, err := storage.ForPath(ctx, *upload)
	if err != nil {
		log.Error("failed to open storage gateway", "prefix", *upload, "error", err)
		os.Exit(1)
	}
	defer gw.Close()

	if err := ing.UploadArchive(ctx, gw, *outDir, *upload); err != nil {
		log.Error("upload failed", "prefix", *upload, "error", err)
		os.Exit(1)
	}

	log.Info("uploaded raw archive", "prefix", *upload)
}
