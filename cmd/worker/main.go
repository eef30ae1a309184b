// Package main provides the one-shot normalization pipeline runner.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"fmworker/internal/config"
	"fmworker/internal/logger"
	"fmworker/internal/pipeline"
	"fmworker/internal/storage"
)

func main() {
	inputPath := flag.String("input", "", "Input archive path (gs://bucket/prefix/ds.npz or local path)")
	outputPath := flag.String("output", "", "Output location (derived from input when empty)")
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	if *inputPath == "" {
		fmt.Println("Usage: worker -input <path> [-output <path>] [-config <file>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.Worker.Logging.Level)
	ctx := context.Background()

	gw, err := storage.ForPath(ctx, *inputPath)
	if err != nil {
		log.Error("failed to open storage gateway", "input", *inputPath, "error", err)
		os.Exit(1)
	}
	defer gw.Close()

	result := pipeline.New(gw, cfg, log).Run(ctx, *inputPath, *outputPath)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Error("failed to marshal result", "error", err)
		os.Exit(1)
	}

	fmt.Println(string(out))

	if result.Status != pipeline.StatusDone {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}

	return config.LoadConfig(path)
}
