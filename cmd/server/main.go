// Package main provides the trigger server exposing the pipeline over
// HTTP and storage-event endpoints.
package main

import (
	"flag"
	"fmt"
	"os"

	"fmworker/internal/config"
	"fmworker/internal/logger"
	"fmworker/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
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

	if *addr != "" {
		cfg.Worker.Server.Addr = *addr
	}

	log := logger.New(cfg.Worker.Logging.Level, cfg.Worker.Server.LogFormat, os.Stderr)

	srv := server.New(cfg, log)

	log.Info("starting trigger server", "addr", cfg.Worker.Server.Addr)

	if err := srv.Router().Run(cfg.Worker.Server.Addr); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
