package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/soltixdb/telewatch/internal/config"
	"github.com/soltixdb/telewatch/internal/fleet"
	"github.com/soltixdb/telewatch/internal/geofence"
	"github.com/soltixdb/telewatch/internal/handlers"
	"github.com/soltixdb/telewatch/internal/logging"
	"github.com/soltixdb/telewatch/internal/metadata"
	"github.com/soltixdb/telewatch/internal/monitor"
	"github.com/soltixdb/telewatch/internal/queue"
	"github.com/soltixdb/telewatch/internal/router"
	"github.com/soltixdb/telewatch/internal/services"
	"github.com/soltixdb/telewatch/internal/utils"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("Monitor service starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	// Zones come from the config file or the etcd catalog
	zones, err := loadZones(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to load zones", "error", err)
	}
	logger.Info("Geofence zones loaded", "zones", zones.Len(), "tolerance", zones.Tolerance())

	f, err := fleet.New(monitorConfig(cfg), zones, cfg.Monitor.MaxVehicles, logger)
	if err != nil {
		logger.Fatal("Failed to create fleet", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Queue wiring is optional: without it the HTTP API is the only input
	var (
		alerts  *services.AlertPublisher
		ingest  *services.IngestService
		reports *services.ReportService
	)
	if cfg.Queue.Enabled {
		logger.Info("Connecting to Queue", "type", cfg.Queue.Type, "url", cfg.Queue.URL)
		queueClient, err := queue.New(cfg.Queue, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Queue", "error", err)
		}
		defer func() { _ = queueClient.Close() }()

		codec, err := services.NewCodec(cfg.Queue.Compression)
		if err != nil {
			logger.Fatal("Invalid queue compression", "error", err)
		}
		subjects := services.SubjectsFromConfig(cfg.Queue)

		alerts = services.NewAlertPublisher(logger, queueClient, codec, subjects.Alerts)
		ingest = services.NewIngestService(logger, f, queueClient, codec, subjects, alerts)
		if err := ingest.Start(); err != nil {
			logger.Fatal("Failed to start ingest service", "error", err)
		}
		reports = services.NewReportService(logger, f, queueClient, codec, subjects.Reports, cfg.Monitor.ReportInterval)
		reports.Start(ctx)
		logger.Info("Queue connection established", "compression", codec.Algorithm().String())
	} else {
		logger.Warn("Queue disabled - samples are accepted over HTTP only")
	}

	// Log authentication status
	if cfg.Auth.Enabled {
		logger.Info("API key authentication enabled", "num_keys", len(cfg.Auth.APIKeys))
	} else {
		logger.Warn("API key authentication DISABLED - all requests will be allowed")
	}

	app := router.New(logger, handlers.New(logger, f, zones, alerts), cfg)

	// Start server in goroutine
	go func() {
		addr := cfg.GetServerAddress()
		logger.Info("Server listening", "address", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if ingest != nil {
		ingest.Stop()
	}
	if reports != nil {
		reports.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited", "vehicles", f.Len())
}

// monitorConfig assembles the per-vehicle pipeline settings
func monitorConfig(cfg *config.Config) monitor.Config {
	return monitor.Config{
		WindowCapacity: cfg.Monitor.WindowCapacity,
		Alert:          cfg.Monitor.AlertConfig(),
		Detection:      cfg.Detection,
		Scoring:        cfg.Scoring,
		Maintenance:    cfg.Maintenance,
	}
}

func loadZones(cfg *config.Config, logger *logging.Logger) (*geofence.Engine, error) {
	if !cfg.UsesEtcdZones() {
		return geofence.NewEngineFromConfig(cfg.Geofence)
	}

	logger.Info("Connecting to etcd", "endpoints", cfg.Etcd.Endpoints)
	catalog, err := metadata.NewEtcdZoneCatalog(cfg.Etcd, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = catalog.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), utils.ZoneLoadTimeout)
	defer cancel()
	return metadata.LoadEngine(ctx, catalog, cfg.Geofence)
}
