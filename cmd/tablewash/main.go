package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tablewash/tablewash/internal/config"
	"github.com/tablewash/tablewash/internal/engine"
	"github.com/tablewash/tablewash/internal/logger"
	"github.com/tablewash/tablewash/internal/server"
	"github.com/tablewash/tablewash/internal/table"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		inputPath   = flag.String("input", "", "Path to the table to normalize (CSV, Parquet, or JSON-lines)")
		rulesPath   = flag.String("rules", "", "Path to the rule document")
		outputPath  = flag.String("output", "", "Path for the normalized CSV (default: stdout)")
		serve       = flag.Bool("serve", false, "Run the normalization HTTP service")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("tablewash %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
			MaxSize: cfg.Logging.File.MaxSize,
			MaxAge:  cfg.Logging.File.MaxAge,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *serve {
		runServer(cfg, log)
		return
	}

	if *inputPath == "" || *rulesPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: tablewash -input data.csv -rules rules.yaml [-output cleaned.csv]")
		os.Exit(2)
	}

	runBatch(cfg, log, *inputPath, *rulesPath, *outputPath)
}

// runBatch normalizes one table and writes the result as CSV.
func runBatch(cfg *config.Config, log *logger.Logger, inputPath, rulesPath, outputPath string) {
	eng := engine.New(cfg.Normalize, log.WithComponent("engine"))

	tbl, rs, err := eng.NormalizeFile(inputPath, rulesPath)
	if err != nil {
		// Diagnostics were already logged by the loaders.
		log.Error("Normalization failed", zap.Error(err))
		os.Exit(1)
	}

	if outputPath != "" {
		if err := table.Save(tbl, outputPath); err != nil {
			log.Error("Failed to write output", zap.String("path", outputPath), zap.Error(err))
			os.Exit(1)
		}
		log.Info("Normalized table written",
			zap.String("path", outputPath),
			zap.Int("rules", len(rs)),
			zap.Int("rows", tbl.Rows()))
		return
	}

	if err := tbl.WriteCSV(os.Stdout); err != nil {
		log.Error("Failed to write output", zap.Error(err))
		os.Exit(1)
	}
}

// runServer starts the HTTP service with graceful shutdown.
func runServer(cfg *config.Config, log *logger.Logger) {
	log.Info("Starting tablewash",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port))

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
