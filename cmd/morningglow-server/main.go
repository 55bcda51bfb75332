// Command morningglow-server proxies bed photos to the vision model and
// returns a validated score breakdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/morningglow/pkg/config"
	"github.com/codeGROOVE-dev/morningglow/pkg/gemini"
	"github.com/codeGROOVE-dev/morningglow/pkg/proxy"
	"github.com/codeGROOVE-dev/morningglow/pkg/server"
)

var (
	configPath   = flag.String("config", "", "Config file (default ~/.config/morningglow/config.yaml)")
	port         = flag.Int("port", 0, "Port for web server (or set PORT)")
	geminiAPIKey = flag.String("gemini-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	gcpProject   = flag.String("gcp-project", "", "GCP project ID (or set GCP_PROJECT)")
	strictScore  = flag.Bool("strict-score", false, "Reject results whose score disagrees with the breakdown")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	version      = flag.Bool("version", false, "Show version")
)

const versionString = "Morning Glow Server v1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Println(versionString)
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	applyOverrides(cfg)

	if cfg.Gemini.APIKey == "" && cfg.Gemini.GCPProject == "" {
		logger.Warn("No Gemini API key or GCP project configured, falling back to Application Default Credentials")
	}

	metrics := server.NewMetrics()
	vision := gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.GCPProject, logger)
	analyzer := proxy.New(vision, logger,
		proxy.WithStrictScore(cfg.Gemini.StrictScore),
		proxy.WithMismatchHook(metrics.ObserveMismatch),
		proxy.WithUpstreamHook(metrics.ObserveUpstream),
	)
	srv := server.New(analyzer, logger, server.Options{
		Metrics:      metrics,
		AllowOrigin:  cfg.Server.AllowOrigin,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		RateLimit:    cfg.Server.RateLimit,
	})

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Server.Port, "model", vision.Model(),
			"strict_score", cfg.Gemini.StrictScore, "rate_limit", cfg.Server.RateLimit)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}

// applyOverrides layers flags, then the conventional unprefixed environment
// variables, over the loaded config.
func applyOverrides(cfg *config.Config) {
	if *port == 0 {
		if p, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
			*port = p
		}
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	if *geminiAPIKey == "" {
		*geminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if *geminiAPIKey != "" {
		cfg.Gemini.APIKey = *geminiAPIKey
	}

	if *gcpProject == "" {
		*gcpProject = os.Getenv("GCP_PROJECT")
	}
	if *gcpProject != "" {
		cfg.Gemini.GCPProject = *gcpProject
	}

	if *strictScore {
		cfg.Gemini.StrictScore = true
	}
}
