package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/giygas/glycemia-api/config"
	"github.com/giygas/glycemia-api/data"
	"github.com/giygas/glycemia-api/dosage"
	"github.com/giygas/glycemia-api/handlers"
	"github.com/giygas/glycemia-api/health"
	"github.com/giygas/glycemia-api/knowledgebase"
	"github.com/giygas/glycemia-api/logging"
	"github.com/giygas/glycemia-api/metrics"
	"github.com/giygas/glycemia-api/risk"
	"github.com/giygas/glycemia-api/scheduler"
	"github.com/giygas/glycemia-api/server"
	"github.com/joho/godotenv"
)

func init() {
	// Get the working directory and read the env variables
	err := godotenv.Load()
	if err != nil {
		// If failed, try loading from executable directory
		ex, err := os.Executable()
		if err != nil {
			slog.Error("Failed to get executable path", "error", err)
			os.Exit(1)
		}

		exPath := filepath.Dir(ex)
		if err := os.Chdir(exPath); err != nil {
			slog.Error("Failed to change directory", "error", err)
			os.Exit(1)
		}

		// A missing .env is fine; the environment may already be set
		_ = godotenv.Load()
	}
}

// loadKnowledgeBase reads the guideline file once so the published table and
// its checksum come from the same bytes. A missing file falls back to the
// built-in table with an empty source.
func loadKnowledgeBase(path string) (kb *knowledgebase.KnowledgeBase, checksum, source string, err error) {
	if path == "" {
		return knowledgebase.Default(), "", "", nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Warn("Guideline file not found, using built-in knowledge base", "path", path)
		return knowledgebase.Default(), "", "", nil
	}
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to read knowledge base %s: %w", path, err)
	}

	kb, err = knowledgebase.Parse(raw)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to load knowledge base %s: %w", path, err)
	}

	return kb, knowledgebase.Checksum(raw), path, nil
}

// policyFrom derives the calculator policy from the guideline table
func policyFrom(kb *knowledgebase.KnowledgeBase) dosage.Policy {
	return dosage.Policy{
		RoundingIncrement: kb.Dosing.RoundingIncrement,
		SafetyCapUnits:    kb.Dosing.SafetyCapUnits,
		PlausibleGlucose:  kb.PlausibleGlucose,
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.InitLogger(logging.Options{
		Dir:            "logs",
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})
	defer logging.Close()

	kb, checksum, source, err := loadKnowledgeBase(cfg.KnowledgeBasePath)
	if err != nil {
		logging.Error("Failed to load knowledge base", "error", err)
		os.Exit(1)
	}

	container := data.NewDataContainer()
	container.SetServerStartTime(time.Now())
	if err := container.Publish(kb, checksum, source); err != nil {
		logging.Error("Failed to publish knowledge base", "error", err)
		os.Exit(1)
	}
	metrics.SetKnowledgeBase(kb.Version, checksum)

	calculator, err := dosage.NewCalculator(policyFrom(kb))
	if err != nil {
		logging.Error("Invalid dosing policy", "error", err)
		os.Exit(1)
	}

	classifier, err := risk.NewClassifier(kb)
	if err != nil {
		logging.Error("Failed to create risk classifier", "error", err)
		os.Exit(1)
	}

	handler := handlers.NewHTTPHandler(container, calculator, classifier,
		health.NewHealthChecker(container), cfg.MaxRequestBody)

	sched := scheduler.NewScheduler(container, cfg.GuidelineCheckInterval)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	srv := server.NewServer(cfg, handler)

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Block until a signal is received
	sig := <-quit
	logging.Info("Received shutdown signal", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server shutdown failed", "error", err)
	}
	sched.Stop()
}
