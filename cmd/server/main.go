package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/limaJavier/examtabling/internal/api"
	"github.com/limaJavier/examtabling/internal/config"
	"github.com/limaJavier/examtabling/internal/jobs"
	"github.com/limaJavier/examtabling/internal/logger"
	"github.com/limaJavier/examtabling/internal/snapshot"
	"github.com/limaJavier/examtabling/pkg/model"
	"github.com/limaJavier/examtabling/pkg/sat"
	"go.uber.org/zap"
)

func main() {
	sat.ServeWorker() // Gophersat searches run in a child copy of this binary

	configPathPtr := flag.String("config", "", "Path to the settings file; if empty, examtabling.yaml is looked up in the working directory")
	flag.Parse()

	// Load configuration
	settings, err := config.Load(*configPathPtr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load settings: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(settings.Env, settings.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "cannot initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()
	defer log.Sync()

	log.Info("starting examtabling server",
		zap.String("address", settings.Address),
		zap.String("solver", settings.Solver),
		zap.String("store", settings.Store.Kind),
		zap.Int("concurrency", settings.Jobs.Concurrency),
	)

	// Snapshots are optional: without a store, runs live as long as the process
	store, err := snapshot.FromSettings(settings.Store)
	if err != nil {
		log.Warn("running without snapshot store", zap.Error(err))
	}

	timetabler := model.NewPseudoBooleanTimetabler(sat.Solvers[settings.Solver](), log)
	registry := jobs.NewRegistry(timetabler, jobs.Options{
		Store:       store,
		Concurrency: settings.Jobs.Concurrency,
		Retention:   settings.Jobs.Retention,
	}, log)
	server := api.NewServer(registry, timetabler, store, settings.Model, log)

	httpServer := &http.Server{
		Addr:         settings.Address,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("examtabling server stopped")
}
