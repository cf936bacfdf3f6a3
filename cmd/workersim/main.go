package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/OldStager01/capacity-manager/internal/logger"
	"github.com/OldStager01/capacity-manager/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	port := flag.Int("port", envInt("PORT", 8080), "worker server port")
	latency := flag.Duration("latency", 50*time.Millisecond, "base latency per work request")
	variance := flag.Duration("variance", 30*time.Millisecond, "latency variance")
	errorRate := flag.Float64("error-rate", 0, "fraction of work requests that fail")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger.Setup(*logLevel, "development")
	logger.Info("Starting workflow worker simulator")

	w := worker.New(worker.Config{
		Port:        *port,
		BaseLatency: *latency,
		Variance:    *variance,
		ErrorRate:   *errorRate,
	})

	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down worker")
	return w.Stop()
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}
