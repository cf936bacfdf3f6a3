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

	"github.com/OldStager01/capacity-manager/api"
	"github.com/OldStager01/capacity-manager/internal/balancer"
	"github.com/OldStager01/capacity-manager/internal/collector"
	"github.com/OldStager01/capacity-manager/internal/events"
	"github.com/OldStager01/capacity-manager/internal/logger"
	"github.com/OldStager01/capacity-manager/internal/manager"
	"github.com/OldStager01/capacity-manager/internal/metrics"
	"github.com/OldStager01/capacity-manager/internal/orchestrator"
	"github.com/OldStager01/capacity-manager/internal/policy"
	"github.com/OldStager01/capacity-manager/pkg/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Setup(cfg.App.LogLevel, cfg.App.Mode)
	logger.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Mode)

	bus := events.NewEventBus(256)
	defer bus.Close()

	var instruments *metrics.Instruments
	if cfg.Prometheus.Enabled {
		instruments = metrics.New(cfg.Manager.ServiceName)
	}

	orch, err := buildOrchestrator(cfg.Orchestrator)
	if err != nil {
		return fmt.Errorf("failed to build orchestrator: %w", err)
	}
	defer orch.Close()

	publisher := events.NewPublisher(bus, cfg.Manager.ServiceName)

	coll := collector.New(collector.Config{
		SampleInterval:  cfg.Collector.SampleInterval,
		RetentionWindow: cfg.Collector.RetentionWindow,
		AverageWindow:   cfg.Collector.AverageWindow,
		RateWindow:      cfg.Collector.RateWindow,
	}, collector.NewGopsutilSampler(), publisher)

	algorithm, err := balancer.ParseAlgorithm(cfg.Balancer.Algorithm)
	if err != nil {
		return fmt.Errorf("invalid balancer config: %w", err)
	}
	lb := balancer.New(balancer.Config{
		Algorithm:           algorithm,
		HealthCheckInterval: cfg.Balancer.HealthCheckInterval,
		HealthCheckTimeout:  cfg.Balancer.HealthCheckTimeout,
		HealthCheckPath:     cfg.Balancer.HealthCheckPath,
		MaxRetries:          cfg.Balancer.MaxRetries,
		RequestTimeout:      cfg.Balancer.RequestTimeout,
		StickyTTL:           cfg.Balancer.StickyTTL,
	}, publisher)

	policies, err := buildPolicies(cfg)
	if err != nil {
		return fmt.Errorf("invalid policy config: %w", err)
	}

	mgr := manager.New(manager.Config{
		ServiceName:      cfg.Manager.ServiceName,
		MinInstances:     cfg.Manager.MinInstances,
		MaxInstances:     cfg.Manager.MaxInstances,
		InitialInstances: cfg.Manager.InitialInstances,
		TickInterval:     cfg.Manager.TickInterval,
		HistoryLimit:     cfg.Manager.HistoryLimit,
		AlertLimit:       cfg.Manager.AlertLimit,
		Environment:      cfg.Manager.Environment,
		Labels:           cfg.Manager.Labels,
	}, coll, policies, orch, lb, bus, instruments)

	if err := mgr.Start(); err != nil {
		return fmt.Errorf("failed to start manager: %w", err)
	}
	defer mgr.Stop()

	server := api.NewServer(cfg.API, cfg.WebSocket, cfg.App.Mode, api.Dependencies{
		Manager:      mgr,
		Collector:    coll,
		Balancer:     lb,
		Orchestrator: orch,
		Bus:          bus,
		Instruments:  instruments,
	})

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Infof("API server listening on port %d", cfg.API.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdownChan:
		logger.Infof("Received signal %v, shutting down", sig)
	}

	shutdownTimeout := cfg.App.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func buildOrchestrator(cfg config.OrchestratorConfig) (orchestrator.Orchestrator, error) {
	switch cfg.Type {
	case "mock":
		return orchestrator.NewMockOrchestrator(), nil
	case "docker", "":
		return orchestrator.NewDockerOrchestrator(orchestrator.DockerConfig{
			Image:              cfg.Image,
			NamePrefix:         cfg.NamePrefix,
			Network:            cfg.Network,
			BasePort:           cfg.BasePort,
			InternalPort:       cfg.InternalPort,
			StartTimeout:       cfg.StartTimeout,
			StopGrace:          cfg.StopGrace,
			MemoryLimit:        cfg.MemoryLimitMB * 1024 * 1024,
			NanoCPUs:           int64(cfg.CPULimit * 1e9),
			Environment:        cfg.Environment,
			BreakerMaxFailures: cfg.BreakerMaxFail,
			BreakerTimeout:     cfg.BreakerTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown orchestrator type %q", cfg.Type)
	}
}

func buildPolicies(cfg *config.Config) ([]policy.Evaluator, error) {
	individual := make([]*policy.Policy, 0, len(cfg.Policies))
	for _, pc := range cfg.Policies {
		kind, err := policy.ParseKind(pc.Kind)
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", pc.Name, err)
		}

		individual = append(individual, policy.New(policy.Config{
			Name:               pc.Name,
			Kind:               kind,
			ScaleUpThreshold:   pc.ScaleUpThreshold,
			ScaleDownThreshold: pc.ScaleDownThreshold,
			CooldownPeriod:     pc.CooldownPeriod,
			MinInstances:       pc.MinInstances,
			MaxInstances:       pc.MaxInstances,
			ScaleFactor:        pc.ScaleFactor,
			MaxRequestRate:     pc.MaxRequestRate,
			MaxResponseTime:    time.Duration(pc.MaxResponseTimeMS) * time.Millisecond,
			Enabled:            pc.Enabled,
		}))
	}

	if cfg.Manager.CompositePolicy {
		return []policy.Evaluator{policy.NewComposite("composite", individual...)}, nil
	}

	evaluators := make([]policy.Evaluator, 0, len(individual))
	for _, p := range individual {
		evaluators = append(evaluators, p)
	}
	return evaluators, nil
}
