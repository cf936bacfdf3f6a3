package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/capacityd")
	}

	v.SetEnvPrefix("CAPACITYD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Policies) == 0 {
		cfg.Policies = defaultPolicies(cfg.Manager)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "capacity-manager")
	v.SetDefault("app.mode", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.shutdown_timeout", "30s")

	// Manager defaults
	v.SetDefault("manager.service_name", "workflow-worker")
	v.SetDefault("manager.min_instances", 1)
	v.SetDefault("manager.max_instances", 10)
	v.SetDefault("manager.initial_instances", 2)
	v.SetDefault("manager.tick_interval", "30s")
	v.SetDefault("manager.history_limit", 100)
	v.SetDefault("manager.alert_limit", 100)
	v.SetDefault("manager.composite_policy", false)

	// Collector defaults
	v.SetDefault("collector.sample_interval", "10s")
	v.SetDefault("collector.retention_window", "1h")
	v.SetDefault("collector.average_window", "1m")
	v.SetDefault("collector.rate_window", "1m")

	// Balancer defaults
	v.SetDefault("balancer.algorithm", "round_robin")
	v.SetDefault("balancer.health_check_interval", "10s")
	v.SetDefault("balancer.health_check_timeout", "3s")
	v.SetDefault("balancer.health_check_path", "/health")
	v.SetDefault("balancer.max_retries", 3)
	v.SetDefault("balancer.request_timeout", "30s")
	v.SetDefault("balancer.sticky_ttl", "30m")

	// Orchestrator defaults
	v.SetDefault("orchestrator.type", "docker")
	v.SetDefault("orchestrator.image", "workflow-worker:latest")
	v.SetDefault("orchestrator.name_prefix", "workflow-worker")
	v.SetDefault("orchestrator.base_port", 9100)
	v.SetDefault("orchestrator.internal_port", 8080)
	v.SetDefault("orchestrator.start_timeout", "60s")
	v.SetDefault("orchestrator.stop_grace", "10s")
	v.SetDefault("orchestrator.memory_limit_mb", 512)
	v.SetDefault("orchestrator.cpu_limit", 1.0)
	v.SetDefault("orchestrator.breaker_max_failures", 5)
	v.SetDefault("orchestrator.breaker_timeout", "30s")

	// API defaults
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "15s")
	v.SetDefault("api.idle_timeout", "60s")

	// WebSocket defaults
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.broadcast_buffer", 256)
	v.SetDefault("websocket.client_buffer", 64)

	// Prometheus defaults
	v.SetDefault("prometheus.enabled", true)
}

func defaultPolicies(m ManagerConfig) []PolicyConfig {
	return []PolicyConfig{
		{
			Name:               "cpu",
			Kind:               "cpu",
			ScaleUpThreshold:   0.75,
			ScaleDownThreshold: 0.25,
			CooldownPeriod:     5 * time.Minute,
			MinInstances:       m.MinInstances,
			MaxInstances:       m.MaxInstances,
			ScaleFactor:        1.5,
			Enabled:            true,
		},
		{
			Name:               "memory",
			Kind:               "memory",
			ScaleUpThreshold:   0.80,
			ScaleDownThreshold: 0.30,
			CooldownPeriod:     5 * time.Minute,
			MinInstances:       m.MinInstances,
			MaxInstances:       m.MaxInstances,
			ScaleFactor:        1.5,
			Enabled:            true,
		},
	}
}
