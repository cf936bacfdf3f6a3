package config

import (
	"errors"
	"fmt"
)

var validKinds = map[string]bool{
	"cpu":           true,
	"memory":        true,
	"request_rate":  true,
	"response_time": true,
	"composite":     true,
}

var validAlgorithms = map[string]bool{
	"round_robin":          true,
	"least_connections":    true,
	"weighted_round_robin": true,
	"ip_hash":              true,
}

func (c *Config) Validate() error {
	var errs []error

	// App validation
	if c.App.Name == "" {
		errs = append(errs, errors.New("app.name is required"))
	}

	validModes := map[string]bool{"development": true, "production": true, "test": true}
	if !validModes[c.App.Mode] {
		errs = append(errs, errors.New("app.mode must be one of: development, production, test"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.App.LogLevel] {
		errs = append(errs, errors.New("app.log_level must be one of: debug, info, warn, error"))
	}

	// Manager validation
	if c.Manager.ServiceName == "" {
		errs = append(errs, errors.New("manager.service_name is required"))
	}
	if c.Manager.MinInstances < 1 {
		errs = append(errs, errors.New("manager.min_instances must be at least 1"))
	}
	if c.Manager.MaxInstances < c.Manager.MinInstances {
		errs = append(errs, errors.New("manager.max_instances must be >= manager.min_instances"))
	}
	if c.Manager.InitialInstances < c.Manager.MinInstances || c.Manager.InitialInstances > c.Manager.MaxInstances {
		errs = append(errs, errors.New("manager.initial_instances must be within [min_instances, max_instances]"))
	}
	if c.Manager.TickInterval <= 0 {
		errs = append(errs, errors.New("manager.tick_interval must be positive"))
	}

	// Collector validation
	if c.Collector.SampleInterval <= 0 {
		errs = append(errs, errors.New("collector.sample_interval must be positive"))
	}
	if c.Collector.RetentionWindow <= c.Collector.SampleInterval {
		errs = append(errs, errors.New("collector.retention_window must exceed collector.sample_interval"))
	}

	// Policy validation
	for i, p := range c.Policies {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("policies[%d].name is required", i))
		}
		if !validKinds[p.Kind] {
			errs = append(errs, fmt.Errorf("policies[%d].kind %q is not one of: cpu, memory, request_rate, response_time, composite", i, p.Kind))
		}
		if p.ScaleUpThreshold <= 0 || p.ScaleUpThreshold > 1 {
			errs = append(errs, fmt.Errorf("policies[%d].scale_up_threshold must be in (0, 1]", i))
		}
		if p.ScaleDownThreshold < 0 || p.ScaleDownThreshold >= p.ScaleUpThreshold {
			errs = append(errs, fmt.Errorf("policies[%d].scale_down_threshold must be in [0, scale_up_threshold)", i))
		}
		if p.CooldownPeriod < 0 {
			errs = append(errs, fmt.Errorf("policies[%d].cooldown_period must not be negative", i))
		}
		if p.ScaleFactor <= 1 {
			errs = append(errs, fmt.Errorf("policies[%d].scale_factor must be greater than 1", i))
		}
		if p.MinInstances < 1 || p.MaxInstances < p.MinInstances {
			errs = append(errs, fmt.Errorf("policies[%d] instance bounds are invalid", i))
		}
	}

	// Balancer validation
	if !validAlgorithms[c.Balancer.Algorithm] {
		errs = append(errs, errors.New("balancer.algorithm must be one of: round_robin, least_connections, weighted_round_robin, ip_hash"))
	}
	if c.Balancer.HealthCheckInterval <= 0 {
		errs = append(errs, errors.New("balancer.health_check_interval must be positive"))
	}
	if c.Balancer.HealthCheckTimeout <= 0 || c.Balancer.HealthCheckTimeout >= c.Balancer.HealthCheckInterval {
		errs = append(errs, errors.New("balancer.health_check_timeout must be positive and less than the interval"))
	}
	if c.Balancer.MaxRetries < 1 {
		errs = append(errs, errors.New("balancer.max_retries must be at least 1"))
	}

	// Orchestrator validation
	validTypes := map[string]bool{"docker": true, "mock": true}
	if !validTypes[c.Orchestrator.Type] {
		errs = append(errs, errors.New("orchestrator.type must be one of: docker, mock"))
	}
	if c.Orchestrator.Type == "docker" {
		if c.Orchestrator.Image == "" {
			errs = append(errs, errors.New("orchestrator.image is required"))
		}
		if c.Orchestrator.BasePort <= 0 || c.Orchestrator.BasePort > 65535 {
			errs = append(errs, errors.New("orchestrator.base_port must be between 1 and 65535"))
		}
		if c.Orchestrator.InternalPort <= 0 || c.Orchestrator.InternalPort > 65535 {
			errs = append(errs, errors.New("orchestrator.internal_port must be between 1 and 65535"))
		}
		if c.Orchestrator.StartTimeout <= 0 {
			errs = append(errs, errors.New("orchestrator.start_timeout must be positive"))
		}
	}

	// API validation
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, errors.New("api.port must be between 1 and 65535"))
	}

	return errors.Join(errs...)
}
