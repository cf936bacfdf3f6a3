package config

import "time"

type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Manager      ManagerConfig      `mapstructure:"manager"`
	Collector    CollectorConfig    `mapstructure:"collector"`
	Policies     []PolicyConfig     `mapstructure:"policies"`
	Balancer     BalancerConfig     `mapstructure:"balancer"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	API          APIConfig          `mapstructure:"api"`
	WebSocket    WebSocketConfig    `mapstructure:"websocket"`
	Prometheus   PrometheusConfig   `mapstructure:"prometheus"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ManagerConfig struct {
	ServiceName      string        `mapstructure:"service_name"`
	MinInstances     int           `mapstructure:"min_instances"`
	MaxInstances     int           `mapstructure:"max_instances"`
	InitialInstances int           `mapstructure:"initial_instances"`
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	HistoryLimit     int           `mapstructure:"history_limit"`
	AlertLimit       int           `mapstructure:"alert_limit"`
	CompositePolicy  bool          `mapstructure:"composite_policy"`

	// Per-instance environment and labels passed to the orchestrator on
	// every start, on top of what the driver sets itself.
	Environment map[string]string `mapstructure:"environment"`
	Labels      map[string]string `mapstructure:"labels"`
}

type CollectorConfig struct {
	SampleInterval  time.Duration `mapstructure:"sample_interval"`
	RetentionWindow time.Duration `mapstructure:"retention_window"`
	AverageWindow   time.Duration `mapstructure:"average_window"`
	RateWindow      time.Duration `mapstructure:"rate_window"`
}

// PolicyConfig mirrors one scaling policy. Thresholds compare against the
// normalized 0..1 value of the policy's metric kind.
type PolicyConfig struct {
	Name               string        `mapstructure:"name"`
	Kind               string        `mapstructure:"kind"`
	ScaleUpThreshold   float64       `mapstructure:"scale_up_threshold"`
	ScaleDownThreshold float64       `mapstructure:"scale_down_threshold"`
	CooldownPeriod     time.Duration `mapstructure:"cooldown_period"`
	MinInstances       int           `mapstructure:"min_instances"`
	MaxInstances       int           `mapstructure:"max_instances"`
	ScaleFactor        float64       `mapstructure:"scale_factor"`
	Enabled            bool          `mapstructure:"enabled"`
	MaxRequestRate     float64       `mapstructure:"max_request_rate"`
	MaxResponseTimeMS  float64       `mapstructure:"max_response_time_ms"`
}

type BalancerConfig struct {
	Algorithm           string        `mapstructure:"algorithm"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	HealthCheckTimeout  time.Duration `mapstructure:"health_check_timeout"`
	HealthCheckPath     string        `mapstructure:"health_check_path"`
	MaxRetries          int           `mapstructure:"max_retries"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	StickyTTL           time.Duration `mapstructure:"sticky_ttl"`
}

type OrchestratorConfig struct {
	Type           string        `mapstructure:"type"`
	Image          string        `mapstructure:"image"`
	NamePrefix     string        `mapstructure:"name_prefix"`
	Network        string        `mapstructure:"network"`
	BasePort       int           `mapstructure:"base_port"`
	InternalPort   int           `mapstructure:"internal_port"`
	StartTimeout   time.Duration `mapstructure:"start_timeout"`
	StopGrace      time.Duration `mapstructure:"stop_grace"`
	MemoryLimitMB  int64         `mapstructure:"memory_limit_mb"`
	CPULimit       float64       `mapstructure:"cpu_limit"`
	Environment    []string      `mapstructure:"environment"`
	BreakerMaxFail int           `mapstructure:"breaker_max_failures"`
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`
}

type APIConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	CORS         CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type WebSocketConfig struct {
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	BroadcastBuffer int           `mapstructure:"broadcast_buffer"`
	ClientBuffer    int           `mapstructure:"client_buffer"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
