package models

import "time"

// Well-known metric names recorded by the collector.
const (
	MetricCPUUsage     = "cpu_usage"
	MetricMemoryUsage  = "memory_usage"
	MetricNetworkRx    = "network_rx_bytes"
	MetricNetworkTx    = "network_tx_bytes"
	MetricDiskUsage    = "disk_usage"
	MetricResponseTime = "response_time_ms"
)

// MetricSample is a single immutable observation of a named metric.
type MetricSample struct {
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// RequestObservation is an externally reported request outcome fed into the
// collector by the API middleware and the proxy path.
type RequestObservation struct {
	Method       string        `json:"method"`
	Path         string        `json:"path"`
	StatusCode   int           `json:"status_code"`
	ResponseTime time.Duration `json:"response_time"`
	Timestamp    time.Time     `json:"timestamp"`
}

// IsError reports whether the observation counts toward the error rate.
func (r RequestObservation) IsError() bool {
	return r.StatusCode >= 400
}

// MetricsSnapshot is a read-only aggregate computed on demand from stored
// samples. Utilization values are normalized to 0..1.
type MetricsSnapshot struct {
	Timestamp       time.Time `json:"timestamp"`
	CPUUsage        float64   `json:"cpu_usage"`
	MemoryUsage     float64   `json:"memory_usage"`
	DiskUsage       float64   `json:"disk_usage"`
	NetworkRxBytes  float64   `json:"network_rx_bytes"`
	NetworkTxBytes  float64   `json:"network_tx_bytes"`
	RequestRate     float64   `json:"request_rate"`
	ErrorRate       float64   `json:"error_rate"`
	AvgResponseTime float64   `json:"avg_response_time_ms"`
	SampleCount     int       `json:"sample_count"`
}
