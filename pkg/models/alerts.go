package models

import "time"

type AlertType string

const (
	AlertTypeScaleFailed       AlertType = "scale_failed"
	AlertTypeAnomaly           AlertType = "anomaly"
	AlertTypeInstanceUnhealthy AlertType = "instance_unhealthy"
	AlertTypeRuntimeDown       AlertType = "runtime_down"
)

type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

// Alert is an operator-facing notification. Alerts are consumed through the
// observability surface only; the control loop never reads them back.
type Alert struct {
	ID        string                 `json:"id"`
	Type      AlertType              `json:"type"`
	Severity  AlertSeverity          `json:"severity"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func NewAlert(alertType AlertType, severity AlertSeverity, message string) Alert {
	return Alert{
		ID:        NewUUID(),
		Type:      alertType,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func (a Alert) WithDetails(details map[string]interface{}) Alert {
	a.Details = details
	return a
}
