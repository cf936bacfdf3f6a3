package manager

import (
	"time"

	"github.com/OldStager01/capacity-manager/internal/balancer"
	"github.com/OldStager01/capacity-manager/internal/policy"
	"github.com/OldStager01/capacity-manager/pkg/models"
)

// activeAlertWindow bounds what ActiveAlerts reports; older alerts remain
// in the bounded queue until displaced.
const activeAlertWindow = time.Hour

// statsHistoryLimit caps the scale-event slice embedded in Stats; the
// history endpoint serves the full bounded queue.
const statsHistoryLimit = 10

// Stats is the point-in-time view served by the status API.
type Stats struct {
	ServiceName       string                 `json:"service_name"`
	Running           bool                   `json:"running"`
	ScalingInProgress bool                   `json:"scaling_in_progress"`
	CurrentInstances  int                    `json:"current_instances"`
	MinInstances      int                    `json:"min_instances"`
	MaxInstances      int                    `json:"max_instances"`
	Policies          []policy.Settings      `json:"policies"`
	Metrics           models.MetricsSnapshot `json:"metrics"`
	Balancer          balancer.Summary       `json:"balancer"`
	RecentHistory     []models.ScaleEvent    `json:"recent_scale_history"`
	LastScaleEvent    *models.ScaleEvent     `json:"last_scale_event,omitempty"`
	ActiveAlerts      []models.Alert         `json:"active_alerts"`
	ActiveAlertCount  int                    `json:"active_alert_count"`
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	current := m.current
	scaling := m.scaling
	m.mu.Unlock()

	policies := make([]policy.Settings, 0, len(m.policies))
	for _, p := range m.policies {
		policies = append(policies, p.Settings())
	}

	summary := m.lb.Summary()
	if m.instruments != nil {
		m.instruments.HealthyInstances.Set(float64(summary.HealthyCount))
	}

	alerts := m.ActiveAlerts()

	s := Stats{
		ServiceName:       m.config.ServiceName,
		Running:           m.IsRunning(),
		ScalingInProgress: scaling,
		CurrentInstances:  current,
		MinInstances:      m.config.MinInstances,
		MaxInstances:      m.config.MaxInstances,
		Policies:          policies,
		Metrics:           m.collector.CurrentMetrics(),
		Balancer:          summary,
		RecentHistory:     m.ScaleHistory(statsHistoryLimit),
		ActiveAlerts:      alerts,
		ActiveAlertCount:  len(alerts),
	}

	m.histMu.Lock()
	if n := len(m.history); n > 0 {
		last := m.history[n-1]
		s.LastScaleEvent = &last
	}
	m.histMu.Unlock()

	return s
}

// ScaleHistory returns up to limit settled scale events, most recent first.
// limit <= 0 returns the whole bounded history.
func (m *Manager) ScaleHistory(limit int) []models.ScaleEvent {
	m.histMu.Lock()
	defer m.histMu.Unlock()

	n := len(m.history)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]models.ScaleEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.history[i])
	}
	return out
}

// ActiveAlerts returns alerts raised within the last hour, most recent first.
func (m *Manager) ActiveAlerts() []models.Alert {
	cutoff := time.Now().Add(-activeAlertWindow)

	m.histMu.Lock()
	defer m.histMu.Unlock()

	var out []models.Alert
	for i := len(m.alerts) - 1; i >= 0; i-- {
		if m.alerts[i].Timestamp.Before(cutoff) {
			break
		}
		out = append(out, m.alerts[i])
	}
	return out
}

func (m *Manager) recordEvent(event models.ScaleEvent) {
	m.histMu.Lock()
	defer m.histMu.Unlock()

	m.history = append(m.history, event)
	if len(m.history) > m.config.HistoryLimit {
		m.history = m.history[len(m.history)-m.config.HistoryLimit:]
	}
}

func (m *Manager) recordAlert(alert models.Alert) {
	m.histMu.Lock()
	m.alerts = append(m.alerts, alert)
	if len(m.alerts) > m.config.AlertLimit {
		m.alerts = m.alerts[len(m.alerts)-m.config.AlertLimit:]
	}
	m.histMu.Unlock()

	if m.instruments != nil {
		m.instruments.AlertsTotal.WithLabelValues(string(alert.Severity)).Inc()
	}
	m.publisher.Alert(alert)
}

// consumeNotifications turns anomaly and health events into operator alerts.
// Alerts never feed back into scaling decisions.
func (m *Manager) consumeNotifications() {
	defer m.wg.Done()

	anomalies := m.bus.Subscribe(models.EventTypeAnomalyDetected)
	health := m.bus.Subscribe(models.EventTypeInstanceHealthChanged)

	for {
		select {
		case <-m.ctx.Done():
			return
		case event, ok := <-anomalies:
			if !ok {
				return
			}
			m.alertFromAnomaly(event)
		case event, ok := <-health:
			if !ok {
				return
			}
			m.alertFromHealthChange(event)
		}
	}
}

func (m *Manager) alertFromAnomaly(event *models.Event) {
	severity := models.AlertSeverityHigh
	if event.Severity == models.SeverityCritical {
		severity = models.AlertSeverityCritical
	}

	alert := models.NewAlert(models.AlertTypeAnomaly, severity, event.Message)
	if details, ok := event.Data.(map[string]interface{}); ok {
		alert = alert.WithDetails(details)
	}
	m.recordAlert(alert)
}

func (m *Manager) alertFromHealthChange(event *models.Event) {
	details, ok := event.Data.(map[string]interface{})
	if !ok {
		return
	}
	if healthy, ok := details["healthy"].(bool); !ok || healthy {
		return
	}

	instanceID, _ := details["instance_id"].(string)
	m.recordAlert(models.NewAlert(models.AlertTypeInstanceUnhealthy, models.AlertSeverityHigh,
		"Instance failing health checks: "+instanceID).
		WithDetails(details))
}
