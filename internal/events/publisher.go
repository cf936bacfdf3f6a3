package events

import (
	"github.com/OldStager01/capacity-manager/pkg/models"
)

// Publisher provides typed helpers over the raw event bus.
type Publisher struct {
	bus     *EventBus
	service string
}

func NewPublisher(bus *EventBus, service string) *Publisher {
	return &Publisher{bus: bus, service: service}
}

func (p *Publisher) publish(event *models.Event) {
	p.bus.Publish(event)
}

func (p *Publisher) MetricsCollected(snapshot models.MetricsSnapshot) {
	p.publish(models.NewEvent(models.EventTypeMetricsCollected, p.service, "Metrics collected").
		WithData(snapshot))
}

func (p *Publisher) AnomalyDetected(metric string, value float64, severity models.EventSeverity) {
	p.publish(models.NewEvent(models.EventTypeAnomalyDetected, p.service, "Anomaly detected: "+metric).
		WithSeverity(severity).
		WithData(map[string]interface{}{
			"metric": metric,
			"value":  value,
		}))
}

func (p *Publisher) DecisionMade(decision *models.ScalingDecision) {
	p.publish(models.NewEvent(models.EventTypeDecisionMade, p.service, "Scaling decision: "+string(decision.Action)).
		WithData(decision))
}

func (p *Publisher) ScalingStarted(action models.ScalingAction, from, to int, reason string) {
	p.publish(models.NewEvent(models.EventTypeScalingStarted, p.service, "Scaling started: "+string(action)).
		WithData(map[string]interface{}{
			"from":   from,
			"to":     to,
			"reason": reason,
		}))
}

func (p *Publisher) ScalingComplete(event models.ScaleEvent) {
	p.publish(models.NewEvent(models.EventTypeScalingComplete, p.service, "Scaling complete: "+string(event.Type)).
		WithData(event))
}

func (p *Publisher) ScalingFailed(reason string, err error) {
	p.publish(models.NewEvent(models.EventTypeScalingFailed, p.service, "Scaling failed: "+reason).
		WithSeverity(models.SeverityCritical).
		WithData(map[string]interface{}{
			"reason": reason,
			"error":  err.Error(),
		}))
}

func (p *Publisher) InstanceAdded(instance *models.InstanceDescriptor) {
	p.publish(models.NewEvent(models.EventTypeInstanceAdded, p.service, "Instance added").
		WithData(instance))
}

func (p *Publisher) InstanceRemoved(instanceID string) {
	p.publish(models.NewEvent(models.EventTypeInstanceRemoved, p.service, "Instance removed").
		WithData(map[string]interface{}{"instance_id": instanceID}))
}

func (p *Publisher) InstanceHealthChanged(instanceID string, healthy bool) {
	severity := models.SeverityInfo
	if !healthy {
		severity = models.SeverityWarning
	}
	p.publish(models.NewEvent(models.EventTypeInstanceHealthChanged, p.service, "Instance health changed").
		WithSeverity(severity).
		WithData(map[string]interface{}{
			"instance_id": instanceID,
			"healthy":     healthy,
		}))
}

func (p *Publisher) Alert(alert models.Alert) {
	severity := models.SeverityWarning
	if alert.Severity == models.AlertSeverityCritical {
		severity = models.SeverityCritical
	}
	p.publish(models.NewEvent(models.EventTypeAlert, p.service, alert.Message).
		WithSeverity(severity).
		WithData(alert))
}

func (p *Publisher) Error(message string, err error) {
	p.publish(models.NewEvent(models.EventTypeError, p.service, message).
		WithSeverity(models.SeverityCritical).
		WithData(map[string]interface{}{"error": err.Error()}))
}
