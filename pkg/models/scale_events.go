package models

import "time"

type ScaleEventStatus string

const (
	ScaleEventSuccess ScaleEventStatus = "success"
	ScaleEventFailed  ScaleEventStatus = "failed"
	ScaleEventPartial ScaleEventStatus = "partial"
)

// ScaleEvent is an audit record of a settled scale action. Events are kept
// in a bounded most-recent-N history, never persisted.
type ScaleEvent struct {
	ID         string           `json:"id"`
	Type       ScalingAction    `json:"type"`
	FromCount  int              `json:"from_count"`
	ToCount    int              `json:"to_count"`
	Reason     string           `json:"reason"`
	PolicyName string           `json:"policy_name"`
	Status     ScaleEventStatus `json:"status"`
	Timestamp  time.Time        `json:"timestamp"`
}

func NewScaleEvent(action ScalingAction, from, to int, reason, policyName string, status ScaleEventStatus) ScaleEvent {
	return ScaleEvent{
		ID:         NewUUID(),
		Type:       action,
		FromCount:  from,
		ToCount:    to,
		Reason:     reason,
		PolicyName: policyName,
		Status:     status,
		Timestamp:  time.Now(),
	}
}
