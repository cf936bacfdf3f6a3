package models

import "time"

type ScalingAction string

const (
	ActionScaleUp   ScalingAction = "SCALE_UP"
	ActionScaleDown ScalingAction = "SCALE_DOWN"
	ActionMaintain  ScalingAction = "MAINTAIN"
)

// ScalingDecision is produced fresh on every policy evaluation and never
// persisted.
type ScalingDecision struct {
	PolicyName     string        `json:"policy_name"`
	Timestamp      time.Time     `json:"timestamp"`
	Action         ScalingAction `json:"action"`
	ShouldScale    bool          `json:"should_scale"`
	CurrentCount   int           `json:"current_count"`
	TargetCount    int           `json:"target_count"`
	Reason         string        `json:"reason"`
	MetricValue    float64       `json:"metric_value"`
	CooldownActive bool          `json:"cooldown_active"`
}

func (d *ScalingDecision) Delta() int {
	return d.TargetCount - d.CurrentCount
}

func (d *ScalingDecision) ShouldExecute() bool {
	return d.ShouldScale && d.Action != ActionMaintain && d.TargetCount != d.CurrentCount
}

// NoScale returns a maintain decision with the given reason.
func NoScale(policyName, reason string, current int) *ScalingDecision {
	return &ScalingDecision{
		PolicyName:   policyName,
		Timestamp:    time.Now(),
		Action:       ActionMaintain,
		CurrentCount: current,
		TargetCount:  current,
		Reason:       reason,
	}
}
