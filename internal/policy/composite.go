package policy

import (
	"time"

	"github.com/OldStager01/capacity-manager/pkg/models"
)

// CompositePolicy combines sub-policies. Scale-up fires on the first
// sub-policy that recommends it; scale-down commits only when every enabled
// sub-policy agrees, taking the largest recommended target. The asymmetry
// keeps disagreeing signals from oscillating capacity.
type CompositePolicy struct {
	name     string
	policies []*Policy
}

func NewComposite(name string, policies ...*Policy) *CompositePolicy {
	return &CompositePolicy{
		name:     name,
		policies: policies,
	}
}

func (c *CompositePolicy) Name() string {
	return c.name
}

func (c *CompositePolicy) ShouldScaleUp(snapshot models.MetricsSnapshot, current int) *models.ScalingDecision {
	for _, p := range c.policies {
		d := p.ShouldScaleUp(snapshot, current)
		if d.ShouldScale {
			return &models.ScalingDecision{
				PolicyName:   c.name,
				Timestamp:    time.Now(),
				Action:       models.ActionScaleUp,
				ShouldScale:  true,
				CurrentCount: current,
				TargetCount:  d.TargetCount,
				Reason:       "triggered_by_" + p.Name() + ":" + d.Reason,
				MetricValue:  d.MetricValue,
			}
		}
	}
	return models.NoScale(c.name, "no_sub_policy_triggered", current)
}

func (c *CompositePolicy) ShouldScaleDown(snapshot models.MetricsSnapshot, current int) *models.ScalingDecision {
	target := 0
	evaluated := 0

	for _, p := range c.policies {
		if !p.config.Enabled {
			continue
		}
		evaluated++

		d := p.ShouldScaleDown(snapshot, current)
		if !d.ShouldScale {
			return models.NoScale(c.name, "vetoed_by_"+p.Name(), current)
		}
		if d.TargetCount > target {
			target = d.TargetCount
		}
	}

	if evaluated == 0 {
		return models.NoScale(c.name, "no_enabled_sub_policies", current)
	}

	return &models.ScalingDecision{
		PolicyName:   c.name,
		Timestamp:    time.Now(),
		Action:       models.ActionScaleDown,
		ShouldScale:  true,
		CurrentCount: current,
		TargetCount:  target,
		Reason:       "all_sub_policies_agree",
	}
}

func (c *CompositePolicy) UpdateLastScaleTime() {
	for _, p := range c.policies {
		p.UpdateLastScaleTime()
	}
}

func (c *CompositePolicy) Settings() Settings {
	subs := make([]Settings, 0, len(c.policies))
	for _, p := range c.policies {
		subs = append(subs, p.Settings())
	}
	return Settings{
		Name:        c.name,
		Kind:        "composite",
		Enabled:     true,
		SubPolicies: subs,
	}
}
