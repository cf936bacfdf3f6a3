package policy

import (
	"math"
	"sync"
	"time"

	"github.com/OldStager01/capacity-manager/internal/logger"
	"github.com/OldStager01/capacity-manager/pkg/models"
)

// Composite kind weights. Fixed by contract so composite policies behave the
// same across deployments.
const (
	compositeCPUWeight     = 0.4
	compositeMemoryWeight  = 0.3
	compositeRequestWeight = 0.3
)

// Evaluator is what the autoscaling manager asks for recommendations.
// Implemented by Policy and CompositePolicy.
type Evaluator interface {
	Name() string
	ShouldScaleUp(snapshot models.MetricsSnapshot, current int) *models.ScalingDecision
	ShouldScaleDown(snapshot models.MetricsSnapshot, current int) *models.ScalingDecision
	UpdateLastScaleTime()
	Settings() Settings
}

// Settings is the externally visible configuration of an evaluator, served
// unmodified over the status API.
type Settings struct {
	Name               string        `json:"name"`
	Kind               string        `json:"kind"`
	ScaleUpThreshold   float64       `json:"scale_up_threshold,omitempty"`
	ScaleDownThreshold float64       `json:"scale_down_threshold,omitempty"`
	CooldownPeriod     time.Duration `json:"cooldown_period,omitempty"`
	CooldownRemaining  time.Duration `json:"cooldown_remaining,omitempty"`
	MinInstances       int           `json:"min_instances,omitempty"`
	MaxInstances       int           `json:"max_instances,omitempty"`
	ScaleFactor        float64       `json:"scale_factor,omitempty"`
	Enabled            bool          `json:"enabled"`
	SubPolicies        []Settings    `json:"sub_policies,omitempty"`
}

type Config struct {
	Name               string
	Kind               MetricKind
	ScaleUpThreshold   float64
	ScaleDownThreshold float64
	CooldownPeriod     time.Duration
	MinInstances       int
	MaxInstances       int
	ScaleFactor        float64

	// Normalization maxima for rate-style kinds: the value that maps to 1.0.
	MaxRequestRate  float64
	MaxResponseTime time.Duration

	Enabled bool
}

// Policy recommends scale targets from a metrics snapshot. It is a pure
// decision function apart from the cooldown timestamp, which the manager
// advances after a committed scale action.
type Policy struct {
	config    Config
	lastScale time.Time
	mu        sync.RWMutex
	now       func() time.Time
}

func New(cfg Config) *Policy {
	if cfg.CooldownPeriod == 0 {
		cfg.CooldownPeriod = 5 * time.Minute
	}
	if cfg.MinInstances == 0 {
		cfg.MinInstances = 1
	}
	if cfg.MaxInstances == 0 {
		cfg.MaxInstances = 10
	}
	if cfg.ScaleFactor == 0 {
		cfg.ScaleFactor = 1.5
	}
	if cfg.MaxRequestRate == 0 {
		cfg.MaxRequestRate = 100
	}
	if cfg.MaxResponseTime == 0 {
		cfg.MaxResponseTime = time.Second
	}

	return &Policy{
		config: cfg,
		now:    time.Now,
	}
}

func (p *Policy) Name() string {
	return p.config.Name
}

func (p *Policy) Kind() MetricKind {
	return p.config.Kind
}

func (p *Policy) Settings() Settings {
	return Settings{
		Name:               p.config.Name,
		Kind:               p.config.Kind.String(),
		ScaleUpThreshold:   p.config.ScaleUpThreshold,
		ScaleDownThreshold: p.config.ScaleDownThreshold,
		CooldownPeriod:     p.config.CooldownPeriod,
		CooldownRemaining:  p.CooldownRemaining(),
		MinInstances:       p.config.MinInstances,
		MaxInstances:       p.config.MaxInstances,
		ScaleFactor:        p.config.ScaleFactor,
		Enabled:            p.config.Enabled,
	}
}

func (p *Policy) ShouldScaleUp(snapshot models.MetricsSnapshot, current int) *models.ScalingDecision {
	if !p.config.Enabled {
		return models.NoScale(p.config.Name, "policy_disabled", current)
	}
	if current >= p.config.MaxInstances {
		return models.NoScale(p.config.Name, "at_max_instances", current)
	}
	if active, _ := p.cooldown(); active {
		d := models.NoScale(p.config.Name, "in_cooldown", current)
		d.CooldownActive = true
		return d
	}

	value := p.normalizedValue(snapshot)
	if value <= p.config.ScaleUpThreshold {
		d := models.NoScale(p.config.Name, "below_scale_up_threshold", current)
		d.MetricValue = value
		return d
	}

	target := int(math.Ceil(float64(current) * p.config.ScaleFactor))
	if target > p.config.MaxInstances {
		target = p.config.MaxInstances
	}

	logger.Debugf("Policy %s: scale up %d -> %d (%s=%.2f)", p.config.Name, current, target, p.config.Kind, value)

	return &models.ScalingDecision{
		PolicyName:   p.config.Name,
		Timestamp:    p.now(),
		Action:       models.ActionScaleUp,
		ShouldScale:  true,
		CurrentCount: current,
		TargetCount:  target,
		Reason:       p.config.Kind.String() + "_above_threshold",
		MetricValue:  value,
	}
}

func (p *Policy) ShouldScaleDown(snapshot models.MetricsSnapshot, current int) *models.ScalingDecision {
	if !p.config.Enabled {
		return models.NoScale(p.config.Name, "policy_disabled", current)
	}
	if current <= p.config.MinInstances {
		return models.NoScale(p.config.Name, "at_min_instances", current)
	}
	if active, _ := p.cooldown(); active {
		d := models.NoScale(p.config.Name, "in_cooldown", current)
		d.CooldownActive = true
		return d
	}

	value := p.normalizedValue(snapshot)
	if value >= p.config.ScaleDownThreshold {
		d := models.NoScale(p.config.Name, "above_scale_down_threshold", current)
		d.MetricValue = value
		return d
	}

	target := int(math.Floor(float64(current) / p.config.ScaleFactor))
	if target < p.config.MinInstances {
		target = p.config.MinInstances
	}

	logger.Debugf("Policy %s: scale down %d -> %d (%s=%.2f)", p.config.Name, current, target, p.config.Kind, value)

	return &models.ScalingDecision{
		PolicyName:   p.config.Name,
		Timestamp:    p.now(),
		Action:       models.ActionScaleDown,
		ShouldScale:  true,
		CurrentCount: current,
		TargetCount:  target,
		Reason:       p.config.Kind.String() + "_below_threshold",
		MetricValue:  value,
	}
}

// UpdateLastScaleTime starts the cooldown window. Only the manager calls
// this, and only after a scale action committed.
func (p *Policy) UpdateLastScaleTime() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastScale = p.now()
}

func (p *Policy) CooldownRemaining() time.Duration {
	_, remaining := p.cooldown()
	return remaining
}

func (p *Policy) cooldown() (bool, time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.lastScale.IsZero() {
		return false, 0
	}
	elapsed := p.now().Sub(p.lastScale)
	if elapsed >= p.config.CooldownPeriod {
		return false, 0
	}
	return true, p.config.CooldownPeriod - elapsed
}

// normalizedValue maps the policy's metric kind onto 0..1.
func (p *Policy) normalizedValue(snapshot models.MetricsSnapshot) float64 {
	var value float64
	switch p.config.Kind {
	case KindCPU:
		value = snapshot.CPUUsage
	case KindMemory:
		value = snapshot.MemoryUsage
	case KindRequestRate:
		value = snapshot.RequestRate / p.config.MaxRequestRate
	case KindResponseTime:
		value = snapshot.AvgResponseTime / float64(p.config.MaxResponseTime.Milliseconds())
	case KindComposite:
		value = compositeCPUWeight*snapshot.CPUUsage +
			compositeMemoryWeight*snapshot.MemoryUsage +
			compositeRequestWeight*(snapshot.RequestRate/p.config.MaxRequestRate)
	}

	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
