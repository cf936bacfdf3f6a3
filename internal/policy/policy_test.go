package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/capacity-manager/pkg/models"
)

func cpuPolicy(min, max int) *Policy {
	return New(Config{
		Name:               "cpu-policy",
		Kind:               KindCPU,
		ScaleUpThreshold:   0.75,
		ScaleDownThreshold: 0.25,
		CooldownPeriod:     5 * time.Minute,
		MinInstances:       min,
		MaxInstances:       max,
		ScaleFactor:        1.5,
		Enabled:            true,
	})
}

func snapshotWithCPU(cpu float64) models.MetricsSnapshot {
	return models.MetricsSnapshot{Timestamp: time.Now(), CPUUsage: cpu}
}

func TestPolicy_SettingsMirrorsConfig(t *testing.T) {
	s := cpuPolicy(1, 10).Settings()

	assert.Equal(t, "cpu-policy", s.Name)
	assert.Equal(t, "cpu", s.Kind)
	assert.Equal(t, 0.75, s.ScaleUpThreshold)
	assert.Equal(t, 0.25, s.ScaleDownThreshold)
	assert.Equal(t, 5*time.Minute, s.CooldownPeriod)
	assert.Zero(t, s.CooldownRemaining)
	assert.Equal(t, 1.5, s.ScaleFactor)
	assert.True(t, s.Enabled)
	assert.Empty(t, s.SubPolicies)
}

func TestPolicy_ShouldScaleUp(t *testing.T) {
	tests := []struct {
		name       string
		cpu        float64
		current    int
		wantScale  bool
		wantTarget int
		wantReason string
	}{
		{
			name:       "above threshold scales by factor",
			cpu:        0.90,
			current:    2,
			wantScale:  true,
			wantTarget: 3,
			wantReason: "cpu_above_threshold",
		},
		{
			name:       "single instance rounds up",
			cpu:        0.90,
			current:    1,
			wantScale:  true,
			wantTarget: 2,
			wantReason: "cpu_above_threshold",
		},
		{
			name:       "at threshold does not scale",
			cpu:        0.75,
			current:    2,
			wantScale:  false,
			wantReason: "below_scale_up_threshold",
		},
		{
			name:       "at max refuses",
			cpu:        0.99,
			current:    5,
			wantScale:  false,
			wantReason: "at_max_instances",
		},
		{
			name:       "target capped at max",
			cpu:        0.90,
			current:    4,
			wantScale:  true,
			wantTarget: 5,
			wantReason: "cpu_above_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := cpuPolicy(1, 5)
			d := p.ShouldScaleUp(snapshotWithCPU(tt.cpu), tt.current)

			require.NotNil(t, d)
			assert.Equal(t, tt.wantScale, d.ShouldScale)
			assert.Equal(t, tt.wantReason, d.Reason)
			if tt.wantScale {
				assert.Equal(t, models.ActionScaleUp, d.Action)
				assert.Equal(t, tt.wantTarget, d.TargetCount)
			} else {
				assert.Equal(t, models.ActionMaintain, d.Action)
			}
		})
	}
}

func TestPolicy_ShouldScaleDown(t *testing.T) {
	tests := []struct {
		name       string
		cpu        float64
		current    int
		wantScale  bool
		wantTarget int
		wantReason string
	}{
		{
			name:       "below threshold shrinks by factor",
			cpu:        0.10,
			current:    6,
			wantScale:  true,
			wantTarget: 4,
			wantReason: "cpu_below_threshold",
		},
		{
			name:       "target floored at min",
			cpu:        0.10,
			current:    2,
			wantScale:  true,
			wantTarget: 1,
			wantReason: "cpu_below_threshold",
		},
		{
			name:       "at min refuses",
			cpu:        0.05,
			current:    1,
			wantScale:  false,
			wantReason: "at_min_instances",
		},
		{
			name:       "at threshold does not scale",
			cpu:        0.25,
			current:    4,
			wantScale:  false,
			wantReason: "above_scale_down_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := cpuPolicy(1, 10)
			d := p.ShouldScaleDown(snapshotWithCPU(tt.cpu), tt.current)

			require.NotNil(t, d)
			assert.Equal(t, tt.wantScale, d.ShouldScale)
			assert.Equal(t, tt.wantReason, d.Reason)
			if tt.wantScale {
				assert.Equal(t, models.ActionScaleDown, d.Action)
				assert.Equal(t, tt.wantTarget, d.TargetCount)
			}
		})
	}
}

func TestPolicy_CooldownBlocksSecondEvaluation(t *testing.T) {
	p := cpuPolicy(1, 10)
	snapshot := snapshotWithCPU(0.90)

	first := p.ShouldScaleUp(snapshot, 2)
	require.True(t, first.ShouldScale)

	p.UpdateLastScaleTime()

	second := p.ShouldScaleUp(snapshot, 3)
	assert.False(t, second.ShouldScale)
	assert.Equal(t, "in_cooldown", second.Reason)
	assert.True(t, second.CooldownActive)

	down := p.ShouldScaleDown(snapshotWithCPU(0.05), 3)
	assert.False(t, down.ShouldScale)
	assert.Equal(t, "in_cooldown", down.Reason)

	assert.Greater(t, p.CooldownRemaining(), time.Duration(0))
}

func TestPolicy_CooldownExpires(t *testing.T) {
	p := cpuPolicy(1, 10)

	base := time.Now()
	p.now = func() time.Time { return base }
	p.UpdateLastScaleTime()

	p.now = func() time.Time { return base.Add(5*time.Minute + time.Second) }

	d := p.ShouldScaleUp(snapshotWithCPU(0.90), 2)
	assert.True(t, d.ShouldScale)
	assert.Equal(t, time.Duration(0), p.CooldownRemaining())
}

func TestPolicy_DisabledNeverScales(t *testing.T) {
	p := New(Config{
		Name:             "disabled",
		Kind:             KindCPU,
		ScaleUpThreshold: 0.5,
		MaxInstances:     10,
		Enabled:          false,
	})

	d := p.ShouldScaleUp(snapshotWithCPU(0.99), 2)
	assert.False(t, d.ShouldScale)
	assert.Equal(t, "policy_disabled", d.Reason)
}

func TestPolicy_NormalizedValue(t *testing.T) {
	snapshot := models.MetricsSnapshot{
		CPUUsage:        0.6,
		MemoryUsage:     0.5,
		RequestRate:     50,
		AvgResponseTime: 400,
	}

	tests := []struct {
		name string
		cfg  Config
		want float64
	}{
		{
			name: "cpu passes through",
			cfg:  Config{Kind: KindCPU},
			want: 0.6,
		},
		{
			name: "memory passes through",
			cfg:  Config{Kind: KindMemory},
			want: 0.5,
		},
		{
			name: "request rate scaled by maximum",
			cfg:  Config{Kind: KindRequestRate, MaxRequestRate: 100},
			want: 0.5,
		},
		{
			name: "response time scaled by maximum",
			cfg:  Config{Kind: KindResponseTime, MaxResponseTime: time.Second},
			want: 0.4,
		},
		{
			name: "composite weighs cpu memory and requests",
			cfg:  Config{Kind: KindComposite, MaxRequestRate: 100},
			want: 0.4*0.6 + 0.3*0.5 + 0.3*0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Enabled = true
			p := New(tt.cfg)
			assert.InDelta(t, tt.want, p.normalizedValue(snapshot), 1e-9)
		})
	}
}

func TestPolicy_NormalizedValueClamped(t *testing.T) {
	p := New(Config{Kind: KindRequestRate, MaxRequestRate: 10, Enabled: true})

	value := p.normalizedValue(models.MetricsSnapshot{RequestRate: 500})
	assert.Equal(t, 1.0, value)
}

func TestParseKind(t *testing.T) {
	for _, valid := range []string{"cpu", "memory", "request_rate", "response_time", "composite"} {
		kind, err := ParseKind(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, kind.String())
	}

	_, err := ParseKind("disk")
	assert.Error(t, err)
}
