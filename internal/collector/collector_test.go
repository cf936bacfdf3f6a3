package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/capacity-manager/internal/events"
	"github.com/OldStager01/capacity-manager/pkg/models"
)

type stubSampler struct {
	sample HostSample
	err    error
}

func (s *stubSampler) Sample(ctx context.Context) (HostSample, error) {
	return s.sample, s.err
}

func newTestCollector(sampler HostSampler, publisher *events.Publisher) *Collector {
	return New(Config{
		SampleInterval:  10 * time.Millisecond,
		RetentionWindow: time.Hour,
		AverageWindow:   time.Minute,
		RateWindow:      time.Minute,
	}, sampler, publisher)
}

func TestCollector_SampleCycleRecordsSeries(t *testing.T) {
	sampler := &stubSampler{sample: HostSample{
		CPUUsage:       0.60,
		MemoryUsage:    0.40,
		DiskUsage:      0.20,
		NetworkRxBytes: 1000,
		NetworkTxBytes: 2000,
	}}
	c := newTestCollector(sampler, nil)
	c.ctx = context.Background()

	c.sampleCycle()

	snapshot := c.CurrentMetrics()
	assert.InDelta(t, 0.60, snapshot.CPUUsage, 1e-9)
	assert.InDelta(t, 0.40, snapshot.MemoryUsage, 1e-9)
	assert.InDelta(t, 0.20, snapshot.DiskUsage, 1e-9)
	assert.InDelta(t, 1000, snapshot.NetworkRxBytes, 1e-9)
	assert.InDelta(t, 2000, snapshot.NetworkTxBytes, 1e-9)
}

func TestCollector_SampleErrorKeepsPriorData(t *testing.T) {
	sampler := &stubSampler{sample: HostSample{CPUUsage: 0.50}}
	c := newTestCollector(sampler, nil)
	c.ctx = context.Background()

	c.sampleCycle()
	sampler.err = errors.New("sensor offline")
	c.sampleCycle()

	snapshot := c.CurrentMetrics()
	assert.InDelta(t, 0.50, snapshot.CPUUsage, 1e-9)
}

func TestCollector_RequestAndErrorRates(t *testing.T) {
	c := newTestCollector(&stubSampler{}, nil)

	for i := 0; i < 9; i++ {
		c.RecordRequest(models.RequestObservation{
			Method:       "POST",
			Path:         "/workflow/run",
			StatusCode:   200,
			ResponseTime: 100 * time.Millisecond,
		})
	}
	c.RecordRequest(models.RequestObservation{
		Method:       "POST",
		Path:         "/workflow/run",
		StatusCode:   500,
		ResponseTime: 300 * time.Millisecond,
	})

	snapshot := c.CurrentMetrics()
	assert.Equal(t, 10, snapshot.SampleCount)
	assert.InDelta(t, 10.0/60.0, snapshot.RequestRate, 1e-9)
	assert.InDelta(t, 0.1, snapshot.ErrorRate, 1e-9)
	assert.InDelta(t, 120, snapshot.AvgResponseTime, 1e-9)
}

func TestCollector_RateWindowExcludesOldRequests(t *testing.T) {
	c := newTestCollector(&stubSampler{}, nil)

	base := time.Now()
	c.now = func() time.Time { return base }

	c.RecordRequest(models.RequestObservation{StatusCode: 200, ResponseTime: 50 * time.Millisecond})

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	c.RecordRequest(models.RequestObservation{StatusCode: 200, ResponseTime: 80 * time.Millisecond})

	snapshot := c.CurrentMetrics()
	assert.Equal(t, 1, snapshot.SampleCount)
}

func TestCollector_MetricHistoryWindow(t *testing.T) {
	c := newTestCollector(&stubSampler{}, nil)

	base := time.Now()
	c.now = func() time.Time { return base.Add(-30 * time.Minute) }
	c.RecordCustomMetric("queue_depth", 5, nil)

	c.now = func() time.Time { return base }
	c.RecordCustomMetric("queue_depth", 9, nil)

	recent := c.MetricHistory("queue_depth", 10*time.Minute)
	require.Len(t, recent, 1)
	assert.Equal(t, 9.0, recent[0].Value)

	all := c.MetricHistory("queue_depth", time.Hour)
	require.Len(t, all, 2)
	assert.Equal(t, 5.0, all[0].Value)
}

func TestCollector_RetentionPrunesOldSamples(t *testing.T) {
	c := New(Config{
		SampleInterval:  10 * time.Millisecond,
		RetentionWindow: time.Minute,
		AverageWindow:   time.Minute,
		RateWindow:      time.Minute,
	}, &stubSampler{sample: HostSample{CPUUsage: 0.5}}, nil)
	c.ctx = context.Background()

	base := time.Now()
	c.now = func() time.Time { return base.Add(-5 * time.Minute) }
	c.sampleCycle()

	c.now = func() time.Time { return base }
	c.sampleCycle()

	history := c.MetricHistory(models.MetricCPUUsage, time.Hour)
	assert.Len(t, history, 1)
}

func TestCollector_AnomalyNotifications(t *testing.T) {
	tests := []struct {
		name         string
		sample       HostSample
		wantMetric   string
		wantSeverity models.EventSeverity
	}{
		{
			name:         "critical cpu",
			sample:       HostSample{CPUUsage: 0.97},
			wantMetric:   models.MetricCPUUsage,
			wantSeverity: models.SeverityCritical,
		},
		{
			name:         "high cpu",
			sample:       HostSample{CPUUsage: 0.88},
			wantMetric:   models.MetricCPUUsage,
			wantSeverity: models.SeverityWarning,
		},
		{
			name:         "critical memory",
			sample:       HostSample{MemoryUsage: 0.96},
			wantMetric:   models.MetricMemoryUsage,
			wantSeverity: models.SeverityCritical,
		},
		{
			name:         "high memory",
			sample:       HostSample{MemoryUsage: 0.92},
			wantMetric:   models.MetricMemoryUsage,
			wantSeverity: models.SeverityWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := events.NewEventBus(10)
			defer bus.Close()
			anomalies := bus.Subscribe(models.EventTypeAnomalyDetected)

			c := newTestCollector(&stubSampler{sample: tt.sample}, events.NewPublisher(bus, "test"))
			c.ctx = context.Background()
			c.sampleCycle()

			select {
			case event := <-anomalies:
				assert.Equal(t, tt.wantSeverity, event.Severity)
				data, ok := event.Data.(map[string]interface{})
				require.True(t, ok)
				assert.Equal(t, tt.wantMetric, data["metric"])
			case <-time.After(time.Second):
				t.Fatal("expected an anomaly event")
			}
		})
	}
}

func TestCollector_NormalLoadRaisesNoAnomaly(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	anomalies := bus.Subscribe(models.EventTypeAnomalyDetected)

	c := newTestCollector(&stubSampler{sample: HostSample{CPUUsage: 0.5, MemoryUsage: 0.5}}, events.NewPublisher(bus, "test"))
	c.ctx = context.Background()
	c.sampleCycle()

	select {
	case <-anomalies:
		t.Fatal("no anomaly expected at normal utilization")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCollector_StartStopIdempotent(t *testing.T) {
	c := newTestCollector(&stubSampler{sample: HostSample{CPUUsage: 0.3}}, nil)

	c.Start()
	c.Start()
	time.Sleep(30 * time.Millisecond)
	c.Stop()
	c.Stop()

	assert.NotZero(t, c.CurrentMetrics().CPUUsage)
}
