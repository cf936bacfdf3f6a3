package collector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/OldStager01/capacity-manager/internal/events"
	"github.com/OldStager01/capacity-manager/internal/logger"
	"github.com/OldStager01/capacity-manager/pkg/models"
)

var ErrSamplingFailed = errors.New("host metric sampling failed")

// Anomaly thresholds on normalized utilization. Crossing them raises a
// notification on the event bus, never an error: the policy path stays the
// sole authority for capacity changes.
const (
	anomalyCriticalThreshold = 0.95
	anomalyCPUHighThreshold  = 0.85
	anomalyMemHighThreshold  = 0.90
)

type Config struct {
	SampleInterval  time.Duration
	RetentionWindow time.Duration
	AverageWindow   time.Duration
	RateWindow      time.Duration
}

// Collector keeps bounded time-series of host samples and externally
// reported request observations, and derives snapshots on demand.
type Collector struct {
	config    Config
	host      HostSampler
	publisher *events.Publisher

	mu       sync.RWMutex
	samples  map[string][]models.MetricSample
	requests []models.RequestObservation

	runMu   sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	now func() time.Time
}

func New(cfg Config, host HostSampler, publisher *events.Publisher) *Collector {
	if cfg.SampleInterval == 0 {
		cfg.SampleInterval = 10 * time.Second
	}
	if cfg.RetentionWindow == 0 {
		cfg.RetentionWindow = time.Hour
	}
	if cfg.AverageWindow == 0 {
		cfg.AverageWindow = time.Minute
	}
	if cfg.RateWindow == 0 {
		cfg.RateWindow = time.Minute
	}

	return &Collector{
		config:    cfg,
		host:      host,
		publisher: publisher,
		samples:   make(map[string][]models.MetricSample),
		now:       time.Now,
	}
}

// Start begins periodic host sampling. Calling it on a running collector is
// a no-op.
func (c *Collector) Start() {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.running {
		return
	}
	c.running = true
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.wg.Add(1)
	go c.run()

	logger.Info("Metrics collection started")
}

// Stop halts sampling. Recorded samples remain readable.
func (c *Collector) Stop() {
	c.runMu.Lock()
	if !c.running {
		c.runMu.Unlock()
		return
	}
	c.running = false
	c.runMu.Unlock()

	c.cancel()
	c.wg.Wait()

	logger.Info("Metrics collection stopped")
}

func (c *Collector) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.SampleInterval)
	defer ticker.Stop()

	c.sampleCycle()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.sampleCycle()
		}
	}
}

func (c *Collector) sampleCycle() {
	ctx, cancel := context.WithTimeout(c.ctx, c.config.SampleInterval)
	defer cancel()

	sample, err := c.host.Sample(ctx)
	if err != nil {
		logger.Errorf("Host sampling failed: %v", err)
		if c.publisher != nil {
			c.publisher.Error("host sampling failed", err)
		}
		return
	}

	now := c.now()
	c.mu.Lock()
	c.appendSampleLocked(models.MetricCPUUsage, sample.CPUUsage, now, nil)
	c.appendSampleLocked(models.MetricMemoryUsage, sample.MemoryUsage, now, nil)
	c.appendSampleLocked(models.MetricDiskUsage, sample.DiskUsage, now, nil)
	c.appendSampleLocked(models.MetricNetworkRx, sample.NetworkRxBytes, now, nil)
	c.appendSampleLocked(models.MetricNetworkTx, sample.NetworkTxBytes, now, nil)
	c.pruneLocked(now)
	c.mu.Unlock()

	c.checkAnomalies(sample)

	if c.publisher != nil {
		c.publisher.MetricsCollected(c.CurrentMetrics())
	}
}

// RecordRequest ingests an externally reported request outcome.
func (c *Collector) RecordRequest(obs models.RequestObservation) {
	if obs.Timestamp.IsZero() {
		obs.Timestamp = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, obs)
	c.appendSampleLocked(models.MetricResponseTime, float64(obs.ResponseTime.Milliseconds()), obs.Timestamp, map[string]string{
		"method": obs.Method,
		"path":   obs.Path,
	})
}

// RecordCustomMetric appends an arbitrary named observation.
func (c *Collector) RecordCustomMetric(name string, value float64, metadata map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendSampleLocked(name, value, c.now(), metadata)
}

// CurrentMetrics is a pure read: short-window averages for utilization and
// derived request/error rates.
func (c *Collector) CurrentMetrics() models.MetricsSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	snapshot := models.MetricsSnapshot{
		Timestamp:       now,
		CPUUsage:        c.windowAverageLocked(models.MetricCPUUsage, now, c.config.AverageWindow),
		MemoryUsage:     c.windowAverageLocked(models.MetricMemoryUsage, now, c.config.AverageWindow),
		DiskUsage:       c.windowAverageLocked(models.MetricDiskUsage, now, c.config.AverageWindow),
		NetworkRxBytes:  c.latestLocked(models.MetricNetworkRx),
		NetworkTxBytes:  c.latestLocked(models.MetricNetworkTx),
		AvgResponseTime: c.windowAverageLocked(models.MetricResponseTime, now, c.config.RateWindow),
	}

	cutoff := now.Add(-c.config.RateWindow)
	var total, errored int
	for _, r := range c.requests {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		total++
		if r.IsError() {
			errored++
		}
	}

	snapshot.SampleCount = total
	if seconds := c.config.RateWindow.Seconds(); seconds > 0 {
		snapshot.RequestRate = float64(total) / seconds
	}
	if total > 0 {
		snapshot.ErrorRate = float64(errored) / float64(total)
	}

	return snapshot
}

// MetricHistory returns samples for name newer than now-window, oldest
// first. The result is a copy.
func (c *Collector) MetricHistory(name string, window time.Duration) []models.MetricSample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cutoff := c.now().Add(-window)
	var history []models.MetricSample
	for _, s := range c.samples[name] {
		if s.Timestamp.After(cutoff) {
			history = append(history, s)
		}
	}
	return history
}

func (c *Collector) appendSampleLocked(name string, value float64, ts time.Time, metadata map[string]string) {
	c.samples[name] = append(c.samples[name], models.MetricSample{
		Name:      name,
		Value:     value,
		Timestamp: ts,
		Metadata:  metadata,
	})
}

func (c *Collector) pruneLocked(now time.Time) {
	cutoff := now.Add(-c.config.RetentionWindow)

	for name, series := range c.samples {
		idx := 0
		for idx < len(series) && !series[idx].Timestamp.After(cutoff) {
			idx++
		}
		if idx > 0 {
			c.samples[name] = append([]models.MetricSample(nil), series[idx:]...)
		}
	}

	idx := 0
	for idx < len(c.requests) && !c.requests[idx].Timestamp.After(cutoff) {
		idx++
	}
	if idx > 0 {
		c.requests = append([]models.RequestObservation(nil), c.requests[idx:]...)
	}
}

func (c *Collector) windowAverageLocked(name string, now time.Time, window time.Duration) float64 {
	cutoff := now.Add(-window)
	var sum float64
	var count int
	for _, s := range c.samples[name] {
		if s.Timestamp.After(cutoff) {
			sum += s.Value
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func (c *Collector) latestLocked(name string) float64 {
	series := c.samples[name]
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1].Value
}

func (c *Collector) checkAnomalies(sample HostSample) {
	if c.publisher == nil {
		return
	}

	switch {
	case sample.CPUUsage > anomalyCriticalThreshold:
		c.publisher.AnomalyDetected(models.MetricCPUUsage, sample.CPUUsage, models.SeverityCritical)
	case sample.CPUUsage > anomalyCPUHighThreshold:
		c.publisher.AnomalyDetected(models.MetricCPUUsage, sample.CPUUsage, models.SeverityWarning)
	}

	switch {
	case sample.MemoryUsage > anomalyCriticalThreshold:
		c.publisher.AnomalyDetected(models.MetricMemoryUsage, sample.MemoryUsage, models.SeverityCritical)
	case sample.MemoryUsage > anomalyMemHighThreshold:
		c.publisher.AnomalyDetected(models.MetricMemoryUsage, sample.MemoryUsage, models.SeverityWarning)
	}
}
