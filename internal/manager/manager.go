package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OldStager01/capacity-manager/internal/balancer"
	"github.com/OldStager01/capacity-manager/internal/collector"
	"github.com/OldStager01/capacity-manager/internal/events"
	"github.com/OldStager01/capacity-manager/internal/logger"
	"github.com/OldStager01/capacity-manager/internal/metrics"
	"github.com/OldStager01/capacity-manager/internal/orchestrator"
	"github.com/OldStager01/capacity-manager/internal/policy"
	"github.com/OldStager01/capacity-manager/pkg/models"
)

var (
	ErrScaleInProgress = errors.New("a scale action is already in flight")
	ErrInvalidTarget   = errors.New("invalid target instance count")
)

type Config struct {
	ServiceName      string
	MinInstances     int
	MaxInstances     int
	InitialInstances int
	TickInterval     time.Duration
	HistoryLimit     int
	AlertLimit       int
	Environment      map[string]string
	Labels           map[string]string
}

// Manager binds collector, policies, orchestrator, and balancer into the
// autoscaling control loop. It holds the single authoritative instance
// count; scale actions are serialized by an in-progress guard shared
// between the tick loop and ManualScale.
type Manager struct {
	config      Config
	collector   *collector.Collector
	policies    []policy.Evaluator
	orch        orchestrator.Orchestrator
	lb          *balancer.LoadBalancer
	bus         *events.EventBus
	publisher   *events.Publisher
	instruments *metrics.Instruments

	mu      sync.Mutex
	current int
	scaling bool
	indexes map[string]int

	runMu   sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	histMu  sync.Mutex
	history []models.ScaleEvent
	alerts  []models.Alert
}

func New(
	cfg Config,
	coll *collector.Collector,
	policies []policy.Evaluator,
	orch orchestrator.Orchestrator,
	lb *balancer.LoadBalancer,
	bus *events.EventBus,
	instruments *metrics.Instruments,
) *Manager {
	if cfg.MinInstances == 0 {
		cfg.MinInstances = 1
	}
	if cfg.MaxInstances == 0 {
		cfg.MaxInstances = 10
	}
	if cfg.InitialInstances == 0 {
		cfg.InitialInstances = cfg.MinInstances
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = 30 * time.Second
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 100
	}
	if cfg.AlertLimit == 0 {
		cfg.AlertLimit = 100
	}

	return &Manager{
		config:      cfg,
		collector:   coll,
		policies:    policies,
		orch:        orch,
		lb:          lb,
		bus:         bus,
		publisher:   events.NewPublisher(bus, cfg.ServiceName),
		instruments: instruments,
		indexes:     make(map[string]int),
	}
}

// Start transitions stopped -> running: brings up initial capacity, then
// begins the evaluation tick alongside metric sampling and health checks.
func (m *Manager) Start() error {
	m.runMu.Lock()
	if m.running {
		m.runMu.Unlock()
		return nil
	}
	m.running = true
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.runMu.Unlock()

	m.collector.Start()
	m.lb.StartHealthChecks()

	m.wg.Add(1)
	go m.consumeNotifications()

	if err := m.adoptExisting(m.ctx); err != nil {
		logger.WithService(m.config.ServiceName).Warnf("Runtime reconciliation: %v", err)
	}
	if err := m.executeScale(context.Background(), m.config.InitialInstances, "initial_capacity", "bootstrap", false); err != nil {
		logger.WithService(m.config.ServiceName).Errorf("Initial scale failed: %v", err)
	}

	m.wg.Add(1)
	go m.run()

	logger.WithService(m.config.ServiceName).Info("Autoscaling manager started")
	return nil
}

// Stop halts scheduling of new ticks and health cycles. An in-flight scale
// action is allowed to finish.
func (m *Manager) Stop() {
	m.runMu.Lock()
	if !m.running {
		m.runMu.Unlock()
		return
	}
	m.running = false
	m.runMu.Unlock()

	m.cancel()
	m.wg.Wait()

	m.lb.StopHealthChecks()
	m.collector.Stop()

	logger.WithService(m.config.ServiceName).Info("Autoscaling manager stopped")
}

func (m *Manager) ServiceName() string {
	return m.config.ServiceName
}

func (m *Manager) IsRunning() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.running
}

func (m *Manager) CurrentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick runs one policy evaluation. At most one scale action per tick, and
// no tick starts a scale action while a previous one is in flight.
func (m *Manager) tick() {
	m.mu.Lock()
	if m.scaling {
		m.mu.Unlock()
		logger.WithService(m.config.ServiceName).Debug("Tick skipped: scale action in flight")
		return
	}
	current := m.current
	m.mu.Unlock()

	started := time.Now()
	defer func() {
		if m.instruments != nil {
			m.instruments.TickDuration.Observe(time.Since(started).Seconds())
		}
	}()

	snapshot := m.collector.CurrentMetrics()

	for _, p := range m.policies {
		decision := p.ShouldScaleUp(snapshot, current)
		if decision.ShouldScale {
			m.publisher.DecisionMade(decision)
			m.runDecision(decision)
			return
		}
	}

	for _, p := range m.policies {
		decision := p.ShouldScaleDown(snapshot, current)
		if decision.ShouldScale {
			m.publisher.DecisionMade(decision)
			m.runDecision(decision)
			return
		}
	}
}

// runDecision executes a policy decision. Automatic-tick failures are
// alerted and swallowed so the loop keeps running. The action runs under its
// own context: m.ctx only gates tick scheduling, so Stop never aborts an
// orchestrator call already in flight.
func (m *Manager) runDecision(decision *models.ScalingDecision) {
	err := m.executeScale(context.Background(), decision.TargetCount, decision.Reason, decision.PolicyName, true)
	if err != nil && !errors.Is(err, ErrScaleInProgress) {
		logger.WithService(m.config.ServiceName).Errorf("Scale action failed: %v", err)
	}
}

// ManualScale bypasses policy evaluation but clamps to bounds and executes
// through the same path, so history and alerts behave identically. Errors
// propagate to the caller.
func (m *Manager) ManualScale(ctx context.Context, target int, reason string) error {
	if target < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTarget, target)
	}
	if reason == "" {
		reason = "manual_scale"
	}
	return m.executeScale(ctx, target, reason, "manual", false)
}
