package balancer

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/OldStager01/capacity-manager/internal/events"
	"github.com/OldStager01/capacity-manager/internal/logger"
	"github.com/patrickmn/go-cache"
)

var (
	ErrNoHealthyInstance = errors.New("no healthy instance available")
	ErrInstanceExists    = errors.New("instance already registered")
	ErrInstanceNotFound  = errors.New("instance not found")
)

type Algorithm string

const (
	RoundRobin         Algorithm = "round_robin"
	LeastConnections   Algorithm = "least_connections"
	WeightedRoundRobin Algorithm = "weighted_round_robin"
	IPHash             Algorithm = "ip_hash"
)

func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case RoundRobin, LeastConnections, WeightedRoundRobin, IPHash:
		return Algorithm(s), nil
	default:
		return "", fmt.Errorf("unknown balancing algorithm %q", s)
	}
}

// Instance is one routable backend endpoint. Healthy is probe-derived and
// local to the balancer, distinct from the orchestrator's running state.
type Instance struct {
	ID                string            `json:"id"`
	BaseURL           string            `json:"base_url"`
	Weight            int               `json:"weight"`
	Healthy           bool              `json:"healthy"`
	ActiveConnections int               `json:"active_connections"`
	LastHealthCheck   time.Time         `json:"last_health_check,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type InstanceOptions struct {
	Weight   int
	Metadata map[string]string
}

type Config struct {
	Algorithm           Algorithm
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
	HealthCheckPath     string
	MaxRetries          int
	RequestTimeout      time.Duration
	StickyTTL           time.Duration
}

// LoadBalancer owns the live endpoint set. The instance table is mutated
// from both the scaling loop and the health-check loop, so every
// read-then-mutate sequence holds the table mutex for its whole extent.
type LoadBalancer struct {
	config    Config
	publisher *events.Publisher

	mu        sync.Mutex
	instances []*Instance
	byID      map[string]*Instance
	rrIndex   int

	sticky *cache.Cache
	client *http.Client

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func New(cfg Config, publisher *events.Publisher) *LoadBalancer {
	if cfg.Algorithm == "" {
		cfg.Algorithm = RoundRobin
	}
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = 10 * time.Second
	}
	if cfg.HealthCheckTimeout == 0 {
		cfg.HealthCheckTimeout = 3 * time.Second
	}
	if cfg.HealthCheckPath == "" {
		cfg.HealthCheckPath = "/health"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.StickyTTL == 0 {
		cfg.StickyTTL = 30 * time.Minute
	}

	return &LoadBalancer{
		config:    cfg,
		publisher: publisher,
		byID:      make(map[string]*Instance),
		sticky:    cache.New(cfg.StickyTTL, 2*cfg.StickyTTL),
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// AddInstance registers an endpoint. New instances start healthy; the next
// probe cycle corrects that if the instance is not actually serving.
func (lb *LoadBalancer) AddInstance(id, baseURL string, opts InstanceOptions) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if _, exists := lb.byID[id]; exists {
		return fmt.Errorf("%w: %s", ErrInstanceExists, id)
	}

	weight := opts.Weight
	if weight <= 0 {
		weight = 1
	}

	inst := &Instance{
		ID:       id,
		BaseURL:  baseURL,
		Weight:   weight,
		Healthy:  true,
		Metadata: opts.Metadata,
	}
	lb.instances = append(lb.instances, inst)
	lb.byID[id] = inst

	logger.WithInstance(id).Infof("Instance registered: %s (weight %d)", baseURL, weight)
	return nil
}

// RemoveInstance deregisters an endpoint and evicts any sticky routing
// entries that reference it.
func (lb *LoadBalancer) RemoveInstance(id string) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if _, exists := lb.byID[id]; !exists {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	delete(lb.byID, id)

	for i, inst := range lb.instances {
		if inst.ID == id {
			lb.instances = append(lb.instances[:i], lb.instances[i+1:]...)
			break
		}
	}

	for key, item := range lb.sticky.Items() {
		if mapped, ok := item.Object.(string); ok && mapped == id {
			lb.sticky.Delete(key)
		}
	}

	logger.WithInstance(id).Info("Instance deregistered")
	return nil
}

// NextInstance selects a target for one request and accounts one active
// connection against it. Callers pair it with ReleaseConnection.
func (lb *LoadBalancer) NextInstance(clientIP string) (Instance, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	healthy := lb.healthyLocked()
	if len(healthy) == 0 {
		return Instance{}, ErrNoHealthyInstance
	}

	var selected *Instance
	switch lb.config.Algorithm {
	case LeastConnections:
		selected = lb.selectLeastConnections(healthy)
	case WeightedRoundRobin:
		selected = lb.selectWeighted(healthy)
	case IPHash:
		selected = lb.selectIPHash(healthy, clientIP)
	default:
		selected = lb.selectRoundRobin(healthy)
	}

	selected.ActiveConnections++
	return *selected, nil
}

// ReleaseConnection returns one active connection, floored at zero.
func (lb *LoadBalancer) ReleaseConnection(id string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	inst, exists := lb.byID[id]
	if !exists {
		return
	}
	if inst.ActiveConnections > 0 {
		inst.ActiveConnections--
	}
}

func (lb *LoadBalancer) selectRoundRobin(healthy []*Instance) *Instance {
	inst := healthy[lb.rrIndex%len(healthy)]
	lb.rrIndex++
	return inst
}

func (lb *LoadBalancer) selectLeastConnections(healthy []*Instance) *Instance {
	selected := healthy[0]
	for _, inst := range healthy[1:] {
		if inst.ActiveConnections < selected.ActiveConnections {
			selected = inst
		}
	}
	return selected
}

func (lb *LoadBalancer) selectWeighted(healthy []*Instance) *Instance {
	total := 0
	for _, inst := range healthy {
		total += inst.Weight
	}

	n := rand.Intn(total)
	for _, inst := range healthy {
		n -= inst.Weight
		if n < 0 {
			return inst
		}
	}
	return healthy[len(healthy)-1]
}

func (lb *LoadBalancer) selectIPHash(healthy []*Instance, clientIP string) *Instance {
	if mapped, ok := lb.sticky.Get(clientIP); ok {
		if id, ok := mapped.(string); ok {
			if inst, exists := lb.byID[id]; exists && inst.Healthy {
				return inst
			}
		}
		// Mapped instance is gone or unhealthy: recompute below.
		lb.sticky.Delete(clientIP)
	}

	h := fnv.New32a()
	h.Write([]byte(clientIP))
	inst := healthy[int(h.Sum32())%len(healthy)]
	lb.sticky.Set(clientIP, inst.ID, cache.DefaultExpiration)
	return inst
}

func (lb *LoadBalancer) healthyLocked() []*Instance {
	healthy := make([]*Instance, 0, len(lb.instances))
	for _, inst := range lb.instances {
		if inst.Healthy {
			healthy = append(healthy, inst)
		}
	}
	return healthy
}

// setHealthy flips probe-derived eligibility, logging transitions only.
func (lb *LoadBalancer) setHealthy(id string, healthy bool) {
	lb.mu.Lock()
	inst, exists := lb.byID[id]
	if !exists {
		lb.mu.Unlock()
		return
	}
	changed := inst.Healthy != healthy
	inst.Healthy = healthy
	inst.LastHealthCheck = time.Now()
	lb.mu.Unlock()

	if !changed {
		return
	}

	if healthy {
		logger.WithInstance(id).Info("Instance recovered")
	} else {
		logger.WithInstance(id).Warn("Instance marked unhealthy")
	}
	if lb.publisher != nil {
		lb.publisher.InstanceHealthChanged(id, healthy)
	}
}

// LeastLoadedInstances returns up to n instance ids ordered by fewest active
// connections. Used for drain-aware scale-down selection.
func (lb *LoadBalancer) LeastLoadedInstances(n int) []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	ordered := make([]*Instance, len(lb.instances))
	copy(ordered, lb.instances)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].ActiveConnections < ordered[j-1].ActiveConnections; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	if n > len(ordered) {
		n = len(ordered)
	}
	ids := make([]string, 0, n)
	for _, inst := range ordered[:n] {
		ids = append(ids, inst.ID)
	}
	return ids
}

// Summary is a point-in-time copy of the instance table for the
// observability surface.
type Summary struct {
	Algorithm      Algorithm  `json:"algorithm"`
	TotalCount     int        `json:"total_count"`
	HealthyCount   int        `json:"healthy_count"`
	Instances      []Instance `json:"instances"`
	StickyEntries  int        `json:"sticky_entries"`
	HealthChecking bool       `json:"health_checking"`
}

func (lb *LoadBalancer) Summary() Summary {
	lb.runMu.Lock()
	running := lb.running
	lb.runMu.Unlock()

	lb.mu.Lock()
	defer lb.mu.Unlock()

	s := Summary{
		Algorithm:      lb.config.Algorithm,
		TotalCount:     len(lb.instances),
		StickyEntries:  lb.sticky.ItemCount(),
		HealthChecking: running,
	}
	for _, inst := range lb.instances {
		if inst.Healthy {
			s.HealthyCount++
		}
		s.Instances = append(s.Instances, *inst)
	}
	return s
}
