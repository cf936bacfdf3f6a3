package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/OldStager01/capacity-manager/pkg/models"
)

// MockOrchestrator is an in-memory runtime for tests and local runs.
// Instances start instantly and healthy unless failure injection is armed.
type MockOrchestrator struct {
	mu        sync.Mutex
	instances map[string]*models.InstanceDescriptor

	startCalls int
	stopCalls  int

	failStart    bool
	failStartErr error
	failAfter    int
}

func NewMockOrchestrator() *MockOrchestrator {
	return &MockOrchestrator{
		instances: make(map[string]*models.InstanceDescriptor),
		failAfter: -1,
	}
}

// FailStarts makes subsequent StartInstance calls fail with err.
func (m *MockOrchestrator) FailStarts(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStart = true
	m.failStartErr = err
}

// FailStartAfter lets n StartInstance calls succeed, then fails the rest.
func (m *MockOrchestrator) FailStartAfter(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.failStartErr = err
}

func (m *MockOrchestrator) StartCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCalls
}

func (m *MockOrchestrator) StopCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalls
}

func (m *MockOrchestrator) StartInstance(ctx context.Context, serviceName string, opts StartOptions) (*models.InstanceDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.startCalls++

	if m.failStart || (m.failAfter >= 0 && m.startCalls > m.failAfter) {
		err := m.failStartErr
		if err == nil {
			err = ErrStartTimeout
		}
		return nil, err
	}

	id := fmt.Sprintf("%s-%d", serviceName, opts.Index)
	descriptor := &models.InstanceDescriptor{
		ID:        id,
		Name:      id,
		URL:       fmt.Sprintf("http://127.0.0.1:%d", 9100+opts.Index),
		Port:      9100 + opts.Index,
		Index:     opts.Index,
		Healthy:   true,
		Running:   true,
		Labels:    opts.Labels,
		StartedAt: time.Now(),
	}
	m.instances[id] = descriptor
	return descriptor, nil
}

func (m *MockOrchestrator) StopInstance(ctx context.Context, instanceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopCalls++

	if _, exists := m.instances[instanceID]; !exists {
		return false, nil
	}
	delete(m.instances, instanceID)
	return true, nil
}

func (m *MockOrchestrator) RunningInstances(ctx context.Context, serviceName string) ([]models.InstanceDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var descriptors []models.InstanceDescriptor
	for _, d := range m.instances {
		descriptors = append(descriptors, *d)
	}
	return descriptors, nil
}

func (m *MockOrchestrator) InstanceDetails(ctx context.Context, instanceID string) (*models.InstanceDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, exists := m.instances[instanceID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}
	copied := *d
	return &copied, nil
}

func (m *MockOrchestrator) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockOrchestrator) Close() error {
	return nil
}
