package orchestrator

import (
	"context"
	"errors"

	"github.com/OldStager01/capacity-manager/pkg/models"
)

var (
	ErrStartTimeout       = errors.New("instance did not become healthy in time")
	ErrInstanceNotFound   = errors.New("instance not found")
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")
)

// ResourceLimits bounds one instance. Zero values mean driver defaults.
type ResourceLimits struct {
	MemoryBytes int64
	NanoCPUs    int64
}

type StartOptions struct {
	Index       int
	Environment map[string]string
	Labels      map[string]string
	Resources   ResourceLimits
}

// Orchestrator is the only component that creates, starts, stops, and
// inspects compute instances. Implementations hold no authoritative cache:
// every read queries the runtime.
type Orchestrator interface {
	// StartInstance starts (or restarts) the instance at the given index and
	// blocks until the runtime reports it healthy, bounded by the driver's
	// start timeout.
	StartInstance(ctx context.Context, serviceName string, opts StartOptions) (*models.InstanceDescriptor, error)

	// StopInstance drains and removes an instance. Returns false when the
	// runtime has no such instance.
	StopInstance(ctx context.Context, instanceID string) (bool, error)

	// RunningInstances lists the currently running instances of a service.
	RunningInstances(ctx context.Context, serviceName string) ([]models.InstanceDescriptor, error)

	// InstanceDetails inspects one instance by id.
	InstanceDetails(ctx context.Context, instanceID string) (*models.InstanceDescriptor, error)

	// HealthCheck verifies the runtime itself is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases resources
	Close() error
}
