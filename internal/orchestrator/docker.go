package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/OldStager01/capacity-manager/internal/logger"
	"github.com/OldStager01/capacity-manager/internal/resilience"
	"github.com/OldStager01/capacity-manager/pkg/models"
)

const (
	managedLabel = "com.capacity-manager.managed"
	serviceLabel = "com.capacity-manager.service"
	indexLabel   = "com.capacity-manager.index"
	portLabel    = "com.capacity-manager.port"
)

type DockerConfig struct {
	Image         string
	NamePrefix    string
	Network       string
	AdvertiseHost string
	BasePort      int
	InternalPort  int
	StartTimeout  time.Duration
	StopGrace     time.Duration
	MemoryLimit   int64
	NanoCPUs      int64
	Environment   []string

	BreakerMaxFailures int
	BreakerTimeout     time.Duration
}

// DockerOrchestrator drives instances through the Docker Engine API with a
// typed client. All engine calls pass through a circuit breaker so a dead
// daemon fast-fails instead of stalling every scaling tick.
type DockerOrchestrator struct {
	cli     *client.Client
	config  DockerConfig
	breaker *resilience.CircuitBreaker
}

func NewDockerOrchestrator(cfg DockerConfig) (*DockerOrchestrator, error) {
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = "workflow-worker"
	}
	if cfg.AdvertiseHost == "" {
		cfg.AdvertiseHost = "127.0.0.1"
	}
	if cfg.BasePort == 0 {
		cfg.BasePort = 9100
	}
	if cfg.InternalPort == 0 {
		cfg.InternalPort = 8080
	}
	if cfg.StartTimeout == 0 {
		cfg.StartTimeout = 60 * time.Second
	}
	if cfg.StopGrace == 0 {
		cfg.StopGrace = 10 * time.Second
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "docker",
		MaxFailures: cfg.BreakerMaxFailures,
		Timeout:     cfg.BreakerTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warnf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &DockerOrchestrator{
		cli:     cli,
		config:  cfg,
		breaker: breaker,
	}, nil
}

func (d *DockerOrchestrator) StartInstance(ctx context.Context, serviceName string, opts StartOptions) (*models.InstanceDescriptor, error) {
	var descriptor *models.InstanceDescriptor

	err := d.breaker.Execute(func() error {
		var innerErr error
		descriptor, innerErr = d.startInstance(ctx, serviceName, opts)
		return innerErr
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	return descriptor, err
}

func (d *DockerOrchestrator) startInstance(ctx context.Context, serviceName string, opts StartOptions) (*models.InstanceDescriptor, error) {
	name := fmt.Sprintf("%s-%d", d.config.NamePrefix, opts.Index)

	// An existing stopped container is restarted, not recreated: the
	// deterministic name keeps index slots stable across restarts.
	existing, err := d.cli.ContainerInspect(ctx, name)
	if err == nil {
		if !existing.State.Running {
			logger.WithInstance(existing.ID).Infof("Restarting stopped instance %s", name)
			if err := d.cli.ContainerStart(ctx, existing.ID, container.StartOptions{}); err != nil {
				return nil, fmt.Errorf("failed to restart instance %s: %w", name, err)
			}
		}
		if err := d.waitHealthy(ctx, existing.ID); err != nil {
			return nil, err
		}
		return d.InstanceDetails(ctx, existing.ID)
	}
	if !client.IsErrNotFound(err) {
		return nil, fmt.Errorf("failed to inspect instance %s: %w", name, err)
	}

	hostPort := d.config.BasePort + opts.Index
	internalPort := nat.Port(fmt.Sprintf("%d/tcp", d.config.InternalPort))

	labels := map[string]string{
		managedLabel: "true",
		serviceLabel: serviceName,
		indexLabel:   strconv.Itoa(opts.Index),
		portLabel:    strconv.Itoa(hostPort),
	}
	for k, v := range opts.Labels {
		labels[k] = v
	}

	env := append([]string(nil), d.config.Environment...)
	env = append(env,
		fmt.Sprintf("INSTANCE_INDEX=%d", opts.Index),
		fmt.Sprintf("PORT=%d", d.config.InternalPort),
	)
	for k, v := range opts.Environment {
		env = append(env, k+"="+v)
	}

	resources := container.Resources{
		Memory:   d.config.MemoryLimit,
		NanoCPUs: d.config.NanoCPUs,
	}
	if opts.Resources.MemoryBytes > 0 {
		resources.Memory = opts.Resources.MemoryBytes
	}
	if opts.Resources.NanoCPUs > 0 {
		resources.NanoCPUs = opts.Resources.NanoCPUs
	}

	created, err := d.cli.ContainerCreate(ctx,
		&container.Config{
			Image:  d.config.Image,
			Env:    env,
			Labels: labels,
			ExposedPorts: nat.PortSet{
				internalPort: struct{}{},
			},
			Healthcheck: &container.HealthConfig{
				Test: []string{
					"CMD-SHELL",
					fmt.Sprintf("wget -q -O /dev/null http://localhost:%d/health || exit 1", d.config.InternalPort),
				},
				Interval: 5 * time.Second,
				Timeout:  3 * time.Second,
				Retries:  3,
			},
		},
		&container.HostConfig{
			NetworkMode: container.NetworkMode(d.config.Network),
			PortBindings: nat.PortMap{
				internalPort: []nat.PortBinding{{
					HostIP:   "0.0.0.0",
					HostPort: strconv.Itoa(hostPort),
				}},
			},
			RestartPolicy: container.RestartPolicy{
				Name: container.RestartPolicyUnlessStopped,
			},
			Resources: resources,
		},
		nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create instance %s: %w", name, err)
	}

	if err := d.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start instance %s: %w", name, err)
	}

	logger.WithInstance(created.ID).Infof("Instance %s created on port %d", name, hostPort)

	if err := d.waitHealthy(ctx, created.ID); err != nil {
		return nil, err
	}
	return d.InstanceDetails(ctx, created.ID)
}

// waitHealthy blocks until the runtime's built-in health probe reports
// healthy, bounded by StartTimeout.
func (d *DockerOrchestrator) waitHealthy(ctx context.Context, instanceID string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = d.config.StartTimeout

	err := backoff.Retry(func() error {
		inspect, err := d.cli.ContainerInspect(ctx, instanceID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !inspect.State.Running {
			return errors.New("not running yet")
		}
		if inspect.State.Health == nil {
			// No health probe defined on the image: running is the best
			// signal available.
			return nil
		}
		if inspect.State.Health.Status == types.Healthy {
			return nil
		}
		return fmt.Errorf("health status %s", inspect.State.Health.Status)
	}, backoff.WithContext(b, ctx))

	if err != nil {
		return fmt.Errorf("%w: instance %s: %v", ErrStartTimeout, instanceID, err)
	}
	return nil
}

func (d *DockerOrchestrator) StopInstance(ctx context.Context, instanceID string) (bool, error) {
	var stopped bool

	err := d.breaker.Execute(func() error {
		_, err := d.cli.ContainerInspect(ctx, instanceID)
		if client.IsErrNotFound(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to inspect instance %s: %w", instanceID, err)
		}

		grace := int(d.config.StopGrace.Seconds())
		if err := d.cli.ContainerStop(ctx, instanceID, container.StopOptions{Timeout: &grace}); err != nil {
			return fmt.Errorf("failed to stop instance %s: %w", instanceID, err)
		}
		if err := d.cli.ContainerRemove(ctx, instanceID, container.RemoveOptions{Force: true}); err != nil {
			return fmt.Errorf("failed to remove instance %s: %w", instanceID, err)
		}

		stopped = true
		logger.WithInstance(instanceID).Info("Instance stopped and removed")
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false, fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	return stopped, err
}

func (d *DockerOrchestrator) RunningInstances(ctx context.Context, serviceName string) ([]models.InstanceDescriptor, error) {
	var descriptors []models.InstanceDescriptor

	err := d.breaker.Execute(func() error {
		containers, err := d.cli.ContainerList(ctx, container.ListOptions{
			Filters: filters.NewArgs(
				filters.Arg("label", serviceLabel+"="+serviceName),
				filters.Arg("status", "running"),
			),
		})
		if err != nil {
			return fmt.Errorf("failed to list instances: %w", err)
		}

		for _, c := range containers {
			index, _ := strconv.Atoi(c.Labels[indexLabel])
			port, _ := strconv.Atoi(c.Labels[portLabel])
			descriptors = append(descriptors, models.InstanceDescriptor{
				ID:      c.ID,
				Name:    trimContainerName(c.Names),
				URL:     fmt.Sprintf("http://%s:%d", d.config.AdvertiseHost, port),
				Port:    port,
				Index:   index,
				Running: true,
				Healthy: true,
				Labels:  c.Labels,
			})
		}
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	return descriptors, err
}

func (d *DockerOrchestrator) InstanceDetails(ctx context.Context, instanceID string) (*models.InstanceDescriptor, error) {
	inspect, err := d.cli.ContainerInspect(ctx, instanceID)
	if client.IsErrNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to inspect instance %s: %w", instanceID, err)
	}

	index, _ := strconv.Atoi(inspect.Config.Labels[indexLabel])
	port, _ := strconv.Atoi(inspect.Config.Labels[portLabel])

	healthy := inspect.State.Running
	if inspect.State.Health != nil {
		healthy = inspect.State.Health.Status == types.Healthy
	}

	descriptor := &models.InstanceDescriptor{
		ID:      inspect.ID,
		Name:    trimContainerName([]string{inspect.Name}),
		URL:     fmt.Sprintf("http://%s:%d", d.config.AdvertiseHost, port),
		Port:    port,
		Index:   index,
		Running: inspect.State.Running,
		Healthy: healthy,
		Labels:  inspect.Config.Labels,
	}
	if started, err := time.Parse(time.RFC3339Nano, inspect.State.StartedAt); err == nil {
		descriptor.StartedAt = started
	}
	return descriptor, nil
}

func (d *DockerOrchestrator) HealthCheck(ctx context.Context) error {
	return d.breaker.Execute(func() error {
		_, err := d.cli.Ping(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
		}
		return nil
	})
}

func (d *DockerOrchestrator) Close() error {
	return d.cli.Close()
}

func trimContainerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	name := names[0]
	if len(name) > 0 && name[0] == '/' {
		return name[1:]
	}
	return name
}
