package manager

import (
	"context"
	"fmt"

	"github.com/OldStager01/capacity-manager/internal/balancer"
	"github.com/OldStager01/capacity-manager/internal/logger"
	"github.com/OldStager01/capacity-manager/internal/orchestrator"
	"github.com/OldStager01/capacity-manager/pkg/models"
)

// executeScale moves the instance count to target, one instance at a time,
// updating the balancer after each orchestrator call settles. The first
// orchestrator failure aborts the action; the count stays consistent with
// whatever completed.
func (m *Manager) executeScale(ctx context.Context, target int, reason, policyName string, policyTriggered bool) error {
	if target < m.config.MinInstances {
		target = m.config.MinInstances
	}
	if target > m.config.MaxInstances {
		target = m.config.MaxInstances
	}

	m.mu.Lock()
	if m.scaling {
		m.mu.Unlock()
		return ErrScaleInProgress
	}
	from := m.current
	if target == from {
		m.mu.Unlock()
		return nil
	}
	m.scaling = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.scaling = false
		m.mu.Unlock()
	}()

	action := models.ActionScaleUp
	if target < from {
		action = models.ActionScaleDown
	}

	log := logger.WithService(m.config.ServiceName)
	log.Infof("Scaling %s: %d -> %d (%s)", action, from, target, reason)
	m.publisher.ScalingStarted(action, from, target, reason)

	var err error
	if target > from {
		err = m.scaleUp(ctx, target)
	} else {
		err = m.scaleDown(ctx, target)
	}

	achieved := m.CurrentCount()
	if m.instruments != nil {
		m.instruments.CurrentInstances.Set(float64(achieved))
	}

	if err != nil {
		status := models.ScaleEventFailed
		if achieved != from {
			status = models.ScaleEventPartial
		}
		event := models.NewScaleEvent(action, from, achieved, reason, policyName, status)
		m.recordEvent(event)
		m.recordAlert(models.NewAlert(models.AlertTypeScaleFailed, models.AlertSeverityCritical,
			fmt.Sprintf("Scale %s aborted at %d of %d: %v", action, achieved, target, err)).
			WithDetails(map[string]interface{}{
				"from":   from,
				"target": target,
				"reason": reason,
				"policy": policyName,
			}))
		m.publisher.ScalingFailed(reason, err)
		if m.instruments != nil {
			m.instruments.ScaleFailuresTotal.Inc()
		}
		return fmt.Errorf("scale %s to %d: %w", action, target, err)
	}

	event := models.NewScaleEvent(action, from, achieved, reason, policyName, models.ScaleEventSuccess)
	m.recordEvent(event)
	m.publisher.ScalingComplete(event)
	if m.instruments != nil {
		m.instruments.ScaleActionsTotal.WithLabelValues(string(action)).Inc()
	}

	// A committed policy action restarts every policy's cooldown window.
	// Letting a second policy fire on the very next tick causes ping-pong.
	// Manual and bootstrap changes leave the cooldowns alone.
	if policyTriggered {
		for _, p := range m.policies {
			p.UpdateLastScaleTime()
		}
	}

	log.Infof("Scale %s complete: %d instances", action, achieved)
	return nil
}

func (m *Manager) scaleUp(ctx context.Context, target int) error {
	for m.CurrentCount() < target {
		index := m.allocIndex()

		descriptor, err := m.orch.StartInstance(ctx, m.config.ServiceName, orchestrator.StartOptions{
			Index:       index,
			Environment: m.config.Environment,
			Labels:      m.config.Labels,
		})
		if err != nil {
			return fmt.Errorf("start instance %d: %w", index, err)
		}

		if err := m.lb.AddInstance(descriptor.ID, descriptor.URL, m.instanceOptions(descriptor)); err != nil {
			logger.WithInstance(descriptor.ID).Warnf("Balancer registration: %v", err)
		}

		m.mu.Lock()
		m.indexes[descriptor.ID] = index
		m.current++
		m.mu.Unlock()

		m.publisher.InstanceAdded(descriptor)
	}
	return nil
}

func (m *Manager) scaleDown(ctx context.Context, target int) error {
	victims := m.scaleDownVictims(m.CurrentCount() - target)

	for _, id := range victims {
		removed, err := m.orch.StopInstance(ctx, id)
		if err != nil {
			return fmt.Errorf("stop instance %s: %w", id, err)
		}
		if !removed {
			logger.WithInstance(id).Warn("Instance already gone from runtime")
		}

		if err := m.lb.RemoveInstance(id); err != nil {
			logger.WithInstance(id).Debugf("Balancer deregistration: %v", err)
		}

		m.mu.Lock()
		delete(m.indexes, id)
		if m.current > 0 {
			m.current--
		}
		m.mu.Unlock()

		m.publisher.InstanceRemoved(id)
	}
	return nil
}

// scaleDownVictims picks n instances to stop, least active connections
// first. Instances the balancer lost track of are taken last, highest
// index first.
func (m *Manager) scaleDownVictims(n int) []string {
	if n <= 0 {
		return nil
	}

	victims := m.lb.LeastLoadedInstances(n)
	if len(victims) >= n {
		return victims[:n]
	}

	chosen := make(map[string]bool, len(victims))
	for _, id := range victims {
		chosen[id] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for len(victims) < n {
		best := ""
		bestIndex := -1
		for id, index := range m.indexes {
			if !chosen[id] && index > bestIndex {
				best, bestIndex = id, index
			}
		}
		if best == "" {
			break
		}
		chosen[best] = true
		victims = append(victims, best)
	}
	return victims
}

// allocIndex returns the smallest index not held by a tracked instance, so
// instance names and ports stay dense and deterministic.
func (m *Manager) allocIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := make(map[int]bool, len(m.indexes))
	for _, index := range m.indexes {
		used[index] = true
	}
	for i := 0; ; i++ {
		if !used[i] {
			return i
		}
	}
}

func (m *Manager) instanceOptions(d *models.InstanceDescriptor) balancer.InstanceOptions {
	return balancer.InstanceOptions{
		Weight: 1,
		Metadata: map[string]string{
			"name":  d.Name,
			"index": fmt.Sprintf("%d", d.Index),
		},
	}
}

// adoptExisting registers instances the runtime already has, so a restart
// of the manager does not recreate running containers.
func (m *Manager) adoptExisting(ctx context.Context) error {
	descriptors, err := m.orch.RunningInstances(ctx, m.config.ServiceName)
	if err != nil {
		return err
	}

	for i := range descriptors {
		d := &descriptors[i]
		if err := m.lb.AddInstance(d.ID, d.URL, m.instanceOptions(d)); err != nil {
			continue
		}
		m.mu.Lock()
		m.indexes[d.ID] = d.Index
		m.current++
		m.mu.Unlock()
		logger.WithInstance(d.ID).Info("Adopted running instance")
	}
	return nil
}
