package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockOrchestrator_StartStopLifecycle(t *testing.T) {
	m := NewMockOrchestrator()
	ctx := context.Background()

	d, err := m.StartInstance(ctx, "workflow-worker", StartOptions{Index: 0})
	require.NoError(t, err)
	assert.Equal(t, "workflow-worker-0", d.ID)
	assert.Equal(t, 9100, d.Port)
	assert.True(t, d.Healthy)

	running, err := m.RunningInstances(ctx, "workflow-worker")
	require.NoError(t, err)
	assert.Len(t, running, 1)

	removed, err := m.StopInstance(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	// Stopping again reports the instance as already gone.
	removed, err = m.StopInstance(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = m.InstanceDetails(ctx, d.ID)
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestMockOrchestrator_FailureInjection(t *testing.T) {
	m := NewMockOrchestrator()
	ctx := context.Background()
	bootErr := errors.New("no capacity")

	m.FailStartAfter(1, bootErr)

	_, err := m.StartInstance(ctx, "workflow-worker", StartOptions{Index: 0})
	require.NoError(t, err)

	_, err = m.StartInstance(ctx, "workflow-worker", StartOptions{Index: 1})
	assert.ErrorIs(t, err, bootErr)
	assert.Equal(t, 2, m.StartCalls())
}

func TestTrimContainerName(t *testing.T) {
	assert.Equal(t, "workflow-worker-0", trimContainerName([]string{"/workflow-worker-0"}))
	assert.Equal(t, "bare", trimContainerName([]string{"bare"}))
	assert.Equal(t, "", trimContainerName(nil))
}
