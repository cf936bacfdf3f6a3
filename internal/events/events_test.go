package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/capacity-manager/pkg/models"
)

func TestEventBus_SubscribeReceivesMatchingType(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	decisions := bus.Subscribe(models.EventTypeDecisionMade)
	alerts := bus.Subscribe(models.EventTypeAlert)

	bus.Publish(models.NewEvent(models.EventTypeDecisionMade, "svc", "decided"))

	select {
	case event := <-decisions:
		assert.Equal(t, models.EventTypeDecisionMade, event.Type)
		assert.Equal(t, "svc", event.Service)
	case <-time.After(time.Second):
		t.Fatal("expected a decision event")
	}

	select {
	case <-alerts:
		t.Fatal("alert subscriber must not see decision events")
	default:
	}
}

func TestEventBus_SubscribeAllSeesEveryType(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	all := bus.SubscribeAll()

	bus.Publish(models.NewEvent(models.EventTypeScalingStarted, "svc", "going up"))
	bus.Publish(models.NewEvent(models.EventTypeAlert, "svc", "watch out"))

	for _, want := range []models.EventType{models.EventTypeScalingStarted, models.EventTypeAlert} {
		select {
		case event := <-all:
			assert.Equal(t, want, event.Type)
		case <-time.After(time.Second):
			t.Fatalf("expected %s event", want)
		}
	}
}

func TestEventBus_FullChannelDropsInsteadOfBlocking(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	ch := bus.Subscribe(models.EventTypeError)

	done := make(chan struct{})
	go func() {
		bus.Publish(models.NewEvent(models.EventTypeError, "svc", "first"))
		bus.Publish(models.NewEvent(models.EventTypeError, "svc", "second"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish must never block on a full subscriber")
	}

	event := <-ch
	assert.Equal(t, "first", event.Message)
}

func TestEventBus_CloseIsIdempotentAndStopsDelivery(t *testing.T) {
	bus := NewEventBus(10)
	ch := bus.Subscribe(models.EventTypeAlert)

	bus.Close()
	bus.Close()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after close is a no-op.
	bus.Publish(models.NewEvent(models.EventTypeAlert, "svc", "late"))
}

func TestPublisher_TypedHelpers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	decisions := bus.Subscribe(models.EventTypeDecisionMade)
	failures := bus.Subscribe(models.EventTypeScalingFailed)

	p := NewPublisher(bus, "workflow-worker")

	p.DecisionMade(&models.ScalingDecision{
		PolicyName:  "cpu-policy",
		Action:      models.ActionScaleUp,
		ShouldScale: true,
	})

	event := <-decisions
	assert.Equal(t, "workflow-worker", event.Service)
	assert.Contains(t, event.Message, "SCALE_UP")

	p.ScalingFailed("burst", assert.AnError)

	event = <-failures
	require.Equal(t, models.SeverityCritical, event.Severity)
	data, ok := event.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "burst", data["reason"])
}
