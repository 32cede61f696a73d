package events_test

import (
	"testing"

	"gardenlog/internal/events"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()

	var order []string
	bus.On(events.JobAdded, func(events.Event) { order = append(order, "first") })
	bus.On(events.JobAdded, func(events.Event) { order = append(order, "second") })
	bus.On(events.JobAdded, func(events.Event) { order = append(order, "third") })

	bus.Emit(events.Event{Type: events.JobAdded, JobID: "job-1"})

	if len(order) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(order))
	}
	for i, want := range []string{"first", "second", "third"} {
		if order[i] != want {
			t.Errorf("position %d: got %s, want %s", i, order[i], want)
		}
	}
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()

	count := 0
	unsubscribe := bus.On(events.JobFailed, func(events.Event) { count++ })

	bus.Emit(events.Event{Type: events.JobFailed})
	unsubscribe()
	bus.Emit(events.Event{Type: events.JobFailed})

	if count != 1 {
		t.Fatalf("expected 1 delivery after unsubscribe, got %d", count)
	}

	// Unsubscribing twice is harmless.
	unsubscribe()
}

func TestBusNoReplayForLateSubscribers(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()
	bus.Emit(events.Event{Type: events.JobCompleted, JobID: "early"})

	received := false
	bus.On(events.JobCompleted, func(events.Event) { received = true })

	if received {
		t.Fatal("late subscriber must not see past events")
	}
}

func TestBusOnMultiple(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()

	var types []events.Type
	unsubscribe := bus.OnMultiple(
		[]events.Type{events.JobAdded, events.SyncCompleted},
		func(event events.Event) { types = append(types, event.Type) },
	)

	bus.Emit(events.Event{Type: events.JobAdded})
	bus.Emit(events.Event{Type: events.JobFailed})
	bus.Emit(events.Event{Type: events.SyncCompleted})

	if len(types) != 2 || types[0] != events.JobAdded || types[1] != events.SyncCompleted {
		t.Fatalf("unexpected deliveries: %v", types)
	}

	unsubscribe()
	bus.Emit(events.Event{Type: events.JobAdded})
	if len(types) != 2 {
		t.Fatal("unsubscribe should cover every subscribed type")
	}
}

func TestBusEmitWithoutSubscribers(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()
	// Must not panic or block.
	bus.Emit(events.Event{Type: events.SyncCompleted})
}
