package bus

import (
	"sync"
	"testing"

	"github.com/mathrumble/mathrumble/internal/game/events"
)

func TestLocalBusFanOut(t *testing.T) {
	b := NewLocalBus()

	var mu sync.Mutex
	var first, second []string
	cancel1, err := b.Subscribe(func(env events.Envelope) {
		mu.Lock()
		first = append(first, env.RoomID)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel1()
	cancel2, err := b.Subscribe(func(env events.Envelope) {
		mu.Lock()
		second = append(second, env.RoomID)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel2()

	env, err := events.NewEnvelope("room-1", events.TypeGameStarted, events.GameStartedPayload{})
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if err := b.Publish(env); err != nil {
		t.Fatalf("publish: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(first) != 1 || len(second) != 1 {
		t.Errorf("deliveries = %d/%d, want 1/1", len(first), len(second))
	}
}

func TestLocalBusUnsubscribe(t *testing.T) {
	b := NewLocalBus()

	var mu sync.Mutex
	count := 0
	cancel, err := b.Subscribe(func(env events.Envelope) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	env, _ := events.NewEnvelope("room-1", events.TypeGameStarted, events.GameStartedPayload{})
	b.Publish(env)
	cancel()
	b.Publish(env)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("deliveries after unsubscribe = %d, want 1", count)
	}
}

func TestLocalBusPreservesOrder(t *testing.T) {
	b := NewLocalBus()

	var got []events.EventType
	cancel, _ := b.Subscribe(func(env events.Envelope) {
		got = append(got, env.Type)
	})
	defer cancel()

	want := []events.EventType{
		events.TypeGameStarted,
		events.TypeStateUpdate,
		events.TypeTimerTick,
		events.TypeGameOver,
	}
	for _, typ := range want {
		env, _ := events.NewEnvelope("room-1", typ, nil)
		b.Publish(env)
	}

	if len(got) != len(want) {
		t.Fatalf("deliveries = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %q, want %q", i, got[i], want[i])
		}
	}
}
