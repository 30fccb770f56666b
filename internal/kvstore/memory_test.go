package kvstore

import (
	"context"
	"testing"
)

func TestMemory_SetGetDelete(t *testing.T) {
	hub := NewMemory()
	a := hub.Client("a")

	ctx := context.Background()
	if _, ok, err := a.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected absent key, ok=%v err=%v", ok, err)
	}
	if err := a.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := a.Get(ctx, "k")
	if err != nil || !ok || v != "v1" {
		t.Fatalf("get after set: v=%q ok=%v err=%v", v, ok, err)
	}
	if err := a.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := a.Get(ctx, "k"); ok {
		t.Fatalf("expected key gone after delete")
	}
}

func TestMemory_NotifiesOtherInstancesOnly(t *testing.T) {
	hub := NewMemory()
	a := hub.Client("a")
	b := hub.Client("b")

	ctx := context.Background()

	var aEvents, bEvents []Event
	cancelA, err := a.Subscribe(ctx, func(e Event) { aEvents = append(aEvents, e) })
	if err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	defer cancelA()
	cancelB, err := b.Subscribe(ctx, func(e Event) { bEvents = append(bEvents, e) })
	if err != nil {
		t.Fatalf("subscribe b: %v", err)
	}
	defer cancelB()

	if err := a.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}

	if len(aEvents) != 0 {
		t.Fatalf("writer must not observe its own event, got %d", len(aEvents))
	}
	if len(bEvents) != 1 || bEvents[0].Key != "k" || bEvents[0].Value != "v" || bEvents[0].Origin != "a" {
		t.Fatalf("unexpected events for b: %+v", bEvents)
	}

	if err := a.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(bEvents) != 2 || !bEvents[1].Deleted {
		t.Fatalf("expected delete event, got %+v", bEvents)
	}

	// Deleting an absent key produces no event.
	if err := a.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
	if len(bEvents) != 2 {
		t.Fatalf("expected no event for absent delete, got %d", len(bEvents))
	}
}

func TestMemory_UnsubscribeStopsDelivery(t *testing.T) {
	hub := NewMemory()
	a := hub.Client("a")
	b := hub.Client("b")

	ctx := context.Background()
	var events []Event
	cancel, err := b.Subscribe(ctx, func(e Event) { events = append(events, e) })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	if err := a.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no delivery after cancel, got %d", len(events))
	}
}
