package gateway

import "testing"

func TestBroker_EmitReachesSubscriber(t *testing.T) {
	b := NewBroker()
	events, cancel := b.Subscribe("sess-1")
	defer cancel()

	if err := b.Emit("sess-1", "hello"); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	select {
	case got := <-events:
		if got != "hello" {
			t.Errorf("event = %q, want hello", got)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestBroker_EmitWithoutSubscriberIsDropped(t *testing.T) {
	b := NewBroker()
	if err := b.Emit("nobody", "hello"); err != nil {
		t.Fatalf("Emit without subscriber should not fail: %v", err)
	}
}

func TestBroker_ResubscribeReplacesOldStream(t *testing.T) {
	b := NewBroker()
	old, oldCancel := b.Subscribe("sess-1")
	defer oldCancel()

	events, cancel := b.Subscribe("sess-1")
	defer cancel()

	if _, ok := <-old; ok {
		t.Error("old stream should be closed on resubscribe")
	}

	if err := b.Emit("sess-1", "hello"); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	select {
	case got := <-events:
		if got != "hello" {
			t.Errorf("event = %q, want hello", got)
		}
	default:
		t.Fatal("no event on new stream")
	}
}

func TestBroker_CancelStopsDelivery(t *testing.T) {
	b := NewBroker()
	_, cancel := b.Subscribe("sess-1")
	cancel()
	cancel() // idempotent

	if err := b.Emit("sess-1", "hello"); err != nil {
		t.Fatalf("Emit after cancel should drop: %v", err)
	}
}
