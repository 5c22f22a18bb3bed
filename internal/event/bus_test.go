package event

import (
	"testing"
	"time"

	"github.com/prompted365/hive/internal/config"
	"github.com/prompted365/hive/internal/natsbus"
)

func TestExactMatch(t *testing.T) {
	bus := New("a")

	var got []Event
	bus.Subscribe("task:assigned", func(ev Event) {
		got = append(got, ev)
	})

	bus.Publish("task:assigned", map[string]any{"task_id": "t1"})
	bus.Publish("task:completed", nil)

	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if got[0].Data["task_id"] != "t1" {
		t.Errorf("unexpected payload: %v", got[0].Data)
	}
	if got[0].Origin != "a" {
		t.Errorf("expected origin 'a', got '%s'", got[0].Origin)
	}
	if got[0].ID == "" {
		t.Error("expected generated event id")
	}
}

func TestPrefixMatch(t *testing.T) {
	bus := New("a")

	count := 0
	bus.Subscribe("task:*", func(Event) { count++ })

	bus.Publish("task:created", nil)
	bus.Publish("task:assigned", nil)
	bus.Publish("agent:created", nil)
	bus.Publish("task", nil) // bare namespace must not match

	if count != 2 {
		t.Errorf("expected 2 deliveries, got %d", count)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := New("a")

	count := 0
	unsub := bus.Subscribe("agent:created", func(Event) { count++ })

	bus.Publish("agent:created", nil)
	unsub()
	bus.Publish("agent:created", nil)

	if count != 1 {
		t.Errorf("expected 1 delivery after unsubscribe, got %d", count)
	}
}

func TestMultipleSubscribers(t *testing.T) {
	bus := New("a")

	var order []string
	bus.Subscribe("task:created", func(Event) { order = append(order, "exact") })
	bus.Subscribe("task:*", func(Event) { order = append(order, "prefix") })

	bus.Publish("task:created", nil)

	if len(order) != 2 {
		t.Fatalf("expected both subscribers to fire, got %v", order)
	}
}

func TestDistributedDelivery(t *testing.T) {
	srv, err := natsbus.New(config.NATSConfig{Port: 0, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	defer srv.Close()

	clientA, err := natsbus.NewClient(srv)
	if err != nil {
		t.Fatalf("client a: %v", err)
	}
	defer clientA.Close()
	clientB, err := natsbus.NewClient(srv)
	if err != nil {
		t.Fatalf("client b: %v", err)
	}
	defer clientB.Close()

	busA := New("instance-a")
	busB := New("instance-b")
	if err := busA.AttachRemote(clientA); err != nil {
		t.Fatalf("attach a: %v", err)
	}
	if err := busB.AttachRemote(clientB); err != nil {
		t.Fatalf("attach b: %v", err)
	}
	// Ensure clientB's subscription interest reaches the server before
	// busA publishes; otherwise the event is dropped and never delivered.
	if err := clientB.Flush(); err != nil {
		t.Fatalf("flush b: %v", err)
	}

	received := make(chan Event, 1)
	busB.Subscribe("task:completed", func(ev Event) {
		received <- ev
	})

	// Echo suppression: the publisher's own bus sees only the local
	// synchronous delivery, never a second relayed copy.
	echoes := 0
	busA.Subscribe("task:completed", func(Event) { echoes++ })

	busA.Publish("task:completed", map[string]any{"task_id": "t9"})

	select {
	case ev := <-received:
		if ev.Origin != "instance-a" {
			t.Errorf("expected origin 'instance-a', got '%s'", ev.Origin)
		}
		if ev.Data["task_id"] != "t9" {
			t.Errorf("unexpected payload: %v", ev.Data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for distributed delivery")
	}

	clientA.Flush()
	time.Sleep(100 * time.Millisecond)
	if echoes != 1 {
		t.Errorf("expected exactly 1 local delivery on publisher, got %d", echoes)
	}
}
