package notify

import (
	"context"
	"testing"
	"time"

	"chime/internal/eventbus"
)

func TestRoutingKey(t *testing.T) {
	if got := RoutingKey(42); got != "user_42" {
		t.Fatalf("RoutingKey(42) = %q", got)
	}
}

func TestBusSinkPublishesDelivery(t *testing.T) {
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	sink := NewBusSink(bus)
	p := Payload{TaskID: 7, Title: "Standup", Body: "join the call"}
	if err := sink.Publish(context.Background(), 3, p); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case e := <-ch:
		if e.Type != EventTaskNotification {
			t.Fatalf("unexpected event type %q", e.Type)
		}
		d, ok := e.Data.(Delivery)
		if !ok {
			t.Fatalf("unexpected data %T", e.Data)
		}
		if d.RoutingKey != "user_3" || d.UserID != 3 || d.Payload != p {
			t.Fatalf("unexpected delivery %+v", d)
		}
	case <-time.After(time.Second):
		t.Fatalf("no delivery on bus")
	}
}
