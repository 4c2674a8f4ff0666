package notify

import (
	"context"
	"fmt"

	"chime/internal/eventbus"
)

// EventTaskNotification is the event name pushed to connected browsers and
// published on the internal bus when a reminder fires.
const EventTaskNotification = "task_notification"

// Payload is the notification body delivered to the owning user.
type Payload struct {
	TaskID int64  `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Delivery addresses a payload to one user's routing key.
type Delivery struct {
	RoutingKey string  `json:"routing_key"`
	UserID     int64   `json:"user_id"`
	Payload    Payload `json:"payload"`
}

// RoutingKey returns the per-user channel identifier notifications are
// addressed to.
func RoutingKey(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}

// Sink is the outward notification channel consumed by the dispatcher.
// Publish is fire-and-forget: delivery failure is logged by the
// implementation, never retried, never fatal.
type Sink interface {
	Publish(ctx context.Context, userID int64, p Payload) error
}

// SideChannel is a local best-effort delivery (voice playback, Telegram
// forward). Failures must be swallowed by the caller.
type SideChannel interface {
	Name() string
	Announce(ctx context.Context, title, body string) error
}

// BusSink publishes deliveries on the event bus, decoupling the dispatcher
// from the transports that fan them out (websocket hub, Telegram forwarder).
type BusSink struct {
	bus eventbus.Bus
}

func NewBusSink(bus eventbus.Bus) *BusSink {
	return &BusSink{bus: bus}
}

func (s *BusSink) Publish(_ context.Context, userID int64, p Payload) error {
	s.bus.Publish(eventbus.Event{
		Type: EventTaskNotification,
		Data: Delivery{RoutingKey: RoutingKey(userID), UserID: userID, Payload: p},
	})
	return nil
}
