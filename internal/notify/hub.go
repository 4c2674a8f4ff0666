package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"chime/internal/eventbus"
	logx "chime/pkg/logx"
)

const (
	writeWait     = 10 * time.Second
	clientBacklog = 16
)

// HubConfig controls the websocket push channel.
type HubConfig struct {
	RatePerSec int // outbound notification rate limit across all rooms
}

// Hub fans bus deliveries out to websocket connections, one room per user
// routing key. A connection that cannot keep up is dropped, never waited on.
type Hub struct {
	log     logx.Logger
	bus     eventbus.Bus
	limiter *rate.Limiter

	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]map[*client]struct{}
}

type client struct {
	id   string
	key  string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func NewHub(cfg HubConfig, bus eventbus.Bus, log logx.Logger) *Hub {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	return &Hub{
		log:     log,
		bus:     bus,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API authenticates via bearer token, not cookies, so
			// cross-origin upgrades are fine here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		rooms: map[string]map[*client]struct{}{},
	}
}

// Run consumes deliveries from the bus until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ch, unsub := h.bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if e.Type != EventTaskNotification {
				continue
			}
			d, ok := e.Data.(Delivery)
			if !ok {
				continue
			}
			h.deliver(d)
		}
	}
}

// Serve upgrades the request and parks the connection in the user's room.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID int64) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{
		id:   uuid.NewString(),
		key:  RoutingKey(userID),
		conn: conn,
		send: make(chan []byte, clientBacklog),
	}

	h.mu.Lock()
	room := h.rooms[c.key]
	if room == nil {
		room = map[*client]struct{}{}
		h.rooms[c.key] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("websocket connected", logx.String("room", c.key), logx.String("conn", c.id))

	go h.writeLoop(c)
	go h.readLoop(c)
	return nil
}

func (h *Hub) deliver(d Delivery) {
	if !h.limiter.Allow() {
		h.log.Warn("notification rate limit hit, dropping", logx.String("room", d.RoutingKey))
		return
	}
	msg, err := json.Marshal(struct {
		Event string  `json:"event"`
		Data  Payload `json:"data"`
	}{Event: EventTaskNotification, Data: d.Payload})
	if err != nil {
		h.log.Error("marshal notification", logx.Err(err))
		return
	}

	// Sends happen under the lock (they are non-blocking) so a concurrent
	// drop() can never close a channel mid-send.
	h.mu.Lock()
	var slow []*client
	n := len(h.rooms[d.RoutingKey])
	for c := range h.rooms[d.RoutingKey] {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	if n == 0 {
		h.log.Debug("no listeners for notification", logx.String("room", d.RoutingKey))
	}
	for _, c := range slow {
		// Slow consumer; drop it rather than queueing unboundedly.
		h.log.Warn("dropping slow websocket", logx.String("room", c.key), logx.String("conn", c.id))
		h.drop(c)
	}
}

func (h *Hub) writeLoop(c *client) {
	defer h.drop(c)
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("websocket write failed", logx.String("conn", c.id), logx.Err(err))
			return
		}
	}
}

func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if room, ok := h.rooms[c.key]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.key)
		}
	}
	c.once.Do(func() { close(c.send) })
	h.mu.Unlock()

	_ = c.conn.Close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	var all []*client
	for _, room := range h.rooms {
		for c := range room {
			c.once.Do(func() { close(c.send) })
			all = append(all, c)
		}
	}
	h.rooms = map[string]map[*client]struct{}{}
	h.mu.Unlock()

	for _, c := range all {
		_ = c.conn.Close()
	}
}

// Listeners reports how many connections are parked in the user's room.
func (h *Hub) Listeners(userID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[RoutingKey(userID)])
}
