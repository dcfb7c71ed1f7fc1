package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"acars_hub/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// recentRingSize is how many live messages a newly connected client is
	// replayed so its view is not empty on arrival.
	recentRingSize = 150

	clientSendBuffer = 64
)

// wsEvent is one named message pushed to live-view clients.
type wsEvent struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// WSHub fans live messages out to connected websocket clients. It implements
// the broadcast sink: Deliver never blocks, slow clients are dropped.
type WSHub struct {
	clients     map[*wsClient]bool
	register    chan *wsClient
	unregister  chan *wsClient
	broadcast   chan wsEvent
	clientCount atomic.Int64

	// done is closed when Serve exits, releasing client goroutines that
	// would otherwise block on the register/unregister channels.
	done     chan struct{}
	doneOnce sync.Once

	recent []wsEvent
	log    *zap.Logger

	// Info, when set, supplies the greeting payload sent to each client on
	// connect (configured terms, enabled sources). Set before Serve starts.
	Info func() map[string]any
}

// NewWSHub builds an empty hub. Run it under the supervisor via Serve.
func NewWSHub(log *zap.Logger) *WSHub {
	return &WSHub{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan wsEvent, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// HasClients reports whether any live-view client is connected. The listeners
// use this to skip broadcast work while nobody is watching.
func (h *WSHub) HasClients() bool {
	return h.clientCount.Load() > 0
}

// Deliver queues an event for every connected client. Fire-and-forget: if the
// hub's own buffer is full the event is dropped rather than blocking the
// pipeline.
func (h *WSHub) Deliver(event string, payload map[string]any) {
	select {
	case h.broadcast <- wsEvent{Event: event, Payload: payload}:
	default:
	}
}

// Serve owns the client set until ctx is canceled.
func (h *WSHub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.clientCount.Store(0)
			metrics.LiveClients.Set(0)
			h.doneOnce.Do(func() { close(h.done) })
			return ctx.Err()

		case client := <-h.register:
			h.clients[client] = true
			h.clientCount.Store(int64(len(h.clients)))
			metrics.LiveClients.Set(float64(len(h.clients)))
			h.log.Info("live client connected", zap.Int("clients", len(h.clients)))
			if h.Info != nil {
				client.trySend(wsEvent{Event: "hub_info", Payload: h.Info()})
			}
			// Replay the recent window so the new view starts populated.
			for _, ev := range h.recent {
				client.trySend(ev)
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientCount.Store(int64(len(h.clients)))
			metrics.LiveClients.Set(float64(len(h.clients)))
			h.log.Info("live client disconnected", zap.Int("clients", len(h.clients)))

		case ev := <-h.broadcast:
			if ev.Event == "acars_msg" {
				h.recent = append(h.recent, ev)
				if len(h.recent) > recentRingSize {
					h.recent = h.recent[len(h.recent)-recentRingSize:]
				}
			}
			for client := range h.clients {
				if !client.trySend(ev) {
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.clientCount.Store(int64(len(h.clients)))
			metrics.LiveClients.Set(float64(len(h.clients)))
		}
	}
}

type wsClient struct {
	hub  *WSHub
	conn *websocket.Conn
	send chan wsEvent
}

// trySend queues an event for the client without blocking; false means the
// client is too slow and should be dropped.
func (c *wsClient) trySend(ev wsEvent) bool {
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// writePump drains the send channel onto the connection, pinging on idle.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// leave hands the client back to the hub, giving up if the hub has already
// shut down.
func (c *wsClient) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// readPump discards client input while enforcing the pong deadline.
func (c *wsClient) readPump() {
	defer func() {
		c.leave()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The hub fronts a local dashboard; same-origin policy is left to the
	// deployment's reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWS upgrades the connection and registers the client with the hub.
func (h *WSHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{hub: h, conn: conn, send: make(chan wsEvent, clientSendBuffer)}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
