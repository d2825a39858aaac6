package engine

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketHub is a Hub that fans published events out to WebSocket clients
// subscribed to the event's execution id. It satisfies the same Hub
// interface as MemoryHub and Recorder; an Executor doesn't know or care
// which one it was built with.
type WebSocketHub struct {
	mu       sync.RWMutex
	clients  map[*wsClient]bool
	byExec   map[string]map[*wsClient]bool
	register chan *wsClient
	unregister chan *wsClient
}

type wsClient struct {
	conn         *websocket.Conn
	send         chan []byte
	executionIDs map[string]bool
}

// wsMessage is the envelope written to each subscribed client.
type wsMessage struct {
	Type      string      `json:"type"`
	Event     Event       `json:"event,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewWebSocketHub creates a hub with no clients. Call Run in its own
// goroutine before serving any connections.
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*wsClient]bool),
		byExec:     make(map[string]map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
}

// Run processes client registration and removal in a loop that never
// returns; callers typically launch it with `go hub.Run()` once at startup.
func (h *WebSocketHub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				for execID := range c.executionIDs {
					if set, ok := h.byExec[execID]; ok {
						delete(set, c)
						if len(set) == 0 {
							delete(h.byExec, execID)
						}
					}
				}
				close(c.send)
			}
			h.mu.Unlock()
		}
	}
}

// Publish implements Hub. It fans event out to every client subscribed to
// event.ExecutionID; a client whose send buffer is full is dropped rather
// than allowed to stall the executor.
func (h *WebSocketHub) Publish(event Event) {
	h.mu.RLock()
	clients := h.byExec[event.ExecutionID]
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	payload, err := json.Marshal(wsMessage{Type: "event", Event: event, Timestamp: time.Now()})
	if err != nil {
		return
	}

	for c := range clients {
		select {
		case c.send <- payload:
		default:
			go func(c *wsClient) { h.unregister <- c }(c)
		}
	}
}

// ServeHTTP upgrades the connection and subscribes the new client to the
// executionId(s) given in the "executionId" query parameter (repeatable).
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &wsClient{
		conn:         conn,
		send:         make(chan []byte, 256),
		executionIDs: make(map[string]bool),
	}
	for _, id := range r.URL.Query()["executionId"] {
		c.executionIDs[id] = true
	}

	h.mu.Lock()
	for execID := range c.executionIDs {
		if h.byExec[execID] == nil {
			h.byExec[execID] = make(map[*wsClient]bool)
		}
		h.byExec[execID][c] = true
	}
	h.mu.Unlock()

	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

func (c *wsClient) readPump(h *WebSocketHub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
