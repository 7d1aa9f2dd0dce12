// Package ws pushes live updates to admin dashboard clients.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingEvery = 20 * time.Second
	pongWait  = 60 * time.Second
	writeWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type Msg struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Hub tracks connected clients. Writes are serialized by the hub lock.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool

	// OnConnect, when set, returns the message sent to a client right after
	// it connects.
	OnConnect func() (Msg, bool)
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool)}
}

func (h *Hub) Broadcast(m Msg) int {
	b, err := json.Marshal(m)
	if err != nil {
		log.Printf("ws marshal %q: %v", m.Type, err)
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Println("WS write error:", err)
			_ = c.Close()
			delete(h.clients, c)
		} else {
			n++
		}
	}
	log.Printf("Broadcast %q to %d client(s)", m.Type, n)
	return n
}

func (h *Hub) ClientsCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) send(c *websocket.Conn, m Msg) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteJSON(m)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade:", err)
		return
	}
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()
	log.Printf("ws connected (%d total)", total)

	if h.OnConnect != nil {
		if m, ok := h.OnConnect(); ok {
			if err := h.send(c, m); err != nil {
				log.Println("WS initial write error:", err)
			}
		}
	}

	// keepalive pings
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }
	go func() {
		t := time.NewTicker(pingEvery)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if err := c.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
					stop()
					return
				}
			case <-done:
				return
			}
		}
	}()

	// read loop w/ pong
	c.SetReadLimit(1024)
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		_ = c.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			h.mu.Lock()
			delete(h.clients, c)
			total = len(h.clients)
			h.mu.Unlock()
			log.Printf("ws disconnected (%d total)", total)
			_ = c.Close()
			stop()
			return
		}
	}
}
