// Package httpapi exposes the fusion engine's health, metrics, and live
// track stream over HTTP, grounded on internal/api/realtime/broadcaster.go
// and internal/api/router.go's chi wiring.
package httpapi

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/asgard/aegis/internal/model"
)

// TickEvent is one tick's worth of emitted tracks, broadcast verbatim to
// every connected operator.
type TickEvent struct {
	Timestamp time.Time          `json:"timestamp"`
	Tracks    []model.TrackState `json:"tracks"`
}

// Broadcaster fans out per-tick track updates to connected websocket
// clients, adapted for a fusion-tick feed.
type Broadcaster struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan TickEvent
	mu         sync.RWMutex
	done       chan struct{}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan TickEvent, 256),
		done:       make(chan struct{}),
	}
}

// Start runs the broadcaster's event loop until Stop is called. Intended
// to be launched with `go broadcaster.Start()`.
func (b *Broadcaster) Start() {
	for {
		select {
		case conn := <-b.register:
			b.mu.Lock()
			b.clients[conn] = true
			b.mu.Unlock()

		case conn := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[conn]; ok {
				delete(b.clients, conn)
				conn.Close()
			}
			b.mu.Unlock()

		case event := <-b.broadcast:
			b.mu.RLock()
			for conn := range b.clients {
				if err := conn.WriteJSON(event); err != nil {
					log.Printf("[httpapi] error broadcasting to client: %v", err)
					go func(c *websocket.Conn) { b.unregister <- c }(conn)
				}
			}
			b.mu.RUnlock()

		case <-b.done:
			return
		}
	}
}

// Broadcast sends a tick's tracks to all connected clients, dropping the
// event if the internal channel is full rather than blocking the fusion
// loop.
func (b *Broadcaster) Broadcast(tracks []model.TrackState) {
	event := TickEvent{Timestamp: time.Now().UTC(), Tracks: tracks}
	select {
	case b.broadcast <- event:
	default:
		log.Printf("[httpapi] broadcast channel full, dropping tick event")
	}
}

func (b *Broadcaster) Stop() {
	close(b.done)
	b.mu.Lock()
	for conn := range b.clients {
		conn.Close()
		delete(b.clients, conn)
	}
	b.mu.Unlock()
}

// ConnectionCount returns the number of currently registered clients.
func (b *Broadcaster) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// HandleWebSocket upgrades the request and registers the connection with
// the broadcaster until the client disconnects.
func (b *Broadcaster) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[httpapi] websocket upgrade error: %v", err)
		return
	}
	b.register <- conn

	go func() {
		defer func() { b.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
