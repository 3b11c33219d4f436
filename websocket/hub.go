package websocket

import (
	"encoding/json"
	"sync"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"
)

// Hub manages multiple WebSocket connections for broadcasting.
//
// Hub provides a central point for managing WebSocket clients and
// broadcasting messages to all connected clients simultaneously.
//
// Thread-safe operations allow concurrent client registration,
// unregistration, and broadcasting from multiple goroutines.
//
// Example Usage:
//
//	hub := websocket.NewHub(zerolog.Nop())
//	go hub.Run()
//	defer hub.Close()
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//	    conn, _ := websocket.Upgrade(w, r, nil)
//	    id := hub.Register(conn)
//
//	    go func() {
//	        defer hub.Unregister(id)
//	        for {
//	            _, data, err := conn.ReadMessage()
//	            if err != nil {
//	                break
//	            }
//	            hub.Broadcast(BinaryMessageData{Data: data})
//	        }
//	    }()
//	})
type Hub struct {
	log zerolog.Logger

	// Client management. Each client is keyed by a short opaque ID
	// (lithammer/shortuuid) rather than by *Conn, so callers can refer to
	// a connection (e.g. for Unregister, logging, metrics) without
	// holding onto the pointer itself.
	clients map[string]*Conn

	register   chan registerReq
	unregister chan string
	broadcast  chan Message

	done   chan struct{}
	closed bool
	wg     sync.WaitGroup

	mu sync.RWMutex
}

type registerReq struct {
	id   string
	conn *Conn
}

// NewHub creates a new WebSocket Hub. log may be zerolog.Nop() to
// disable logging entirely.
//
// The Hub must be started by calling Run() in a goroutine:
//
//	hub := websocket.NewHub(log)
//	go hub.Run()
//	defer hub.Close()
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[string]*Conn),
		register:   make(chan registerReq),
		unregister: make(chan string),
		broadcast:  make(chan Message, 256), // Buffered for performance
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's event loop. This method blocks and should be
// called in a goroutine; it exits when Close() is called.
func (h *Hub) Run() {
	h.wg.Add(1)
	defer h.wg.Done()

	for {
		select {
		case req := <-h.register:
			h.mu.Lock()
			h.clients[req.id] = req.conn
			h.mu.Unlock()
			h.log.Debug().Str("client_id", req.id).Msg("client registered")

		case id := <-h.unregister:
			h.mu.Lock()
			client, ok := h.clients[id]
			delete(h.clients, id)
			h.mu.Unlock()
			if ok {
				_ = client.Close()
				h.log.Debug().Str("client_id", id).Msg("client unregistered")
			}

		case msg := <-h.broadcast:
			h.mu.RLock()
			for id, client := range h.clients {
				go func(id string, c *Conn, m Message) {
					if err := c.Send(m); err != nil {
						h.log.Warn().Err(err).Str("client_id", id).Msg("broadcast send failed, unregistering")
						h.Unregister(id)
					}
				}(id, client, msg)
			}
			h.mu.RUnlock()

		case <-h.done:
			return
		}
	}
}

// Register adds a client to the Hub and returns its generated client
// ID. The client will receive all messages sent via Broadcast.
//
// Typically called after a successful WebSocket upgrade:
//
//	conn, _ := websocket.Upgrade(w, r, nil)
//	id := hub.Register(conn)
func (h *Hub) Register(client *Conn) string {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ""
	}
	h.mu.RUnlock()

	id := shortuuid.New()
	h.register <- registerReq{id: id, conn: client}
	return id
}

// Unregister removes the client with the given ID from the Hub and
// closes its connection. Safe to call multiple times for the same ID.
func (h *Hub) Unregister(id string) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	h.mu.RUnlock()

	h.unregister <- id
}

// Broadcast queues msg for delivery to every currently registered
// client. Delivery happens asynchronously in the event loop; a client
// whose Send fails is automatically unregistered.
//
// Thread-safe. Queues the message on the hub's buffered broadcast
// channel and returns; it blocks while that channel is full.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	h.mu.RUnlock()

	h.broadcast <- msg
}

// BroadcastText sends a text message to all connected clients.
func (h *Hub) BroadcastText(text string) {
	h.Broadcast(TextMessageData{Data: text})
}

// BroadcastJSON marshals v and broadcasts it as a text message to all
// connected clients.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	h.Broadcast(TextMessageData{Data: string(data)})
	return nil
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the Hub, closes every client connection, and waits for
// Run to exit. Safe to call multiple times.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	close(h.done)
	h.wg.Wait()

	h.mu.Lock()
	for _, client := range h.clients {
		_ = client.Close()
	}
	h.clients = make(map[string]*Conn)
	h.mu.Unlock()

	close(h.register)
	close(h.unregister)
	close(h.broadcast)

	return nil
}
