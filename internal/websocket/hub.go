package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-sync/internal/events"
	"github.com/ikkim/storefront-sync/pkg/logger"
)

const sendBufferSize = 64

// Frame is the only message view clients receive: the name of the topic
// whose collection changed. Clients re-read through the view API.
type Frame struct {
	Type string `json:"type"`
}

// Client is one view connection.
type Client struct {
	ID   string
	Hub  *Hub
	Conn *Conn
	Send chan []byte
}

// Hub fans bus topics out to every connected view client.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	done     chan struct{} // closed when Run starts shutting down
	finished chan struct{} // closed when Run has returned
	mu       sync.RWMutex

	regMu   sync.Mutex // guards stopped and sends on register
	stopped bool
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan []byte, 1024),
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done. Every client
// send channel is closed on the way out.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.finished)
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"client_id": client.ID,
				"clients":   total,
			})

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.mu.RLock()
			var stalled []*Client
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					stalled = append(stalled, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range stalled {
				logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
					"client_id": client.ID,
				})
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.Send)
	remaining := len(h.clients)
	h.mu.Unlock()

	logger.Info("WebSocket client unregistered", map[string]interface{}{
		"client_id": client.ID,
		"clients":   remaining,
	})
}

func (h *Hub) shutdown() {
	close(h.done)

	h.regMu.Lock()
	h.stopped = true
	h.regMu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.Send)
	}
	// clients queued but never picked up by Run
	for {
		select {
		case client := <-h.register:
			close(client.Send)
		default:
			return
		}
	}
}

// Wait blocks until Run has returned. It must not be called on a hub that
// was never run.
func (h *Hub) Wait() {
	<-h.finished
}

// NewClient builds a client bound to conn. conn may be nil in tests that
// only read from Send.
func (h *Hub) NewClient(conn *Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		Hub:  h,
		Conn: conn,
		Send: make(chan []byte, sendBufferSize),
	}
}

// Register returns false once the hub has stopped.
// Register queues client for Run. It reports false once the hub has stopped;
// a client queued while Run shuts down has its Send channel closed.
func (h *Hub) Register(client *Client) bool {
	h.regMu.Lock()
	defer h.regMu.Unlock()
	if h.stopped {
		return false
	}
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify queues a frame for topic. It never blocks the publisher; frames are
// dropped when the broadcast queue is full.
func (h *Hub) Notify(topic events.Topic) {
	data, err := json.Marshal(Frame{Type: topic.String()})
	if err != nil {
		logger.Error("Failed to marshal frame", err)
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		logger.Warn("Broadcast channel full, frame dropped", map[string]interface{}{
			"topic": topic.String(),
		})
	}
}

// Attach forwards every bus topic to the hub and returns a detach func.
func (h *Hub) Attach(bus *events.Bus) func() {
	var unsubscribes []func()
	for _, topic := range events.Topics() {
		unsubscribes = append(unsubscribes, bus.Subscribe(topic, func(ctx context.Context, topic events.Topic) {
			h.Notify(topic)
		}))
	}
	return func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}
}
