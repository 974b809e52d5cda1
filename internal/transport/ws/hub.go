package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Message is the WebSocket envelope format shared by both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub tracks live connections by connection id. It knows nothing about
// sessions; the service layer decides the recipient set for every event.
type Hub struct {
	conns map[string]*Connection

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	outbound   chan *outboundMessage
}

// Connection represents one WebSocket client.
type Connection struct {
	ID   string
	Send chan []byte
}

type outboundMessage struct {
	connID string
	data   []byte
}

// NewHub creates the hub and starts its coordination loop.
func NewHub() *Hub {
	h := &Hub{
		conns:      make(map[string]*Connection),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		outbound:   make(chan *outboundMessage, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.conns[conn.ID] = conn
			h.mu.Unlock()
			log.Printf("connection %s registered", conn.ID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if existing, ok := h.conns[conn.ID]; ok && existing == conn {
				delete(h.conns, conn.ID)
				close(conn.Send)
				log.Printf("connection %s unregistered", conn.ID)
			}
			h.mu.Unlock()

		case msg := <-h.outbound:
			h.mu.RLock()
			if conn, ok := h.conns[msg.connID]; ok {
				select {
				case conn.Send <- msg.data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// Send delivers one event to one connection, best-effort (implements
// service.Broadcaster).
func (h *Hub) Send(connID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal %s payload: %v", event, err)
		return
	}
	envelope, _ := json.Marshal(&Message{
		Type:    event,
		Payload: data,
	})
	h.outbound <- &outboundMessage{connID: connID, data: envelope}
}
