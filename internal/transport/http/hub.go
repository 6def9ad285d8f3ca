package http

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"livequiz/internal/domain"
)

const sendBuffer = 16

// client is one live websocket connection with its outbound queue. A writer
// goroutine owns all writes to the socket; everything else only enqueues.
type client struct {
	id   string
	conn *websocket.Conn
	send chan domain.Event

	closeOnce sync.Once
}

func (c *client) enqueue(event domain.Event) {
	select {
	case c.send <- event:
	default:
		// Slow consumer: dropping keeps the room moving. A client that
		// misses events recovers through resynchronization on rejoin.
		log.Printf("ws: dropping %s event for slow connection %s", event.Type, c.id)
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub groups live connections into per-session rooms and fans events out to
// them. It implements the coordinator's Publisher: sends never block the
// caller, a full queue drops the event for that connection only.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	rooms    map[string]map[string]*client
	roomByID map[string]string
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*client),
		rooms:    make(map[string]map[string]*client),
		roomByID: make(map[string]string),
	}
}

// register adds the connection and starts its writer goroutine.
func (h *Hub) register(id string, conn *websocket.Conn) *client {
	c := &client{id: id, conn: conn, send: make(chan domain.Event, sendBuffer)}
	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()

	go func() {
		for event := range c.send {
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("ws: write to %s failed: %v", id, err)
				return
			}
		}
	}()
	return c
}

// joinRoom moves the connection into the session's room, leaving any room it
// was in before. A connection belongs to at most one room.
func (h *Hub) joinRoom(code, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	if prev, ok := h.roomByID[id]; ok {
		delete(h.rooms[prev], id)
		if len(h.rooms[prev]) == 0 {
			delete(h.rooms, prev)
		}
	}
	room, ok := h.rooms[code]
	if !ok {
		room = make(map[string]*client)
		h.rooms[code] = room
	}
	room[id] = c
	h.roomByID[id] = code
}

// leaveRoom takes the connection out of whichever room it joined.
func (h *Hub) leaveRoom(id string) {
	h.mu.Lock()
	h.removeFromRoomLocked(id)
	h.mu.Unlock()
}

// unregister removes the connection from its room and stops its writer.
func (h *Hub) unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		h.removeFromRoomLocked(id)
	}
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

func (h *Hub) removeFromRoomLocked(id string) {
	code, ok := h.roomByID[id]
	if !ok {
		return
	}
	delete(h.roomByID, id)
	delete(h.rooms[code], id)
	if len(h.rooms[code]) == 0 {
		delete(h.rooms, code)
	}
}

// ToRoom queues the event for every connection in the session's room.
func (h *Hub) ToRoom(code string, event domain.Event) {
	h.mu.RLock()
	members := make([]*client, 0, len(h.rooms[code]))
	for _, c := range h.rooms[code] {
		members = append(members, c)
	}
	h.mu.RUnlock()
	for _, c := range members {
		c.enqueue(event)
	}
}

// ToConn queues the event for a single connection.
func (h *Hub) ToConn(id string, event domain.Event) {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if ok {
		c.enqueue(event)
	}
}
