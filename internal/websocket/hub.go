// Package websocket provides WebSocket connection management and message broadcasting.
package websocket

import (
	"log"
	"sync"
)

// outbound is a message queued for delivery, optionally scoped to the
// subscribers of a single calendar.
type outbound struct {
	calendarID string // empty = all clients
	data       []byte
}

// Hub maintains the set of active WebSocket clients and fans out messages
// to the clients watching a given calendar.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main event loop.
// This should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("WebSocket client connected (total: %d)", h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected (total: %d)", h.ClientCount())

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.watches(msg.calendarID) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Client send buffer full, close connection
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to every connected client.
func (h *Hub) Broadcast(message []byte) {
	h.enqueue(outbound{data: message})
}

// BroadcastToCalendar sends a message to clients subscribed to the given
// calendar. Clients with no explicit subscriptions receive everything.
func (h *Hub) BroadcastToCalendar(calendarID string, message []byte) {
	h.enqueue(outbound{calendarID: calendarID, data: message})
}

func (h *Hub) enqueue(msg outbound) {
	select {
	case h.broadcast <- msg:
	default:
		log.Println("Broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client represents a WebSocket client connection.
type Client struct {
	hub  *Hub
	send chan []byte

	mu        sync.Mutex
	calendars map[string]bool
}

// NewClient creates a new WebSocket client.
func NewClient(hub *Hub) *Client {
	return &Client{
		hub:       hub,
		send:      make(chan []byte, 256),
		calendars: make(map[string]bool),
	}
}

// Send returns the send channel for the client.
func (c *Client) Send() chan []byte {
	return c.send
}

// Subscribe adds a calendar to the client's watch set.
func (c *Client) Subscribe(calendarID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calendars[calendarID] = true
}

// Unsubscribe removes a calendar from the client's watch set.
func (c *Client) Unsubscribe(calendarID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.calendars, calendarID)
}

// watches reports whether the client should receive a message scoped to the
// given calendar. An empty calendarID means the message is global.
func (c *Client) watches(calendarID string) bool {
	if calendarID == "" {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calendars) == 0 {
		return true
	}
	return c.calendars[calendarID]
}
