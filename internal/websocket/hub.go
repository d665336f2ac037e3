// Package websocket pushes cart notices to every open connection of a cart
// session.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/achlys/whimsical-backend/pkg/logger"
)

const (
	// client messages allowed per second
	maxMessagesPerSecond = 10

	sendBuffer = 64
)

// Event is the envelope of every message pushed to a client.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	SentAt  time.Time   `json:"sent_at"`
}

// ClientMessage is what a client may send: only "ping" is understood.
type ClientMessage struct {
	Type string `json:"type"`
}

type Client struct {
	Hub     *Hub
	Conn    *Conn
	Session string
	Send    chan []byte

	rateMu        sync.Mutex
	messageCount  int
	lastResetTime time.Time
}

// NewClient creates a client for an upgraded connection. conn may be nil in
// tests that only read Send.
func NewClient(hub *Hub, conn *Conn, session string) *Client {
	return &Client{
		Hub:           hub,
		Conn:          conn,
		Session:       session,
		Send:          make(chan []byte, sendBuffer),
		lastResetTime: time.Now(),
	}
}

type broadcastMessage struct {
	session string
	data    []byte
}

// Hub fans out session events to the session's clients. Several tabs of
// one shopper share a session and all receive its events.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMessage

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan broadcastMessage, 1024),
	}
}

// Run dispatches until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.Session] == nil {
				h.clients[client.Session] = make(map[*Client]struct{})
			}
			h.clients[client.Session][client] = struct{}{}
			count := len(h.clients[client.Session])
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"session":     client.Session,
				"connections": count,
			})

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients[message.session] {
				select {
				case client.Send <- message.data:
				default:
					go h.Unregister(client)
					logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
						"session": message.session,
					})
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Notify queues an event for every client of sessionID. Events are dropped
// when the hub is saturated.
func (h *Hub) Notify(sessionID, event string, payload interface{}) {
	data, err := json.Marshal(Event{Type: event, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		logger.Error("Failed to marshal notice", err, map[string]interface{}{
			"session": sessionID,
			"event":   event,
		})
		return
	}

	select {
	case h.broadcast <- broadcastMessage{session: sessionID, data: data}:
	default:
		logger.Warn("Broadcast channel full, notice dropped", map[string]interface{}{
			"session": sessionID,
			"event":   event,
		})
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Connections returns the number of open clients of a session.
func (h *Hub) Connections(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// HandleClientMessage answers pings and drops everything else.
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	client.rateMu.Lock()
	now := time.Now()
	if now.Sub(client.lastResetTime) >= time.Second {
		client.messageCount = 0
		client.lastResetTime = now
	}
	client.messageCount++
	count := client.messageCount
	client.rateMu.Unlock()

	if count > maxMessagesPerSecond {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"session": client.Session,
			"count":   count,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"session": client.Session,
			"error":   err.Error(),
		})
		return
	}

	if msg.Type == "ping" {
		data, _ := json.Marshal(Event{Type: "pong", SentAt: time.Now().UTC()})
		select {
		case client.Send <- data:
		default:
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	clients, ok := h.clients[client.Session]
	if ok {
		if _, ok = clients[client]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.clients, client.Session)
			}
			close(client.Send)
		}
	}
	remaining := len(h.clients[client.Session])
	h.mu.Unlock()

	if ok {
		logger.Info("WebSocket client unregistered", map[string]interface{}{
			"session":     client.Session,
			"connections": remaining,
		})
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for session, clients := range h.clients {
		for client := range clients {
			close(client.Send)
		}
		delete(h.clients, session)
	}
}
