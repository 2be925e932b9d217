package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
)

// Conn is the subset of the websocket connection the hub writes to.
// *websocket.Conn satisfies it; tests substitute fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents one connected WebSocket client. All frames written to
// the underlying connection go through Send, which serializes writes from
// the hub and the request handler.
type Client struct {
	ID     string
	RoomID string // maintained by the hub under its lock

	conn Conn
	mu   sync.Mutex
}

// NewClient wraps a websocket connection for hub delivery.
func NewClient(id string, conn Conn) *Client {
	return &Client{ID: id, conn: conn}
}

// Send marshals payload and writes it as a single text frame.
func (c *Client) Send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// broadcastMessage is a queued fan-out request. ExcludeID, when set, names
// one connection to skip.
type broadcastMessage struct {
	RoomID    string
	ExcludeID string
	Payload   any
}

// Hub manages WebSocket clients and per-room fan-out. Its room index is
// delivery state only; room membership truth lives with the coordinator,
// and the transport layer keeps the two in step.
type Hub struct {
	clients map[string]*Client         // clientID -> Client
	rooms   map[string]map[string]bool // roomID -> set of clientIDs

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMessage
	done       chan struct{}

	logger types.Logger
	mu     sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub(logger types.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMessage, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop. It accepts a context for graceful
// shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub shutting down")
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast queues payload for every client in a room.
func (h *Hub) Broadcast(roomID string, payload any) {
	h.broadcast <- broadcastMessage{RoomID: roomID, Payload: payload}
}

// BroadcastExcept queues payload for every client in a room except one.
func (h *Hub) BroadcastExcept(roomID, excludeID string, payload any) {
	h.broadcast <- broadcastMessage{RoomID: roomID, ExcludeID: excludeID, Payload: payload}
}

// JoinRoom moves a client into a room's delivery set, leaving any previous
// room first.
func (h *Hub) JoinRoom(clientID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	h.leaveLocked(client)

	client.RoomID = roomID
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]bool)
	}
	h.rooms[roomID][clientID] = true
}

// LeaveRoom removes a client from its current delivery set.
func (h *Hub) LeaveRoom(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[clientID]; ok {
		h.leaveLocked(client)
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomClientCount returns the number of clients in a room's delivery set.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.logger.Debug("Client registered", "clientID", client.ID)
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	h.leaveLocked(client)
	delete(h.clients, client.ID)
	h.logger.Debug("Client unregistered", "clientID", client.ID)
}

// handleBroadcast delivers a frame to a room's clients. Delivery is
// best-effort: a failed write to one client is logged and never aborts
// delivery to the rest.
func (h *Hub) handleBroadcast(msg broadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clientIDs, ok := h.rooms[msg.RoomID]
	if !ok {
		return
	}
	for clientID := range clientIDs {
		if clientID == msg.ExcludeID {
			continue
		}
		client, ok := h.clients[clientID]
		if !ok {
			continue
		}
		if err := client.Send(msg.Payload); err != nil {
			h.logger.Warn("Failed to deliver frame", "clientID", clientID, "error", err)
		}
	}
}

// leaveLocked drops a client from its room's delivery set, pruning empty
// sets. Caller holds h.mu.
func (h *Hub) leaveLocked(client *Client) {
	if client.RoomID == "" {
		return
	}
	if set := h.rooms[client.RoomID]; set != nil {
		delete(set, client.ID)
		if len(set) == 0 {
			delete(h.rooms, client.RoomID)
		}
	}
	client.RoomID = ""
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		_ = client.Close()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]bool)
}
