package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/hearthchat/hearth-server/db"
)

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client

	// Room subscriptions: roomID -> set of clients
	roomSubs map[string]map[*Client]bool
	mu       sync.RWMutex

	DB     *db.DB
	logger *zap.Logger

	// Router is set by the rpc package once at startup.
	Router func(client *Client, req Request)
}

func NewHub(database *db.DB, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		roomSubs:   make(map[string]map[*Client]bool),
		DB:         database,
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Info("client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.done)
				close(client.send)
				h.removeFromAllRooms(client)
				h.logger.Info("client unregistered", zap.String("userId", client.UserID()))
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) SubscribeRoom(roomID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.roomSubs[roomID] == nil {
		h.roomSubs[roomID] = make(map[*Client]bool)
	}
	h.roomSubs[roomID][client] = true
}

func (h *Hub) UnsubscribeRoom(roomID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.roomSubs[roomID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.roomSubs, roomID)
		}
	}
}

func (h *Hub) BroadcastToRoom(roomID string, event Event, exclude *Client) {
	h.mu.RLock()
	subs := h.roomSubs[roomID]
	h.mu.RUnlock()

	for client := range subs {
		if client != exclude {
			client.SendJSON(event)
		}
	}
}

func (h *Hub) removeFromAllRooms(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID, subs := range h.roomSubs {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.roomSubs, roomID)
		}
	}
}

func (h *Hub) handleMessage(client *Client, data []byte) {
	var msg Frame
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Warn("invalid message", zap.Error(err))
		return
	}

	switch msg.Type {
	case "req":
		// connect is handled here, before the auth check
		if msg.Method == "connect" {
			h.handleConnect(client, msg)
			return
		}

		if !client.IsAuthenticated() {
			client.SendJSON(NewErrorResponse(msg.ID, "AUTH_REQUIRED", "Not authenticated"))
			return
		}

		var params map[string]json.RawMessage
		if msg.Params != nil {
			json.Unmarshal(msg.Params, &params)
		}
		if params == nil {
			params = make(map[string]json.RawMessage)
		}

		req := Request{ID: msg.ID, Method: msg.Method, Params: params}
		if h.Router != nil {
			h.Router(client, req)
		}

	default:
		h.logger.Warn("unknown message type", zap.String("type", msg.Type))
	}
}
