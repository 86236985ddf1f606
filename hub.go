package main

import (
	"sync"

	"go.uber.org/zap"

	"marbleous-server/engine"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Hub manages all connected clients and routes them to rooms
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	rooms      *RoomManager
	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int
	// Persistence; all nil without a database
	db        *DB
	auth      *Auth
	analytics *Analytics
	// Signed-in accounts: authPlayerID -> *Client
	onlineMu    sync.RWMutex
	onlineUsers map[int64]*Client

	log *zap.Logger
}

// NewHub creates a Hub. db and analytics may be nil, which disables accounts
// and persistence.
func NewHub(cfg engine.Config, db *DB, analytics *Analytics, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:     make(map[*Client]bool),
		register:    make(chan *Client, 64),
		unregister:  make(chan *Client, 64),
		rooms:       NewRoomManager(cfg, db, analytics, logger),
		ipConns:     make(map[string]int),
		db:          db,
		analytics:   analytics,
		onlineUsers: make(map[int64]*Client),
		log:         logger,
	}
	if db != nil {
		h.auth = NewAuth(db, logger)
	}
	return h
}

// CanAccept reports whether ip may open another connection
func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.trackPeers(n, EvtSessionStart, 0, "")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			if client.roomID != "" {
				h.rooms.Leave(client.roomID, client.playerID)
			}
			if client.authPlayerID != 0 {
				h.SetOffline(client.authPlayerID, client)
			}
			h.trackPeers(n, EvtSessionEnd, client.authPlayerID, client.roomID)
		}
	}
}

// trackPeers records a session event. Starts carry no client fields since
// ReadPump may already be writing them.
func (h *Hub) trackPeers(n int, evt string, playerID int64, roomID string) {
	if h.analytics == nil {
		return
	}
	h.analytics.SetConcurrentPeers(n)
	h.analytics.Track(evt, playerID, roomID, "")
}

// SetOnline marks an account as signed in on client
func (h *Hub) SetOnline(playerID int64, client *Client) {
	h.onlineMu.Lock()
	defer h.onlineMu.Unlock()
	h.onlineUsers[playerID] = client
}

// SetOffline forgets an account, unless it has since signed in elsewhere
func (h *Hub) SetOffline(playerID int64, client *Client) {
	h.onlineMu.Lock()
	defer h.onlineMu.Unlock()
	if h.onlineUsers[playerID] == client {
		delete(h.onlineUsers, playerID)
	}
}

// OnlineCount returns the number of signed-in accounts
func (h *Hub) OnlineCount() int {
	h.onlineMu.RLock()
	defer h.onlineMu.RUnlock()
	return len(h.onlineUsers)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
