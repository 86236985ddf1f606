package main

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"marbleous-server/engine"
)

const maxRooms = 100

// RoomManager handles creation and lookup of rooms
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	cfg       engine.Config
	db        *DB
	analytics *Analytics
	log       *zap.Logger
}

// NewRoomManager creates a RoomManager whose rooms play by cfg
func NewRoomManager(cfg engine.Config, db *DB, analytics *Analytics, logger *zap.Logger) *RoomManager {
	return &RoomManager{
		rooms:     make(map[string]*Room),
		cfg:       cfg,
		db:        db,
		analytics: analytics,
		log:       logger,
	}
}

// CreateRoom creates and starts a room. Returns nil if the limit is reached.
func (rm *RoomManager) CreateRoom(name string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if len(rm.rooms) >= maxRooms {
		return nil
	}

	id := GenerateUUID()
	eng := engine.New(rm.cfg, engine.NewRand(uint64(time.Now().UnixNano())))
	room := NewRoom(id, name, eng, rm.db, rm.analytics, rm.log)
	rm.rooms[id] = room
	go room.Run()

	rm.log.Info("room created", zap.String("room", id), zap.String("name", name))
	if rm.analytics != nil {
		rm.analytics.Track(EvtRoomCreated, 0, id, "")
		rm.analytics.SetActiveRooms(len(rm.rooms))
	}
	return room
}

// GetRoom returns a room by ID
func (rm *RoomManager) GetRoom(id string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[id]
}

// Leave removes a player or spectator from a room and closes the room once
// nobody is left
func (rm *RoomManager) Leave(roomID string, id engine.PlayerID) {
	rm.mu.RLock()
	room, ok := rm.rooms[roomID]
	rm.mu.RUnlock()
	if !ok {
		return
	}
	if room.Leave(id, time.Now()) > 0 {
		return
	}
	room.Stop()
	rm.mu.Lock()
	if rm.rooms[roomID] == room {
		delete(rm.rooms, roomID)
	}
	n := len(rm.rooms)
	rm.mu.Unlock()

	rm.log.Info("room closed", zap.String("room", roomID))
	if rm.analytics != nil {
		rm.analytics.SetActiveRooms(n)
	}
}

// ListRooms returns info about all open rooms
func (rm *RoomManager) ListRooms() []RoomInfo {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	list := make([]RoomInfo, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		list = append(list, RoomInfo{
			ID:      room.ID,
			Name:    room.Name,
			Players: room.PlayerCount(),
			Phase:   room.Phase().String(),
		})
	}
	return list
}

// Count returns the number of open rooms
func (rm *RoomManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// Shutdown stops every room and waits for pending round writes
func (rm *RoomManager) Shutdown() {
	rm.mu.Lock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for id, room := range rm.rooms {
		rooms = append(rooms, room)
		delete(rm.rooms, id)
	}
	rm.mu.Unlock()

	for _, room := range rooms {
		room.Stop()
		room.WaitPersisted()
	}
}
