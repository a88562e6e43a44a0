package services

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

type WSClient struct {
	ChildID uint
	Conn    *websocket.Conn
}

// RealtimeHub fans completion events out to websocket subscribers, e.g. a
// parent dashboard watching a child's hunt live.
type RealtimeHub struct {
	mu      sync.RWMutex
	clients map[uint]map[*WSClient]struct{}
}

func NewRealtimeHub() *RealtimeHub {
	return &RealtimeHub{clients: make(map[uint]map[*WSClient]struct{})}
}

func (h *RealtimeHub) Register(c *WSClient) {
	h.mu.Lock()
	if h.clients[c.ChildID] == nil {
		h.clients[c.ChildID] = make(map[*WSClient]struct{})
	}
	h.clients[c.ChildID][c] = struct{}{}
	h.mu.Unlock()
}

func (h *RealtimeHub) Unregister(c *WSClient) {
	h.mu.Lock()
	if set := h.clients[c.ChildID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.ChildID)
		}
	}
	h.mu.Unlock()
	_ = c.Conn.Close()
}

func (h *RealtimeHub) Broadcast(childID uint, payload any) {
	msg, _ := json.Marshal(payload)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[childID] {
		_ = c.Conn.WriteMessage(websocket.TextMessage, msg)
	}
}
