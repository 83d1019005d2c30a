package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/randomtoy/hex-backend/internal/ports"
)

// Hub fans game events out to the websocket clients watching each game.
// Sends never block: a client whose buffer is full is disconnected.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*Client]struct{}
	log   *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		rooms: make(map[uuid.UUID]map[*Client]struct{}),
		log:   log,
	}
}

func (h *Hub) NotifyMove(ev ports.Event)      { h.publish(ev) }
func (h *Hub) NotifyGameEnded(ev ports.Event) { h.publish(ev) }
func (h *Hub) NotifyUpdate(ev ports.Event)    { h.publish(ev) }

// Subscribers returns the number of clients watching gameID.
func (h *Hub) Subscribers(gameID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[gameID])
}

func (h *Hub) publish(ev ports.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal event", zap.Error(err))
		return
	}

	h.mu.RLock()
	var slow []*Client
	for c := range h.rooms[ev.GameID] {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow websocket client", zap.String("game_id", ev.GameID.String()))
		h.unregister(c)
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.gameID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.gameID] = room
	}
	room[c] = struct{}{}
}

// unregister removes c and closes its send channel exactly once.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.gameID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.gameID)
	}
}
