package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/choreward/choreward/internal/chore"
	"github.com/choreward/choreward/internal/model"
	"github.com/choreward/choreward/internal/store"
	"github.com/choreward/choreward/internal/stream"
)

// SnapshotMessage is the wire frame pushed to clients whenever their
// household's chores change. Mine is recomputed per client from its identity.
type SnapshotMessage struct {
	Type   string        `json:"type"`
	Chores []model.Chore `json:"chores,omitempty"`
	Mine   []model.Chore `json:"mine,omitempty"`
	Error  string        `json:"error,omitempty"`
}

const (
	messageSnapshot  = "chore_snapshot"
	messageSyncError = "chore_sync_error"
)

// Hub maintains the set of connected clients grouped by household and keeps
// one snapshot subscription open per household with at least one client.
type Hub struct {
	chores *store.ChoreStore
	broker *stream.Broker
	logger *slog.Logger

	mu       sync.Mutex
	clients  map[string]map[*Client]struct{}
	watchers map[string]*stream.Subscription
}

func NewHub(chores *store.ChoreStore, broker *stream.Broker, logger *slog.Logger) *Hub {
	return &Hub{
		chores:   chores,
		broker:   broker,
		logger:   logger,
		clients:  make(map[string]map[*Client]struct{}),
		watchers: make(map[string]*stream.Subscription),
	}
}

// Register adds a client and ensures its household has a live watcher. The
// watcher's first snapshot doubles as the client's initial state.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.householdID] == nil {
		h.clients[c.householdID] = make(map[*Client]struct{})
	}
	h.clients[c.householdID][c] = struct{}{}

	if _, ok := h.watchers[c.householdID]; !ok {
		sub := stream.NewSubscriber(h.broker, h.chores, h.logger).Subscribe(c.householdID, "")
		h.watchers[c.householdID] = sub
		go h.watch(c.householdID, sub)
	} else {
		// A watcher is already running; nudge it so the new client gets a
		// current snapshot instead of waiting for the next write.
		h.broker.Notify(c.householdID)
	}
}

// Unregister removes a client, closing its send channel. The household's
// watcher is torn down with its last client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.householdID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)

	if len(set) == 0 {
		delete(h.clients, c.householdID)
		if sub, ok := h.watchers[c.householdID]; ok {
			delete(h.watchers, c.householdID)
			sub.Close()
		}
	}
}

// ClientCount returns the number of connected clients across households.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

func (h *Hub) watch(householdID string, sub *stream.Subscription) {
	for snap := range sub.C() {
		h.deliver(householdID, snap)
	}
}

func (h *Hub) deliver(householdID string, snap stream.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients[householdID] {
		msg := SnapshotMessage{Type: messageSnapshot}
		if snap.Err != nil {
			msg.Type = messageSyncError
			msg.Error = "chore sync failed"
		} else {
			msg.Chores = snap.Chores
			msg.Mine = chore.Mine(snap.Chores, c.userID)
		}

		data, err := json.Marshal(msg)
		if err != nil {
			h.logger.Error("marshal snapshot", "error", err)
			continue
		}

		select {
		case c.send <- data:
		default:
			// Client buffer full; it will catch up on the next snapshot
		}
	}
}
