package collab

import (
	"sync"

	"github.com/codehive/backend/internal/models"
	"github.com/codehive/backend/pkg/logger"
	"gorm.io/gorm"
)

// Hub owns all room membership, presence and cursor state. It is an
// explicit registry rather than package globals so tests can run
// independent instances. All maps are guarded by one mutex; every event
// is fully applied before the next one for the same room is observed.
//
// A connection belongs to at most one room; joining a second room leaves
// the first (last-join-wins).
type Hub struct {
	mu      sync.RWMutex
	db      *gorm.DB
	rooms   map[string]map[*Client]bool
	cursors map[string]CursorState // clientID -> latest cursor

	changes changeLookup
}

// changeLookup re-queries the change ledger for broadcast payloads, so
// clients converge on server-confirmed records rather than their own
// optimistic view.
type changeLookup interface {
	Get(changeID uint) (*models.Change, error)
}

// NewHub creates an empty registry.
func NewHub(db *gorm.DB, changes changeLookup) *Hub {
	return &Hub{
		db:      db,
		rooms:   make(map[string]map[*Client]bool),
		cursors: make(map[string]CursorState),
		changes: changes,
	}
}

// Dispatch handles one inbound event from a client. Malformed or
// unauthorized events are answered (or dropped) on that connection only;
// they never disturb other rooms.
func (h *Hub) Dispatch(c *Client, evt *InboundEvent) {
	switch evt.Type {
	case EventJoinProject:
		h.join(c, evt)
	case EventCodeChange:
		h.codeChange(c, evt)
	case EventCursorMove:
		h.cursorMove(c, evt)
	case EventFileOpen:
		h.fileOpen(c, evt)
	case EventChangeSubmitted:
		h.changeSubmitted(c, evt)
	case EventChangeReviewed:
		h.changeReviewed(c, evt)
	default:
		logger.Debug().Str("type", evt.Type).Str("client", c.ID).Msg("unknown event dropped")
	}
}

// join validates access, registers the connection in the room and
// broadcasts a roster snapshot to every member including the joiner.
func (h *Hub) join(c *Client, evt *InboundEvent) {
	var project models.Project
	if err := h.db.Preload("Collaborators").First(&project, evt.ProjectID).Error; err != nil {
		c.enqueue(OutboundEvent{Type: EventError, Data: map[string]string{"message": "project not found"}})
		return
	}
	if !project.HasAccess(c.User.ID) {
		c.enqueue(OutboundEvent{Type: EventError, Data: map[string]string{"message": "access denied"}})
		return
	}

	roomID := RoomID(evt.ProjectID, evt.Branch)

	h.mu.Lock()
	if c.roomID != "" && c.roomID != roomID {
		h.removeLocked(c)
	}
	c.roomID = roomID
	c.projectID = evt.ProjectID
	c.branch = evt.Branch
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][c] = true
	roster := h.rosterLocked(roomID)
	h.mu.Unlock()

	h.broadcast(roomID, OutboundEvent{
		Type: EventUserJoined,
		Data: map[string]interface{}{
			"user": RoomUser{
				ID:       c.User.ID,
				Username: c.User.Username,
				Avatar:   c.User.Avatar,
				ClientID: c.ID,
			},
			"active_users": roster,
		},
	}, nil)

	logger.Info().
		Str("client", c.ID).
		Str("username", c.User.Username).
		Str("room", roomID).
		Msg("joined room")
}

// codeChange relays a live edit to the rest of the room as two signals:
// a content update and a cursor update. Best-effort hints only; nothing
// is persisted except the latest cursor entry.
func (h *Hub) codeChange(c *Client, evt *InboundEvent) {
	roomID, ok := h.roomOf(c)
	if !ok {
		return
	}

	h.setCursor(c, evt)

	h.broadcast(roomID, OutboundEvent{
		Type: EventCodeUpdate,
		Data: map[string]interface{}{
			"file_path": evt.FilePath,
			"content":   evt.Content,
			"position":  evt.Position,
			"user_id":   c.User.ID,
			"username":  c.User.Username,
		},
	}, c)

	h.broadcast(roomID, h.cursorEvent(c, evt), c)
}

func (h *Hub) cursorMove(c *Client, evt *InboundEvent) {
	roomID, ok := h.roomOf(c)
	if !ok {
		return
	}
	h.setCursor(c, evt)
	h.broadcast(roomID, h.cursorEvent(c, evt), c)
}

func (h *Hub) fileOpen(c *Client, evt *InboundEvent) {
	roomID, ok := h.roomOf(c)
	if !ok {
		return
	}
	h.broadcast(roomID, OutboundEvent{
		Type: EventFileOpened,
		Data: map[string]interface{}{
			"file_path": evt.FilePath,
			"user_id":   c.User.ID,
			"username":  c.User.Username,
		},
	}, c)
}

// changeSubmitted rebroadcasts a freshly recorded change to the whole
// room, originator included.
func (h *Hub) changeSubmitted(c *Client, evt *InboundEvent) {
	roomID, ok := h.roomOf(c)
	if !ok {
		return
	}
	change, err := h.changes.Get(evt.ChangeID)
	if err != nil {
		logger.Warn().Err(err).Uint("change_id", evt.ChangeID).Msg("change lookup for broadcast failed")
		return
	}
	h.broadcast(roomID, OutboundEvent{
		Type: EventNewChange,
		Data: map[string]interface{}{"change": change},
	}, nil)
}

func (h *Hub) changeReviewed(c *Client, evt *InboundEvent) {
	roomID, ok := h.roomOf(c)
	if !ok {
		return
	}
	change, err := h.changes.Get(evt.ChangeID)
	if err != nil {
		logger.Warn().Err(err).Uint("change_id", evt.ChangeID).Msg("change lookup for broadcast failed")
		return
	}
	h.broadcast(roomID, OutboundEvent{
		Type: EventChangeStatusUpdated,
		Data: map[string]interface{}{
			"change": change,
			"status": change.Status,
		},
	}, nil)
}

// Leave removes a connection from its room and presence maps, prunes the
// room if it became empty, and notifies remaining members with a fresh
// roster snapshot. Safe to call for clients that never joined.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	roomID := c.roomID
	if roomID == "" {
		h.mu.Unlock()
		return
	}
	h.removeLocked(c)
	roster := h.rosterLocked(roomID)
	h.mu.Unlock()

	h.broadcast(roomID, OutboundEvent{
		Type: EventUserLeft,
		Data: map[string]interface{}{
			"user_id":      c.User.ID,
			"username":     c.User.Username,
			"active_users": roster,
		},
	}, nil)

	logger.Info().
		Str("client", c.ID).
		Str("username", c.User.Username).
		Str("room", roomID).
		Msg("left room")
}

// Roster returns the current membership snapshot of a room.
func (h *Hub) Roster(roomID string) []RoomUser {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rosterLocked(roomID)
}

// Cursor returns the latest cursor recorded for a client, if any.
func (h *Hub) Cursor(clientID string) (CursorState, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cur, ok := h.cursors[clientID]
	return cur, ok
}

// RoomCount returns the number of live rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// broadcast queues an event for every member of the room, optionally
// excluding the sender. Members whose buffers are full are skipped;
// a slow consumer must not stall the room.
func (h *Hub) broadcast(roomID string, evt OutboundEvent, exclude *Client) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[roomID]))
	for member := range h.rooms[roomID] {
		if member == exclude {
			continue
		}
		members = append(members, member)
	}
	h.mu.RUnlock()

	for _, member := range members {
		member.enqueue(evt)
	}
}

func (h *Hub) roomOf(c *Client) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c.roomID == "" {
		return "", false
	}
	return c.roomID, true
}

func (h *Hub) setCursor(c *Client, evt *InboundEvent) {
	h.mu.Lock()
	h.cursors[c.ID] = CursorState{
		FilePath: evt.FilePath,
		Position: evt.Position,
		UserID:   c.User.ID,
		Username: c.User.Username,
	}
	h.mu.Unlock()
}

func (h *Hub) cursorEvent(c *Client, evt *InboundEvent) OutboundEvent {
	return OutboundEvent{
		Type: EventCursorUpdate,
		Data: map[string]interface{}{
			"file_path": evt.FilePath,
			"position":  evt.Position,
			"user_id":   c.User.ID,
			"username":  c.User.Username,
			"avatar":    c.User.Avatar,
		},
	}
}

// removeLocked drops a client from its room and cursor map. Caller holds mu.
func (h *Hub) removeLocked(c *Client) {
	roomID := c.roomID
	if members, ok := h.rooms[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(h.cursors, c.ID)
	c.roomID = ""
}

func (h *Hub) rosterLocked(roomID string) []RoomUser {
	members := h.rooms[roomID]
	roster := make([]RoomUser, 0, len(members))
	for member := range members {
		roster = append(roster, RoomUser{
			ID:       member.User.ID,
			Username: member.User.Username,
			Avatar:   member.User.Avatar,
			ClientID: member.ID,
		})
	}
	return roster
}
