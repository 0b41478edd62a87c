// Package collab implements the real-time collaboration session layer:
// room membership keyed by (project, branch), per-connection presence and
// cursor state, and fan-out of live edit traffic. It never persists file
// content; the authoritative edit path is the change review workflow.
package collab

import (
	"encoding/json"
	"fmt"
)

// Inbound event types (client to server).
const (
	EventJoinProject     = "join-project"
	EventCodeChange      = "code-change"
	EventCursorMove      = "cursor-move"
	EventFileOpen        = "file-open"
	EventChangeSubmitted = "change-submitted"
	EventChangeReviewed  = "change-reviewed"
)

// Outbound event types (server to client).
const (
	EventConnected           = "connected"
	EventError               = "error"
	EventUserJoined          = "user-joined"
	EventUserLeft            = "user-left"
	EventCodeUpdate          = "code-update"
	EventCursorUpdate        = "cursor-update"
	EventFileOpened          = "file-opened"
	EventNewChange           = "new-change"
	EventChangeStatusUpdated = "change-status-updated"
)

// InboundEvent is one message read off a client connection. Fields are
// a union over all inbound event types; Type selects which are meaningful.
type InboundEvent struct {
	Type      string          `json:"type"`
	ProjectID uint            `json:"project_id,omitempty"`
	Branch    string          `json:"branch,omitempty"`
	FilePath  string          `json:"file_path,omitempty"`
	Content   string          `json:"content,omitempty"`
	Position  json.RawMessage `json:"position,omitempty"` // editor-defined cursor shape, relayed opaquely
	ChangeID  uint            `json:"change_id,omitempty"`
}

// OutboundEvent is one message queued for delivery to a client.
type OutboundEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// RoomUser is one entry of a room's roster snapshot.
type RoomUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	ClientID string `json:"client_id"`
}

// CursorState is the latest cursor of a connection, last-write-wins.
type CursorState struct {
	FilePath string          `json:"file_path"`
	Position json.RawMessage `json:"position"`
	UserID   uint            `json:"user_id"`
	Username string          `json:"username"`
}

// RoomID is the broadcast scope for a project branch.
func RoomID(projectID uint, branch string) string {
	return fmt.Sprintf("%d-%s", projectID, branch)
}
