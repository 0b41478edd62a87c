package collab

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/codehive/backend/internal/models"
	"github.com/codehive/backend/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // live edits carry file content
	sendBufferSize = 64
)

// Client is one live connection. Its identity is fixed at upgrade time;
// the room fields are written by the hub only.
type Client struct {
	ID   string
	User models.PublicUser

	hub  *Hub
	conn *websocket.Conn
	send chan OutboundEvent

	roomID    string
	projectID uint
	branch    string
}

// NewClient wraps an upgraded websocket connection.
func NewClient(hub *Hub, conn *websocket.Conn, user models.PublicUser) *Client {
	return &Client{
		ID:   uuid.NewString(),
		User: user,
		hub:  hub,
		conn: conn,
		send: make(chan OutboundEvent, sendBufferSize),
	}
}

// Run starts the read and write pumps and blocks until the connection
// closes. On exit the client is removed from its room.
func (c *Client) Run() {
	c.enqueue(OutboundEvent{Type: EventConnected, Data: map[string]string{"client_id": c.ID}})
	go c.writePump()
	c.readPump()
}

// enqueue hands an event to the write pump without blocking. Events for
// a client that cannot keep up are dropped; this is a hint channel, not
// durable delivery.
func (c *Client) enqueue(evt OutboundEvent) {
	select {
	case c.send <- evt:
	default:
		logger.Warn().Str("client", c.ID).Str("type", evt.Type).Msg("send buffer full, event dropped")
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Str("client", c.ID).Msg("websocket read error")
			}
			return
		}

		var evt InboundEvent
		if err := json.Unmarshal(message, &evt); err != nil {
			logger.Debug().Err(err).Str("client", c.ID).Msg("malformed event dropped")
			continue
		}
		c.hub.Dispatch(c, &evt)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
				logger.Warn().Err(err).Str("client", c.ID).Msg("websocket write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
