package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/codehive/backend/internal/collab"
	"github.com/codehive/backend/internal/models"
	"github.com/codehive/backend/internal/utils"
	"github.com/codehive/backend/pkg/logger"
	"github.com/codehive/backend/pkg/response"
	"gorm.io/gorm"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Token auth happens below; cross-origin editors are expected
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSHandler struct {
	db  *gorm.DB
	hub *collab.Hub
}

func NewWSHandler(db *gorm.DB, hub *collab.Hub) *WSHandler {
	return &WSHandler{db: db, hub: hub}
}

// Serve upgrades the connection and runs the client until disconnect.
// Browsers cannot set headers on websocket requests, so the JWT rides
// in the token query parameter.
// GET /ws?token=...
func (h *WSHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "token required")
		return
	}

	claims, err := utils.ParseToken(token)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		return
	}

	var user models.User
	if err := h.db.First(&user, claims.UserID).Error; err != nil {
		response.Unauthorized(c, "unknown user")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := collab.NewClient(h.hub, conn, user.Public())
	logger.Info().Str("client", client.ID).Str("username", user.Username).Msg("websocket connected")

	client.Run()
}
