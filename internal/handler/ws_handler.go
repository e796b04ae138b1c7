package handler

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/lifehub-app/notify-engine/internal/ws"
	"github.com/lifehub-app/notify-engine/pkg/response"
)

type WSHandler struct {
	hub *ws.Hub
}

func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Connect admits an authenticated live connection into the presence
// registry. Auth runs in the middleware before the upgrade; unauthenticated
// requests never reach the hub.
func (h *WSHandler) Connect(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.hub.Serve(c.Writer, c.Request, userID, response.GetWorkspaceID(c)); err != nil {
		log.Printf("websocket upgrade for user %s: %v", userID, err)
	}
}
