package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/davidrys/gatepass/internal/realtime"
)

// RealtimeHandler upgrades clients onto the scan activity feed.
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler constructs a RealtimeHandler.
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Stream serves the WebSocket feed.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	h.hub.Serve(c.Writer, c.Request)
}
