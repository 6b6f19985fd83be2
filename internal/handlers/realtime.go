package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/visitdesk/visitdesk/internal/realtime"
	apperrors "github.com/visitdesk/visitdesk/pkg/errors"
)

// RealtimeHandler upgrades operator dashboard connections onto the event feed.
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler constructs a realtime handler.
func NewRealtimeHandler(hub *realtime.Hub) (*RealtimeHandler, error) {
	if hub == nil {
		return nil, apperrors.New("realtime.handler", "hub is required", http.StatusInternalServerError)
	}
	return &RealtimeHandler{hub: hub}, nil
}

// Feed streams lifecycle and notification events over a WebSocket.
func (h *RealtimeHandler) Feed(c *gin.Context) {
	h.hub.Serve(c.Writer, c.Request)
}
