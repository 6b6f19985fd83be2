package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/visitdesk/visitdesk/internal/notify"
	apperrors "github.com/visitdesk/visitdesk/pkg/errors"
	"github.com/visitdesk/visitdesk/pkg/response"
)

// NotificationHandler exposes the operator view over notification jobs and a
// channel configuration test endpoint.
type NotificationHandler struct {
	dispatcher *notify.Dispatcher
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(dispatcher *notify.Dispatcher) (*NotificationHandler, error) {
	if dispatcher == nil {
		return nil, apperrors.New("notifications.handler", "dispatcher is required", http.StatusInternalServerError)
	}
	return &NotificationHandler{dispatcher: dispatcher}, nil
}

// ListJobs returns delivery attempts, filterable by status and event.
func (h *NotificationHandler) ListJobs(c *gin.Context) {
	rows, err := h.dispatcher.ListJobs(c.Request.Context(), notify.ListJobsInput{
		Status: strings.TrimSpace(c.Query("status")),
		Event:  strings.TrimSpace(c.Query("event")),
		Limit:  parseIntQuery(c, "limit", 25),
		Offset: parseIntQuery(c, "offset", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}

type testDispatchRequest struct {
	Channel string `json:"channel" validate:"required"`
	Address string `json:"address" validate:"required"`
}

// Test sends a synthetic message so operators can verify channel
// configuration without touching a real visit.
func (h *NotificationHandler) Test(c *gin.Context) {
	var req testDispatchRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.dispatcher.TestDispatch(c.Request.Context(), req.Channel, req.Address); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"delivered": true})
}
