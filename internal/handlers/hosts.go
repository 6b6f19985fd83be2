package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/visitdesk/visitdesk/internal/directory"
	apperrors "github.com/visitdesk/visitdesk/pkg/errors"
	"github.com/visitdesk/visitdesk/pkg/response"
)

// HostHandler exposes the host directory.
type HostHandler struct {
	dir *directory.Service
}

// NewHostHandler constructs a host handler.
func NewHostHandler(dir *directory.Service) (*HostHandler, error) {
	if dir == nil {
		return nil, apperrors.New("hosts.handler", "directory is required", http.StatusInternalServerError)
	}
	return &HostHandler{dir: dir}, nil
}

// Create registers a new host contact.
func (h *HostHandler) Create(c *gin.Context) {
	var req directory.CreateHostInput
	if !bindAndValidate(c, &req) {
		return
	}

	host, err := h.dir.CreateHost(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, host)
}

// Get returns one host.
func (h *HostHandler) Get(c *gin.Context) {
	host, err := h.dir.GetHost(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, host)
}

// List returns hosts, optionally filtered by name or company.
func (h *HostHandler) List(c *gin.Context) {
	activeOnly := true
	if raw := strings.TrimSpace(c.Query("include_inactive")); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil && parsed {
			activeOnly = false
		}
	}

	rows, total, err := h.dir.ListHosts(c.Request.Context(), directory.ListHostsInput{
		Query:      c.Query("q"),
		ActiveOnly: activeOnly,
		Limit:      parseIntQuery(c, "limit", 50),
		Offset:     parseIntQuery(c, "offset", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, rows, &response.Meta{Total: int(total)})
}

type setHostActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// SetActive toggles whether a host can receive new visits.
func (h *HostHandler) SetActive(c *gin.Context) {
	var req setHostActiveRequest
	if !bindAndValidate(c, &req) {
		return
	}

	host, err := h.dir.SetHostActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, host)
}
