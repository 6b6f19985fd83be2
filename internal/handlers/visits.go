package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/visitdesk/visitdesk/internal/models"
	"github.com/visitdesk/visitdesk/internal/visits"
	apperrors "github.com/visitdesk/visitdesk/pkg/errors"
	"github.com/visitdesk/visitdesk/pkg/response"
)

// VisitHandler exposes the visit lifecycle over HTTP: registration for
// reception and hosts, decisions for hosts, and scan-driven check-in and
// check-out for the desk and kiosks.
type VisitHandler struct {
	engine *visits.Engine
	store  *visits.Store
	feed   feedPublisher
}

type feedPublisher interface {
	Publish(event string, data any)
}

// NewVisitHandler constructs a visit handler. The feed is optional.
func NewVisitHandler(engine *visits.Engine, store *visits.Store, feed feedPublisher) (*VisitHandler, error) {
	if engine == nil {
		return nil, apperrors.New("visits.handler", "engine is required", http.StatusInternalServerError)
	}
	if store == nil {
		return nil, apperrors.New("visits.handler", "store is required", http.StatusInternalServerError)
	}
	return &VisitHandler{engine: engine, store: store, feed: feed}, nil
}

type createVisitRequest struct {
	VisitorName    string `json:"visitor_name" validate:"required,min=1,max=200"`
	VisitorCompany string `json:"visitor_company" validate:"max=200"`
	VisitorPhone   string `json:"visitor_phone" validate:"max=40"`
	VisitorEmail   string `json:"visitor_email" validate:"omitempty,email"`
	HostID         string `json:"host_id" validate:"required"`

	// ExpectedDate switches the registration from walk-in to pre-registration.
	ExpectedDate *time.Time `json:"expected_date"`
}

// Create registers a visit. A request without expected_date is a walk-in at
// reception; with expected_date it is a pre-registration.
func (h *VisitHandler) Create(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req createVisitRequest
	if !bindAndValidate(c, &req) {
		return
	}

	info := visits.VisitorInfo{
		Name:    req.VisitorName,
		Company: req.VisitorCompany,
		Phone:   req.VisitorPhone,
		Email:   req.VisitorEmail,
	}

	var (
		visit *models.Visit
		err   error
	)
	if req.ExpectedDate != nil {
		visit, err = h.engine.CreatePreRegistration(c.Request.Context(), info, req.HostID, *req.ExpectedDate, actor)
	} else {
		visit, err = h.engine.CreateWalkIn(c.Request.Context(), info, req.HostID, actor)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	h.publish("visit.created", visit)
	response.Success(c, http.StatusCreated, visit)
}

// Get returns one visit by ID.
func (h *VisitHandler) Get(c *gin.Context) {
	if _, ok := mustActor(c); !ok {
		return
	}

	visit, err := h.store.LoadByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, visit)
}

// List returns visits filtered by status, host, and free-text query.
func (h *VisitHandler) List(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	input := visits.SearchInput{
		Status: models.VisitStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		HostID: strings.TrimSpace(c.Query("host_id")),
		Query:  c.Query("q"),
		Limit:  parseIntQuery(c, "limit", 25),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if input.Status != "" && !input.Status.Valid() {
		response.Error(c, apperrors.NewBadRequest("unknown status filter"))
		return
	}

	// Host users only ever see their own queue.
	if actor.Role == models.RoleHost {
		input.HostID = actor.HostID
	}

	rows, total, err := h.store.Search(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, rows, &response.Meta{Total: int(total)})
}

// Approve moves a pending visit to APPROVED.
func (h *VisitHandler) Approve(c *gin.Context) {
	h.decide(c, visits.ActionApprove)
}

// Reject declines a pending or already-approved visit.
func (h *VisitHandler) Reject(c *gin.Context) {
	h.decide(c, visits.ActionReject)
}

// ReApprove reverses an earlier rejection.
func (h *VisitHandler) ReApprove(c *gin.Context) {
	h.decide(c, visits.ActionReApprove)
}

func (h *VisitHandler) decide(c *gin.Context, action visits.Action) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	id := c.Param("id")
	var (
		visit *models.Visit
		err   error
	)
	switch action {
	case visits.ActionApprove:
		visit, err = h.engine.Approve(c.Request.Context(), id, actor)
	case visits.ActionReject:
		visit, err = h.engine.Reject(c.Request.Context(), id, actor)
	case visits.ActionReApprove:
		visit, err = h.engine.ReApprove(c.Request.Context(), id, actor)
	default:
		err = apperrors.ErrBadRequest
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	h.publish("visit."+string(action), visit)
	response.Success(c, http.StatusOK, visit)
}

type checkInRequest struct {
	SessionToken string `json:"session_token" validate:"required"`
}

// CheckIn admits a visitor whose badge was scanned at the desk or kiosk.
func (h *VisitHandler) CheckIn(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req checkInRequest
	if !bindAndValidate(c, &req) {
		return
	}

	visit, err := h.engine.CheckInByToken(c.Request.Context(), req.SessionToken, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.publish("visit.checked_in", visit)
	response.Success(c, http.StatusOK, visit)
}

// CheckOut completes a checked-in visit.
func (h *VisitHandler) CheckOut(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	visit, err := h.engine.CheckOut(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.publish("visit.checked_out", visit)
	response.Success(c, http.StatusOK, visit)
}

func (h *VisitHandler) publish(event string, visit *models.Visit) {
	if h.feed == nil || visit == nil {
		return
	}
	h.feed.Publish(event, gin.H{
		"visit_id":     visit.ID,
		"status":       visit.Status,
		"visitor_name": visit.VisitorName,
		"host_id":      visit.HostID,
	})
}
