package visits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/visitdesk/visitdesk/internal/models"
	apperrors "github.com/visitdesk/visitdesk/pkg/errors"
	"github.com/visitdesk/visitdesk/pkg/logger"
	"github.com/visitdesk/visitdesk/pkg/metrics"
)

const (
	tokenIssueAttempts  = 3
	defaultEarlyCheckIn = 4 * time.Hour
	defaultLateCheckIn  = 24 * time.Hour
)

// Recipient carries the contact data a notification decision targets. The
// dispatcher fans out to every channel the recipient has data for.
type Recipient struct {
	Name  string
	Email string
	Phone string
}

// Decision describes the notification a successful transition asks for. The
// engine returns it as data; no provider I/O happens before the transition's
// outcome is settled.
type Decision struct {
	VisitID   string
	Event     Event
	Template  string
	Recipient Recipient
	Data      map[string]any
}

// Dispatcher consumes notification decisions asynchronously. Delivery failure
// never affects the transition that produced the decision.
type Dispatcher interface {
	Dispatch(decision Decision)
}

// TokenIssuer produces opaque session tokens for new visits.
type TokenIssuer interface {
	Issue() (string, error)
}

// CheckInWindow gates how far from the expected arrival instant a check-in is
// accepted, evaluated point-in-time when check-in is attempted. There is no
// background expiry of overdue visits.
type CheckInWindow struct {
	Early time.Duration // how long before expected_date check-in opens
	Late  time.Duration // how long after expected_date check-in stays open
}

// Engine is the visit lifecycle state machine. It validates requested
// transitions against current state and actor role, applies timestamps
// through the store's compare-and-swap, and decides which notification to
// emit. On a lost race it surfaces the conflict; it never retries on the
// actor's behalf.
type Engine struct {
	store          *Store
	issuer         TokenIssuer
	dispatcher     Dispatcher
	window         CheckInWindow
	checkoutNotice bool
	now            func() time.Time
	log            *zap.Logger
}

// EngineOption customises Engine behaviour.
type EngineOption func(*Engine)

// WithDispatcher attaches the asynchronous notification dispatcher.
func WithDispatcher(d Dispatcher) EngineOption {
	return func(e *Engine) {
		e.dispatcher = d
	}
}

// WithCheckInWindow overrides the allowed arrival window around expected_date.
func WithCheckInWindow(window CheckInWindow) EngineOption {
	return func(e *Engine) {
		if window.Early > 0 {
			e.window.Early = window.Early
		}
		if window.Late > 0 {
			e.window.Late = window.Late
		}
	}
}

// WithCheckoutNotice toggles the optional "visitor departed" host notification.
func WithCheckoutNotice(enabled bool) EngineOption {
	return func(e *Engine) {
		e.checkoutNotice = enabled
	}
}

// WithClock injects a custom clock, primarily for testing.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.now = clock
		}
	}
}

// NewEngine constructs the lifecycle engine.
func NewEngine(store *Store, issuer TokenIssuer, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, errors.New("visit engine: store is required")
	}
	if issuer == nil {
		return nil, errors.New("visit engine: token issuer is required")
	}

	engine := &Engine{
		store:          store,
		issuer:         issuer,
		window:         CheckInWindow{Early: defaultEarlyCheckIn, Late: defaultLateCheckIn},
		checkoutNotice: true,
		now:            time.Now,
		log:            logger.WithModule("visits.engine"),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// VisitorInfo carries the visitor fields captured at creation.
type VisitorInfo struct {
	Name    string
	Company string
	Phone   string
	Email   string
}

// CreateWalkIn registers a visitor who is already at reception. Walk-ins
// always require the named host's approval before check-in.
func (e *Engine) CreateWalkIn(ctx context.Context, info VisitorInfo, hostID string, createdBy Actor) (*models.Visit, error) {
	return e.create(ctx, info, hostID, e.now().UTC(), createdBy, models.StatusPendingApproval)
}

// CreatePreRegistration registers an expected visitor ahead of arrival.
// A host pre-registering their own visitor is self-approving and the visit
// starts PRE_REGISTERED; a pre-registration entered by reception or an admin
// on a host's behalf still requires that host's approval.
func (e *Engine) CreatePreRegistration(ctx context.Context, info VisitorInfo, hostID string, expectedDate time.Time, createdBy Actor) (*models.Visit, error) {
	if expectedDate.IsZero() {
		return nil, apperrors.NewBadRequest("expected date is required")
	}

	initial := models.StatusPendingApproval
	if createdBy.Role == models.RoleHost {
		if createdBy.HostID != hostID {
			return nil, apperrors.ErrForbidden
		}
		initial = models.StatusPreRegistered
	}

	return e.create(ctx, info, hostID, expectedDate.UTC(), createdBy, initial)
}

func (e *Engine) create(ctx context.Context, info VisitorInfo, hostID string, expectedDate time.Time, createdBy Actor, initial models.VisitStatus) (*models.Visit, error) {
	name := strings.TrimSpace(info.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("visitor name is required")
	}
	hostID = strings.TrimSpace(hostID)
	if hostID == "" {
		return nil, apperrors.NewBadRequest("host is required")
	}

	host, err := e.store.LoadHost(ctx, hostID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewBadRequest("unknown host")
		}
		return nil, err
	}
	if !host.Active {
		return nil, apperrors.NewBadRequest("host is inactive")
	}

	visit := &models.Visit{
		Status:         initial,
		VisitorName:    name,
		VisitorCompany: strings.TrimSpace(info.Company),
		VisitorPhone:   strings.TrimSpace(info.Phone),
		VisitorEmail:   strings.TrimSpace(info.Email),
		HostID:         host.ID,
		ExpectedDate:   expectedDate,
		CreatedByID:    createdBy.ID,
		CreatedByRole:  createdBy.Role,
	}

	// Collision on the unique token index is a formality at 256 bits, but a
	// collision here would bind one visitor's badge to another's session, so
	// retry with a fresh token rather than surfacing the write error.
	for attempt := 1; ; attempt++ {
		token, err := e.issuer.Issue()
		if err != nil {
			return nil, fmt.Errorf("visit engine: issue token: %w", err)
		}
		visit.SessionToken = token

		err = e.store.Create(ctx, visit)
		if err == nil {
			break
		}
		if !IsTokenCollision(err) || attempt >= tokenIssueAttempts {
			return nil, err
		}
		visit.ID = ""
	}

	visit.Host = host
	return visit, nil
}

// Approve moves a pending visit to APPROVED on behalf of its assigned host
// (or an admin override).
func (e *Engine) Approve(ctx context.Context, visitID string, actor Actor) (*models.Visit, error) {
	visit, err := e.store.LoadByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	return e.apply(ctx, ActionApprove, visit, actor)
}

// Reject declines a pending or previously approved visit.
func (e *Engine) Reject(ctx context.Context, visitID string, actor Actor) (*models.Visit, error) {
	visit, err := e.store.LoadByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	return e.apply(ctx, ActionReject, visit, actor)
}

// ReApprove reverses an earlier rejection; only reachable from REJECTED.
func (e *Engine) ReApprove(ctx context.Context, visitID string, actor Actor) (*models.Visit, error) {
	visit, err := e.store.LoadByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	return e.apply(ctx, ActionReApprove, visit, actor)
}

// CheckInByToken resolves a scanned badge to its visit and checks the visitor
// in, provided the arrival window around expected_date holds.
func (e *Engine) CheckInByToken(ctx context.Context, token string, actor Actor) (*models.Visit, error) {
	visit, err := e.store.LoadByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return e.apply(ctx, ActionCheckIn, visit, actor)
}

// CheckOut completes a checked-in visit.
func (e *Engine) CheckOut(ctx context.Context, visitID string, actor Actor) (*models.Visit, error) {
	visit, err := e.store.LoadByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	return e.apply(ctx, ActionCheckOut, visit, actor)
}

// apply runs the shared orchestration: role guard, transition-table lookup,
// time gate, compare-and-swap write, then the notification decision hand-off.
func (e *Engine) apply(ctx context.Context, action Action, visit *models.Visit, actor Actor) (*models.Visit, error) {
	if !Allowed(action, actor, visit) {
		metrics.VisitTransitions.WithLabelValues(string(action), "forbidden").Inc()
		return nil, apperrors.ErrForbidden
	}

	row, ok := Lookup(action, visit.Status)
	if !ok {
		metrics.VisitTransitions.WithLabelValues(string(action), "invalid_transition").Inc()
		return nil, apperrors.ErrInvalidTransition.WithMessage(
			fmt.Sprintf("cannot %s a visit in state %s", action, visit.Status))
	}

	now := e.now().UTC()
	if action == ActionCheckIn {
		if err := e.checkWindow(visit, now); err != nil {
			metrics.VisitTransitions.WithLabelValues(string(action), "checkin_window").Inc()
			return nil, err
		}
	}

	updated, err := e.store.ApplyTransition(ctx, visit.ID, visit.Status, row.To, row.TimestampField, now)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrStateConflict):
			metrics.VisitTransitions.WithLabelValues(string(action), "state_conflict").Inc()
		case errors.Is(err, apperrors.ErrNotFound):
			metrics.VisitTransitions.WithLabelValues(string(action), "not_found").Inc()
		default:
			metrics.VisitTransitions.WithLabelValues(string(action), "error").Inc()
			e.log.Error("transition write failed",
				zap.String("visit_id", visit.ID),
				zap.String("action", string(action)),
				zap.Error(err),
			)
		}
		return nil, err
	}

	metrics.VisitTransitions.WithLabelValues(string(action), "ok").Inc()
	switch row.To {
	case models.StatusCheckedIn:
		metrics.VisitsOnSite.Inc()
	case models.StatusCheckedOut:
		metrics.VisitsOnSite.Dec()
	}

	if decision := e.decide(row.Event, updated); decision != nil && e.dispatcher != nil {
		e.dispatcher.Dispatch(*decision)
	}

	return updated, nil
}

func (e *Engine) checkWindow(visit *models.Visit, now time.Time) error {
	opens := visit.ExpectedDate.Add(-e.window.Early)
	closes := visit.ExpectedDate.Add(e.window.Late)
	if now.Before(opens) {
		return apperrors.ErrCheckInWindow.WithMessage(
			fmt.Sprintf("check-in opens at %s", opens.Format(time.RFC3339)))
	}
	if now.After(closes) {
		return apperrors.ErrCheckInWindow.WithMessage(
			fmt.Sprintf("check-in closed at %s", closes.Format(time.RFC3339)))
	}
	return nil
}

// decide maps a transition event to the single notification decision it
// emits: approval and rejection notify the visitor, arrival and departure
// notify the host. A nil result means no notification.
func (e *Engine) decide(event Event, visit *models.Visit) *Decision {
	data := map[string]any{
		"visitor_name": visit.VisitorName,
		"status":       string(visit.Status),
	}
	if visit.Host != nil {
		data["host_name"] = visit.Host.Name
		data["host_company"] = visit.Host.Company
	}

	switch event {
	case EventApproved:
		data["session_token"] = visit.SessionToken
		return &Decision{
			VisitID:  visit.ID,
			Event:    event,
			Template: "visitor_approved",
			Recipient: Recipient{
				Name:  visit.VisitorName,
				Email: visit.VisitorEmail,
				Phone: visit.VisitorPhone,
			},
			Data: data,
		}
	case EventRejected:
		return &Decision{
			VisitID:  visit.ID,
			Event:    event,
			Template: "visitor_rejected",
			Recipient: Recipient{
				Name:  visit.VisitorName,
				Email: visit.VisitorEmail,
				Phone: visit.VisitorPhone,
			},
			Data: data,
		}
	case EventCheckedIn:
		if visit.Host == nil {
			return nil
		}
		return &Decision{
			VisitID:  visit.ID,
			Event:    event,
			Template: "host_arrival",
			Recipient: Recipient{
				Name:  visit.Host.Name,
				Email: visit.Host.Email,
				Phone: visit.Host.Phone,
			},
			Data: data,
		}
	case EventCheckedOut:
		if !e.checkoutNotice || visit.Host == nil {
			return nil
		}
		return &Decision{
			VisitID:  visit.ID,
			Event:    event,
			Template: "host_departure",
			Recipient: Recipient{
				Name:  visit.Host.Name,
				Email: visit.Host.Email,
				Phone: visit.Host.Phone,
			},
			Data: data,
		}
	}
	return nil
}

// Summary is the read model handed to pass/badge rendering. It never carries
// another visit's token: the only token present is the one that was used to
// resolve the summary.
type Summary struct {
	VisitID        string             `json:"visit_id"`
	SessionToken   string             `json:"session_token"`
	Status         models.VisitStatus `json:"status"`
	VisitorName    string             `json:"visitor_name"`
	VisitorCompany string             `json:"visitor_company,omitempty"`
	HostName       string             `json:"host_name,omitempty"`
	HostCompany    string             `json:"host_company,omitempty"`
	ExpectedDate   time.Time          `json:"expected_date"`
	CheckInAt      *time.Time         `json:"check_in_at,omitempty"`
	CheckOutAt     *time.Time         `json:"check_out_at,omitempty"`
}

// GetByToken resolves a session token to the visit summary used to render a
// pass or badge. Tokens stay resolvable for the lifetime of the visit.
func (e *Engine) GetByToken(ctx context.Context, token string) (*Summary, error) {
	visit, err := e.store.LoadByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		VisitID:        visit.ID,
		SessionToken:   visit.SessionToken,
		Status:         visit.Status,
		VisitorName:    visit.VisitorName,
		VisitorCompany: visit.VisitorCompany,
		ExpectedDate:   visit.ExpectedDate,
		CheckInAt:      visit.CheckInAt,
		CheckOutAt:     visit.CheckOutAt,
	}
	if visit.Host != nil {
		summary.HostName = visit.Host.Name
		summary.HostCompany = visit.Host.Company
	}
	return summary, nil
}
