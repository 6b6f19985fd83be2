package visits

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/visitdesk/visitdesk/internal/database/testutil"
	"github.com/visitdesk/visitdesk/internal/models"
	apperrors "github.com/visitdesk/visitdesk/pkg/errors"
)

type seqIssuer struct {
	mu   sync.Mutex
	next int
}

func (i *seqIssuer) Issue() (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.next++
	return fmt.Sprintf("token-%04d", i.next), nil
}

type recordingDispatcher struct {
	mu        sync.Mutex
	decisions []Decision
}

func (d *recordingDispatcher) Dispatch(decision Decision) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.decisions = append(d.decisions, decision)
}

func (d *recordingDispatcher) all() []Decision {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Decision(nil), d.decisions...)
}

type engineFixture struct {
	db         *gorm.DB
	store      *Store
	engine     *Engine
	dispatcher *recordingDispatcher
	host       *models.Host
	hostActor  Actor
	deskActor  Actor
	adminActor Actor
}

func newEngineFixture(t *testing.T, opts ...EngineOption) *engineFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := NewStore(db)
	require.NoError(t, err)

	host := seedHost(t, db)
	dispatcher := &recordingDispatcher{}

	opts = append([]EngineOption{WithDispatcher(dispatcher)}, opts...)
	engine, err := NewEngine(store, &seqIssuer{}, opts...)
	require.NoError(t, err)

	return &engineFixture{
		db:         db,
		store:      store,
		engine:     engine,
		dispatcher: dispatcher,
		host:       host,
		hostActor:  Actor{ID: "user-host", Role: models.RoleHost, HostID: host.ID},
		deskActor:  Actor{ID: "user-desk", Role: models.RoleReception},
		adminActor: Actor{ID: "user-admin", Role: models.RoleAdmin},
	}
}

func TestCreateWalkInStartsPendingApproval(t *testing.T) {
	fx := newEngineFixture(t)

	visit, err := fx.engine.CreateWalkIn(context.Background(), VisitorInfo{
		Name:    "  Dana Cole ",
		Company: "Contoso",
		Email:   "dana@example.com",
	}, fx.host.ID, fx.deskActor)
	require.NoError(t, err)

	require.Equal(t, models.StatusPendingApproval, visit.Status)
	require.Equal(t, "Dana Cole", visit.VisitorName)
	require.NotEmpty(t, visit.SessionToken)
	require.Equal(t, fx.host.ID, visit.HostID)
	require.Equal(t, models.RoleReception, visit.CreatedByRole)
	require.Empty(t, fx.dispatcher.all())
}

func TestCreatePreRegistrationByHostSelfApproves(t *testing.T) {
	fx := newEngineFixture(t)
	expected := time.Now().Add(48 * time.Hour).UTC()

	visit, err := fx.engine.CreatePreRegistration(context.Background(),
		VisitorInfo{Name: "Sam Reyes"}, fx.host.ID, expected, fx.hostActor)
	require.NoError(t, err)
	require.Equal(t, models.StatusPreRegistered, visit.Status)
	require.True(t, visit.ExpectedDate.Equal(expected))
}

func TestCreatePreRegistrationByReceptionNeedsApproval(t *testing.T) {
	fx := newEngineFixture(t)

	visit, err := fx.engine.CreatePreRegistration(context.Background(),
		VisitorInfo{Name: "Sam Reyes"}, fx.host.ID, time.Now().Add(24*time.Hour), fx.deskActor)
	require.NoError(t, err)
	require.Equal(t, models.StatusPendingApproval, visit.Status)
}

func TestCreatePreRegistrationForAnotherHostForbidden(t *testing.T) {
	fx := newEngineFixture(t)
	other := &models.Host{Name: "Bea Lin", Active: true}
	require.NoError(t, fx.db.Create(other).Error)

	_, err := fx.engine.CreatePreRegistration(context.Background(),
		VisitorInfo{Name: "Sam Reyes"}, other.ID, time.Now().Add(24*time.Hour), fx.hostActor)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestCreateValidation(t *testing.T) {
	fx := newEngineFixture(t)

	_, err := fx.engine.CreateWalkIn(context.Background(), VisitorInfo{Name: "  "}, fx.host.ID, fx.deskActor)
	require.Error(t, err)

	_, err = fx.engine.CreateWalkIn(context.Background(), VisitorInfo{Name: "Dana"}, "no-such-host", fx.deskActor)
	require.Error(t, err)

	inactive := &models.Host{Name: "Gone Person", Active: false}
	require.NoError(t, fx.db.Create(inactive).Error)
	_, err = fx.engine.CreateWalkIn(context.Background(), VisitorInfo{Name: "Dana"}, inactive.ID, fx.deskActor)
	require.Error(t, err)

	_, err = fx.engine.CreatePreRegistration(context.Background(),
		VisitorInfo{Name: "Dana"}, fx.host.ID, time.Time{}, fx.deskActor)
	require.Error(t, err)
}

func TestApproveNotifiesVisitorWithToken(t *testing.T) {
	fx := newEngineFixture(t)

	visit, err := fx.engine.CreateWalkIn(context.Background(), VisitorInfo{
		Name:  "Dana Cole",
		Email: "dana@example.com",
		Phone: "+15550100",
	}, fx.host.ID, fx.deskActor)
	require.NoError(t, err)

	approved, err := fx.engine.Approve(context.Background(), visit.ID, fx.hostActor)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)

	decisions := fx.dispatcher.all()
	require.Len(t, decisions, 1)
	require.Equal(t, EventApproved, decisions[0].Event)
	require.Equal(t, "visitor_approved", decisions[0].Template)
	require.Equal(t, "dana@example.com", decisions[0].Recipient.Email)
	require.Equal(t, visit.SessionToken, decisions[0].Data["session_token"])
}

func TestApproveByUnassignedHostForbidden(t *testing.T) {
	fx := newEngineFixture(t)

	visit, err := fx.engine.CreateWalkIn(context.Background(),
		VisitorInfo{Name: "Dana Cole"}, fx.host.ID, fx.deskActor)
	require.NoError(t, err)

	stranger := Actor{ID: "user-other", Role: models.RoleHost, HostID: "some-other-host"}
	_, err = fx.engine.Approve(context.Background(), visit.ID, stranger)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = fx.engine.Approve(context.Background(), visit.ID, fx.deskActor)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	reloaded, err := fx.store.LoadByID(context.Background(), visit.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPendingApproval, reloaded.Status)
}

func TestRejectAfterApprovalRevokesEntry(t *testing.T) {
	fx := newEngineFixture(t)

	visit, err := fx.engine.CreateWalkIn(context.Background(), VisitorInfo{
		Name:  "Dana Cole",
		Email: "dana@example.com",
	}, fx.host.ID, fx.deskActor)
	require.NoError(t, err)

	_, err = fx.engine.Approve(context.Background(), visit.ID, fx.hostActor)
	require.NoError(t, err)

	rejected, err := fx.engine.Reject(context.Background(), visit.ID, fx.hostActor)
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.ApprovedAt)
	require.NotNil(t, rejected.RejectedAt)

	// The badge must no longer admit the visitor.
	_, err = fx.engine.CheckInByToken(context.Background(), visit.SessionToken, fx.deskActor)
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	decisions := fx.dispatcher.all()
	require.Len(t, decisions, 2)
	require.Equal(t, "visitor_rejected", decisions[1].Template)
}

func TestReApproveOnlyFromRejected(t *testing.T) {
	fx := newEngineFixture(t)

	visit, err := fx.engine.CreateWalkIn(context.Background(),
		VisitorInfo{Name: "Dana Cole"}, fx.host.ID, fx.deskActor)
	require.NoError(t, err)

	_, err = fx.engine.ReApprove(context.Background(), visit.ID, fx.hostActor)
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = fx.engine.Reject(context.Background(), visit.ID, fx.hostActor)
	require.NoError(t, err)

	revived, err := fx.engine.ReApprove(context.Background(), visit.ID, fx.adminActor)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, revived.Status)
	require.NotNil(t, revived.RejectedAt)
}

func TestFullWalkInLifecycle(t *testing.T) {
	fx := newEngineFixture(t)

	visit, err := fx.engine.CreateWalkIn(context.Background(), VisitorInfo{
		Name:  "Dana Cole",
		Email: "dana@example.com",
	}, fx.host.ID, fx.deskActor)
	require.NoError(t, err)

	_, err = fx.engine.Approve(context.Background(), visit.ID, fx.hostActor)
	require.NoError(t, err)

	checkedIn, err := fx.engine.CheckInByToken(context.Background(), visit.SessionToken, fx.deskActor)
	require.NoError(t, err)
	require.Equal(t, models.StatusCheckedIn, checkedIn.Status)
	require.NotNil(t, checkedIn.CheckInAt)

	checkedOut, err := fx.engine.CheckOut(context.Background(), visit.ID, fx.deskActor)
	require.NoError(t, err)
	require.Equal(t, models.StatusCheckedOut, checkedOut.Status)
	require.NotNil(t, checkedOut.CheckOutAt)
	require.False(t, checkedOut.CheckOutAt.Before(*checkedOut.CheckInAt))

	// Second checkout is an invalid transition, not a silent no-op.
	_, err = fx.engine.CheckOut(context.Background(), visit.ID, fx.deskActor)
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	events := []Event{}
	for _, d := range fx.dispatcher.all() {
		events = append(events, d.Event)
	}
	require.Equal(t, []Event{EventApproved, EventCheckedIn, EventCheckedOut}, events)
}

func TestPreRegisteredVisitorChecksInWithoutExplicitApproval(t *testing.T) {
	fx := newEngineFixture(t)

	visit, err := fx.engine.CreatePreRegistration(context.Background(),
		VisitorInfo{Name: "Sam Reyes"}, fx.host.ID, time.Now().UTC(), fx.hostActor)
	require.NoError(t, err)
	require.Equal(t, models.StatusPreRegistered, visit.Status)

	kiosk := Actor{ID: "lobby-kiosk", Role: models.RoleKiosk}
	checkedIn, err := fx.engine.CheckInByToken(context.Background(), visit.SessionToken, kiosk)
	require.NoError(t, err)
	require.Equal(t, models.StatusCheckedIn, checkedIn.Status)
}

func TestCheckInWindowGates(t *testing.T) {
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	fx := newEngineFixture(t,
		WithClock(func() time.Time { return now }),
		WithCheckInWindow(CheckInWindow{Early: time.Hour, Late: 2 * time.Hour}),
	)

	tooEarly, err := fx.engine.CreatePreRegistration(context.Background(),
		VisitorInfo{Name: "Early Bird"}, fx.host.ID, now.Add(3*time.Hour), fx.hostActor)
	require.NoError(t, err)
	_, err = fx.engine.CheckInByToken(context.Background(), tooEarly.SessionToken, fx.deskActor)
	require.ErrorIs(t, err, apperrors.ErrCheckInWindow)

	tooLate, err := fx.engine.CreatePreRegistration(context.Background(),
		VisitorInfo{Name: "Late Comer"}, fx.host.ID, now.Add(-3*time.Hour), fx.hostActor)
	require.NoError(t, err)
	_, err = fx.engine.CheckInByToken(context.Background(), tooLate.SessionToken, fx.deskActor)
	require.ErrorIs(t, err, apperrors.ErrCheckInWindow)

	onTime, err := fx.engine.CreatePreRegistration(context.Background(),
		VisitorInfo{Name: "On Time"}, fx.host.ID, now.Add(30*time.Minute), fx.hostActor)
	require.NoError(t, err)
	checkedIn, err := fx.engine.CheckInByToken(context.Background(), onTime.SessionToken, fx.deskActor)
	require.NoError(t, err)
	require.Equal(t, models.StatusCheckedIn, checkedIn.Status)
}

func TestCheckInByHostRoleForbidden(t *testing.T) {
	fx := newEngineFixture(t)

	visit, err := fx.engine.CreatePreRegistration(context.Background(),
		VisitorInfo{Name: "Sam Reyes"}, fx.host.ID, time.Now().UTC(), fx.hostActor)
	require.NoError(t, err)

	_, err = fx.engine.CheckInByToken(context.Background(), visit.SessionToken, fx.hostActor)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestCheckoutNoticeDisabledSkipsDepartureDecision(t *testing.T) {
	fx := newEngineFixture(t, WithCheckoutNotice(false))

	visit, err := fx.engine.CreatePreRegistration(context.Background(),
		VisitorInfo{Name: "Sam Reyes"}, fx.host.ID, time.Now().UTC(), fx.hostActor)
	require.NoError(t, err)

	_, err = fx.engine.CheckInByToken(context.Background(), visit.SessionToken, fx.deskActor)
	require.NoError(t, err)
	_, err = fx.engine.CheckOut(context.Background(), visit.ID, fx.deskActor)
	require.NoError(t, err)

	for _, d := range fx.dispatcher.all() {
		require.NotEqual(t, EventCheckedOut, d.Event)
	}
}

func TestConcurrentApprovalsOnlyOneWins(t *testing.T) {
	fx := newEngineFixture(t)
	sqlDB, err := fx.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	visit, err := fx.engine.CreateWalkIn(context.Background(),
		VisitorInfo{Name: "Dana Cole"}, fx.host.ID, fx.deskActor)
	require.NoError(t, err)

	results := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = fx.engine.Approve(context.Background(), visit.ID, fx.hostActor)
	}()
	go func() {
		defer wg.Done()
		_, results[1] = fx.engine.Approve(context.Background(), visit.ID, fx.adminActor)
	}()
	wg.Wait()

	var wins, losses int
	for _, res := range results {
		switch {
		case res == nil:
			wins++
		case errors.Is(res, apperrors.ErrStateConflict), errors.Is(res, apperrors.ErrInvalidTransition):
			// The loser either lost the compare-and-swap or read the
			// winner's state before attempting.
			losses++
		default:
			t.Fatalf("unexpected error: %v", res)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, losses)
	require.Len(t, fx.dispatcher.all(), 1)
}

func TestConcurrentDoubleCheckInOneWins(t *testing.T) {
	fx := newEngineFixture(t)
	sqlDB, err := fx.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	visit, err := fx.engine.CreatePreRegistration(context.Background(),
		VisitorInfo{Name: "Sam Reyes"}, fx.host.ID, time.Now().UTC(), fx.hostActor)
	require.NoError(t, err)

	results := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(slot int) {
			defer wg.Done()
			_, results[slot] = fx.engine.CheckInByToken(context.Background(), visit.SessionToken, fx.deskActor)
		}(i)
	}
	wg.Wait()

	var wins int
	for _, res := range results {
		if res == nil {
			wins++
			continue
		}
		if !errors.Is(res, apperrors.ErrStateConflict) && !errors.Is(res, apperrors.ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", res)
		}
	}
	require.Equal(t, 1, wins)
}

func TestGetByTokenSummary(t *testing.T) {
	fx := newEngineFixture(t)

	visit, err := fx.engine.CreatePreRegistration(context.Background(),
		VisitorInfo{Name: "Sam Reyes", Company: "Contoso"}, fx.host.ID, time.Now().UTC(), fx.hostActor)
	require.NoError(t, err)

	summary, err := fx.engine.GetByToken(context.Background(), visit.SessionToken)
	require.NoError(t, err)
	require.Equal(t, visit.ID, summary.VisitID)
	require.Equal(t, visit.SessionToken, summary.SessionToken)
	require.Equal(t, models.StatusPreRegistered, summary.Status)
	require.Equal(t, fx.host.Name, summary.HostName)

	// The token keeps resolving after the visit settles.
	_, err = fx.engine.CheckInByToken(context.Background(), visit.SessionToken, fx.deskActor)
	require.NoError(t, err)
	_, err = fx.engine.CheckOut(context.Background(), visit.ID, fx.deskActor)
	require.NoError(t, err)

	summary, err = fx.engine.GetByToken(context.Background(), visit.SessionToken)
	require.NoError(t, err)
	require.Equal(t, models.StatusCheckedOut, summary.Status)
	require.NotNil(t, summary.CheckOutAt)
}

type collidingIssuer struct {
	tokens []string
	idx    int
}

func (i *collidingIssuer) Issue() (string, error) {
	token := i.tokens[i.idx]
	if i.idx < len(i.tokens)-1 {
		i.idx++
	}
	return token, nil
}

func TestCreateRetriesOnTokenCollision(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := NewStore(db)
	require.NoError(t, err)

	host := seedHost(t, db)
	seedVisit(t, db, host, models.StatusPendingApproval, "taken")

	engine, err := NewEngine(store, &collidingIssuer{tokens: []string{"taken", "fresh"}})
	require.NoError(t, err)

	visit, err := engine.CreateWalkIn(context.Background(),
		VisitorInfo{Name: "Dana Cole"}, host.ID, Actor{ID: "desk", Role: models.RoleReception})
	require.NoError(t, err)
	require.Equal(t, "fresh", visit.SessionToken)
}
