package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/visitdesk/visitdesk/internal/database/testutil"
	"github.com/visitdesk/visitdesk/internal/models"
	"github.com/visitdesk/visitdesk/internal/visits"
)

type fakeChannel struct {
	mu       sync.Mutex
	name     string
	failures int
	sent     []string
	attempts int
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Address(recipient visits.Recipient) string {
	if c.name == "email" {
		return recipient.Email
	}
	return recipient.Phone
}

func (c *fakeChannel) Send(ctx context.Context, address, subject, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.attempts <= c.failures {
		return errors.New("provider unavailable")
	}
	c.sent = append(c.sent, address)
	return nil
}

func (c *fakeChannel) sentTo() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

type captureFeed struct {
	mu     sync.Mutex
	events []string
}

func (f *captureFeed) Publish(event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func decisionFor(t *testing.T) visits.Decision {
	t.Helper()
	return visits.Decision{
		VisitID:  "visit-1",
		Event:    visits.EventApproved,
		Template: "visitor_approved",
		Recipient: visits.Recipient{
			Name:  "Dana Cole",
			Email: "dana@example.com",
			Phone: "+15550100",
		},
		Data: map[string]any{"visitor_name": "Dana Cole", "host_name": "Avery Ops"},
	}
}

func TestDispatchFansOutToChannelsWithContactData(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	email := &fakeChannel{name: "email"}
	wa := &fakeChannel{name: "whatsapp"}
	d, err := NewDispatcher(db, []Channel{email, wa}, WithRetryBackoff(time.Millisecond))
	require.NoError(t, err)

	d.Dispatch(decisionFor(t))
	d.Wait()

	require.Equal(t, []string{"dana@example.com"}, email.sentTo())
	require.Equal(t, []string{"+15550100"}, wa.sentTo())

	var jobs []models.NotificationJob
	require.NoError(t, db.Find(&jobs).Error)
	require.Len(t, jobs, 2)
	for _, job := range jobs {
		require.Equal(t, models.JobSent, job.Status)
		require.NotNil(t, job.SentAt)
		require.NotNil(t, job.VisitID)
	}
}

func TestDispatchSkipsChannelsWithoutContactData(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	email := &fakeChannel{name: "email"}
	wa := &fakeChannel{name: "whatsapp"}
	d, err := NewDispatcher(db, []Channel{email, wa}, WithRetryBackoff(time.Millisecond))
	require.NoError(t, err)

	decision := decisionFor(t)
	decision.Recipient.Phone = ""
	d.Dispatch(decision)
	d.Wait()

	require.Len(t, email.sentTo(), 1)
	require.Empty(t, wa.sentTo())
}

func TestDispatchRetriesThenSucceeds(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	email := &fakeChannel{name: "email", failures: 2}
	d, err := NewDispatcher(db, []Channel{email},
		WithMaxAttempts(3),
		WithRetryBackoff(time.Millisecond),
	)
	require.NoError(t, err)

	d.Dispatch(decisionFor(t))
	d.Wait()

	require.Len(t, email.sentTo(), 1)

	var job models.NotificationJob
	require.NoError(t, db.First(&job).Error)
	require.Equal(t, models.JobSent, job.Status)
	require.Equal(t, 3, job.Attempts)
}

func TestDispatchPermanentFailureIsRecordedNotRaised(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	email := &fakeChannel{name: "email", failures: 10}
	feed := &captureFeed{}
	d, err := NewDispatcher(db, []Channel{email},
		WithMaxAttempts(2),
		WithRetryBackoff(time.Millisecond),
		WithFeed(feed),
	)
	require.NoError(t, err)

	d.Dispatch(decisionFor(t))
	d.Wait()

	var job models.NotificationJob
	require.NoError(t, db.First(&job).Error)
	require.Equal(t, models.JobFailed, job.Status)
	require.Equal(t, 2, job.Attempts)
	require.Contains(t, job.LastError, "provider unavailable")

	feed.mu.Lock()
	defer feed.mu.Unlock()
	require.Equal(t, []string{"notification.failed"}, feed.events)
}

func TestTestDispatchBypassesEngineAndVisit(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	email := &fakeChannel{name: "email"}
	d, err := NewDispatcher(db, []Channel{email})
	require.NoError(t, err)

	require.NoError(t, d.TestDispatch(context.Background(), "email", "ops@example.com"))
	require.Equal(t, []string{"ops@example.com"}, email.sentTo())

	var job models.NotificationJob
	require.NoError(t, db.First(&job).Error)
	require.Nil(t, job.VisitID)
	require.Equal(t, "notify.test", job.Event)
	require.Equal(t, models.JobSent, job.Status)
}

func TestTestDispatchValidation(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	d, err := NewDispatcher(db, []Channel{&fakeChannel{name: "email"}})
	require.NoError(t, err)

	require.Error(t, d.TestDispatch(context.Background(), "email", " "))
	require.Error(t, d.TestDispatch(context.Background(), "carrier-pigeon", "ops@example.com"))
}

func TestRenderTemplate(t *testing.T) {
	subject, body, err := renderTemplate("host_arrival", map[string]any{"visitor_name": "Dana Cole"})
	require.NoError(t, err)
	require.Equal(t, "Your visitor has arrived", subject)
	require.Contains(t, body, "Dana Cole has checked in")

	_, _, err = renderTemplate("no_such_template", nil)
	require.Error(t, err)
}

func TestListJobsFilters(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	email := &fakeChannel{name: "email", failures: 10}
	d, err := NewDispatcher(db, []Channel{email},
		WithMaxAttempts(1),
		WithRetryBackoff(time.Millisecond),
	)
	require.NoError(t, err)

	d.Dispatch(decisionFor(t))
	d.Wait()

	failed, err := d.ListJobs(context.Background(), ListJobsInput{Status: models.JobFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)

	sent, err := d.ListJobs(context.Background(), ListJobsInput{Status: models.JobSent})
	require.NoError(t, err)
	require.Empty(t, sent)
}
