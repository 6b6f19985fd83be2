package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/visitdesk/visitdesk/internal/models"
	"github.com/visitdesk/visitdesk/internal/visits"
	apperrors "github.com/visitdesk/visitdesk/pkg/errors"
	"github.com/visitdesk/visitdesk/pkg/logger"
	"github.com/visitdesk/visitdesk/pkg/mail"
	"github.com/visitdesk/visitdesk/pkg/metrics"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 2 * time.Second
	deliveryTimeout     = 30 * time.Second
)

// Feed receives operator-facing events about notification outcomes. The
// realtime hub implements it; a nil feed is valid.
type Feed interface {
	Publish(event string, data any)
}

// Option customises the dispatcher.
type Option func(*Dispatcher)

// WithMaxAttempts bounds per-channel delivery retries.
func WithMaxAttempts(attempts int) Option {
	return func(d *Dispatcher) {
		if attempts > 0 {
			d.maxAttempts = attempts
		}
	}
}

// WithRetryBackoff sets the base backoff between delivery attempts; each
// further attempt doubles it.
func WithRetryBackoff(backoff time.Duration) Option {
	return func(d *Dispatcher) {
		if backoff > 0 {
			d.backoff = backoff
		}
	}
}

// WithFeed attaches the operator event feed.
func WithFeed(feed Feed) Option {
	return func(d *Dispatcher) {
		d.feed = feed
	}
}

// WithClock injects a custom clock, primarily for testing.
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.now = clock
		}
	}
}

// Dispatcher fans a notification decision out to every channel the recipient
// has contact data for, asynchronously and independently per channel. A
// channel's permanent failure is recorded for operators and never alters the
// visit that triggered it.
type Dispatcher struct {
	db          *gorm.DB
	channels    []Channel
	maxAttempts int
	backoff     time.Duration
	feed        Feed
	now         func() time.Time
	log         *zap.Logger
	wg          sync.WaitGroup
}

// NewDispatcher constructs a dispatcher over the provided channels.
func NewDispatcher(db *gorm.DB, channels []Channel, opts ...Option) (*Dispatcher, error) {
	if db == nil {
		return nil, errors.New("notify: db is required")
	}
	if len(channels) == 0 {
		return nil, errors.New("notify: at least one channel is required")
	}

	d := &Dispatcher{
		db:          db,
		channels:    channels,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultRetryBackoff,
		now:         time.Now,
		log:         logger.WithModule("notify"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch schedules delivery for a decision. It returns immediately; the
// transition that produced the decision must never wait on provider I/O.
func (d *Dispatcher) Dispatch(decision visits.Decision) {
	for _, channel := range d.channels {
		address := channel.Address(decision.Recipient)
		if address == "" {
			continue
		}

		d.wg.Add(1)
		go func(ch Channel, addr string) {
			defer d.wg.Done()
			d.deliver(ch, addr, decision)
		}(channel, address)
	}
}

func (d *Dispatcher) deliver(channel Channel, address string, decision visits.Decision) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	job := d.createJob(ctx, channel.Name(), address, decision)

	subject, body, err := renderTemplate(decision.Template, decision.Data)
	if err != nil {
		d.markFailed(ctx, job, err)
		return
	}

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		err = channel.Send(ctx, address, subject, body)
		d.bumpAttempts(ctx, job, attempt)
		if err == nil {
			d.markSent(ctx, job)
			return
		}
		if channelDisabled(err) {
			break
		}
		if attempt < d.maxAttempts {
			select {
			case <-ctx.Done():
				err = ctx.Err()
				attempt = d.maxAttempts
			case <-time.After(d.backoff << (attempt - 1)):
			}
		}
	}

	d.markFailed(ctx, job, err)
}

// channelDisabled reports whether a send failed because the channel is
// disabled by configuration; a disabled channel short-circuits instead of
// burning retries.
func channelDisabled(err error) bool {
	return errors.Is(err, ErrWhatsAppDisabled) || errors.Is(err, mail.ErrSMTPDisabled)
}

// TestDispatch sends a synthetic message to an arbitrary address for
// configuration validation. It bypasses the engine entirely, runs
// synchronously, and makes a single attempt.
func (d *Dispatcher) TestDispatch(ctx context.Context, channelName, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return apperrors.NewBadRequest("recipient address is required")
	}

	channel := d.channel(channelName)
	if channel == nil {
		return apperrors.NewBadRequest(fmt.Sprintf("unknown channel %q", channelName))
	}

	subject, body, err := renderTemplate("operator_test", nil)
	if err != nil {
		return err
	}

	job := d.createJob(ctx, channel.Name(), address, visits.Decision{
		Event:    "notify.test",
		Template: "operator_test",
	})
	d.bumpAttempts(ctx, job, 1)

	if err := channel.Send(ctx, address, subject, body); err != nil {
		d.markFailed(ctx, job, err)
		return apperrors.New("notify.test_failed", err.Error(), 502)
	}

	d.markSent(ctx, job)
	return nil
}

// ListJobsInput filters the operator job view.
type ListJobsInput struct {
	Status string
	Event  string
	Limit  int
	Offset int
}

// ListJobs returns delivery attempts most recent first for the operator view.
func (d *Dispatcher) ListJobs(ctx context.Context, input ListJobsInput) ([]models.NotificationJob, error) {
	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	tx := d.db.WithContext(ctx).Model(&models.NotificationJob{})
	if input.Status != "" {
		tx = tx.Where("status = ?", input.Status)
	}
	if input.Event != "" {
		tx = tx.Where("event = ?", input.Event)
	}

	var rows []models.NotificationJob
	if err := tx.Order("created_at DESC").
		Limit(limit).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notify: list jobs: %w", err)
	}
	return rows, nil
}

// Wait blocks until all in-flight deliveries settle. Used in shutdown and tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) channel(name string) Channel {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, ch := range d.channels {
		if ch.Name() == name {
			return ch
		}
	}
	return nil
}

func (d *Dispatcher) createJob(ctx context.Context, channel, address string, decision visits.Decision) *models.NotificationJob {
	job := &models.NotificationJob{
		Event:     string(decision.Event),
		Channel:   channel,
		Recipient: address,
		Template:  decision.Template,
		Status:    models.JobPending,
	}
	if decision.VisitID != "" {
		visitID := decision.VisitID
		job.VisitID = &visitID
	}
	if decision.Data != nil {
		if payload, err := json.Marshal(decision.Data); err == nil {
			job.Payload = datatypes.JSON(payload)
		}
	}

	if err := d.db.WithContext(ctx).Create(job).Error; err != nil {
		d.log.Error("record notification job", zap.Error(err))
	}
	return job
}

func (d *Dispatcher) bumpAttempts(ctx context.Context, job *models.NotificationJob, attempts int) {
	job.Attempts = attempts
	if job.ID == "" {
		return
	}
	if err := d.db.WithContext(ctx).Model(job).Update("attempts", attempts).Error; err != nil {
		d.log.Error("update notification attempts", zap.Error(err))
	}
}

func (d *Dispatcher) markSent(ctx context.Context, job *models.NotificationJob) {
	metrics.NotificationSends.WithLabelValues(job.Channel, "sent").Inc()

	now := d.now().UTC()
	job.Status = models.JobSent
	job.SentAt = &now
	if job.ID == "" {
		return
	}
	if err := d.db.WithContext(ctx).Model(job).
		Updates(map[string]any{"status": models.JobSent, "sent_at": now}).Error; err != nil {
		d.log.Error("mark notification sent", zap.Error(err))
	}
}

func (d *Dispatcher) markFailed(ctx context.Context, job *models.NotificationJob, cause error) {
	metrics.NotificationSends.WithLabelValues(job.Channel, "failed").Inc()

	message := "delivery failed"
	if cause != nil {
		message = cause.Error()
	}

	// Operational visibility only: the actor who triggered the transition
	// is never shown delivery failures.
	d.log.Warn("notification delivery failed",
		zap.String("channel", job.Channel),
		zap.String("event", job.Event),
		zap.Int("attempts", job.Attempts),
		zap.String("error", message),
	)

	job.Status = models.JobFailed
	job.LastError = message
	if job.ID != "" {
		if err := d.db.WithContext(ctx).Model(job).
			Updates(map[string]any{"status": models.JobFailed, "last_error": message}).Error; err != nil {
			d.log.Error("mark notification failed", zap.Error(err))
		}
	}

	if d.feed != nil {
		d.feed.Publish("notification.failed", map[string]any{
			"job_id":  job.ID,
			"channel": job.Channel,
			"event":   job.Event,
			"error":   message,
		})
	}
}
